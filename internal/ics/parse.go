package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"hora/pkg/logx"
)

// Event is one parsed VEVENT, before recurrence expansion.
type Event struct {
	UID     string
	Summary string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule string
	ExDates  []time.Time
}

// Parse reads one ICS payload into normalized events. Individual
// malformed VEVENTs are skipped, not fatal: one broken entry in a feed
// must not hide the rest of the calendar.
func Parse(body []byte, log logx.Logger) ([]Event, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty payload")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out []Event
	for _, ve := range cal.Events() {
		ev, err := parseEvent(ve)
		if err != nil {
			log.Warn("skipping malformed vevent", logx.Err(err))
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func parseEvent(ve *ical.VEvent) (Event, error) {
	var out Event

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uid.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		out.AllDay = isDateOnly(p)
	}
	if out.AllDay {
		day := time.Date(out.Start.Year(), out.Start.Month(), out.Start.Day(), 0, 0, 0, 0, out.Start.Location())
		out.Start = day
		out.End = day.Add(24 * time.Hour)
	}
	if out.End.IsZero() {
		out.End = out.Start
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseTime(part); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}
	return out, nil
}

func isDateOnly(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

// parseTime handles the basic ICS date and date-time shapes used by
// EXDATE values.
func parseTime(v string) (time.Time, error) {
	switch {
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, time.Local)
	default:
		return time.ParseInLocation("20060102", v, time.Local)
	}
}
