package ics

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"

	"hora/pkg/interval"
)

// Export serializes tags as an ICS calendar, so a solved schedule can
// be subscribed to from any calendar client. Open-ended tags are
// skipped: VEVENT needs both bounds.
func Export(name string, tags []interval.Tag) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//hora//schedule//EN")
	cal.SetXWRCalName(name)

	now := time.Now().UTC()
	for i, t := range tags {
		if t.ValidFrom == nil || t.ValidTo == nil {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("%s-%d@hora", sanitizeUID(t.Name), i))
		ev.SetCreatedTime(now)
		ev.SetDtStampTime(now)
		ev.SetStartAt(t.ValidFrom.UTC())
		ev.SetEndAt(t.ValidTo.UTC())
		ev.SetSummary(t.Name)
		if t.Category != nil {
			ev.SetProperty(ical.ComponentPropertyCategories, t.Category.FullPath())
		}
	}
	return []byte(cal.Serialize())
}

func sanitizeUID(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
