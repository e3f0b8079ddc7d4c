package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hora/pkg/chores"
	"hora/pkg/interval"
	"hora/pkg/logx"
	"hora/pkg/tension"
)

// ErrUnknownChore is returned when completing a chore that was never
// defined.
var ErrUnknownChore = errors.New("store: unknown chore")

// UpsertChore creates or updates a chore definition.
func (s *Store) UpsertChore(ctx context.Context, c chores.Chore) error {
	if c.Name == "" {
		return errors.New("store: chore name must not be empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chores(name, mean_s, tolerance_s, min_s, max_s, duration_s)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   mean_s=excluded.mean_s, tolerance_s=excluded.tolerance_s,
		   min_s=excluded.min_s, max_s=excluded.max_s,
		   duration_s=excluded.duration_s`,
		c.Name, sec(c.Freq.Mean), sec(c.Freq.Tolerance), sec(c.Freq.Min), sec(c.Freq.Max), sec(c.Duration))
	return err
}

// SetChoreWindow restricts a chore to an active window; the zero span
// means always active. Missing bounds stay open.
func (s *Store) SetChoreWindow(ctx context.Context, name string, span interval.Span) error {
	var from, to *time.Time
	if v, ok := span.Start(); ok {
		from = &v
	}
	if v, ok := span.End(); ok {
		to = &v
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE chores SET active_from = ?, active_to = ? WHERE name = ?`,
		nullUnix(from), nullUnix(to), name)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownChore, name)
	}
	return nil
}

// RemoveChore deletes a chore and its completion history.
func (s *Store) RemoveChore(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chores WHERE name = ?`, name)
	return err
}

// MarkDone records a completion. A zero instant means now.
func (s *Store) MarkDone(ctx context.Context, name string, at time.Time) error {
	if at.IsZero() {
		at = time.Now()
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chores WHERE name = ?`, name).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %q", ErrUnknownChore, name)
	}
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO completions(chore_name, done_at) VALUES(?,?)`, name, at.Unix()); err != nil {
		return err
	}
	s.log.Debug("chore completed", logx.String("chore", name), logx.Time("at", at))
	return nil
}

// ApplicableChores lists every defined chore whose active window
// overlaps the span and that fits inside it, with its latest
// completion. This implements chores.Store.
func (s *Store) ApplicableChores(ctx context.Context, span interval.Span) ([]chores.Status, error) {
	lo, hi := spanBounds(span)
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.name, c.mean_s, c.tolerance_s, c.min_s, c.max_s, c.duration_s,
		        (SELECT MAX(done_at) FROM completions WHERE chore_name = c.name)
		 FROM chores c
		 WHERE (c.active_from IS NULL OR c.active_from < ?)
		   AND (c.active_to IS NULL OR c.active_to > ?)
		 ORDER BY c.name`, hi, lo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []chores.Status
	for rows.Next() {
		var (
			name                          string
			mean, tolerance, min, max, du int64
			last                          sql.NullInt64
		)
		if err := rows.Scan(&name, &mean, &tolerance, &min, &max, &du, &last); err != nil {
			return nil, err
		}
		freq, err := tension.NewFrequency(dur(mean), dur(tolerance), dur(min), dur(max))
		if err != nil {
			return nil, fmt.Errorf("store: chore %q has bad cadence: %w", name, err)
		}
		duration := dur(du)
		// A chore larger than the span cannot be placed in it.
		if span.Finite() && span.Duration() < duration {
			continue
		}
		st := chores.Status{Chore: chores.Chore{Name: name, Freq: freq, Duration: duration}}
		if last.Valid {
			st.LastDone = time.Unix(last.Int64, 0).UTC()
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func sec(d time.Duration) int64 { return int64(d / time.Second) }

func dur(s int64) time.Duration { return time.Duration(s) * time.Second }
