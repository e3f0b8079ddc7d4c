package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hora/pkg/interval"
	"hora/pkg/logx"
	"hora/pkg/sched"
)

// InsertTags persists tags. Re-inserting an occurrence that already
// exists (same name and bounds) is a no-op, so feeding a solve result
// back into the store is idempotent.
func (s *Store) InsertTags(ctx context.Context, tags ...interval.Tag) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO tags(name, category, valid_from, valid_to) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range tags {
		if _, err := stmt.ExecContext(ctx, t.Name, categoryPath(t), nullUnix(t.ValidFrom), nullUnix(t.ValidTo)); err != nil {
			return fmt.Errorf("store: inserting tag %q: %w", t.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.log.Debug("tags inserted", logx.Int("count", len(tags)))
	return nil
}

// TagsWithin returns every stored tag overlapping the span, ordered by
// start time.
func (s *Store) TagsWithin(ctx context.Context, span interval.Span) ([]interval.Tag, error) {
	lo, hi := spanBounds(span)
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, category, valid_from, valid_to FROM tags
		 WHERE (valid_from IS NULL OR valid_from < ?)
		   AND (valid_to IS NULL OR valid_to > ?)
		 ORDER BY IFNULL(valid_from, 0), name`,
		hi, lo)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []interval.Tag
	for rows.Next() {
		var (
			name     string
			category sql.NullString
			from, to sql.NullInt64
		)
		if err := rows.Scan(&name, &category, &from, &to); err != nil {
			return nil, err
		}
		t := interval.Tag{Name: name, ValidFrom: unixPtr(from), ValidTo: unixPtr(to)}
		if category.Valid {
			c, err := s.pool.Get(category.String)
			if err != nil {
				return nil, fmt.Errorf("store: tag %q has bad category %q: %w", name, category.String, err)
			}
			t.Category = c
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// RemoveTagsWithin deletes every tag overlapping the span and reports
// how many went away. Clearing a window before re-planning it is the
// usual caller.
func (s *Store) RemoveTagsWithin(ctx context.Context, span interval.Span) (int64, error) {
	lo, hi := spanBounds(span)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM tags
		 WHERE (valid_from IS NULL OR valid_from < ?)
		   AND (valid_to IS NULL OR valid_to > ?)`,
		hi, lo)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	s.log.Debug("tags removed", logx.Int64("count", n), logx.String("span", span.String()))
	return n, nil
}

// Snapshot loads the span's tags as an in-memory TagSource for a
// Populate call.
func (s *Store) Snapshot(ctx context.Context, span interval.Span) (sched.TagSource, error) {
	tags, err := s.TagsWithin(ctx, span)
	if err != nil {
		return nil, err
	}
	return sched.Tags(tags), nil
}

func categoryPath(t interval.Tag) any {
	if t.Category == nil {
		return nil
	}
	return t.Category.FullPath()
}

func nullUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

// spanBounds realizes missing bounds as sentinels wide enough for any
// stored timestamp.
func spanBounds(span interval.Span) (lo, hi int64) {
	lo, hi = -(int64(1) << 55), int64(1)<<55
	if from, ok := span.Start(); ok {
		lo = from.Unix()
	}
	if to, ok := span.End(); ok {
		hi = to.Unix()
	}
	return lo, hi
}
