package store

import (
	"context"
	"fmt"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// UpsertLayout stores advisory layout metadata (runner count, default
// flag) under the layout's name. Its caller is the HTTP
// PUT /api/v1/layouts/{name} handler.
func (s *Store) UpsertLayout(ctx context.Context, l *domain.Layout) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO layouts (name, runner_count, is_default) VALUES (?, ?, ?)
		 ON CONFLICT (name) DO UPDATE SET runner_count=excluded.runner_count, is_default=excluded.is_default`,
		l.Name, l.RunnerCount, l.Default)
	if err != nil {
		return wrapErr(err, "upsert layout")
	}
	s.notify()
	return nil
}

func (s *Store) GetLayout(ctx context.Context, name string) (*domain.Layout, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT name, runner_count, is_default FROM layouts WHERE name = ? COLLATE NOCASE`, name)
	l := &domain.Layout{}
	if err := row.Scan(&l.Name, &l.RunnerCount, &l.Default); err != nil {
		return nil, fmt.Errorf("get layout %q: %w", name, handleNotFound(err, "get layout"))
	}
	return l, nil
}

func (s *Store) ListLayouts(ctx context.Context) ([]*domain.Layout, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT name, runner_count, is_default FROM layouts ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, wrapErr(err, "list layouts")
	}
	defer rows.Close()
	var out []*domain.Layout
	for rows.Next() {
		l := &domain.Layout{}
		if err := rows.Scan(&l.Name, &l.RunnerCount, &l.Default); err != nil {
			return nil, wrapErr(err, "scan layout")
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
