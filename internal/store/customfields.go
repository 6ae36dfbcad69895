package store

import (
	"context"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

func (s *Store) SetCustomField(ctx context.Context, key string, value *string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO custom_fields (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return wrapErr(err, "set custom field")
	}
	s.notify()
	return nil
}

func (s *Store) ListCustomFields(ctx context.Context) ([]*domain.CustomField, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT key, value FROM custom_fields ORDER BY key`)
	if err != nil {
		return nil, wrapErr(err, "list custom fields")
	}
	defer rows.Close()
	var out []*domain.CustomField
	for rows.Next() {
		cf := &domain.CustomField{}
		if err := rows.Scan(&cf.Key, &cf.Value); err != nil {
			return nil, wrapErr(err, "scan custom field")
		}
		out = append(out, cf)
	}
	return out, rows.Err()
}
