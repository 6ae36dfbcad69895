package store

import (
	"context"
	"fmt"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

func (s *Store) CreateParticipant(ctx context.Context, p *domain.Participant) (int64, error) {
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO participants (name, pronouns, location, discord_id, photo, is_host)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Name, p.Pronouns, p.Location, p.DiscordID, p.Photo, p.IsHost)
	if err != nil {
		return 0, wrapErr(err, "create participant")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr(err, "create participant")
	}
	s.notify()
	return id, nil
}

func (s *Store) GetParticipant(ctx context.Context, id int64) (*domain.Participant, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, pronouns, location, discord_id, photo, is_host
		 FROM participants WHERE id = ?`, id)
	p := &domain.Participant{}
	if err := row.Scan(&p.ID, &p.Name, &p.Pronouns, &p.Location, &p.DiscordID, &p.Photo, &p.IsHost); err != nil {
		return nil, handleNotFound(err, "get participant")
	}
	return p, nil
}

func (s *Store) GetParticipantByName(ctx context.Context, name string) (*domain.Participant, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, pronouns, location, discord_id, photo, is_host
		 FROM participants WHERE name = ? COLLATE NOCASE`, name)
	p := &domain.Participant{}
	if err := row.Scan(&p.ID, &p.Name, &p.Pronouns, &p.Location, &p.DiscordID, &p.Photo, &p.IsHost); err != nil {
		return nil, handleNotFound(err, "get participant by name")
	}
	return p, nil
}

func (s *Store) UpdateParticipant(ctx context.Context, p *domain.Participant) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE participants SET name=?, pronouns=?, location=?, discord_id=?, is_host=? WHERE id=?`,
		p.Name, p.Pronouns, p.Location, p.DiscordID, p.IsHost, p.ID)
	if err != nil {
		return wrapErr(err, "update participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update participant: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

// DeleteParticipant refuses (validation error) if a Runner still
// references this participant, per invariant: "Deleted only when no
// dependent Runner exists."
func (s *Store) DeleteParticipant(ctx context.Context, id int64) error {
	var has int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM runners WHERE participant_id = ?`, id).Scan(&has); err != nil {
		return wrapErr(err, "delete participant")
	}
	if has > 0 {
		return domain.Validationf("delete participant %d: runner still exists", id)
	}

	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err, "delete participant")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete participant: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) ListParticipants(ctx context.Context) ([]*domain.Participant, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, name, pronouns, location, discord_id, photo, is_host FROM participants ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, wrapErr(err, "list participants")
	}
	defer rows.Close()

	var out []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Pronouns, &p.Location, &p.DiscordID, &p.Photo, &p.IsHost); err != nil {
			return nil, wrapErr(err, "scan participant")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
