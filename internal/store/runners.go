package store

import (
	"context"
	"fmt"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// CreateRunner inserts a Runner row bound to an existing Participant and
// rewrites its nickname set, both inside one transaction.
func (s *Store) CreateRunner(ctx context.Context, r *domain.Runner) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO runners (participant_id, stream_handle, telemetry_handle, cached_playlist_url, volume_percent)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ParticipantID, r.StreamHandle, r.TelemetryHandle, r.CachedPlaylistURL, r.VolumePercent); err != nil {
			return wrapErr(err, "create runner")
		}
		if err := s.rewriteNicknames(ctx, r.ParticipantID, r.Nicknames); err != nil {
			return err
		}
		s.notify()
		return nil
	})
}

func (s *Store) rewriteNicknames(ctx context.Context, runnerID int64, nicknames []string) error {
	if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM nicknames WHERE runner_id = ?`, runnerID); err != nil {
		return wrapErr(err, "rewrite nicknames")
	}
	for _, n := range nicknames {
		if _, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO nicknames (text, runner_id) VALUES (?, ?)`, n, runnerID); err != nil {
			return wrapErr(err, "rewrite nicknames")
		}
	}
	return nil
}

func (s *Store) GetRunner(ctx context.Context, participantID int64) (*domain.Runner, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT participant_id, stream_handle, telemetry_handle, cached_playlist_url, volume_percent
		 FROM runners WHERE participant_id = ?`, participantID)
	r := &domain.Runner{}
	if err := row.Scan(&r.ParticipantID, &r.StreamHandle, &r.TelemetryHandle, &r.CachedPlaylistURL, &r.VolumePercent); err != nil {
		return nil, handleNotFound(err, "get runner")
	}
	nicks, err := s.nicknamesFor(ctx, participantID)
	if err != nil {
		return nil, err
	}
	r.Nicknames = nicks
	return r, nil
}

func (s *Store) nicknamesFor(ctx context.Context, runnerID int64) ([]string, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT text FROM nicknames WHERE runner_id = ? ORDER BY text COLLATE NOCASE`, runnerID)
	if err != nil {
		return nil, wrapErr(err, "list nicknames")
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, wrapErr(err, "scan nickname")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateRunner rewrites the mutable runner fields and its nickname set
// atomically, per "runner update rewrites the nickname set inside one
// transaction".
func (s *Store) UpdateRunner(ctx context.Context, r *domain.Runner) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE runners SET stream_handle=?, telemetry_handle=?, cached_playlist_url=?, volume_percent=?
			 WHERE participant_id=?`,
			r.StreamHandle, r.TelemetryHandle, r.CachedPlaylistURL, r.VolumePercent, r.ParticipantID)
		if err != nil {
			return wrapErr(err, "update runner")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("update runner: %w", domain.ErrNotFound)
		}
		if err := s.rewriteNicknames(ctx, r.ParticipantID, r.Nicknames); err != nil {
			return err
		}
		s.notify()
		return nil
	})
}

// SetCachedPlaylistURL backs invariant 5: the cache is only ever written
// with a value the resolver actually returned.
func (s *Store) SetCachedPlaylistURL(ctx context.Context, participantID int64, url *string) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE runners SET cached_playlist_url = ? WHERE participant_id = ?`, url, participantID)
	if err != nil {
		return wrapErr(err, "set cached playlist url")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set cached playlist url: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) SetRunnerVolume(ctx context.Context, participantID int64, pct int) error {
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE runners SET volume_percent = ? WHERE participant_id = ?`, pct, participantID)
	if err != nil {
		return wrapErr(err, "set runner volume")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set runner volume: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

// DeleteRunner is invoked by the Runner Actor only after it has verified
// no Event references the runner; the store still enforces the FK via
// ON DELETE CASCADE for the participant->runner relationship, but here
// we delete the runner row itself (participant stays).
func (s *Store) DeleteRunner(ctx context.Context, participantID int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM runners WHERE participant_id = ?`, participantID)
	if err != nil {
		return wrapErr(err, "delete runner")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete runner: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

// EventsForRunner lists event ids whose roster includes this runner, used
// by the Runner Actor to refuse deletion of a referenced runner.
func (s *Store) EventsForRunner(ctx context.Context, runnerID int64) ([]int64, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT event_id FROM event_runners WHERE runner_id = ?`, runnerID)
	if err != nil {
		return nil, wrapErr(err, "events for runner")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "scan event id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) ListRunners(ctx context.Context) ([]*domain.Runner, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT participant_id, stream_handle, telemetry_handle, cached_playlist_url, volume_percent FROM runners`)
	if err != nil {
		return nil, wrapErr(err, "list runners")
	}
	defer rows.Close()

	var out []*domain.Runner
	for rows.Next() {
		r := &domain.Runner{}
		if err := rows.Scan(&r.ParticipantID, &r.StreamHandle, &r.TelemetryHandle, &r.CachedPlaylistURL, &r.VolumePercent); err != nil {
			return nil, wrapErr(err, "scan runner")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, r := range out {
		nicks, err := s.nicknamesFor(ctx, r.ParticipantID)
		if err != nil {
			return nil, err
		}
		r.Nicknames = nicks
	}
	return out, nil
}
