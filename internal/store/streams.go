package store

import (
	"context"
	"fmt"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// IsHostInUse backs Stream Actor's Create precondition "no other Stream
// currently uses that host" and invariant P1 (host_name unique across
// Stream rows) — also enforced at the schema level via a UNIQUE
// constraint, this is the pre-check used to return a descriptive
// validation error instead of a raw constraint failure.
func (s *Store) IsHostInUse(ctx context.Context, hostName string) (bool, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM streams WHERE host_name = ?`, hostName).Scan(&n); err != nil {
		return false, wrapErr(err, "is host in use")
	}
	return n > 0, nil
}

// CreateStream persists an empty-roster Stream row for eventID on host.
func (s *Store) CreateStream(ctx context.Context, eventID int64, hostName string) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO streams (event_id, host_name) VALUES (?, ?)`, eventID, hostName)
	if err != nil {
		return wrapErr(err, "create stream")
	}
	s.notify()
	return nil
}

func (s *Store) GetStream(ctx context.Context, eventID int64) (*domain.Stream, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT event_id, host_name, active_commentators, ignored_commentators, requested_layout, audible_runner
		 FROM streams WHERE event_id = ?`, eventID)
	st := &domain.Stream{}
	if err := row.Scan(&st.EventID, &st.HostName, &st.ActiveCommentators, &st.IgnoredCommentators,
		&st.RequestedLayout, &st.AudibleRunner); err != nil {
		return nil, handleNotFound(err, "get stream")
	}
	slots, err := s.streamRunners(ctx, eventID)
	if err != nil {
		return nil, err
	}
	st.StreamRunners = slots
	return st, nil
}

func (s *Store) streamRunners(ctx context.Context, eventID int64) (map[int]int64, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT slot, runner_id FROM stream_runners WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, wrapErr(err, "stream runners")
	}
	defer rows.Close()
	out := map[int]int64{}
	for rows.Next() {
		var slot int
		var runner int64
		if err := rows.Scan(&slot, &runner); err != nil {
			return nil, wrapErr(err, "scan stream runner")
		}
		out[slot] = runner
	}
	return out, rows.Err()
}

// SaveStream persists new_state atomically: the slotted-runner list is
// rewritten inside the same transaction as the Stream row's scalar
// fields, per "stream save rewrites the slotted-runner list inside one
// transaction."
func (s *Store) SaveStream(ctx context.Context, st *domain.Stream) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		res, err := s.conn(ctx).ExecContext(ctx,
			`UPDATE streams SET host_name=?, active_commentators=?, ignored_commentators=?, requested_layout=?, audible_runner=?
			 WHERE event_id=?`,
			st.HostName, st.ActiveCommentators, st.IgnoredCommentators, st.RequestedLayout, st.AudibleRunner, st.EventID)
		if err != nil {
			return wrapErr(err, "save stream")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("save stream: %w", domain.ErrNotFound)
		}

		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM stream_runners WHERE event_id = ?`, st.EventID); err != nil {
			return wrapErr(err, "rewrite stream runners")
		}
		for slot, runnerID := range st.StreamRunners {
			if _, err := s.conn(ctx).ExecContext(ctx,
				`INSERT INTO stream_runners (event_id, slot, runner_id) VALUES (?, ?, ?)`,
				st.EventID, slot, runnerID); err != nil {
				return wrapErr(err, "rewrite stream runners")
			}
		}
		s.notify()
		return nil
	})
}

func (s *Store) DeleteStream(ctx context.Context, eventID int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM streams WHERE event_id = ?`, eventID)
	if err != nil {
		return wrapErr(err, "delete stream")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete stream: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) ListStreams(ctx context.Context) ([]*domain.Stream, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT event_id, host_name, active_commentators, ignored_commentators, requested_layout, audible_runner FROM streams`)
	if err != nil {
		return nil, wrapErr(err, "list streams")
	}
	var out []*domain.Stream
	for rows.Next() {
		st := &domain.Stream{}
		if err := rows.Scan(&st.EventID, &st.HostName, &st.ActiveCommentators, &st.IgnoredCommentators,
			&st.RequestedLayout, &st.AudibleRunner); err != nil {
			rows.Close()
			return nil, wrapErr(err, "scan stream")
		}
		out = append(out, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, st := range out {
		slots, err := s.streamRunners(ctx, st.EventID)
		if err != nil {
			return nil, err
		}
		st.StreamRunners = slots
	}
	return out, nil
}
