package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

func unixPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v any) *time.Time {
	ms, ok := v.(int64)
	if !ok {
		return nil
	}
	t := time.UnixMilli(ms).UTC()
	return &t
}

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) (int64, error) {
	layouts, err := json.Marshal(e.PreferredLayouts)
	if err != nil {
		return 0, wrapErr(err, "create event")
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO events (name, tournament, external_race_id, timer_start, timer_end, event_start, preferred_layouts, is_relay, is_marathon)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Name, e.Tournament, e.ExternalRaceID, unixPtr(e.TimerStart), unixPtr(e.TimerEnd), unixPtr(e.EventStart),
		string(layouts), e.IsRelay, e.IsMarathon)
	if err != nil {
		return 0, wrapErr(err, "create event")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, wrapErr(err, "create event")
	}
	s.notify()
	return id, nil
}

func scanEvent(scan func(dest ...any) error) (*domain.Event, error) {
	e := &domain.Event{}
	var timerStart, timerEnd, eventStart any
	var layouts string
	if err := scan(&e.ID, &e.Name, &e.Tournament, &e.ExternalRaceID, &timerStart, &timerEnd, &eventStart,
		&layouts, &e.IsRelay, &e.IsMarathon); err != nil {
		return nil, err
	}
	e.TimerStart = timePtr(timerStart)
	e.TimerEnd = timePtr(timerEnd)
	e.EventStart = timePtr(eventStart)
	_ = json.Unmarshal([]byte(layouts), &e.PreferredLayouts)
	return e, nil
}

func (s *Store) GetEvent(ctx context.Context, id int64) (*domain.Event, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, tournament, external_race_id, timer_start, timer_end, event_start, preferred_layouts, is_relay, is_marathon
		 FROM events WHERE id = ?`, id)
	e, err := scanEvent(row.Scan)
	if err != nil {
		return nil, handleNotFound(err, "get event")
	}
	return e, nil
}

func (s *Store) GetEventByName(ctx context.Context, name string) (*domain.Event, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT id, name, tournament, external_race_id, timer_start, timer_end, event_start, preferred_layouts, is_relay, is_marathon
		 FROM events WHERE name = ? COLLATE NOCASE`, name)
	e, err := scanEvent(row.Scan)
	if err != nil {
		return nil, handleNotFound(err, "get event by name")
	}
	return e, nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *domain.Event) error {
	layouts, err := json.Marshal(e.PreferredLayouts)
	if err != nil {
		return wrapErr(err, "update event")
	}
	res, err := s.conn(ctx).ExecContext(ctx,
		`UPDATE events SET name=?, tournament=?, external_race_id=?, preferred_layouts=?, is_relay=?, is_marathon=?
		 WHERE id=?`,
		e.Name, e.Tournament, e.ExternalRaceID, string(layouts), e.IsRelay, e.IsMarathon, e.ID)
	if err != nil {
		return wrapErr(err, "update event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update event: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

// SetEventTimerStart and SetEventTimerEnd are deliberately plain
// single-column UPDATEs: the source this spec was distilled from has a
// stray trailing comma before WHERE in the equivalent statements, which
// would be invalid SQL. This spec treats them as ordinary updates.
func (s *Store) SetEventTimerStart(ctx context.Context, id int64, t *time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE events SET timer_start = ? WHERE id = ?`, unixPtr(t), id)
	if err != nil {
		return wrapErr(err, "set event timer start")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set event timer start: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) SetEventTimerEnd(ctx context.Context, id int64, t *time.Time) error {
	res, err := s.conn(ctx).ExecContext(ctx, `UPDATE events SET timer_end = ? WHERE id = ?`, unixPtr(t), id)
	if err != nil {
		return wrapErr(err, "set event timer end")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set event timer end: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return wrapErr(err, "delete event")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete event: %w", domain.ErrNotFound)
	}
	s.notify()
	return nil
}

func (s *Store) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT id, name, tournament, external_race_id, timer_start, timer_end, event_start, preferred_layouts, is_relay, is_marathon
		 FROM events ORDER BY name COLLATE NOCASE`)
	if err != nil {
		return nil, wrapErr(err, "list events")
	}
	defer rows.Close()
	var out []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, wrapErr(err, "scan event")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AddRunnerToEvent and RemoveRunnerFromEvent are idempotent per spec.

func (s *Store) AddRunnerToEvent(ctx context.Context, eventID, runnerID int64) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`INSERT INTO event_runners (event_id, runner_id, result_kind) VALUES (?, ?, '')
		 ON CONFLICT (event_id, runner_id) DO NOTHING`, eventID, runnerID)
	if err != nil {
		return wrapErr(err, "add runner to event")
	}
	s.notify()
	return nil
}

func (s *Store) RemoveRunnerFromEvent(ctx context.Context, eventID, runnerID int64) error {
	_, err := s.conn(ctx).ExecContext(ctx,
		`DELETE FROM event_runners WHERE event_id = ? AND runner_id = ?`, eventID, runnerID)
	if err != nil {
		return wrapErr(err, "remove runner from event")
	}
	s.notify()
	return nil
}

func (s *Store) EventRoster(ctx context.Context, eventID int64) ([]*domain.EventRunner, error) {
	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT event_id, runner_id, result_kind, result FROM event_runners WHERE event_id = ?`, eventID)
	if err != nil {
		return nil, wrapErr(err, "event roster")
	}
	defer rows.Close()
	var out []*domain.EventRunner
	for rows.Next() {
		er := &domain.EventRunner{}
		var kind string
		if err := rows.Scan(&er.EventID, &er.RunnerID, &kind, &er.Result); err != nil {
			return nil, wrapErr(err, "scan event runner")
		}
		er.ResultKind = domain.EventResultKind(kind)
		out = append(out, er)
	}
	return out, rows.Err()
}

// HasStream reports whether an Event currently owns a Stream row, used by
// the Event Actor to decide whether to cascade a delete through the
// Stream Actor first.
func (s *Store) HasStream(ctx context.Context, eventID int64) (bool, error) {
	var n int
	if err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM streams WHERE event_id = ?`, eventID).Scan(&n); err != nil {
		return false, wrapErr(err, "has stream")
	}
	return n > 0, nil
}

// StreamedEventIDs lists the ids of events that currently have a Stream,
// the "get_streamed_events()" denormalized query named in spec §8
// scenario 5.
func (s *Store) StreamedEventIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT event_id FROM streams`)
	if err != nil {
		return nil, wrapErr(err, "streamed event ids")
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, wrapErr(err, "scan streamed event id")
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
