package store

import (
	"context"
	"time"

	"github.com/kestrelrun/marathoncast/internal/domain"
)

// SaveRun overwrites a Run wholesale and rebuilds its split list
// atomically, per "Overwritten wholesale on each telemetry push; splits
// rebuilt atomically."
func (s *Store) SaveRun(ctx context.Context, run *domain.Run) error {
	return s.WithTx(ctx, func(ctx context.Context) error {
		var startedAt any
		if run.StartedAt != nil {
			startedAt = run.StartedAt.UnixMilli()
		}
		_, err := s.conn(ctx).ExecContext(ctx,
			`INSERT INTO runs (runner_id, pb, sob, best_possible, delta, started_at, current_comparison, current_split_name, current_split_index)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (runner_id) DO UPDATE SET
			   pb=excluded.pb, sob=excluded.sob, best_possible=excluded.best_possible, delta=excluded.delta,
			   started_at=excluded.started_at, current_comparison=excluded.current_comparison,
			   current_split_name=excluded.current_split_name, current_split_index=excluded.current_split_index`,
			run.RunnerID, run.PB, run.SOB, run.BestPossible, run.Delta, startedAt,
			run.CurrentComparison, run.CurrentSplitName, run.CurrentSplitIndex)
		if err != nil {
			return wrapErr(err, "save run")
		}

		if _, err := s.conn(ctx).ExecContext(ctx, `DELETE FROM splits WHERE runner_id = ?`, run.RunnerID); err != nil {
			return wrapErr(err, "rewrite splits")
		}
		for i, sp := range run.Splits {
			if _, err := s.conn(ctx).ExecContext(ctx,
				`INSERT INTO splits (runner_id, position, name, pb_split_time, split_time) VALUES (?, ?, ?, ?, ?)`,
				run.RunnerID, i, sp.Name, sp.PBSplitTime, sp.SplitTime); err != nil {
				return wrapErr(err, "rewrite splits")
			}
		}
		s.notify()
		return nil
	})
}

func (s *Store) GetRun(ctx context.Context, runnerID int64) (*domain.Run, error) {
	row := s.conn(ctx).QueryRowContext(ctx,
		`SELECT runner_id, pb, sob, best_possible, delta, started_at, current_comparison, current_split_name, current_split_index
		 FROM runs WHERE runner_id = ?`, runnerID)
	r := &domain.Run{}
	var startedAt any
	if err := row.Scan(&r.RunnerID, &r.PB, &r.SOB, &r.BestPossible, &r.Delta, &startedAt,
		&r.CurrentComparison, &r.CurrentSplitName, &r.CurrentSplitIndex); err != nil {
		return nil, handleNotFound(err, "get run")
	}
	if ms, ok := startedAt.(int64); ok {
		t := time.UnixMilli(ms).UTC()
		r.StartedAt = &t
	}

	rows, err := s.conn(ctx).QueryContext(ctx,
		`SELECT name, pb_split_time, split_time FROM splits WHERE runner_id = ? ORDER BY position`, runnerID)
	if err != nil {
		return nil, wrapErr(err, "get run splits")
	}
	defer rows.Close()
	for rows.Next() {
		var sp domain.Split
		if err := rows.Scan(&sp.Name, &sp.PBSplitTime, &sp.SplitTime); err != nil {
			return nil, wrapErr(err, "scan split")
		}
		r.Splits = append(r.Splits, sp)
	}
	return r, rows.Err()
}

func (s *Store) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, `SELECT runner_id FROM runs`)
	if err != nil {
		return nil, wrapErr(err, "list runs")
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, wrapErr(err, "scan run id")
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*domain.Run, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
