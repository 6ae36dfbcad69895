// Package store is the single write authority over the durable model:
// participants, runners, events, runs, layouts, streams and custom
// fields. It is an embedded SQLite database (modernc.org/sqlite, a
// pure-Go driver — chosen because the spec requires an embedded engine
// whose schema initializes in-process, which a client-server engine like
// Postgres cannot do) opened from a file path at startup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Store wraps a *sql.DB with the transaction-context-value pattern used
// throughout: WithTx stashes the open transaction on the context so
// nested calls within the same logical operation share it transparently.
type Store struct {
	db *sql.DB

	// NotifyFunc is called, fire-and-forget, after every mutation that
	// changes externally visible state. Wired by the caller (typically
	// to the Web Push hub's TriggerStateUpdate) to avoid an import
	// cycle between store and webpush.
	NotifyFunc func()

	log *slog.Logger
}

// Open opens (and if necessary initializes) the database at path. The
// migrations applied are those past MAX(version) in schema_migrations; an
// absent `runners` table marks a first run, which is logged.
func Open(ctx context.Context, path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			log.Warn("store: pragma failed", "pragma", pragma, "err", err)
		}
	}

	s := &Store{db: db, NotifyFunc: func() {}, log: log}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) notify() {
	if s.NotifyFunc != nil {
		go s.NotifyFunc()
	}
}

func (s *Store) tableExists(ctx context.Context, name string) (bool, error) {
	var got string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&got)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) migrate(ctx context.Context) error {
	firstRun, err := s.tableExists(ctx, "runners")
	if err != nil {
		return err
	}
	firstRun = !firstRun

	exists, err := s.tableExists(ctx, "schema_migrations")
	if err != nil {
		return err
	}

	applied := 0
	if exists {
		if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&applied); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
	}

	if firstRun {
		s.log.Info("store: initializing schema", "path", "(new database)")
	}

	for i := applied; i < len(migrations); i++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if i > 0 { // migration 0 creates schema_migrations itself
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, i+1); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration %d: %w", i+1, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (1)`); err != nil {
				tx.Rollback()
				return fmt.Errorf("record migration 1: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}

type txKey struct{}

// WithTx runs fn inside a transaction, reusing an already-open one found
// on ctx so nested store calls within one logical operation compose.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func txFromContext(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// querier abstracts over *sql.DB and *sql.Tx so store methods can run
// either standalone or nested inside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return s.db
}
