package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timeLayout              = time.RFC3339Nano
)

// Store persists one work directory's PipelineState in SQLite. Every
// read-modify-write goes through Update, which holds the store mutex and a
// transaction for its whole duration.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
	slug string
}

// Open initializes or connects to the state database at path.
func Open(ctx context.Context, path, slug string) (*Store, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, errors.New("open state: slug is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single connection keeps per-connection pragmas in force and matches
	// the one-writer model of the store.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path, slug: slug}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the persisted state, or a fresh one when nothing has been
// recorded yet.
func (s *Store) Load(ctx context.Context) (*PipelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st *PipelineState
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var loadErr error
		st, loadErr = readState(ctx, tx, s.slug)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Update loads the current state, applies fn, and writes the result back in
// one transaction. If fn returns an error nothing is written. The state
// passed to fn is private to the call.
func (s *Store) Update(ctx context.Context, fn func(*PipelineState) error) (*PipelineState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result *PipelineState
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		st, err := readState(ctx, tx, s.slug)
		if err != nil {
			return err
		}
		if err := fn(st); err != nil {
			return err
		}
		st.Slug = s.slug
		if err := writeState(ctx, tx, st); err != nil {
			return err
		}
		result = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Save replaces the persisted state with st.
func (s *Store) Save(ctx context.Context, st *PipelineState) error {
	if st == nil {
		return errors.New("save state: nil state")
	}
	snapshot := st.Clone()
	_, err := s.Update(ctx, func(current *PipelineState) error {
		created := current.CreatedAt
		*current = *snapshot
		if !created.IsZero() {
			current.CreatedAt = created
		}
		return nil
	})
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin state tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit state: %w", err)
		}
		return nil
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
