package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/eventmerge/internal/model"
)

// txScope is the SQL transaction behind a Scope.
type txScope struct {
	store *Store
	tx    *sql.Tx

	mu     sync.Mutex
	closed bool
}

// Begin opens an atomic scope backed by a single SQL transaction.
//
// The transaction is bound to ctx: if ctx is cancelled before Commit,
// database/sql rolls it back. Callers must still call Release.
func (s *Store) Begin(ctx context.Context) (Scope, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin scope: %w", err)
	}
	return &txScope{store: s, tx: tx}, nil
}

func (t *txScope) active() (*sql.Tx, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrScopeClosed
	}
	return t.tx, nil
}

// Remove deletes a record inside the scope.
func (t *txScope) Remove(ctx context.Context, id string) error {
	tx, err := t.active()
	if err != nil {
		return err
	}
	if err := deleteRecord(ctx, tx, id); err != nil {
		return fmt.Errorf("scope remove: %w", err)
	}
	return nil
}

// Insert creates a record inside the scope.
func (t *txScope) Insert(ctx context.Context, rec model.NewRecord) (model.Record, error) {
	tx, err := t.active()
	if err != nil {
		return model.Record{}, err
	}
	created, err := t.store.insertRecord(ctx, tx, rec)
	if err != nil {
		return model.Record{}, fmt.Errorf("scope insert: %w", err)
	}
	return created, nil
}

// Commit makes every queued mutation visible.
func (t *txScope) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrScopeClosed
	}
	t.closed = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("scope commit: %w", err)
	}
	return nil
}

// Rollback discards every queued mutation. A transaction that database/sql
// already ended (context cancellation, failed commit) counts as rolled back.
func (t *txScope) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("scope rollback: %w", err)
	}
	return nil
}

// Release rolls back the scope unless it was already closed.
func (t *txScope) Release() {
	_ = t.Rollback()
}
