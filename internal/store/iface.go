package store

import (
	"context"

	"github.com/roach88/eventmerge/internal/model"
)

// RecordStore is the storage contract the merge engine consumes.
// The concrete *Store satisfies it; tests inject an in-memory double.
type RecordStore interface {
	// FetchOrdered returns ownerID's records ascending by start time with
	// participants resolved. Returns ErrOwnerNotFound for unknown owners.
	FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error)

	// Begin acquires an atomic scope.
	Begin(ctx context.Context) (Scope, error)
}

// Scope is an atomic batch of removals and insertions.
//
// Nothing queued on a Scope is observable until Commit succeeds. Release
// must be called exactly once on every exit path; calling it after Commit or
// Rollback is a no-op.
type Scope interface {
	// Remove deletes the record with id. Returns ErrRecordNotFound if the
	// record no longer exists.
	Remove(ctx context.Context, id string) error

	// Insert creates a record and returns it with its assigned identity.
	Insert(ctx context.Context, rec model.NewRecord) (model.Record, error)

	Commit() error
	Rollback() error

	// Release rolls the scope back unless it was already committed or
	// rolled back.
	Release()
}

// Compile-time check that *Store implements RecordStore.
var _ RecordStore = (*Store)(nil)
