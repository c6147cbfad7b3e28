package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/eventmerge/internal/model"
)

// CreateOwner inserts a new owner and returns it with its assigned ID.
func (s *Store) CreateOwner(ctx context.Context, name string) (model.Owner, error) {
	owner := model.Owner{
		ID:        s.ids.Generate(),
		Name:      name,
		CreatedAt: s.now(),
	}
	createdAt, err := formatTime(owner.CreatedAt)
	if err != nil {
		return model.Owner{}, fmt.Errorf("create owner: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO owners (id, name, created_at)
		VALUES (?, ?, ?)
	`, owner.ID, owner.Name, createdAt)
	if err != nil {
		return model.Owner{}, fmt.Errorf("create owner: %w", err)
	}

	return owner, nil
}

// GetOwner retrieves an owner by ID.
// Returns ErrOwnerNotFound if no such owner exists.
func (s *Store) GetOwner(ctx context.Context, id string) (model.Owner, error) {
	return getOwner(ctx, s.db, id)
}

func getOwner(ctx context.Context, q querier, id string) (model.Owner, error) {
	var owner model.Owner
	var createdAt string
	err := q.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM owners WHERE id = ?
	`, id).Scan(&owner.ID, &owner.Name, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Owner{}, fmt.Errorf("owner %q: %w", id, ErrOwnerNotFound)
	}
	if err != nil {
		return model.Owner{}, fmt.Errorf("get owner: %w", err)
	}
	if owner.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Owner{}, fmt.Errorf("get owner: %w", err)
	}
	return owner, nil
}

// DeleteOwner removes an owner together with the records it owns and every
// participant link that references it.
// Returns ErrOwnerNotFound if no such owner exists.
func (s *Store) DeleteOwner(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM owners WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete owner: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete owner: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("owner %q: %w", id, ErrOwnerNotFound)
	}
	return nil
}
