package store

import "errors"

var (
	// ErrOwnerNotFound is returned when an owner ID does not exist.
	ErrOwnerNotFound = errors.New("owner not found")

	// ErrRecordNotFound is returned when a record ID does not exist.
	ErrRecordNotFound = errors.New("record not found")

	// ErrParticipantNotFound is returned when a record references an
	// unknown participant.
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrTimeOutOfRange is returned when an instant falls outside the
	// storable range (four-digit years).
	ErrTimeOutOfRange = errors.New("time out of storable range")

	// ErrScopeClosed is returned by Scope operations after Commit,
	// Rollback or Release.
	ErrScopeClosed = errors.New("scope already closed")
)
