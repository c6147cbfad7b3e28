package engine

import (
	"errors"
	"fmt"
)

// MergeError represents a failed merge run.
//
// MergeError includes structured fields for diagnostics. The wrapped cause is
// available through errors.Unwrap, so errors.Is(err, store.ErrOwnerNotFound)
// keeps working for callers that match on store sentinels.
type MergeError struct {
	// Code identifies the error category.
	Code MergeErrorCode

	// OwnerID identifies the owner whose merge failed.
	OwnerID string

	// Err is the underlying cause.
	Err error
}

// MergeErrorCode categorizes merge errors.
type MergeErrorCode string

const (
	// ErrCodeOwnerNotFound indicates the owner does not exist.
	ErrCodeOwnerNotFound MergeErrorCode = "OWNER_NOT_FOUND"

	// ErrCodeTransactionFailed indicates the apply scope failed and was
	// rolled back. The owner's records are unchanged.
	ErrCodeTransactionFailed MergeErrorCode = "MERGE_TRANSACTION_FAILED"

	// ErrCodeResultUnavailable indicates the merge committed but the merged
	// records could not be read back. The owner's records are merged.
	ErrCodeResultUnavailable MergeErrorCode = "MERGE_RESULT_UNAVAILABLE"
)

// Error implements the error interface.
func (e *MergeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: owner %s: %v", e.Code, e.OwnerID, e.Err)
	}
	return fmt.Sprintf("%s: owner %s", e.Code, e.OwnerID)
}

// Unwrap returns the underlying cause.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// IsOwnerNotFound returns true if the error is an owner-not-found merge error.
// Uses errors.As to handle wrapped errors.
func IsOwnerNotFound(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeOwnerNotFound
	}
	return false
}

// IsTransactionFailed returns true if the error is a rolled-back apply.
// Uses errors.As to handle wrapped errors.
func IsTransactionFailed(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeTransactionFailed
	}
	return false
}

// IsResultUnavailable returns true if the merge committed but its result
// could not be fetched.
func IsResultUnavailable(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeResultUnavailable
	}
	return false
}

func newOwnerNotFound(ownerID string, cause error) *MergeError {
	return &MergeError{Code: ErrCodeOwnerNotFound, OwnerID: ownerID, Err: cause}
}

func newTransactionFailed(ownerID string, cause error) *MergeError {
	return &MergeError{Code: ErrCodeTransactionFailed, OwnerID: ownerID, Err: cause}
}

func newResultUnavailable(ownerID string, cause error) *MergeError {
	return &MergeError{Code: ErrCodeResultUnavailable, OwnerID: ownerID, Err: cause}
}
