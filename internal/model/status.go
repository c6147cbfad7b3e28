package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a record relative to some instant.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// ValidStatuses lists every accepted status, in lifecycle order.
var ValidStatuses = []Status{StatusTodo, StatusInProgress, StatusCompleted}

// DeriveStatus returns TODO when the window has not started at now, COMPLETED
// when it ended before now, and IN_PROGRESS otherwise. Both bounds are
// inclusive for IN_PROGRESS.
func DeriveStatus(start, end, now time.Time) Status {
	if start.After(now) {
		return StatusTodo
	}
	if end.Before(now) {
		return StatusCompleted
	}
	return StatusInProgress
}

// ParseStatus validates s against the status enum.
func ParseStatus(s string) (Status, error) {
	for _, st := range ValidStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status %q: must be one of %v", s, ValidStatuses)
}

// Valid reports whether st is one of ValidStatuses.
func (st Status) Valid() bool {
	_, err := ParseStatus(string(st))
	return err == nil
}
