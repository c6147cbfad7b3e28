package store

import (
	"fmt"
	"time"

	"github.com/roach88/eventmerge/internal/model"
)

// timeLayout is RFC 3339 in UTC with a fixed nine-digit fraction. Every
// stored instant has the same width, so text order is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// formatTime renders t for storage.
// Returns ErrTimeOutOfRange outside model.MinTime..model.MaxTime.
func formatTime(t time.Time) (string, error) {
	if !model.TimeInRange(t) {
		return "", fmt.Errorf("%s: %w", t.UTC().Format(time.RFC3339Nano), ErrTimeOutOfRange)
	}
	return t.UTC().Format(timeLayout), nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}
