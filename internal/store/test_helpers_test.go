package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/eventmerge/internal/model"
)

// seqIDs hands out "id-0001", "id-0002", ... for readable assertions.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n)
}

var drivers = []string{DriverMattn, DriverModernc}

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, append([]Option{WithIDGenerator(&seqIDs{})}, opts...)...)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(d int) time.Time {
	return time.Date(2023, time.November, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d-1)
}

func mustOwner(t *testing.T, s *Store, name string) model.Owner {
	t.Helper()
	o, err := s.CreateOwner(context.Background(), name)
	if err != nil {
		t.Fatalf("CreateOwner(%q) failed: %v", name, err)
	}
	return o
}

func mustRecord(t *testing.T, s *Store, ownerID, title string, start, end time.Time, participants ...string) model.Record {
	t.Helper()
	rec := model.NewRecord{
		OwnerID:   ownerID,
		Title:     title,
		Status:    model.StatusTodo,
		StartTime: start,
		EndTime:   end,
	}
	for _, p := range participants {
		rec.Participants = append(rec.Participants, model.Participant{ID: p})
	}
	created, err := s.CreateRecord(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateRecord(%q) failed: %v", title, err)
	}
	return created
}

func titles(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Title
	}
	return out
}
