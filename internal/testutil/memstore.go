package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/store"
)

// MemoryStore is an in-memory store.RecordStore for engine tests.
//
// Scopes stage their mutations privately and publish them under the store
// lock on Commit, so readers never observe a partially applied scope.
// Failure fields inject errors at each step of the apply sequence.
//
// Thread-safety: All methods are safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	ids     *SequentialIDs
	owners  map[string]string
	records map[string]memRecord
	seq     int64

	// Injected failures. A nil error means the step succeeds.
	FailBegin  error
	FailRemove error
	FailInsert error
	FailCommit error

	// FailInsertAt fails only the Nth Insert (1-based) of each scope.
	FailInsertAt int

	stats MemoryStats
}

// MemoryStats counts calls made against a MemoryStore.
type MemoryStats struct {
	Fetches   int
	Begins    int
	Removes   int
	Inserts   int
	Commits   int
	Rollbacks int
}

type memRecord struct {
	seq    int64
	record model.Record
}

var _ store.RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store whose records get "mem-NNNN" IDs.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		ids:     NewSequentialIDs("mem"),
		owners:  make(map[string]string),
		records: make(map[string]memRecord),
	}
}

// AddOwner registers an owner (and potential participant).
func (m *MemoryStore) AddOwner(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[id] = name
}

// AddRecord seeds a record. An empty ID is assigned from the sequence;
// participant names are filled in from registered owners when blank.
func (m *MemoryStore) AddRecord(rec model.Record) model.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == "" {
		rec.ID = m.ids.Generate()
	}
	ps := make([]model.Participant, len(rec.Participants))
	for i, p := range rec.Participants {
		if p.Name == "" {
			p.Name = m.owners[p.ID]
		}
		ps[i] = p
	}
	rec.Participants = ps
	m.seq++
	m.records[rec.ID] = memRecord{seq: m.seq, record: rec}
	return cloneRecord(rec)
}

// Stats returns a copy of the call counters.
func (m *MemoryStore) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Len returns the total number of stored records across all owners.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// FetchOrdered implements store.RecordStore.
func (m *MemoryStore) FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Fetches++

	if _, ok := m.owners[ownerID]; !ok {
		return nil, fmt.Errorf("owner %q: %w", ownerID, store.ErrOwnerNotFound)
	}

	var owned []memRecord
	for _, r := range m.records {
		if r.record.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.record.StartTime.Equal(b.record.StartTime) {
			return a.record.StartTime.Before(b.record.StartTime)
		}
		return a.seq < b.seq
	})

	out := make([]model.Record, 0, len(owned))
	for _, r := range owned {
		out = append(out, cloneRecord(r.record))
	}
	return out, nil
}

// Begin implements store.RecordStore.
func (m *MemoryStore) Begin(ctx context.Context) (store.Scope, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Begins++
	if m.FailBegin != nil {
		return nil, m.FailBegin
	}
	return &memScope{store: m, removed: make(map[string]bool)}, nil
}

type memScope struct {
	store *MemoryStore

	mu       sync.Mutex
	closed   bool
	removed  map[string]bool
	inserted []model.Record
}

func (s *memScope) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrScopeClosed
	}

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Removes++
	if m.FailRemove != nil {
		return m.FailRemove
	}
	if _, ok := m.records[id]; !ok || s.removed[id] {
		return fmt.Errorf("record %q: %w", id, store.ErrRecordNotFound)
	}
	s.removed[id] = true
	return nil
}

func (s *memScope) Insert(ctx context.Context, rec model.NewRecord) (model.Record, error) {
	if err := ctx.Err(); err != nil {
		return model.Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.Record{}, store.ErrScopeClosed
	}

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Inserts++
	if m.FailInsert != nil {
		return model.Record{}, m.FailInsert
	}
	if m.FailInsertAt > 0 && len(s.inserted)+1 == m.FailInsertAt {
		return model.Record{}, fmt.Errorf("injected failure on insert %d", m.FailInsertAt)
	}
	if _, ok := m.owners[rec.OwnerID]; !ok {
		return model.Record{}, fmt.Errorf("owner %q: %w", rec.OwnerID, store.ErrOwnerNotFound)
	}

	set := model.NewParticipantSet(rec.Participants...)
	participants := set.Slice()
	for i, p := range participants {
		name, ok := m.owners[p.ID]
		if !ok {
			return model.Record{}, fmt.Errorf("participant %q: %w", p.ID, store.ErrParticipantNotFound)
		}
		participants[i].Name = name
	}

	created := model.Record{
		ID:           m.ids.Generate(),
		OwnerID:      rec.OwnerID,
		Title:        rec.Title,
		Description:  rec.Description,
		Status:       rec.Status,
		StartTime:    rec.StartTime,
		EndTime:      rec.EndTime,
		Participants: participants,
	}
	s.inserted = append(s.inserted, created)
	return cloneRecord(created), nil
}

func (s *memScope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrScopeClosed
	}
	s.closed = true

	m := s.store
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Commits++
	if m.FailCommit != nil {
		return m.FailCommit
	}
	for id := range s.removed {
		delete(m.records, id)
	}
	for _, rec := range s.inserted {
		m.seq++
		m.records[rec.ID] = memRecord{seq: m.seq, record: rec}
	}
	return nil
}

func (s *memScope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.store.mu.Lock()
	s.store.stats.Rollbacks++
	s.store.mu.Unlock()
	return nil
}

func (s *memScope) Release() {
	_ = s.Rollback()
}

func cloneRecord(r model.Record) model.Record {
	out := r
	out.Participants = append([]model.Participant{}, r.Participants...)
	return out
}
