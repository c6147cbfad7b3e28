package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/roach88/eventmerge/internal/metrics"
	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/store"
	"github.com/roach88/eventmerge/internal/testutil"
)

var now = time.Date(2023, time.November, 29, 12, 0, 0, 0, time.UTC)

func day(month time.Month, d int) time.Time {
	return time.Date(2023, month, d, 0, 0, 0, 0, time.UTC)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(s store.RecordStore, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithClock(testutil.NewFixedClock(now)),
		WithLogger(quietLogger()),
	}
	return New(s, append(base, opts...)...)
}

// seedConcrete stores E1[11-27,11-28], E2[11-28,11-30] and E3[12-01,12-01]
// for owner u1.
func seedConcrete(m *testutil.MemoryStore) {
	m.AddOwner("u1", "Ann")
	m.AddOwner("u2", "Bo")
	m.AddOwner("u3", "Cy")
	m.AddRecord(model.Record{ID: "e1", OwnerID: "u1", Title: "E1", Status: model.StatusCompleted,
		StartTime: day(11, 27), EndTime: day(11, 28), Participants: []model.Participant{{ID: "u2"}}})
	m.AddRecord(model.Record{ID: "e2", OwnerID: "u1", Title: "E2", Status: model.StatusInProgress,
		StartTime: day(11, 28), EndTime: day(11, 30), Participants: []model.Participant{{ID: "u3"}, {ID: "u2"}}})
	m.AddRecord(model.Record{ID: "e3", OwnerID: "u1", Title: "E3", Status: model.StatusTodo,
		StartTime: day(12, 1), EndTime: day(12, 1)})
}

func TestMergeOwnerRecords_ConcreteScenario(t *testing.T) {
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(m)

	got, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	merged := got[0]
	assert.NotEmpty(t, merged.ID)
	assert.NotEqual(t, "e1", merged.ID)
	assert.NotEqual(t, "e2", merged.ID)
	assert.Equal(t, "E1 & E2", merged.Title)
	assert.Equal(t, day(11, 27), merged.StartTime)
	assert.Equal(t, day(11, 30), merged.EndTime)
	assert.Equal(t, model.StatusInProgress, merged.Status)
	assert.Equal(t, []model.Participant{{ID: "u2", Name: "Bo"}, {ID: "u3", Name: "Cy"}}, merged.Participants)

	assert.Equal(t, "e3", got[1].ID)
	assert.Equal(t, model.StatusTodo, got[1].Status)

	stats := m.Stats()
	assert.Equal(t, 1, stats.Begins)
	assert.Equal(t, 1, stats.Commits)
	assert.Equal(t, 2, stats.Removes)
	assert.Equal(t, 1, stats.Inserts)
}

func TestMergeOwnerRecords_Idempotent(t *testing.T) {
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(m)
	ctx := context.Background()

	first, err := e.MergeOwnerRecords(ctx, "u1")
	require.NoError(t, err)

	second, err := e.MergeOwnerRecords(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, m.Stats().Begins, "second run must not open a scope")
}

func TestMergeOwnerRecords_FewerThanTwoRecordsOpensNoScope(t *testing.T) {
	m := testutil.NewMemoryStore()
	m.AddOwner("empty", "Empty")
	m.AddOwner("single", "Single")
	only := m.AddRecord(model.Record{ID: "only", OwnerID: "single", Title: "only",
		Status: model.StatusTodo, StartTime: day(11, 1), EndTime: day(11, 2)})
	e := newTestEngine(m)

	got, err := e.MergeOwnerRecords(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = e.MergeOwnerRecords(context.Background(), "single")
	require.NoError(t, err)
	assert.Equal(t, []model.Record{only}, got)

	assert.Equal(t, 0, m.Stats().Begins)
}

func TestMergeOwnerRecords_NoOverlapOpensNoScope(t *testing.T) {
	m := testutil.NewMemoryStore()
	m.AddOwner("u1", "Ann")
	m.AddRecord(model.Record{ID: "a", OwnerID: "u1", Title: "a", Status: model.StatusTodo,
		StartTime: day(11, 1), EndTime: day(11, 2)})
	m.AddRecord(model.Record{ID: "b", OwnerID: "u1", Title: "b", Status: model.StatusTodo,
		StartTime: day(11, 3), EndTime: day(11, 4)})
	e := newTestEngine(m)

	got, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{got[0].ID, got[1].ID})
	assert.Equal(t, 0, m.Stats().Begins)
}

func TestMergeOwnerRecords_OwnerNotFound(t *testing.T) {
	m := testutil.NewMemoryStore()
	e := newTestEngine(m)

	_, err := e.MergeOwnerRecords(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, IsOwnerNotFound(err))
	assert.False(t, IsTransactionFailed(err))
	assert.ErrorIs(t, err, store.ErrOwnerNotFound)
	assert.Equal(t, 0, m.Stats().Begins)

	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, "ghost", me.OwnerID)
}

func TestMergeOwnerRecords_AllOrNothing(t *testing.T) {
	boom := errors.New("boom")

	cases := []struct {
		name   string
		inject func(m *testutil.MemoryStore)
	}{
		{"begin fails", func(m *testutil.MemoryStore) { m.FailBegin = boom }},
		{"remove fails", func(m *testutil.MemoryStore) { m.FailRemove = boom }},
		{"insert fails", func(m *testutil.MemoryStore) { m.FailInsert = boom }},
		{"commit fails", func(m *testutil.MemoryStore) { m.FailCommit = boom }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := testutil.NewMemoryStore()
			seedConcrete(m)
			before, err := m.FetchOrdered(context.Background(), "u1")
			require.NoError(t, err)

			tc.inject(m)
			e := newTestEngine(m)

			got, err := e.MergeOwnerRecords(context.Background(), "u1")
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, IsTransactionFailed(err))
			assert.ErrorIs(t, err, boom)

			after, err := m.FetchOrdered(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestMergeOwnerRecords_SecondInsertFailureRollsBackFirst(t *testing.T) {
	m := testutil.NewMemoryStore()
	m.AddOwner("u1", "Ann")
	for i, r := range [][2]int{{1, 2}, {2, 3}, {10, 11}, {11, 12}} {
		m.AddRecord(model.Record{OwnerID: "u1", Title: string(rune('a' + i)), Status: model.StatusTodo,
			StartTime: day(11, r[0]), EndTime: day(11, r[1])})
	}
	m.FailInsertAt = 2
	e := newTestEngine(m)

	_, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.Error(t, err)
	assert.True(t, IsTransactionFailed(err))

	assert.Equal(t, 4, m.Len())
	assert.Equal(t, 1, m.Stats().Rollbacks)
	assert.Equal(t, 0, m.Stats().Commits)
}

func TestMergeOwnerRecords_CancelledContext(t *testing.T) {
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.MergeOwnerRecords(ctx, "u1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, m.Len())
}

// lateFetchStore fails every FetchOrdered after the first.
type lateFetchStore struct {
	*testutil.MemoryStore
	fetches int
	err     error
}

func (s *lateFetchStore) FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error) {
	s.fetches++
	if s.fetches > 1 {
		return nil, s.err
	}
	return s.MemoryStore.FetchOrdered(ctx, ownerID)
}

func TestMergeOwnerRecords_CommittedButResultUnavailable(t *testing.T) {
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(&lateFetchStore{MemoryStore: m, err: context.DeadlineExceeded})

	got, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, IsResultUnavailable(err))
	assert.False(t, IsTransactionFailed(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, m.Stats().Commits)
	assert.Equal(t, 0, m.Stats().Rollbacks)
	after, err := m.FetchOrdered(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, after, 2)
	assert.Equal(t, "E1 & E2", after[0].Title)
}

// trackingStore records the peak number of concurrent fetches per owner.
type trackingStore struct {
	*testutil.MemoryStore

	mu       sync.Mutex
	inflight map[string]int
	peak     map[string]int
}

func newTrackingStore(m *testutil.MemoryStore) *trackingStore {
	return &trackingStore{MemoryStore: m, inflight: map[string]int{}, peak: map[string]int{}}
}

func (s *trackingStore) FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error) {
	s.mu.Lock()
	s.inflight[ownerID]++
	if s.inflight[ownerID] > s.peak[ownerID] {
		s.peak[ownerID] = s.inflight[ownerID]
	}
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)
	defer func() {
		s.mu.Lock()
		s.inflight[ownerID]--
		s.mu.Unlock()
	}()
	return s.MemoryStore.FetchOrdered(ctx, ownerID)
}

func TestMergeOwnerRecords_SameOwnerSerialized(t *testing.T) {
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	ts := newTrackingStore(m)
	e := newTestEngine(ts)

	const runs = 8
	var wg sync.WaitGroup
	var failures atomic.Int32
	wg.Add(runs)
	for i := 0; i < runs; i++ {
		go func() {
			defer wg.Done()
			got, err := e.MergeOwnerRecords(context.Background(), "u1")
			if err != nil || len(got) != 2 {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(0), failures.Load())
	assert.Equal(t, 1, ts.peak["u1"], "fetches for one owner must never overlap")
	assert.Equal(t, 1, m.Stats().Commits)
	assert.Equal(t, 2, m.Len())
}

func TestMergeOwnerRecords_SQLiteStore(t *testing.T) {
	for _, driver := range []string{store.DriverMattn, store.DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			s, err := store.Open(filepath.Join(t.TempDir(), "merge.db"),
				store.WithDriver(driver), store.WithIDGenerator(testutil.NewSequentialIDs("sql")))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			ctx := context.Background()

			owner, err := s.CreateOwner(ctx, "Ann")
			require.NoError(t, err)
			guest, err := s.CreateOwner(ctx, "Bo")
			require.NoError(t, err)
			for _, r := range []model.NewRecord{
				{Title: "E1", StartTime: day(11, 27), EndTime: day(11, 28), Participants: []model.Participant{{ID: guest.ID}}},
				{Title: "E2", StartTime: day(11, 28), EndTime: day(11, 30), Participants: []model.Participant{{ID: guest.ID}}},
				{Title: "E3", StartTime: day(12, 1), EndTime: day(12, 1)},
			} {
				r.OwnerID = owner.ID
				r.Status = model.StatusTodo
				_, err := s.CreateRecord(ctx, r)
				require.NoError(t, err)
			}

			e := newTestEngine(s)
			got, err := e.MergeOwnerRecords(ctx, owner.ID)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.Equal(t, "E1 & E2", got[0].Title)
			assert.Equal(t, model.StatusInProgress, got[0].Status)
			assert.Equal(t, []string{guest.ID}, got[0].ParticipantIDs())
			assert.Equal(t, "E3", got[1].Title)

			again, err := e.MergeOwnerRecords(ctx, owner.ID)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestMergeOwnerRecords_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(m, WithMetrics(metrics.NewMerge(reg)))
	ctx := context.Background()

	_, err := e.MergeOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	_, err = e.MergeOwnerRecords(ctx, "u1")
	require.NoError(t, err)
	_, err = e.MergeOwnerRecords(ctx, "ghost")
	require.Error(t, err)

	expected := `
# HELP eventmerge_merge_records_inserted_total Merged records inserted by committed merges.
# TYPE eventmerge_merge_records_inserted_total counter
eventmerge_merge_records_inserted_total 1
# HELP eventmerge_merge_records_removed_total Records deleted by committed merges.
# TYPE eventmerge_merge_records_removed_total counter
eventmerge_merge_records_removed_total 2
# HELP eventmerge_merge_runs_total Total merge runs by outcome.
# TYPE eventmerge_merge_runs_total counter
eventmerge_merge_runs_total{outcome="merged"} 1
eventmerge_merge_runs_total{outcome="noop"} 1
eventmerge_merge_runs_total{outcome="owner_not_found"} 1
`
	err = promtest.GatherAndCompare(reg, strings.NewReader(expected),
		"eventmerge_merge_runs_total",
		"eventmerge_merge_records_removed_total",
		"eventmerge_merge_records_inserted_total",
	)
	require.NoError(t, err)
}

func TestMergeOwnerRecords_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	m := testutil.NewMemoryStore()
	seedConcrete(m)
	e := newTestEngine(m, WithTracerProvider(tp))

	_, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "engine.apply", spans[0].Name())
	assert.Equal(t, "engine.MergeOwnerRecords", spans[1].Name())
	assert.Equal(t, spans[1].SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Unset, spans[1].Status().Code)

	var ownerAttr string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "owner.id" {
			ownerAttr = kv.Value.AsString()
		}
	}
	assert.Equal(t, "u1", ownerAttr)
}

func TestMergeOwnerRecords_FailedSpanStatus(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	m := testutil.NewMemoryStore()
	seedConcrete(m)
	m.FailCommit = errors.New("disk full")
	e := newTestEngine(m, WithTracerProvider(tp))

	_, err := e.MergeOwnerRecords(context.Background(), "u1")
	require.Error(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	for _, s := range spans {
		assert.Equal(t, codes.Error, s.Status().Code, s.Name())
	}
}
