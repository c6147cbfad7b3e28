package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/store"
)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	m := NewMemoryStore()
	m.AddOwner("u1", "Ann")
	m.AddOwner("u2", "Bo")
	m.AddRecord(model.Record{ID: "late", OwnerID: "u1", Title: "late", StartTime: epoch.Add(2 * time.Hour), EndTime: epoch.Add(3 * time.Hour)})
	m.AddRecord(model.Record{ID: "tie-a", OwnerID: "u1", Title: "tie-a", StartTime: epoch, EndTime: epoch.Add(time.Hour)})
	m.AddRecord(model.Record{ID: "tie-b", OwnerID: "u1", Title: "tie-b", StartTime: epoch, EndTime: epoch, Participants: []model.Participant{{ID: "u2"}}})
	m.AddRecord(model.Record{ID: "other", OwnerID: "u2", Title: "other", StartTime: epoch, EndTime: epoch})
	return m
}

func recordIDs(records []model.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStore_FetchOrdered(t *testing.T) {
	m := seeded(t)

	records, err := m.FetchOrdered(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-a", "tie-b", "late"}, recordIDs(records))
	assert.Equal(t, "Bo", records[1].Participants[0].Name)

	_, err = m.FetchOrdered(context.Background(), "ghost")
	assert.True(t, errors.Is(err, store.ErrOwnerNotFound))
}

func TestMemoryStore_ScopeIsolatedUntilCommit(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	scope, err := m.Begin(ctx)
	require.NoError(t, err)
	defer scope.Release()

	require.NoError(t, scope.Remove(ctx, "tie-a"))
	created, err := scope.Insert(ctx, model.NewRecord{
		OwnerID: "u1", Title: "new", StartTime: epoch, EndTime: epoch,
		Participants: []model.Participant{{ID: "u2"}, {ID: "u2"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []model.Participant{{ID: "u2", Name: "Bo"}}, created.Participants)

	before, err := m.FetchOrdered(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-a", "tie-b", "late"}, recordIDs(before))

	require.NoError(t, scope.Commit())

	after, err := m.FetchOrdered(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"tie-b", created.ID, "late"}, recordIDs(after))
}

func TestMemoryStore_ReleaseDiscards(t *testing.T) {
	m := seeded(t)
	ctx := context.Background()

	scope, err := m.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, scope.Remove(ctx, "late"))
	scope.Release()
	scope.Release()

	assert.Equal(t, 4, m.Len())
	assert.Equal(t, 1, m.Stats().Rollbacks)
	assert.ErrorIs(t, scope.Remove(ctx, "late"), store.ErrScopeClosed)
}

func TestMemoryStore_InjectedFailures(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	t.Run("begin", func(t *testing.T) {
		m := seeded(t)
		m.FailBegin = boom
		_, err := m.Begin(ctx)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("commit", func(t *testing.T) {
		m := seeded(t)
		m.FailCommit = boom
		scope, err := m.Begin(ctx)
		require.NoError(t, err)
		require.NoError(t, scope.Remove(ctx, "late"))
		assert.ErrorIs(t, scope.Commit(), boom)
		assert.Equal(t, 4, m.Len())
	})

	t.Run("nth insert", func(t *testing.T) {
		m := seeded(t)
		m.FailInsertAt = 2
		scope, err := m.Begin(ctx)
		require.NoError(t, err)
		defer scope.Release()
		_, err = scope.Insert(ctx, model.NewRecord{OwnerID: "u1", Title: "one"})
		require.NoError(t, err)
		_, err = scope.Insert(ctx, model.NewRecord{OwnerID: "u1", Title: "two"})
		assert.Error(t, err)
	})

	t.Run("unknown participant", func(t *testing.T) {
		m := seeded(t)
		scope, err := m.Begin(ctx)
		require.NoError(t, err)
		defer scope.Release()
		_, err = scope.Insert(ctx, model.NewRecord{OwnerID: "u1", Participants: []model.Participant{{ID: "ghost"}}})
		assert.ErrorIs(t, err, store.ErrParticipantNotFound)
	})
}
