package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roach88/eventmerge/internal/engine"
	"github.com/roach88/eventmerge/internal/service"
	"github.com/roach88/eventmerge/internal/store"
	"github.com/roach88/eventmerge/internal/testutil"
)

// Harness holds the per-run collaborators of one scenario execution.
type Harness struct {
	store   *store.Store
	service *service.Service

	ownerIDs  map[string]string // scenario key -> owner ID
	ownerKeys map[string]string // owner ID -> scenario key
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database, fixed clock, sequential IDs
// 2. Create owners, then records (statuses derived when absent)
// 3. Merge each listed owner through the service layer
// 4. Snapshot every owner's records
// 5. Check expectations against the snapshot
//
// Merge failures and mismatches are reported in Result.Errors. An error is
// returned only when the scenario cannot be set up.
func Run(scenario *Scenario) (*Result, error) {
	now, err := parseTime(scenario.Now)
	if err != nil {
		return nil, fmt.Errorf("invalid now: %w", err)
	}
	clock := testutil.NewFixedClock(now.UTC())

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.NewSequentialIDs("id")),
		store.WithNow(clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in scenarios
	eng := engine.New(st, engine.WithClock(clock), engine.WithLogger(logger))

	h := &Harness{
		store:     st,
		service:   service.New(st, eng, service.WithClock(clock)),
		ownerIDs:  make(map[string]string),
		ownerKeys: make(map[string]string),
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, fmt.Errorf("failed to seed scenario: %w", err)
	}

	result := NewResult()
	for _, key := range scenario.Merge {
		if _, err := h.service.MergeAll(ctx, h.ownerIDs[key]); err != nil {
			result.AddError(fmt.Sprintf("merge %s: %v", key, err))
		}
	}

	snapshot, err := h.snapshot(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot scenario: %w", err)
	}
	result.Snapshot = snapshot

	for _, msg := range CheckExpectations(snapshot, scenario.Expect) {
		result.AddError(msg)
	}

	return result, nil
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	for _, o := range scenario.Owners {
		owner, err := h.service.CreateOwner(ctx, service.CreateOwnerInput{Name: o.Name})
		if err != nil {
			return fmt.Errorf("owner %s: %w", o.Key, err)
		}
		h.ownerIDs[o.Key] = owner.ID
		h.ownerKeys[owner.ID] = o.Key
	}

	for _, r := range scenario.Records {
		start, err := parseTime(r.Start)
		if err != nil {
			return fmt.Errorf("record %s: start: %w", r.Key, err)
		}
		end, err := parseTime(r.End)
		if err != nil {
			return fmt.Errorf("record %s: end: %w", r.Key, err)
		}

		participants := make([]string, len(r.Participants))
		for i, key := range r.Participants {
			participants[i] = h.ownerIDs[key]
		}

		_, err = h.service.CreateRecord(ctx, service.CreateRecordInput{
			OwnerID:      h.ownerIDs[r.Owner],
			Title:        r.Title,
			Description:  r.Description,
			Status:       r.Status,
			StartTime:    start,
			EndTime:      end,
			Participants: participants,
		})
		if err != nil {
			return fmt.Errorf("record %s: %w", r.Key, err)
		}
	}
	return nil
}

func (h *Harness) snapshot(ctx context.Context, scenario *Scenario) (*Snapshot, error) {
	snap := &Snapshot{
		Scenario: scenario.Name,
		Owners:   make([]OwnerSnapshot, 0, len(scenario.Owners)),
	}

	for _, o := range scenario.Owners {
		records, err := h.store.FetchOrdered(ctx, h.ownerIDs[o.Key])
		if err != nil {
			return nil, fmt.Errorf("owner %s: %w", o.Key, err)
		}

		owner := OwnerSnapshot{Owner: o.Key, Records: make([]RecordSnapshot, 0, len(records))}
		for _, rec := range records {
			participants := make([]string, 0, len(rec.Participants))
			for _, p := range rec.Participants {
				participants = append(participants, h.ownerKeys[p.ID])
			}
			owner.Records = append(owner.Records, RecordSnapshot{
				Title:        rec.Title,
				Description:  rec.Description,
				Status:       string(rec.Status),
				Start:        rec.StartTime.UTC().Format(time.RFC3339),
				End:          rec.EndTime.UTC().Format(time.RFC3339),
				Participants: participants,
			})
		}
		snap.Owners = append(snap.Owners, owner)
	}
	return snap, nil
}
