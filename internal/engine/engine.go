package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/eventmerge/internal/interval"
	"github.com/roach88/eventmerge/internal/metrics"
	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/store"
)

const tracerName = "github.com/roach88/eventmerge/internal/engine"

// Recorder receives one observation per finished merge run.
// Implemented by *metrics.Merge.
type Recorder interface {
	ObserveMerge(outcome string, d time.Duration, removed, inserted int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveMerge(string, time.Duration, int, int) {}

// Engine merges overlapping records of one owner at a time.
//
// Thread-safety model:
//   - MergeOwnerRecords(): safe from any goroutine
//   - Same owner: runs are serialized by the Locker
//   - Different owners: runs proceed in parallel
type Engine struct {
	store   store.RecordStore
	clock   Clock
	locker  Locker
	logger  *slog.Logger
	tp      trace.TracerProvider
	tracer  trace.Tracer
	metrics Recorder
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithClock sets the source of "now" for status derivation.
//
// Default: SystemClock
func WithClock(c Clock) EngineOption {
	return func(e *Engine) { e.clock = c }
}

// WithLocker sets the per-owner lock.
//
// Default: a private OwnerLocks, which serializes runs within this Engine
// only. Share one Locker (or use redislock) across engines that write the
// same database.
func WithLocker(l Locker) EngineOption {
	return func(e *Engine) { e.locker = l }
}

// WithLogger sets the structured logger.
//
// Default: slog.Default()
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithTracerProvider sets the OpenTelemetry tracer provider.
//
// Default: otel.GetTracerProvider()
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) { e.tp = tp }
}

// WithMetrics sets the run recorder, typically a *metrics.Merge.
//
// Default: no metrics
func WithMetrics(r Recorder) EngineOption {
	return func(e *Engine) { e.metrics = r }
}

// New creates an Engine over the given store.
func New(s store.RecordStore, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   s,
		clock:   SystemClock{},
		locker:  NewOwnerLocks(),
		logger:  slog.Default(),
		tp:      otel.GetTracerProvider(),
		metrics: nopRecorder{},
	}

	for _, opt := range opts {
		opt(e)
	}

	e.tracer = e.tp.Tracer(tracerName)
	return e
}

// MergeOwnerRecords collapses every chain of overlapping records owned by
// ownerID into one record and returns the owner's records afterwards,
// ascending by start time.
//
// Returns a *MergeError with ErrCodeOwnerNotFound if the owner does not
// exist, or ErrCodeTransactionFailed if applying the merge failed. In the
// latter case nothing was changed. If the merge committed but the merged
// records could not be read back, the error carries ErrCodeResultUnavailable.
// Lock and fetch failures (including ctx cancellation while waiting for the
// lock) are returned wrapped.
func (e *Engine) MergeOwnerRecords(ctx context.Context, ownerID string) (result []model.Record, err error) {
	started := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.MergeOwnerRecords",
		trace.WithAttributes(attribute.String("owner.id", ownerID)))
	defer span.End()

	outcome := metrics.OutcomeFailed
	var removed, inserted int
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("merge.outcome", outcome))
		e.metrics.ObserveMerge(outcome, time.Since(started), removed, inserted)
	}()

	e.logger.Debug("merge starting", "owner_id", ownerID)

	unlock, err := e.locker.Lock(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("lock owner %s: %w", ownerID, err)
	}
	defer unlock()
	span.AddEvent("owner locked")

	records, err := e.store.FetchOrdered(ctx, ownerID)
	if err != nil {
		if errors.Is(err, store.ErrOwnerNotFound) {
			outcome = metrics.OutcomeOwnerNotFound
			return nil, newOwnerNotFound(ownerID, err)
		}
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	if len(records) < 2 {
		outcome = metrics.OutcomeNoop
		return records, nil
	}

	plan := interval.Merge(records, e.clock.Now())
	span.SetAttributes(
		attribute.Int("merge.records", len(records)),
		attribute.Int("merge.removals", len(plan.Removals)),
		attribute.Int("merge.insertions", len(plan.Insertions)),
	)

	if plan.IsNoop() {
		outcome = metrics.OutcomeNoop
		e.logger.Debug("nothing to merge", "owner_id", ownerID, "records", len(records))
		return records, nil
	}

	e.logger.Info("applying merge plan",
		"owner_id", ownerID,
		"removals", len(plan.Removals),
		"insertions", len(plan.Insertions),
		"unchanged", len(plan.Unchanged),
	)

	if err := e.apply(ctx, ownerID, plan); err != nil {
		return nil, err
	}
	outcome = metrics.OutcomeMerged
	removed, inserted = len(plan.Removals), len(plan.Insertions)

	merged, err := e.store.FetchOrdered(ctx, ownerID)
	if err != nil {
		e.logger.Warn("merge committed but result fetch failed",
			"owner_id", ownerID,
			"error", err,
		)
		return nil, newResultUnavailable(ownerID, fmt.Errorf("fetch merged records: %w", err))
	}
	return merged, nil
}

// apply runs plan inside one atomic scope: every removal first, then every
// insertion, then commit.
func (e *Engine) apply(ctx context.Context, ownerID string, plan interval.Plan) error {
	ctx, span := e.tracer.Start(ctx, "engine.apply")
	defer span.End()

	scope, err := e.store.Begin(ctx)
	if err != nil {
		err = newTransactionFailed(ownerID, fmt.Errorf("begin: %w", err))
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer scope.Release()

	for _, id := range plan.Removals {
		if err := scope.Remove(ctx, id); err != nil {
			return e.abort(span, scope, ownerID, fmt.Errorf("remove %s: %w", id, err))
		}
	}

	for _, rec := range plan.Insertions {
		if _, err := scope.Insert(ctx, rec); err != nil {
			return e.abort(span, scope, ownerID, fmt.Errorf("insert %q: %w", rec.Title, err))
		}
	}

	if err := scope.Commit(); err != nil {
		return e.abort(span, scope, ownerID, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// abort rolls back scope and returns the transaction failure for cause.
func (e *Engine) abort(span trace.Span, scope store.Scope, ownerID string, cause error) error {
	if rbErr := scope.Rollback(); rbErr != nil {
		e.logger.Error("merge rollback failed",
			"owner_id", ownerID,
			"error", rbErr,
		)
	}
	e.logger.Warn("merge transaction failed",
		"owner_id", ownerID,
		"error", cause,
	)
	err := newTransactionFailed(ownerID, cause)
	span.SetStatus(codes.Error, err.Error())
	return err
}
