// Package service exposes owner and record operations on top of the store
// and the merge engine, validating and normalising input on the way in.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/eventmerge/internal/engine"
	"github.com/roach88/eventmerge/internal/model"
	"github.com/roach88/eventmerge/internal/store"
)

// DefaultMergeTimeout bounds MergeAll when no timeout is configured.
const DefaultMergeTimeout = 30 * time.Second

// Repository is the store surface the service needs.
// *store.Store satisfies it.
type Repository interface {
	CreateOwner(ctx context.Context, name string) (model.Owner, error)
	GetOwner(ctx context.Context, id string) (model.Owner, error)
	DeleteOwner(ctx context.Context, id string) error
	CreateRecord(ctx context.Context, rec model.NewRecord) (model.Record, error)
	GetRecord(ctx context.Context, id string) (model.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	FetchOrdered(ctx context.Context, ownerID string) ([]model.Record, error)
}

// Merger runs a merge for one owner. *engine.Engine satisfies it.
type Merger interface {
	MergeOwnerRecords(ctx context.Context, ownerID string) ([]model.Record, error)
}

var (
	_ Repository = (*store.Store)(nil)
	_ Merger     = (*engine.Engine)(nil)
)

// Service validates requests and delegates to the store and engine.
type Service struct {
	repo         Repository
	merger       Merger
	clock        engine.Clock
	mergeTimeout time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used to derive the status of records created
// without one.
//
// Default: engine.SystemClock
func WithClock(c engine.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMergeTimeout bounds each MergeAll call.
//
// Default: 30s
func WithMergeTimeout(d time.Duration) Option {
	return func(s *Service) { s.mergeTimeout = d }
}

// New creates a Service.
func New(repo Repository, merger Merger, opts ...Option) *Service {
	s := &Service{
		repo:         repo,
		merger:       merger,
		clock:        engine.SystemClock{},
		mergeTimeout: DefaultMergeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOwnerInput is the request to create an owner.
type CreateOwnerInput struct {
	Name string
}

// OwnerDetail is an owner together with its records, ascending by start.
type OwnerDetail struct {
	Owner   model.Owner    `json:"owner"`
	Records []model.Record `json:"records"`
}

// CreateRecordInput is the request to create a record. An empty Status is
// derived from the window and the current time.
type CreateRecordInput struct {
	OwnerID      string
	Title        string
	Description  string
	Status       string
	StartTime    time.Time
	EndTime      time.Time
	Participants []string
}

// CreateOwner validates and stores a new owner.
func (s *Service) CreateOwner(ctx context.Context, in CreateOwnerInput) (model.Owner, error) {
	name := normalize(in.Name)
	if name == "" {
		return model.Owner{}, &ValidationError{Field: "name", Message: "must not be empty"}
	}
	return s.repo.CreateOwner(ctx, name)
}

// FindOwner returns the owner and its records.
// Returns store.ErrOwnerNotFound if the owner does not exist.
func (s *Service) FindOwner(ctx context.Context, id string) (OwnerDetail, error) {
	owner, err := s.repo.GetOwner(ctx, id)
	if err != nil {
		return OwnerDetail{}, err
	}
	records, err := s.repo.FetchOrdered(ctx, id)
	if err != nil {
		return OwnerDetail{}, err
	}
	return OwnerDetail{Owner: owner, Records: records}, nil
}

// RemoveOwner deletes the owner, its records and every participant link
// that references it.
func (s *Service) RemoveOwner(ctx context.Context, id string) error {
	return s.repo.DeleteOwner(ctx, id)
}

// CreateRecord validates and stores a new record.
func (s *Service) CreateRecord(ctx context.Context, in CreateRecordInput) (model.Record, error) {
	title := normalize(in.Title)
	if title == "" {
		return model.Record{}, &ValidationError{Field: "title", Message: "must not be empty"}
	}
	if strings.TrimSpace(in.OwnerID) == "" {
		return model.Record{}, &ValidationError{Field: "owner", Message: "must not be empty"}
	}
	if in.StartTime.IsZero() || in.EndTime.IsZero() {
		return model.Record{}, &ValidationError{Field: "start/end", Message: "both times are required"}
	}
	if !model.TimeInRange(in.StartTime) || !model.TimeInRange(in.EndTime) {
		return model.Record{}, &ValidationError{Field: "start/end", Message: "must fall within years 0001 to 9999"}
	}
	if in.EndTime.Before(in.StartTime) {
		return model.Record{}, &ValidationError{Field: "end", Message: "must not be before start"}
	}

	var status model.Status
	if in.Status == "" {
		status = model.DeriveStatus(in.StartTime, in.EndTime, s.clock.Now())
	} else {
		parsed, err := model.ParseStatus(in.Status)
		if err != nil {
			return model.Record{}, &ValidationError{Field: "status", Message: err.Error()}
		}
		status = parsed
	}

	participants := make([]model.Participant, 0, len(in.Participants))
	for _, id := range in.Participants {
		id = strings.TrimSpace(id)
		if id == "" {
			return model.Record{}, &ValidationError{Field: "participants", Message: "participant id must not be empty"}
		}
		participants = append(participants, model.Participant{ID: id})
	}

	return s.repo.CreateRecord(ctx, model.NewRecord{
		OwnerID:      in.OwnerID,
		Title:        title,
		Description:  normalize(in.Description),
		Status:       status,
		StartTime:    in.StartTime,
		EndTime:      in.EndTime,
		Participants: participants,
	})
}

// FindRecord returns a record by ID.
// Returns store.ErrRecordNotFound if the record does not exist.
func (s *Service) FindRecord(ctx context.Context, id string) (model.Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// RemoveRecord deletes a record by ID.
func (s *Service) RemoveRecord(ctx context.Context, id string) error {
	return s.repo.DeleteRecord(ctx, id)
}

// MergeAll merges the owner's overlapping records within the configured
// timeout and returns the resulting records.
func (s *Service) MergeAll(ctx context.Context, ownerID string) ([]model.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.mergeTimeout)
	defer cancel()

	records, err := s.merger.MergeOwnerRecords(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("merge all: %w", err)
	}
	return records, nil
}

// normalize trims surrounding space and converts to Unicode NFC so visually
// identical titles compare and concatenate identically.
func normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
