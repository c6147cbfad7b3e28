package store

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/roach88/eventmerge/internal/model"
)

func TestCreateOwner_AssignsIdentity(t *testing.T) {
	fixed := time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)
	s := createTestStore(t, WithNow(func() time.Time { return fixed }))
	ctx := context.Background()

	o, err := s.CreateOwner(ctx, "Ann")
	if err != nil {
		t.Fatalf("CreateOwner() failed: %v", err)
	}
	if o.ID != "id-0001" {
		t.Errorf("ID = %q, want id-0001", o.ID)
	}

	got, err := s.GetOwner(ctx, o.ID)
	if err != nil {
		t.Fatalf("GetOwner() failed: %v", err)
	}
	if got.Name != "Ann" {
		t.Errorf("Name = %q, want Ann", got.Name)
	}
	if !got.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, fixed)
	}
}

func TestGetOwner_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetOwner(context.Background(), "missing")
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("err = %v, want ErrOwnerNotFound", err)
	}
}

func TestCreateRecord_ResolvesParticipants(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := mustOwner(t, s, "Owner")
	ann := mustOwner(t, s, "Ann")
	bo := mustOwner(t, s, "Bo")

	created, err := s.CreateRecord(ctx, model.NewRecord{
		OwnerID:     owner.ID,
		Title:       "Planning",
		Description: "Quarterly",
		Status:      model.StatusTodo,
		StartTime:   day(1),
		EndTime:     day(2),
		Participants: []model.Participant{
			{ID: bo.ID},
			{ID: ann.ID, Name: "ignored"},
			{ID: bo.ID},
		},
	})
	if err != nil {
		t.Fatalf("CreateRecord() failed: %v", err)
	}

	want := []model.Participant{{ID: bo.ID, Name: "Bo"}, {ID: ann.ID, Name: "Ann"}}
	if !reflect.DeepEqual(created.Participants, want) {
		t.Errorf("created participants = %+v, want %+v", created.Participants, want)
	}

	got, err := s.GetRecord(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetRecord() failed: %v", err)
	}
	if got.Title != "Planning" || got.Description != "Quarterly" || got.Status != model.StatusTodo {
		t.Errorf("GetRecord() = %+v", got)
	}
	if !got.StartTime.Equal(day(1)) || !got.EndTime.Equal(day(2)) {
		t.Errorf("window = [%v, %v], want [%v, %v]", got.StartTime, got.EndTime, day(1), day(2))
	}
	if !reflect.DeepEqual(got.Participants, want) {
		t.Errorf("stored participants = %+v, want %+v", got.Participants, want)
	}
}

func TestCreateRecord_UnknownParticipantWritesNothing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := mustOwner(t, s, "Owner")

	_, err := s.CreateRecord(ctx, model.NewRecord{
		OwnerID:      owner.ID,
		Title:        "Orphan",
		Status:       model.StatusTodo,
		StartTime:    day(1),
		EndTime:      day(1),
		Participants: []model.Participant{{ID: "ghost"}},
	})
	if !errors.Is(err, ErrParticipantNotFound) {
		t.Fatalf("err = %v, want ErrParticipantNotFound", err)
	}

	records, err := s.FetchOrdered(ctx, owner.ID)
	if err != nil {
		t.Fatalf("FetchOrdered() failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("got %d records, want 0", len(records))
	}
}

func TestCreateRecord_UnknownOwner(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CreateRecord(context.Background(), model.NewRecord{
		OwnerID:   "missing",
		Title:     "x",
		Status:    model.StatusTodo,
		StartTime: day(1),
		EndTime:   day(1),
	})
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("err = %v, want ErrOwnerNotFound", err)
	}
}

func TestFetchOrdered_AscendingWithCreationTieBreak(t *testing.T) {
	for _, driver := range drivers {
		t.Run(driver, func(t *testing.T) {
			s := createTestStore(t, WithDriver(driver))
			ctx := context.Background()
			owner := mustOwner(t, s, "Owner")
			other := mustOwner(t, s, "Other")

			mustRecord(t, s, owner.ID, "late", day(10), day(11))
			mustRecord(t, s, owner.ID, "tie-first", day(3), day(4))
			mustRecord(t, s, other.ID, "not mine", day(1), day(2))
			mustRecord(t, s, owner.ID, "tie-second", day(3), day(3))
			mustRecord(t, s, owner.ID, "early", day(1), day(2))

			records, err := s.FetchOrdered(ctx, owner.ID)
			if err != nil {
				t.Fatalf("FetchOrdered() failed: %v", err)
			}

			want := []string{"early", "tie-first", "tie-second", "late"}
			if got := titles(records); !reflect.DeepEqual(got, want) {
				t.Errorf("titles = %v, want %v", got, want)
			}
		})
	}
}

func TestFetchOrdered_ResolvesParticipantsPerRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := mustOwner(t, s, "Owner")
	ann := mustOwner(t, s, "Ann")
	bo := mustOwner(t, s, "Bo")

	mustRecord(t, s, owner.ID, "second", day(2), day(3), bo.ID, ann.ID)
	mustRecord(t, s, owner.ID, "first", day(1), day(1), ann.ID)
	mustRecord(t, s, owner.ID, "none", day(5), day(5))

	records, err := s.FetchOrdered(ctx, owner.ID)
	if err != nil {
		t.Fatalf("FetchOrdered() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}

	if got := records[0].ParticipantIDs(); !reflect.DeepEqual(got, []string{ann.ID}) {
		t.Errorf("first participants = %v", got)
	}
	if got := records[1].ParticipantIDs(); !reflect.DeepEqual(got, []string{bo.ID, ann.ID}) {
		t.Errorf("second participants = %v", got)
	}
	if records[1].Participants[0].Name != "Bo" {
		t.Errorf("participant name = %q, want Bo", records[1].Participants[0].Name)
	}
	if len(records[2].Participants) != 0 {
		t.Errorf("none participants = %v", records[2].Participants)
	}
}

func TestFetchOrdered_UnknownOwner(t *testing.T) {
	s := createTestStore(t)

	_, err := s.FetchOrdered(context.Background(), "missing")
	if !errors.Is(err, ErrOwnerNotFound) {
		t.Fatalf("err = %v, want ErrOwnerNotFound", err)
	}
}

func TestFetchOrdered_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	owner := mustOwner(t, s, "Owner")

	records, err := s.FetchOrdered(context.Background(), owner.ID)
	if err != nil {
		t.Fatalf("FetchOrdered() failed: %v", err)
	}
	if records == nil {
		t.Error("FetchOrdered() returned nil, want empty slice")
	}
}

func TestDeleteRecord(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := mustOwner(t, s, "Owner")
	ann := mustOwner(t, s, "Ann")
	rec := mustRecord(t, s, owner.ID, "gone", day(1), day(2), ann.ID)

	if err := s.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord() failed: %v", err)
	}
	if _, err := s.GetRecord(ctx, rec.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("GetRecord() err = %v, want ErrRecordNotFound", err)
	}
	if err := s.DeleteRecord(ctx, rec.ID); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("second DeleteRecord() err = %v, want ErrRecordNotFound", err)
	}

	var links int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM record_participants").Scan(&links); err != nil {
		t.Fatalf("count links: %v", err)
	}
	if links != 0 {
		t.Errorf("participant links = %d, want 0 after cascade", links)
	}
}

func TestDeleteOwner_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	owner := mustOwner(t, s, "Owner")
	ann := mustOwner(t, s, "Ann")
	mustRecord(t, s, owner.ID, "owned", day(1), day(2))
	shared := mustRecord(t, s, ann.ID, "shared", day(1), day(2), owner.ID)

	if err := s.DeleteOwner(ctx, owner.ID); err != nil {
		t.Fatalf("DeleteOwner() failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE owner_id = ?", owner.ID).Scan(&count); err != nil {
		t.Fatalf("count records: %v", err)
	}
	if count != 0 {
		t.Errorf("owned records = %d, want 0", count)
	}

	got, err := s.GetRecord(ctx, shared.ID)
	if err != nil {
		t.Fatalf("GetRecord(shared) failed: %v", err)
	}
	if len(got.Participants) != 0 {
		t.Errorf("shared participants = %v, want none", got.Participants)
	}

	if err := s.DeleteOwner(ctx, owner.ID); !errors.Is(err, ErrOwnerNotFound) {
		t.Errorf("second DeleteOwner() err = %v, want ErrOwnerNotFound", err)
	}
}
