package model

import "time"

// Owner is the entity whose records are merged. Owners also act as the
// participant entities referenced from records.
type Owner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Participant is a resolved reference to an Owner attached to a record.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Record is a persisted time-bounded unit.
//
// INVARIANT: StartTime <= EndTime. Producers are responsible for this; the
// merge engine assumes it.
type Record struct {
	ID           string        `json:"id"`
	OwnerID      string        `json:"owner_id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Status       Status        `json:"status"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewRecord holds the fields of a record that has no identity yet.
// The store assigns ID, CreatedAt and UpdatedAt on insertion.
type NewRecord struct {
	OwnerID      string
	Title        string
	Description  string
	Status       Status
	StartTime    time.Time
	EndTime      time.Time
	Participants []Participant
}

// Fields strips identity and bookkeeping timestamps from r.
// The participant slice is copied.
func (r Record) Fields() NewRecord {
	return NewRecord{
		OwnerID:      r.OwnerID,
		Title:        r.Title,
		Description:  r.Description,
		Status:       r.Status,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Participants: append([]Participant(nil), r.Participants...),
	}
}

// ParticipantIDs returns the IDs of r's participants in order.
func (r Record) ParticipantIDs() []string {
	ids := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		ids[i] = p.ID
	}
	return ids
}

// Instants outside [MinTime, MaxTime] cannot be persisted: the store keeps
// times as fixed-width RFC 3339 text with a four-digit year.
var (
	MinTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// TimeInRange reports whether t lies within [MinTime, MaxTime].
func TimeInRange(t time.Time) bool {
	return !t.Before(MinTime) && !t.After(MaxTime)
}
