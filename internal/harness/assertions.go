package harness

import (
	"fmt"
	"slices"
)

// CheckExpectations compares a snapshot against expected owner records and
// returns one message per mismatch. An empty result means everything
// matched.
func CheckExpectations(snap *Snapshot, expect []OwnerExpectation) []string {
	var errs []string

	for _, e := range expect {
		owner := snap.Owner(e.Owner)
		if owner == nil {
			errs = append(errs, fmt.Sprintf("owner %s: not in snapshot", e.Owner))
			continue
		}

		if len(owner.Records) != len(e.Records) {
			errs = append(errs, fmt.Sprintf("owner %s: expected %d records, got %d",
				e.Owner, len(e.Records), len(owner.Records)))
			continue
		}

		for i, want := range e.Records {
			for _, msg := range matchRecord(owner.Records[i], want) {
				errs = append(errs, fmt.Sprintf("owner %s: records[%d]: %s", e.Owner, i, msg))
			}
		}
	}

	return errs
}

func matchRecord(got RecordSnapshot, want RecordExpectation) []string {
	var errs []string

	if got.Title != want.Title {
		errs = append(errs, fmt.Sprintf("title: expected %q, got %q", want.Title, got.Title))
	}
	if want.Description != nil && got.Description != *want.Description {
		errs = append(errs, fmt.Sprintf("description: expected %q, got %q", *want.Description, got.Description))
	}
	if !sameInstant(got.Start, want.Start) {
		errs = append(errs, fmt.Sprintf("start: expected %s, got %s", want.Start, got.Start))
	}
	if !sameInstant(got.End, want.End) {
		errs = append(errs, fmt.Sprintf("end: expected %s, got %s", want.End, got.End))
	}
	if want.Status != "" && got.Status != want.Status {
		errs = append(errs, fmt.Sprintf("status: expected %s, got %s", want.Status, got.Status))
	}
	if want.Participants != nil && !sameSet(got.Participants, want.Participants) {
		errs = append(errs, fmt.Sprintf("participants: expected %v, got %v", want.Participants, got.Participants))
	}

	return errs
}

// sameInstant compares RFC 3339 times by instant, so offsets may differ.
func sameInstant(a, b string) bool {
	ta, err := parseTime(a)
	if err != nil {
		return false
	}
	tb, err := parseTime(b)
	if err != nil {
		return false
	}
	return ta.Equal(tb)
}

// sameSet compares participant keys ignoring order.
func sameSet(a, b []string) bool {
	x := slices.Clone(a)
	y := slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(slices.Compact(x), slices.Compact(y))
}
