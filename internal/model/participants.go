package model

// ParticipantSet is an insertion-ordered set of participants keyed by ID.
//
// The first occurrence of an ID wins; later occurrences are ignored even if
// their Name differs. The zero value is ready to use.
type ParticipantSet struct {
	seen  map[string]struct{}
	items []Participant
}

// NewParticipantSet returns a set seeded with ps.
func NewParticipantSet(ps ...Participant) *ParticipantSet {
	s := &ParticipantSet{}
	s.Add(ps...)
	return s
}

// Add inserts each participant whose ID is not already present.
func (s *ParticipantSet) Add(ps ...Participant) {
	if s.seen == nil {
		s.seen = make(map[string]struct{}, len(ps))
	}
	for _, p := range ps {
		if _, ok := s.seen[p.ID]; ok {
			continue
		}
		s.seen[p.ID] = struct{}{}
		s.items = append(s.items, p)
	}
}

// Contains reports whether a participant with id is in the set.
func (s *ParticipantSet) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Len returns the number of distinct participants.
func (s *ParticipantSet) Len() int { return len(s.items) }

// Slice returns a copy of the participants in insertion order.
// Never returns nil.
func (s *ParticipantSet) Slice() []Participant {
	out := make([]Participant, len(s.items))
	copy(out, s.items)
	return out
}
