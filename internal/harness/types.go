package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every merge ran and every
	// expectation matched.
	Pass bool `json:"pass"`

	// Errors contains merge failures and expectation mismatches.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Snapshot is the final state of every owner, used for golden
	// comparison.
	Snapshot *Snapshot `json:"snapshot"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Snapshot is the final state of a scenario, with identities replaced by
// scenario keys so it is stable across runs.
type Snapshot struct {
	Scenario string          `json:"scenario"`
	Owners   []OwnerSnapshot `json:"owners"`
}

// OwnerSnapshot lists an owner's records in ascending start order.
type OwnerSnapshot struct {
	Owner   string           `json:"owner"`
	Records []RecordSnapshot `json:"records"`
}

// RecordSnapshot is one persisted record. Times are RFC 3339 UTC and
// participants are owner keys in stored order.
type RecordSnapshot struct {
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Status       string   `json:"status"`
	Start        string   `json:"start"`
	End          string   `json:"end"`
	Participants []string `json:"participants"`
}

// Owner returns the snapshot for key, or nil.
func (s *Snapshot) Owner(key string) *OwnerSnapshot {
	for i := range s.Owners {
		if s.Owners[i].Owner == key {
			return &s.Owners[i]
		}
	}
	return nil
}
