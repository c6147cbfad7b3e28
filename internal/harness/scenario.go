package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eventmerge/internal/model"
)

// Scenario defines a merge scenario: fixtures, merges to run, and the
// expected records afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description" json:"description"`

	// Now is the RFC 3339 instant used for every status derivation.
	Now string `yaml:"now" json:"now"`

	// Owners are created first, in order.
	Owners []OwnerFixture `yaml:"owners" json:"owners"`

	// Records are created after all owners, in order.
	Records []RecordFixture `yaml:"records,omitempty" json:"records,omitempty"`

	// Merge lists owner keys to merge, in order. A key may repeat.
	Merge []string `yaml:"merge,omitempty" json:"merge,omitempty"`

	// Expect describes the final records of selected owners.
	Expect []OwnerExpectation `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// OwnerFixture seeds one owner.
type OwnerFixture struct {
	Key  string `yaml:"key" json:"key"`
	Name string `yaml:"name" json:"name"`
}

// RecordFixture seeds one record. Participants are owner keys.
type RecordFixture struct {
	Key          string   `yaml:"key" json:"key"`
	Owner        string   `yaml:"owner" json:"owner"`
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description,omitempty" json:"description,omitempty"`
	Status       string   `yaml:"status,omitempty" json:"status,omitempty"`
	Start        string   `yaml:"start" json:"start"`
	End          string   `yaml:"end" json:"end"`
	Participants []string `yaml:"participants,omitempty" json:"participants,omitempty"`
}

// OwnerExpectation lists an owner's expected records in ascending order.
type OwnerExpectation struct {
	Owner   string              `yaml:"owner" json:"owner"`
	Records []RecordExpectation `yaml:"records" json:"records"`
}

// RecordExpectation matches one final record. Nil Description and
// Participants, and empty Status, are not checked.
type RecordExpectation struct {
	Title        string   `yaml:"title" json:"title"`
	Description  *string  `yaml:"description,omitempty" json:"description,omitempty"`
	Start        string   `yaml:"start" json:"start"`
	End          string   `yaml:"end" json:"end"`
	Status       string   `yaml:"status,omitempty" json:"status,omitempty"`
	Participants []string `yaml:"participants,omitempty" json:"participants,omitempty"`
}

// LoadScenario reads and parses a scenario file, choosing the decoder by
// extension (.yaml, .yml or .cue).
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields, or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario *Scenario
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		scenario, err = parseYAML(data)
	case ".cue":
		scenario, err = parseCUE(path, data)
	default:
		return nil, fmt.Errorf("unsupported scenario extension %q", ext)
	}
	if err != nil {
		return nil, err
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

func parseYAML(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "record:" vs "records:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// key reference resolves.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if _, err := parseTime(s.Now); err != nil {
		return fmt.Errorf("now: %w", err)
	}
	if len(s.Owners) == 0 {
		return fmt.Errorf("owners list is required and must be non-empty")
	}

	owners := make(map[string]bool, len(s.Owners))
	for i, o := range s.Owners {
		if o.Key == "" {
			return fmt.Errorf("owners[%d]: key is required", i)
		}
		if o.Name == "" {
			return fmt.Errorf("owners[%d]: name is required", i)
		}
		if owners[o.Key] {
			return fmt.Errorf("owners[%d]: duplicate key %q", i, o.Key)
		}
		owners[o.Key] = true
	}

	records := make(map[string]bool, len(s.Records))
	for i, r := range s.Records {
		if err := validateRecord(r, owners); err != nil {
			return fmt.Errorf("records[%d]: %w", i, err)
		}
		if records[r.Key] {
			return fmt.Errorf("records[%d]: duplicate key %q", i, r.Key)
		}
		records[r.Key] = true
	}

	for i, key := range s.Merge {
		if !owners[key] {
			return fmt.Errorf("merge[%d]: unknown owner %q", i, key)
		}
	}

	for i, e := range s.Expect {
		if !owners[e.Owner] {
			return fmt.Errorf("expect[%d]: unknown owner %q", i, e.Owner)
		}
		for j, r := range e.Records {
			if err := validateExpectation(r, owners); err != nil {
				return fmt.Errorf("expect[%d].records[%d]: %w", i, j, err)
			}
		}
	}

	return nil
}

func validateRecord(r RecordFixture, owners map[string]bool) error {
	if r.Key == "" {
		return fmt.Errorf("key is required")
	}
	if !owners[r.Owner] {
		return fmt.Errorf("unknown owner %q", r.Owner)
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if r.Status != "" {
		if _, err := model.ParseStatus(r.Status); err != nil {
			return err
		}
	}
	start, err := parseTime(r.Start)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseTime(r.End)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("end %s is before start %s", r.End, r.Start)
	}
	for _, p := range r.Participants {
		if !owners[p] {
			return fmt.Errorf("unknown participant %q", p)
		}
	}
	return nil
}

func validateExpectation(r RecordExpectation, owners map[string]bool) error {
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	if _, err := parseTime(r.Start); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	if _, err := parseTime(r.End); err != nil {
		return fmt.Errorf("end: %w", err)
	}
	if r.Status != "" {
		if _, err := model.ParseStatus(r.Status); err != nil {
			return err
		}
	}
	for _, p := range r.Participants {
		if !owners[p] {
			return fmt.Errorf("unknown participant %q", p)
		}
	}
	return nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("time is required")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid RFC 3339 time %q", s)
	}
	return t, nil
}
