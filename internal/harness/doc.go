// Package harness runs merge scenarios end to end.
//
// A scenario seeds owners and records, merges some owners, and checks the
// resulting records. Each run uses a fresh in-memory SQLite store, a fixed
// clock and sequential identities, so the final state is reproducible and can
// be compared against golden snapshots.
//
// # Scenario Format
//
// Scenarios are YAML (.yaml, .yml) or CUE (.cue) files:
//
//	name: concrete_merge
//	description: "E1 and E2 overlap, E3 does not"
//	now: "2023-11-29T12:00:00Z"
//	owners:
//	  - { key: ann, name: Ann }
//	  - { key: bo, name: Bo }
//	records:
//	  - key: e1
//	    owner: ann
//	    title: E1
//	    start: "2023-11-27T00:00:00Z"
//	    end: "2023-11-28T00:00:00Z"
//	    participants: [bo]
//	merge: [ann]
//	expect:
//	  - owner: ann
//	    records:
//	      - { title: E1, start: "2023-11-27T00:00:00Z", end: "2023-11-28T00:00:00Z" }
//
// Keys are scenario-local names; participants refer to owner keys. A record
// without a status gets one derived from its window and "now". Expected
// description, status and participants are only checked when present.
//
// CUE scenarios are unified with the embedded #Scenario definition, so
// unknown fields and invalid statuses are rejected just like YAML's strict
// field checking.
//
// # Golden Snapshots
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden/<name>.golden from the current behaviour.
package harness
