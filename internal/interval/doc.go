// Package interval collapses temporally overlapping records into merged
// records.
//
// Merge is a pure, order-sensitive, single pass over records sorted ascending
// by StartTime. It never sorts, never validates and never fails: callers (the
// store adapter) guarantee the ordering precondition, and a violation is a
// programming error, not a recoverable condition.
//
// # Overlap
//
// A record overlaps the running accumulator when
//
//	curr.StartTime <= acc.EndTime
//
// Boundary-touching windows overlap, and zero-duration records take part
// under the same inclusive rule.
//
// # Folding
//
// Folding curr into acc extends EndTime to the later of the two, unions the
// participants by ID, joins titles with " & ", joins descriptions with a
// blank line and re-derives the status from the merged window. Both original
// identities are scheduled for removal and the merged value is emitted as a
// new record without identity.
//
// Records that overlap nothing are returned untouched, including their stored
// status.
package interval
