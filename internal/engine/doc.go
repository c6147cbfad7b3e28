// Package engine orchestrates a merge run for one owner.
//
// MergeOwnerRecords locks the owner, reads its records in ascending start
// order, asks the interval package for a plan, and applies that plan to the
// store as one atomic scope. The sequence is:
//
//  1. Lock the owner (Locker). Concurrent runs for the same owner queue here;
//     runs for different owners proceed in parallel.
//  2. FetchOrdered. An unknown owner fails with OWNER_NOT_FOUND.
//  3. Plan with interval.Merge using Clock.Now for status derivation.
//  4. If the plan removes nothing, return the fetched records. No scope is
//     opened.
//  5. Begin a scope, Remove every merged identity, Insert every merged
//     record, Commit. Any failure rolls the scope back and fails with
//     MERGE_TRANSACTION_FAILED.
//  6. Re-fetch so callers see persisted identities.
//
// Scope.Release and the owner unlock are deferred, in that order, so both run
// on success, failure and cancellation. The engine never retries.
//
// The Engine holds no mutable state of its own; collaborators (store, clock,
// locker, logger, tracer, metrics) are injected with options.
package engine
