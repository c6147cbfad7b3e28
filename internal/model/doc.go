// Package model defines the records, owners and participants that the merge
// engine operates on.
//
// A Record is a time-bounded unit owned by exactly one Owner. Participants are
// resolved references to other owners; a record's participant set is unique by
// participant ID and its order carries no meaning beyond being stable.
//
// Status is derived from the record's window and an explicit instant (see
// DeriveStatus). Nothing in this package reads the wall clock.
package model
