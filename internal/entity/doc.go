// Package entity derives hub entities from the coordinator's snapshot.
//
// Five platforms are supported:
//
//	climate        one per node reporting "temp"
//	sensor         read-only, non-boolean parameters
//	binary_sensor  read-only boolean parameters
//	switch         writable boolean parameters
//	number         writable numeric parameters
//
// The Name and config parameters, and anything whose name contains
// "schedule", never become entities of their own.
//
// Entities hold no values. Every read goes through Coordinator.Snapshot, and
// every write is followed by a refresh request. Remote write failures are
// logged; only invalid input (an unknown fan mode, a value out of bounds) is
// returned to the caller.
package entity
