package ecs

import "github.com/rotisserie/eris"

var (
	// ErrStaleEntity is returned when an operation names an entity that is
	// not alive.
	ErrStaleEntity = eris.New("stale entity")
	// ErrBorrowConflict reports two overlapping accesses to the same
	// component or resource type with incompatible modes.
	ErrBorrowConflict = eris.New("borrow conflict")
	// ErrNoSuchResource is returned when a required resource is absent.
	ErrNoSuchResource = eris.New("no such resource")
	// ErrInvalidQuery reports a query descriptor that can never be borrowed,
	// such as one naming the same type twice with exclusive access.
	ErrInvalidQuery = eris.New("invalid query")
)
