package ecs

import "errors"

// Every error below signals a broken invariant. They are raised with panic
// (wrapped by eris, so the panic value carries a stack) and never returned.
var (
	// ErrStaleWrite: an older generation tried to overwrite a newer entry.
	ErrStaleWrite = errors.New("ecs: stale generation overwrites newer entry")
	// ErrBorrowConflict: shared/exclusive borrow rules were violated.
	ErrBorrowConflict = errors.New("ecs: borrow conflict")
	// ErrDiverged: the arena and the component store disagree about an entity.
	ErrDiverged = errors.New("ecs: arena and component store diverged")
	// ErrTickInProgress: a structural change was attempted mid-tick.
	ErrTickInProgress = errors.New("ecs: tick in progress")
	// ErrMissingComponent: a component was read without a presence check.
	ErrMissingComponent = errors.New("ecs: missing component")
)
