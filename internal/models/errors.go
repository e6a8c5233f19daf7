package models

import "fmt"

// The error taxonomy surfaced by the admission and cancellation policies.
// All precondition failures are returned before any mutation happens, so
// callers never observe partial state.

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// InvalidStateError means the event or RSVP is in a lifecycle state that
// forbids the operation (cancelled, deleted, already started, already
// cancelled).
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Reason
}

// ConflictError means the member already holds an active claim.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

type ValidationError struct {
	Field string
	Rule  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Rule)
}
