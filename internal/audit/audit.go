// Package audit defines the event boundary the entity services emit through.
// Emission is observational: failures are logged by callers and never fail
// the operation being audited.
package audit

import (
	"context"
	"time"
)

// Event captures one entity lifecycle action across both stores.
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Action     Action    `json:"action"`
	Kind       string    `json:"kind"`
	EntityID   string    `json:"entity_id,omitempty"`
	ExternalID string    `json:"external_id,omitempty"`
	Name       string    `json:"name,omitempty"`
	Outcome    string    `json:"outcome"`
}

// Action identifies what happened.
type Action string

const (
	ActionCreated = Action("created")
	ActionUpdated = Action("updated")
	ActionDeleted = Action("deleted")
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Publisher delivers audit events to a sink.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
