// Package queue defines message payloads exchanged over the message broker.
package queue

// RecordChangedEvent is published whenever a customer or user record is
// created, updated or deactivated. It carries enough context for
// downstream consumers to build an audit trail without querying the
// primary database.
type RecordChangedEvent struct {
	Entity     string `json:"entity"` // "customer" | "user"
	EntityID   uint64 `json:"entity_id"`
	Action     string `json:"action"` // "created" | "updated" | "deactivated"
	ActorID    uint64 `json:"actor_id"`
	ActorEmail string `json:"actor_email"`
	Summary    string `json:"summary"`
	OccurredAt string `json:"occurred_at"` // RFC 3339 UTC
}

// Actions recognized by the audit consumer.
const (
	ActionCreated     = "created"
	ActionUpdated     = "updated"
	ActionDeactivated = "deactivated"
)
