// Package queue defines message payloads exchanged over the message
// broker and the background consumer that tails them.
package queue

// SecurityEventMessage mirrors one security_events row. It is
// published whenever an authentication or authorization decision is
// recorded, so downstream consumers can tail the audit trail without
// querying the primary database.
type SecurityEventMessage struct {
	ID        uint64  `json:"id"`
	CreatedAt string  `json:"created_at"`
	ActorType string  `json:"actor_type"`
	ActorID   *string `json:"actor_id,omitempty"`
	EventType string  `json:"event_type"`
	Status    string  `json:"status"`
	Detail    *string `json:"detail,omitempty"`
}
