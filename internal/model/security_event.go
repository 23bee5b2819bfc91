package model

import "time"

// EventStatus is the outcome of a logged security decision.
type EventStatus string

const (
	EventSuccess EventStatus = "success"
	EventDenied  EventStatus = "denied"
	EventError   EventStatus = "error"
)

// ActorType identifies who triggered a security event.
type ActorType string

const (
	ActorUser   ActorType = "user"
	ActorDevice ActorType = "device"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// SecurityEvent is one append-only entry in the `security_events`
// audit table. Writing an event is always best effort: a failure to
// record must never abort the operation being observed.
type SecurityEvent struct {
	ID        uint64      // security_events.id
	CreatedAt time.Time   // security_events.created_at
	ActorType ActorType   // security_events.actor_type
	ActorID   *string     // security_events.actor_id (nullable)
	EventType string      // security_events.event_type
	Status    EventStatus // security_events.status
	Detail    *string     // security_events.detail (nullable)
}
