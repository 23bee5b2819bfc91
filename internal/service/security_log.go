package service

import (
	"context"
	"time"

	"github.com/iliyamo/iot-device-console/internal/model"
)

// EventPublisher fans a recorded event out to the message broker so
// external consumers can tail the audit trail. Publishing is as
// best-effort as the database write.
type EventPublisher interface {
	PublishSecurityEvent(ctx context.Context, ev model.SecurityEvent) error
}

// SecurityLogger records authentication and authorization decisions.
// Record never fails: any storage or broker error is swallowed, since
// audit logging must not abort the operation it observes. The write
// uses its own short deadline detached from the request context so a
// cancelled request still leaves a trace.
type SecurityLogger struct {
	Events    EventStore
	Publisher EventPublisher // optional
}

func NewSecurityLogger(events EventStore, pub EventPublisher) *SecurityLogger {
	return &SecurityLogger{Events: events, Publisher: pub}
}

// Record appends one event. Empty actorID and detail become NULL.
func (l *SecurityLogger) Record(actorType model.ActorType, actorID, eventType string, status model.EventStatus, detail string) {
	if l == nil || l.Events == nil {
		return
	}
	ev := model.SecurityEvent{
		ActorType: actorType,
		EventType: eventType,
		Status:    status,
	}
	if actorID != "" {
		ev.ActorID = &actorID
	}
	if detail != "" {
		ev.Detail = &detail
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := l.Events.Insert(ctx, &ev); err != nil {
		return
	}
	if l.Publisher != nil {
		_ = l.Publisher.PublishSecurityEvent(ctx, ev)
	}
}

// Append writes an event and surfaces failures. Used by the admin
// simulation endpoint, where the event is the operation itself.
func (l *SecurityLogger) Append(ctx context.Context, ev *model.SecurityEvent) error {
	if err := l.Events.Insert(ctx, ev); err != nil {
		return err
	}
	if l.Publisher != nil {
		_ = l.Publisher.PublishSecurityEvent(ctx, *ev)
	}
	return nil
}

// Recent returns the newest events up to limit.
func (l *SecurityLogger) Recent(ctx context.Context, limit int) ([]model.SecurityEvent, error) {
	return l.Events.ListRecent(ctx, limit)
}
