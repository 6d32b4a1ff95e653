// Package events publishes attempt lifecycle events for downstream consumers
// (analytics, notifications). Publishing is best-effort: a failed publish is
// logged and never blocks the attempt flow.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SourceName    = "attempt-engine"
	SchemaVersion = "1.0"
)

// Event types emitted by the engine.
const (
	TypeAttemptStarted   = "attempt.started"
	TypeAttemptResumed   = "attempt.resumed"
	TypeAttemptSubmitted = "attempt.submitted"
	TypeAttemptExpired   = "attempt.expired"
)

type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps an event with identity, source and schema version.
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    SourceName,
		Version:   SchemaVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

// AttemptEvent is the payload for all attempt lifecycle events.
type AttemptEvent struct {
	AttemptID     string `json:"attempt_id"`
	TestID        string `json:"test_id"`
	UserID        string `json:"user_id"`
	AnsweredCount int    `json:"answered_count,omitempty"`
	ResultID      string `json:"result_id,omitempty"`
	EndReason     string `json:"end_reason,omitempty"`
}
