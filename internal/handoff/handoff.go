// Package handoff is the ephemeral channel the start/resume pages use to hand
// an attempt payload to the session loader without a second network round
// trip. Keys are write-once and read-once: a Put on a live key fails, and a
// Take consumes the value so a second read cannot exist. It is not a durable
// store and never carries tokens or secrets.
package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/prepdesk/attempt-engine/internal/models"
)

var (
	ErrKeyExists = errors.New("handoff: key already written")
	ErrNotFound  = errors.New("handoff: no payload")
)

// Payload is the attempt state handed from the initiating page to the
// attempt page.
type Payload struct {
	AttemptID string            `json:"attempt_id"`
	TestID    string            `json:"test_id"`
	Title     string            `json:"title"`
	EndTime   time.Time         `json:"end_time"`
	Questions []models.Question `json:"questions"`
}

// Channel is the write-once/read-once contract. Implementations expire unread
// values after a TTL so abandoned handoffs do not accumulate.
type Channel interface {
	Put(ctx context.Context, key string, p *Payload) error
	Take(ctx context.Context, key string) (*Payload, error)
}

func FreshKey(attemptID string) string {
	return "handoff:fresh:" + attemptID
}

func ResumeKey(attemptID string) string {
	return "handoff:resume:" + attemptID
}
