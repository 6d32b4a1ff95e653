package events

import (
	"context"
	"log/slog"
	"sync"
)

// MockEventPublisher records events in memory. Used in tests and as the
// publisher when no Kafka brokers are configured.
type MockEventPublisher struct {
	mu     sync.Mutex
	events []Event
	logger *slog.Logger
}

var _ EventPublisher = (*MockEventPublisher)(nil)

func NewMockEventPublisher(logger *slog.Logger) *MockEventPublisher {
	return &MockEventPublisher{logger: logger}
}

func (p *MockEventPublisher) Publish(_ context.Context, event *Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, *event)
	if p.logger != nil {
		p.logger.Debug("event recorded", "event_id", event.ID, "event_type", event.Type)
	}
	return nil
}

func (p *MockEventPublisher) Close() error { return nil }

func (p *MockEventPublisher) GetPublishedEvents() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

func (p *MockEventPublisher) ClearEvents() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
