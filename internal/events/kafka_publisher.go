package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/prepdesk/attempt-engine/internal/config"
)

// KafkaEventPublisher publishes events to a Kafka topic through watermill.
type KafkaEventPublisher struct {
	publisher message.Publisher
	topic     string
	logger    *slog.Logger
}

var _ EventPublisher = (*KafkaEventPublisher)(nil)

func NewKafkaEventPublisher(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaEventPublisher, error) {
	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:   cfg.Brokers,
			Marshaler: kafka.DefaultMarshaler{},
		},
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka publisher: %w", err)
	}

	return &KafkaEventPublisher{
		publisher: publisher,
		topic:     cfg.Topic,
		logger:    logger,
	}, nil
}

func (p *KafkaEventPublisher) Publish(_ context.Context, event *Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := message.NewMessage(event.ID, payload)
	msg.Metadata.Set("event_type", event.Type)
	msg.Metadata.Set("source", event.Source)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", event.Type, err)
	}

	p.logger.Debug("event published", "event_id", event.ID, "event_type", event.Type)
	return nil
}

func (p *KafkaEventPublisher) Close() error {
	return p.publisher.Close()
}
