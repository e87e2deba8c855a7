package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/passgage/auth-gateway/internal/core/domain"
	"github.com/passgage/auth-gateway/internal/core/port"
	"github.com/passgage/auth-gateway/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.SecurityEventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed security event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type eventEnvelope struct {
	EventID   string            `json:"event_id"`
	EventType string            `json:"event_type"`
	CallerID  string            `json:"caller_id"`
	Severity  string            `json:"severity"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Details   map[string]any    `json:"details,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// PublishSecurityEvent publishes a gateway security event to the broker.
func (p *EventPublisher) PublishSecurityEvent(ctx context.Context, event domain.SecurityEvent) error {
	id := event.ID
	if id == "" {
		id = uuid.NewString()
	}

	ts := event.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	metadata := map[string]string{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: string(event.Type),
		CallerID:  event.CallerID,
		Severity:  string(event.Severity),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Details:   event.Details,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName("security." + string(event.Type)),
		Key:   sarama.StringEncoder(event.CallerID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close shuts down the underlying producer.
func (p *EventPublisher) Close() error {
	return p.producer.Close()
}

var _ port.SecurityEventPublisher = (*EventPublisher)(nil)
