// Package events publishes pipeline events to the broadcast sink. Delivery is
// fire-and-forget with at-least-once semantics; failures are logged, never
// propagated into the pipeline.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vaibhavgarg230/trustlens-sub001/internal/config"
	"github.com/vaibhavgarg230/trustlens-sub001/internal/models"
)

// ReviewStatusUpdated announces a review verdict change.
type ReviewStatusUpdated struct {
	ReviewID  string                `json:"review_id"`
	NewStatus models.DecisionStatus `json:"new_status"`
	DecidedBy string                `json:"decided_by"`
	Timestamp time.Time             `json:"timestamp"`
}

// BulkOperationCompleted announces a finished batch run.
type BulkOperationCompleted struct {
	Operation    string    `json:"operation"`
	SuccessCount int       `json:"success_count"`
	FailCount    int       `json:"fail_count"`
	Timestamp    time.Time `json:"timestamp"`
}

// AlertRaised announces a new alert.
type AlertRaised struct {
	Type        string          `json:"type"`
	TargetID    string          `json:"target_id"`
	Severity    models.Severity `json:"severity"`
	Description string          `json:"description"`
	Data        models.JSONB    `json:"data,omitempty"`
}

// Publisher writes pipeline events to Kafka.
type Publisher struct {
	writer *kafka.Writer
	topics config.TopicsConfig
	logger *zap.Logger
}

// NewPublisher creates a new event publisher.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &Publisher{
		writer: writer,
		topics: cfg.Topics,
		logger: logger.With(zap.String("component", "event_publisher")),
	}
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

// PublishReviewStatusUpdated emits a reviewStatusUpdated event.
func (p *Publisher) PublishReviewStatusUpdated(ctx context.Context, event ReviewStatusUpdated) {
	p.publish(ctx, p.topics.ReviewStatusUpdated, event.ReviewID, event)
}

// PublishBulkOperationCompleted emits a bulkOperationCompleted event.
func (p *Publisher) PublishBulkOperationCompleted(ctx context.Context, event BulkOperationCompleted) {
	p.publish(ctx, p.topics.BulkOperationCompleted, event.Operation, event)
}

// PublishAlertRaised emits an alertRaised event.
func (p *Publisher) PublishAlertRaised(ctx context.Context, event AlertRaised) {
	p.publish(ctx, p.topics.AlertRaised, event.TargetID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, payload interface{}) {
	value, err := json.Marshal(payload)
	if err != nil {
		p.logger.Error("failed to encode event", zap.String("topic", topic), zap.Error(err))
		return
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		p.logger.Error("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
