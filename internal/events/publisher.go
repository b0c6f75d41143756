package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chatpulse/internal/adapters/kafka"
	"chatpulse/internal/metrics"
	"chatpulse/pkg/errors"
	"chatpulse/pkg/logger"
)

// AnalysisCompletedEvent announces a finished pipeline run to downstream
// consumers (dashboards, alerting). It carries the run's headline numbers,
// not the full result; consumers fetch details from storage.
type AnalysisCompletedEvent struct {
	EventID        string    `json:"event_id"`
	ChannelID      string    `json:"channel_id"`
	ChannelName    string    `json:"channel_name,omitempty"`
	MessageCount   int       `json:"message_count"`
	MemberCount    int       `json:"member_count"`
	EventCount     int       `json:"event_count"`
	TopUserID      string    `json:"top_user_id,omitempty"`
	TopUserScore   float64   `json:"top_user_score,omitempty"`
	LLMCallCount   int       `json:"llm_call_count"`
	DurationMillis int64     `json:"duration_ms"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Publisher publishes pipeline events to Kafka
type Publisher struct {
	producer *kafka.Producer
	topic    string
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer *kafka.Producer, topic string) *Publisher {
	return &Publisher{
		producer: producer,
		topic:    topic,
		log:      logger.Get().With("component", "event_publisher"),
	}
}

// PublishAnalysisCompleted publishes one completion event keyed by channel,
// so per-channel ordering is preserved across partitions
func (p *Publisher) PublishAnalysisCompleted(ctx context.Context, event *AnalysisCompletedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
	if event.CompletedAt.IsZero() {
		event.CompletedAt = time.Now().UTC()
	}

	err := p.producer.Publish(ctx, p.topic, event.ChannelID, event)
	metrics.KafkaMessages.WithLabelValues(p.topic, statusLabel(err)).Inc()
	if err != nil {
		return errors.Wrap(err, "publish analysis completed")
	}

	p.log.Debugf("Published analysis.completed for channel %s", event.ChannelID)
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
