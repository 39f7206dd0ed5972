// Package redpanda publishes completed QA decisions to Redpanda/Kafka for
// downstream consumers (analytics, notification fan-out).
package redpanda

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"go.opentelemetry.io/otel"

	"github.com/fairyhunter13/intake-qa-agent/internal/domain"
)

// TopicDecisions is the topic completed decisions are published to.
const TopicDecisions = "intake-qa-decisions"

// Producer wraps a Kafka producer and implements domain.DecisionPublisher.
type Producer struct {
	client *kgo.Client
}

// NewProducer connects to the given brokers and ensures the topic exists.
func NewProducer(brokers []string) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no seed brokers provided")
	}
	tracer := kotel.NewTracer(kotel.TracerProvider(otel.GetTracerProvider()))
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequestRetries(5),
		kgo.WithHooks(kotel.NewKotel(kotel.WithTracer(tracer)).Hooks()...),
	)
	if err != nil {
		return nil, fmt.Errorf("redpanda client: %w", err)
	}
	if err := createTopicIfNotExists(context.Background(), client, TopicDecisions, 1, 1); err != nil {
		slog.Warn("topic creation failed, it may already exist",
			slog.String("topic", TopicDecisions), slog.Any("error", err))
	}
	return &Producer{client: client}, nil
}

// decisionEvent is the wire shape of one published decision.
type decisionEvent struct {
	ActivityID string          `json:"activity_id"`
	Decision   domain.Decision `json:"decision"`
}

// PublishDecision publishes one completed decision keyed by activity id so
// consumers see redeliveries for the same activity in order.
func (p *Producer) PublishDecision(ctx domain.Context, activityID string, d domain.Decision) error {
	b, err := json.Marshal(decisionEvent{ActivityID: activityID, Decision: d})
	if err != nil {
		return fmt.Errorf("op=queue.PublishDecision: %w", err)
	}
	rec := &kgo.Record{Topic: TopicDecisions, Key: []byte(activityID), Value: b}
	if err := p.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("op=queue.PublishDecision: %w", err)
	}
	slog.Debug("decision event published", slog.String("activity_id", activityID))
	return nil
}

// Ping checks broker connectivity for the readiness probe.
func (p *Producer) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// Close flushes and releases the underlying client.
func (p *Producer) Close() {
	p.client.Close()
}
