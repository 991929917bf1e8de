package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"log/slog"

	"github.com/IBM/sarama"
)

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) error
	Close() error
}

type SyncProducer struct {
	producer sarama.SyncProducer
	logger   *slog.Logger
}

func NewSyncProducer(brokers []string, logger *slog.Logger) (*SyncProducer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	producer, err := sarama.NewSyncProducer(brokers, newProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &SyncProducer{producer: producer, logger: logger}, nil
}

// newProducerConfig enables idempotent, fully acknowledged writes. Idempotence
// requires at most one in-flight request per connection.
func newProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Retry.Backoff = 250 * time.Millisecond
	return cfg
}

func (p *SyncProducer) PublishJSON(ctx context.Context, topic, key string, value any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	})
	if err != nil {
		p.logger.Error("event publish failed", "topic", topic, "error", err)
		return fmt.Errorf("event publish failed: %w", err)
	}
	return nil
}

func (p *SyncProducer) Close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// NopPublisher is used when no broker is configured (dev/test).
type NopPublisher struct{}

func (NopPublisher) PublishJSON(context.Context, string, string, any) error { return nil }

func (NopPublisher) Close() error { return nil }
