package events

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestProducerConfig(t *testing.T) {
	cfg := newProducerConfig()

	// The version must be one the pinned client library defines.
	if cfg.Version != sarama.V3_6_0_0 {
		t.Fatalf("unexpected protocol version %v", cfg.Version)
	}
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("expected WaitForAll acks, got %v", cfg.Producer.RequiredAcks)
	}
	if !cfg.Producer.Idempotent {
		t.Fatalf("expected idempotent producer")
	}
	if cfg.Net.MaxOpenRequests != 1 {
		t.Fatalf("idempotence requires one in-flight request, got %d", cfg.Net.MaxOpenRequests)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid producer config: %v", err)
	}
}

func TestNewSyncProducerRequiresBrokers(t *testing.T) {
	if _, err := NewSyncProducer(nil, nil); err == nil {
		t.Fatalf("expected error for empty broker list")
	}
}
