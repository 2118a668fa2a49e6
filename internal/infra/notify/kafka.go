package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/vietddude/whalewatch/internal/core/apperr"
	"github.com/vietddude/whalewatch/internal/core/domain"
)

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes alert payloads to a topic, keyed by chain and address so
// alerts of one wallet stay ordered within a partition.
type Kafka struct {
	topic  string
	writer messageWriter
}

// NewKafka creates a Kafka sink.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, apperr.New(apperr.KindConfig, "kafka", "brokers are required")
	}
	if cfg.Topic == "" {
		return nil, apperr.New(apperr.KindConfig, "kafka", "topic is required")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Kafka{topic: cfg.Topic, writer: w}, nil
}

func (k *Kafka) Name() string { return "kafka" }

func (k *Kafka) Notify(ctx context.Context, alert *domain.Alert) error {
	v, err := json.Marshal(NewPayload(alert))
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(string(alert.Chain) + ":" + alert.Address),
		Value: v,
		Time:  alert.TriggeredAt,
		Headers: []kafka.Header{
			{Key: "version", Value: []byte(PayloadVersion)},
		},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return apperr.Wrap(apperr.KindNetwork, "kafka", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}
