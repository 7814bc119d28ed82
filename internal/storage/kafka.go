package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaStorage publishes each execution record to a Kafka topic.
type KafkaStorage struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// KafkaConfig holds Kafka producer configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Logger  *zap.Logger
}

// NewKafkaStorage creates a producer for cfg.Topic.
func NewKafkaStorage(cfg *KafkaConfig) (*KafkaStorage, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}

	cfg.Logger.Info("kafka-storage-initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaStorage(writer, cfg.Topic, cfg.Logger), nil
}

func newKafkaStorage(writer messageWriter, topic string, logger *zap.Logger) *KafkaStorage {
	return &KafkaStorage{
		writer: writer,
		topic:  topic,
		logger: logger,
	}
}

// StoreExecution publishes the record as JSON keyed by execution id.
func (k *KafkaStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	start := time.Now()
	defer func() {
		StoreDuration.WithLabelValues("kafka").Observe(time.Since(start).Seconds())
	}()

	value, err := json.Marshal(record)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("kafka").Inc()
		return fmt.Errorf("marshal execution: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(record.ExecutionID),
		Value: value,
		Time:  record.FinishedAt,
	}

	err = k.writer.WriteMessages(ctx, msg)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("kafka").Inc()
		return fmt.Errorf("publish execution to %s: %w", k.topic, err)
	}

	k.logger.Debug("execution-published",
		zap.String("execution-id", record.ExecutionID),
		zap.String("topic", k.topic))

	return nil
}

// Close flushes and closes the producer.
func (k *KafkaStorage) Close() error {
	k.logger.Info("closing-kafka-storage")
	return k.writer.Close()
}
