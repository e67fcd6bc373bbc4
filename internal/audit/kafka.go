package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"payment_validator/internal/domain"

	"github.com/IBM/sarama"
)

type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

func NewKafkaSink(brokers []string, topic string, logger *slog.Logger) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	sink := NewKafkaSinkWithProducer(producer, topic, logger)
	sink.logger.Info("Kafka audit sink created", slog.String("topic", topic), slog.Any("brokers", brokers))
	return sink, nil
}

func NewKafkaSinkWithProducer(producer sarama.SyncProducer, topic string, logger *slog.Logger) *KafkaSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaSink{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
}

// Append publishes the record keyed by request ID so every record of one
// request lands on the same partition.
func (s *KafkaSink) Append(ctx context.Context, record domain.AuditRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(record.RequestID),
		Value: sarama.ByteEncoder(data),
	}

	type result struct {
		partition int32
		offset    int64
		err       error
	}

	resultCh := make(chan result, 1)

	go func() {
		partition, offset, err := s.producer.SendMessage(msg)
		resultCh <- result{partition, offset, err}
	}()

	select {
	case res := <-resultCh:
		if res.err != nil {
			return fmt.Errorf("send audit record %s: %w", record.ID, res.err)
		}
		s.logger.DebugContext(ctx, "Audit record published",
			slog.String("audit_id", record.ID),
			slog.Int("partition", int(res.partition)),
			slog.Int64("offset", res.offset))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *KafkaSink) Close() error {
	if s.producer == nil {
		return nil
	}
	s.logger.Info("Closing kafka audit sink")
	return s.producer.Close()
}

// NoOpSink discards records when no audit transport is configured.
type NoOpSink struct {
	logger *slog.Logger
}

func NewNoOpSink(logger *slog.Logger) *NoOpSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoOpSink{logger: logger}
}

func (s *NoOpSink) Append(ctx context.Context, record domain.AuditRecord) error {
	s.logger.DebugContext(ctx, "Audit disabled, record discarded", slog.String("audit_id", record.ID))
	return nil
}
