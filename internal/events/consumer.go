package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"
)

// Handler processes one raw event payload from the given topic.
type Handler interface {
	HandleEvent(ctx context.Context, topic string, payload []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, topic string, payload []byte) error

func (f HandlerFunc) HandleEvent(ctx context.Context, topic string, payload []byte) error {
	return f(ctx, topic, payload)
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the message goes straight to the DLQ.
func Permanent(err error) error {
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var pe permanentError
	return errors.As(err, &pe)
}

type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
	}
}

type ConsumerMetrics struct {
	Processed    int64 `json:"processed"`
	Succeeded    int64 `json:"succeeded"`
	Retried      int64 `json:"retried"`
	DeadLettered int64 `json:"dead_lettered"`
}

// DeadLetterMetadata travels in the "metadata" header of DLQ messages.
type DeadLetterMetadata struct {
	Attempts      int       `json:"attempts"`
	OriginalTopic string    `json:"original_topic"`
	ErrorMessage  string    `json:"error_message"`
	FailedAt      time.Time `json:"failed_at"`
}

type KafkaConsumer struct {
	group  sarama.ConsumerGroup
	dlq    sarama.SyncProducer
	claims *claimHandler
	topics []string
	logger *logrus.Logger
}

func NewKafkaConsumer(brokers []string, groupID string, handler Handler, policy RetryPolicy, logger *logrus.Logger) (*KafkaConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Version = sarama.V2_6_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	dlq, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		group.Close()
		return nil, fmt.Errorf("failed to create producer for DLQ: %w", err)
	}

	return &KafkaConsumer{
		group:  group,
		dlq:    dlq,
		claims: newClaimHandler(handler, dlq, policy, logger),
		topics: []string{OrderCreatedTopic, OrderItemAddedTopic},
		logger: logger,
	}, nil
}

// Start consumes until ctx is cancelled. Consume returns on every rebalance,
// so it is called in a loop.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	for {
		if err := c.group.Consume(ctx, c.topics, c.claims); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			c.logger.WithError(err).Error("Error consuming from Kafka")
			return err
		}
		if ctx.Err() != nil {
			c.logger.Info("Kafka consumer context cancelled")
			return nil
		}
	}
}

func (c *KafkaConsumer) Metrics() ConsumerMetrics {
	return c.claims.snapshot()
}

func (c *KafkaConsumer) Close() error {
	if err := c.dlq.Close(); err != nil {
		c.logger.WithError(err).Error("Failed to close DLQ producer")
	}
	return c.group.Close()
}

type claimHandler struct {
	handler Handler
	dlq     sarama.SyncProducer
	policy  RetryPolicy
	logger  *logrus.Logger

	processed    atomic.Int64
	succeeded    atomic.Int64
	retried      atomic.Int64
	deadLettered atomic.Int64
}

func newClaimHandler(handler Handler, dlq sarama.SyncProducer, policy RetryPolicy, logger *logrus.Logger) *claimHandler {
	return &claimHandler{handler: handler, dlq: dlq, policy: policy, logger: logger}
}

func (h *claimHandler) Setup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session setup")
	return nil
}

func (h *claimHandler) Cleanup(sarama.ConsumerGroupSession) error {
	h.logger.Info("Kafka consumer group session cleanup")
	return nil
}

func (h *claimHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.process(session.Context(), message); err != nil {
				// Context cancelled mid-retry: leave the offset uncommitted.
				return nil
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// process delivers a message with retries and dead-letters it when they run
// out. It only returns an error when ctx is cancelled.
func (h *claimHandler) process(ctx context.Context, message *sarama.ConsumerMessage) error {
	h.processed.Add(1)
	log := h.logger.WithFields(logrus.Fields{
		"topic":     message.Topic,
		"partition": message.Partition,
		"offset":    message.Offset,
		"key":       string(message.Key),
	})

	delay := h.policy.InitialDelay
	attempts := 0
	var err error
	for {
		attempts++
		err = h.handler.HandleEvent(ctx, message.Topic, message.Value)
		if err == nil {
			h.succeeded.Add(1)
			return nil
		}
		if isPermanent(err) || attempts > h.policy.MaxRetries {
			break
		}

		log.WithError(err).WithFields(logrus.Fields{
			"attempt": attempts,
			"delay":   delay,
		}).Warn("Retryable error processing event")
		h.retried.Add(1)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if delay > h.policy.MaxDelay {
			delay = h.policy.MaxDelay
		}
	}

	log.WithError(err).WithField("attempts", attempts).Error("Failed to process event")
	if dlqErr := h.sendToDLQ(message, attempts, err); dlqErr != nil {
		log.WithError(dlqErr).Error("Failed to send message to DLQ")
		return nil
	}
	h.deadLettered.Add(1)
	return nil
}

func (h *claimHandler) sendToDLQ(message *sarama.ConsumerMessage, attempts int, processingErr error) error {
	metadata, err := json.Marshal(DeadLetterMetadata{
		Attempts:      attempts,
		OriginalTopic: message.Topic,
		ErrorMessage:  processingErr.Error(),
		FailedAt:      time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	partition, offset, err := h.dlq.SendMessage(&sarama.ProducerMessage{
		Topic: DLQTopic,
		Key:   sarama.ByteEncoder(message.Key),
		Value: sarama.ByteEncoder(message.Value),
		Headers: []sarama.RecordHeader{
			{Key: []byte("metadata"), Value: metadata},
			{Key: []byte("original_topic"), Value: []byte(message.Topic)},
			{Key: []byte("original_partition"), Value: []byte(strconv.Itoa(int(message.Partition)))},
			{Key: []byte("original_offset"), Value: []byte(strconv.FormatInt(message.Offset, 10))},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send to DLQ: %w", err)
	}

	h.logger.WithFields(logrus.Fields{
		"dlq_topic":     DLQTopic,
		"dlq_partition": partition,
		"dlq_offset":    offset,
		"original_key":  string(message.Key),
	}).Warn("Message sent to dead letter queue")
	return nil
}

func (h *claimHandler) snapshot() ConsumerMetrics {
	return ConsumerMetrics{
		Processed:    h.processed.Load(),
		Succeeded:    h.succeeded.Load(),
		Retried:      h.retried.Load(),
		DeadLettered: h.deadLettered.Load(),
	}
}
