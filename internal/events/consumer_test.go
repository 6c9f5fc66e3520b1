package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func testMessage() *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic: OrderCreatedTopic,
		Key:   []byte("42"),
		Value: []byte(`{"order_id":42}`),
	}
}

func TestProcessSucceedsAfterRetry(t *testing.T) {
	dlq := mocks.NewSyncProducer(t, NewProducerConfig())
	defer dlq.Close()

	calls := 0
	handler := HandlerFunc(func(ctx context.Context, topic string, payload []byte) error {
		calls++
		if calls < 2 {
			return errors.New("hub busy")
		}
		return nil
	})

	h := newClaimHandler(handler, dlq, fastPolicy(), quietLogger())
	require.NoError(t, h.process(context.Background(), testMessage()))

	assert.Equal(t, 2, calls)
	m := h.snapshot()
	assert.Equal(t, int64(1), m.Succeeded)
	assert.Equal(t, int64(1), m.Retried)
	assert.Equal(t, int64(0), m.DeadLettered)
}

func TestProcessDeadLettersAfterExhaustingRetries(t *testing.T) {
	dlq := mocks.NewSyncProducer(t, NewProducerConfig())
	defer dlq.Close()
	dlq.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != DLQTopic {
			return errors.New("expected DLQ topic, got " + msg.Topic)
		}
		return nil
	})

	calls := 0
	handler := HandlerFunc(func(ctx context.Context, topic string, payload []byte) error {
		calls++
		return errors.New("always failing")
	})

	h := newClaimHandler(handler, dlq, fastPolicy(), quietLogger())
	require.NoError(t, h.process(context.Background(), testMessage()))

	assert.Equal(t, 3, calls)
	assert.Equal(t, int64(1), h.snapshot().DeadLettered)
}

func TestProcessSkipsRetriesForPermanentErrors(t *testing.T) {
	dlq := mocks.NewSyncProducer(t, NewProducerConfig())
	defer dlq.Close()
	dlq.ExpectSendMessageAndSucceed()

	calls := 0
	handler := HandlerFunc(func(ctx context.Context, topic string, payload []byte) error {
		calls++
		return Permanent(errors.New("malformed payload"))
	})

	h := newClaimHandler(handler, dlq, fastPolicy(), quietLogger())
	require.NoError(t, h.process(context.Background(), testMessage()))

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(0), h.snapshot().Retried)
}

func TestProcessStopsOnCancelledContext(t *testing.T) {
	dlq := mocks.NewSyncProducer(t, NewProducerConfig())
	defer dlq.Close()

	ctx, cancel := context.WithCancel(context.Background())
	handler := HandlerFunc(func(ctx context.Context, topic string, payload []byte) error {
		cancel()
		return errors.New("transient")
	})

	h := newClaimHandler(handler, dlq, RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour, MaxDelay: time.Hour}, quietLogger())
	assert.ErrorIs(t, h.process(ctx, testMessage()), context.Canceled)
	assert.Equal(t, int64(0), h.snapshot().DeadLettered)
}
