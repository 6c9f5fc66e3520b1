package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/jogardn/storefront/internal/circuitbreaker"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestPublishOrderCreated(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewProducerConfig())
	defer sp.Close()

	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event OrderCreatedEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.OrderID != 42 || event.ItemsCount != 2 || event.EventID == "" {
			return errors.New("unexpected event payload")
		}
		return nil
	})

	p := NewKafkaProducerFromSync(sp, circuitbreaker.NewManager(quietLogger()), quietLogger())
	err := p.PublishOrderCreated(context.Background(), OrderCreatedEvent{
		OrderID:    42,
		CustomerID: 7,
		ItemsCount: 2,
		Total:      decimal.RequireFromString("25.00"),
		CreatedAt:  time.Now(),
	})
	require.NoError(t, err)
}

func TestPublishOpensBreakerAfterRepeatedFailures(t *testing.T) {
	sp := mocks.NewSyncProducer(t, NewProducerConfig())
	defer sp.Close()
	for i := 0; i < 3; i++ {
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	breakers := circuitbreaker.NewManager(quietLogger())
	p := NewKafkaProducerFromSync(sp, breakers, quietLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := p.PublishOrderItemAdded(ctx, OrderItemAddedEvent{OrderID: 5, ProductID: 101, Amount: 3})
		assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	}

	// The fourth call never reaches the mock producer.
	err := p.PublishOrderItemAdded(ctx, OrderItemAddedEvent{OrderID: 5, ProductID: 101, Amount: 3})
	assert.ErrorIs(t, err, circuitbreaker.ErrOpen)
	assert.Equal(t, circuitbreaker.StateOpen, breakers.GetOrCreate(producerBreaker, circuitbreaker.Config{}).State())
}
