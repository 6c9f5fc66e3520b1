package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/jogardn/storefront/internal/circuitbreaker"
	"github.com/sirupsen/logrus"
)

const producerBreaker = "kafka-producer"

// KafkaProducer publishes order events keyed by order id so every event of an
// order lands on the same partition.
type KafkaProducer struct {
	producer sarama.SyncProducer
	breaker  *circuitbreaker.CircuitBreaker
	logger   *logrus.Logger
	nowFunc  func() time.Time
}

func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0
	return config
}

func NewKafkaProducer(brokers []string, breakers *circuitbreaker.Manager, logger *logrus.Logger) (*KafkaProducer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, err
	}
	return NewKafkaProducerFromSync(producer, breakers, logger), nil
}

// NewKafkaProducerFromSync wraps an existing sarama producer.
func NewKafkaProducerFromSync(producer sarama.SyncProducer, breakers *circuitbreaker.Manager, logger *logrus.Logger) *KafkaProducer {
	return &KafkaProducer{
		producer: producer,
		breaker: breakers.GetOrCreate(producerBreaker, circuitbreaker.Config{
			MaxFailures: 3,
			Timeout:     30 * time.Second,
			MaxRequests: 1,
		}),
		logger:  logger,
		nowFunc: time.Now,
	}
}

func (p *KafkaProducer) PublishOrderCreated(ctx context.Context, event OrderCreatedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventTime = p.nowFunc()
	return p.publish(ctx, OrderCreatedTopic, event.OrderID, event)
}

func (p *KafkaProducer) PublishOrderItemAdded(ctx context.Context, event OrderItemAddedEvent) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	event.EventTime = p.nowFunc()
	return p.publish(ctx, OrderItemAddedTopic, event.OrderID, event)
}

func (p *KafkaProducer) publish(ctx context.Context, topic string, orderID int, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(strconv.Itoa(orderID)),
		Value: sarama.ByteEncoder(data),
	}

	var partition int32
	var offset int64
	err = p.breaker.Execute(ctx, func() error {
		var sendErr error
		partition, offset, sendErr = p.producer.SendMessage(msg)
		return sendErr
	})
	if err != nil {
		p.logger.WithError(err).WithField("topic", topic).Error("Failed to send message to Kafka")
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"order_id":  orderID,
	}).Info("Event published to Kafka")

	return nil
}

func (p *KafkaProducer) Close() error {
	return p.producer.Close()
}
