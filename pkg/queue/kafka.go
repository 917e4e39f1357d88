package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
)

const kafkaTopic = "flowgrid.runs"

// ErrKafkaBrokersNotConfigured is returned when KAFKA_BROKERS is unset.
var ErrKafkaBrokersNotConfigured = errors.New("KAFKA_BROKERS environment variable is not set or empty")

// KafkaQueue is the broker-backed transport for multi-worker deployments
// where consumer groups handle delivery distribution.
type KafkaQueue struct {
	publisher   *kafka.Publisher
	subscriber  *kafka.Subscriber
	concurrency int
	logger      *slog.Logger
	wg          sync.WaitGroup
}

func NewKafkaQueue(logger *slog.Logger, consumerGroup string) (*KafkaQueue, error) {
	brokers := strings.Split(os.Getenv("KAFKA_BROKERS"), ",")
	if len(brokers) == 0 || brokers[0] == "" {
		return nil, ErrKafkaBrokersNotConfigured
	}

	watermillLogger := watermill.NewSlogLogger(logger)

	saramaSubscriberConfig := kafka.DefaultSaramaSubscriberConfig()
	saramaSubscriberConfig.Consumer.Offsets.Initial = sarama.OffsetOldest

	subscriber, err := kafka.NewSubscriber(
		kafka.SubscriberConfig{
			Brokers:               brokers,
			Unmarshaler:           kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaSubscriberConfig,
			ConsumerGroup:         "cg-" + consumerGroup,
			OTELEnabled:           true,
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	saramaPublisherConfig := sarama.NewConfig()
	saramaPublisherConfig.Producer.Return.Successes = true

	publisher, err := kafka.NewPublisher(
		kafka.PublisherConfig{
			Brokers:               brokers,
			Marshaler:             kafka.DefaultMarshaler{},
			OverwriteSaramaConfig: saramaPublisherConfig,
			OTELEnabled:           true,
		},
		watermillLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	return &KafkaQueue{
		publisher:   publisher,
		subscriber:  subscriber,
		concurrency: DefaultConcurrency,
		logger:      logger.With("module", "kafka_queue"),
	}, nil
}

func (q *KafkaQueue) Publish(_ context.Context, delivery Delivery) error {
	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("failed to marshal delivery: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)

	err = q.publisher.Publish(kafkaTopic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish delivery: %w", err)
	}

	return nil
}

func (q *KafkaQueue) Consume(ctx context.Context, callback Callback) error {
	messages, err := q.subscriber.Subscribe(ctx, kafkaTopic)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	q.wg.Add(1)

	go q.consume(ctx, messages, callback)

	return nil
}

func (q *KafkaQueue) consume(ctx context.Context, messages <-chan *message.Message, callback Callback) {
	defer q.wg.Done()

	semaphore := make(chan struct{}, q.concurrency)

	for msg := range messages {
		var delivery Delivery

		err := json.Unmarshal(msg.Payload, &delivery)
		if err != nil {
			q.logger.ErrorContext(ctx, "failed to unmarshal delivery", "error", err)
			msg.Ack()

			continue
		}

		semaphore <- struct{}{}

		q.wg.Add(1)

		go func(msg *message.Message, delivery Delivery) {
			defer q.wg.Done()
			defer func() { <-semaphore }()

			err := callback(ctx, delivery)
			if err != nil {
				q.logger.ErrorContext(ctx, "delivery handler failed",
					"workflow_run_id", delivery.WorkflowRunID, "error", err)
			}

			msg.Ack()
		}(msg, delivery)
	}
}

func (q *KafkaQueue) Close(_ context.Context) error {
	err := q.publisher.Close()
	if err != nil {
		return fmt.Errorf("failed to close kafka publisher: %w", err)
	}

	err = q.subscriber.Close()
	if err != nil {
		return fmt.Errorf("failed to close kafka subscriber: %w", err)
	}

	q.wg.Wait()

	return nil
}
