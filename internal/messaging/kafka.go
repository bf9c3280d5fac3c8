package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/internal/config"
	"github.com/temcen/shoprank/internal/validation"
	"github.com/temcen/shoprank/pkg/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// EventPublisher writes recorded behavior events to Kafka, keyed by user.
type EventPublisher struct {
	writer    messageWriter
	validator *validation.SchemaValidator
	topic     string
	logger    *logrus.Logger
}

func NewEventPublisher(cfg *config.Config, validator *validation.SchemaValidator, logger *logrus.Logger) *EventPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.BehaviorEvents,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
		BatchSize:    100,
	}
	return newEventPublisher(writer, validator, cfg.Kafka.Topics.BehaviorEvents, logger)
}

func newEventPublisher(writer messageWriter, validator *validation.SchemaValidator, topic string, logger *logrus.Logger) *EventPublisher {
	return &EventPublisher{
		writer:    writer,
		validator: validator,
		topic:     topic,
		logger:    logger,
	}
}

func (p *EventPublisher) PublishBehaviorEvent(ctx context.Context, event *models.BehaviorEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal behavior event: %w", err)
	}

	if p.validator != nil {
		if err := p.validator.ValidateBehaviorEvent(payload).Err(); err != nil {
			return fmt.Errorf("behavior event rejected: %w", err)
		}
	}

	message := kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID.String())},
			{Key: "action", Value: []byte(event.Action)},
			{Key: "timestamp", Value: []byte(event.Timestamp.Format(time.RFC3339))},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to write behavior event to Kafka: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id": event.ID,
		"action":   event.Action,
		"topic":    p.topic,
	}).Debug("Behavior event published")

	return nil
}

func (p *EventPublisher) Close() error {
	return p.writer.Close()
}

// OrderApplier folds order events into the personalization caches.
type OrderApplier interface {
	ApplyOrder(ctx context.Context, order models.OrderEvent) error
}

// OrderEventConsumer replays order events as purchases. Payloads that fail
// schema validation go straight to the dead letter topic, failed applies
// are retried with exponential backoff first.
type OrderEventConsumer struct {
	reader     messageReader
	dlqWriter  messageWriter
	validator  *validation.SchemaValidator
	applier    OrderApplier
	topic      string
	maxRetries int
	baseDelay  time.Duration
	logger     *logrus.Logger
}

func NewOrderEventConsumer(cfg *config.Config, validator *validation.SchemaValidator, applier OrderApplier, logger *logrus.Logger) *OrderEventConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topics.OrderEvents,
		GroupID:        cfg.Kafka.GroupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	dlqWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topics.OrderEventsDLQ,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	c := newOrderEventConsumer(reader, dlqWriter, validator, applier, logger)
	c.topic = cfg.Kafka.Topics.OrderEvents
	c.maxRetries = cfg.Kafka.MaxRetries
	c.baseDelay = cfg.Kafka.RetryBackoff
	return c
}

func newOrderEventConsumer(reader messageReader, dlqWriter messageWriter, validator *validation.SchemaValidator, applier OrderApplier, logger *logrus.Logger) *OrderEventConsumer {
	return &OrderEventConsumer{
		reader:     reader,
		dlqWriter:  dlqWriter,
		validator:  validator,
		applier:    applier,
		topic:      "order-events",
		maxRetries: 3,
		baseDelay:  time.Second,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled.
func (c *OrderEventConsumer) Run(ctx context.Context) error {
	for {
		message, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.WithError(err).Error("Failed to read message from Kafka")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.baseDelay):
			}
			continue
		}

		c.handle(ctx, message)
	}
}

func (c *OrderEventConsumer) handle(ctx context.Context, message kafka.Message) {
	if c.validator != nil {
		if err := c.validator.ValidateOrderEvent(message.Value).Err(); err != nil {
			c.logger.WithError(err).WithField("offset", message.Offset).Warn("Invalid order event")
			c.deadLetter(ctx, message, err)
			return
		}
	}

	var order models.OrderEvent
	if err := json.Unmarshal(message.Value, &order); err != nil {
		c.logger.WithError(err).WithField("offset", message.Offset).Warn("Failed to unmarshal order event")
		c.deadLetter(ctx, message, err)
		return
	}

	if err := c.processWithRetry(ctx, order); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.logger.WithError(err).WithField("order_id", order.OrderID).Error("Failed to apply order event after retries")
		c.deadLetter(ctx, message, err)
	}
}

func (c *OrderEventConsumer) processWithRetry(ctx context.Context, order models.OrderEvent) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.baseDelay * time.Duration(1<<uint(attempt-1))
			c.logger.WithFields(logrus.Fields{
				"order_id": order.OrderID,
				"attempt":  attempt,
				"delay":    delay,
			}).Info("Retrying order event")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if err = c.applier.ApplyOrder(ctx, order); err == nil {
			c.logger.WithFields(logrus.Fields{
				"order_id": order.OrderID,
				"user_id":  order.UserID,
				"status":   order.Status,
			}).Debug("Order event applied")
			return nil
		}

		c.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.OrderID,
			"attempt":  attempt,
		}).Warn("Order event processing failed")
	}

	return fmt.Errorf("max retries exceeded: %w", err)
}

func (c *OrderEventConsumer) deadLetter(ctx context.Context, message kafka.Message, cause error) {
	dlqMessage := map[string]interface{}{
		"original_message": json.RawMessage(message.Value),
		"error":            cause.Error(),
		"dlq_timestamp":    time.Now(),
	}
	if !json.Valid(message.Value) {
		dlqMessage["original_message"] = string(message.Value)
	}

	dlqBytes, err := json.Marshal(dlqMessage)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal DLQ message")
		return
	}

	err = c.dlqWriter.WriteMessages(ctx, kafka.Message{
		Key:   message.Key,
		Value: dlqBytes,
		Headers: []kafka.Header{
			{Key: "original_topic", Value: []byte(c.topic)},
			{Key: "error", Value: []byte(cause.Error())},
		},
	})
	if err != nil {
		c.logger.WithError(err).Error("Failed to send order event to DLQ")
		return
	}

	c.logger.WithField("error", cause.Error()).Warn("Order event sent to DLQ")
}

func (c *OrderEventConsumer) Close() error {
	var errs []error

	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close consumer: %w", err))
	}
	if err := c.dlqWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close DLQ writer: %w", err))
	}

	return errors.Join(errs...)
}
