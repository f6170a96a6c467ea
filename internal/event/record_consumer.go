package event

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"impact-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RecordEventHandler reacts to a record write.
type RecordEventHandler interface {
	HandleRecordChanged(ctx context.Context, event models.RecordChangedEvent) error
}

// CacheInvalidator drops cached aggregates affected by a district.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, district string) error
}

// InvalidationHandler invalidates the district a record is in now and the
// one it was in before an edit moved it.
type InvalidationHandler struct {
	cache CacheInvalidator
}

func NewInvalidationHandler(cache CacheInvalidator) *InvalidationHandler {
	return &InvalidationHandler{cache: cache}
}

func (h *InvalidationHandler) HandleRecordChanged(ctx context.Context, event models.RecordChangedEvent) error {
	var errs []error
	if err := h.cache.Invalidate(ctx, event.District); err != nil {
		errs = append(errs, err)
	}
	if event.PreviousDistrict != "" && event.PreviousDistrict != event.District {
		if err := h.cache.Invalidate(ctx, event.PreviousDistrict); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ConsumeChannel is the part of *amqp.Channel the consumer needs.
type ConsumeChannel interface {
	queueDeclarer
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// RecordConsumer applies record events published by any instance.
type RecordConsumer struct {
	channel ConsumeChannel
	handler RecordEventHandler
}

func NewRecordConsumer(channel ConsumeChannel, handler RecordEventHandler) *RecordConsumer {
	return &RecordConsumer{channel: channel, handler: handler}
}

// Start declares the queue and processes deliveries until ctx is done or
// the channel closes.
func (c *RecordConsumer) Start(ctx context.Context) error {
	if err := declareRecordQueue(c.channel); err != nil {
		return err
	}

	msgs, err := c.channel.Consume(
		RecordEventsQueue,
		"",    // consumer tag (auto-generated)
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	slog.Info("Record event consumer started", "queue", RecordEventsQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("Record event consumer stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("Record event consumer channel closed")
					return
				}
				c.processMessage(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *RecordConsumer) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event models.RecordChangedEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		slog.Error("failed to unmarshal record event", "error", err)
		// malformed, drop it
		msg.Nack(false, false)
		return
	}

	if err := c.handler.HandleRecordChanged(ctx, event); err != nil {
		// entries expire on their own, so a failed invalidation is not retried
		slog.Warn("failed to handle record event",
			"record_id", event.RecordID,
			"district", event.District,
			"error", err,
		)
	}
	msg.Ack(false)
}
