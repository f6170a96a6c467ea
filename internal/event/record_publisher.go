package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"impact-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PublishChannel is the part of *amqp.Channel the publisher needs.
type PublishChannel interface {
	queueDeclarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// RecordPublisher announces record writes on RecordEventsQueue.
type RecordPublisher struct {
	mu       sync.Mutex
	channel  PublishChannel
	declared bool

	messagesPublished atomic.Int64
	messagesFailed    atomic.Int64
}

func NewRecordPublisher(channel PublishChannel) *RecordPublisher {
	return &RecordPublisher{channel: channel}
}

func (p *RecordPublisher) PublishRecordChanged(ctx context.Context, event models.RecordChangedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to marshal record event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.declared {
		if err := declareRecordQueue(p.channel); err != nil {
			p.messagesFailed.Add(1)
			return err
		}
		p.declared = true
	}

	err = p.channel.PublishWithContext(
		ctx,
		"",                // exchange
		RecordEventsQueue, // routing key
		false,             // mandatory
		false,             // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		p.messagesFailed.Add(1)
		return fmt.Errorf("failed to publish record event: %w", err)
	}

	p.messagesPublished.Add(1)
	slog.Debug("Record event published",
		"queue", RecordEventsQueue,
		"record_id", event.RecordID,
		"kind", event.Kind,
	)
	return nil
}

// Stats returns the published and failed message counters.
func (p *RecordPublisher) Stats() (published, failed int64) {
	return p.messagesPublished.Load(), p.messagesFailed.Load()
}

// LocalPublisher delivers events straight to a handler in-process. It is
// used when no broker is configured.
type LocalPublisher struct {
	handler RecordEventHandler
}

func NewLocalPublisher(handler RecordEventHandler) *LocalPublisher {
	return &LocalPublisher{handler: handler}
}

func (p *LocalPublisher) PublishRecordChanged(ctx context.Context, event models.RecordChangedEvent) error {
	if p.handler == nil {
		return nil
	}
	return p.handler.HandleRecordChanged(ctx, event)
}
