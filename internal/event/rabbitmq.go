package event

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"impact-service/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RecordEventsQueue carries RecordChangedEvent messages between instances.
const RecordEventsQueue = "impact_record_events"

// consumerPrefetch bounds unacked deliveries per consumer channel.
const consumerPrefetch = 20

// Broker is one AMQP connection with a channel reserved for publishing.
// Consumers open their own channel so a slow handler never stalls writes.
type Broker struct {
	conn      *amqp.Connection
	publishCh *amqp.Channel
}

func brokerURI(cfg config.RabbitMQConfig) (string, error) {
	port, err := strconv.Atoi(cfg.Port)
	if err != nil {
		return "", fmt.Errorf("invalid RABBITMQ_PORT %q: %w", cfg.Port, err)
	}
	uri := amqp.URI{
		Scheme:   "amqp",
		Host:     cfg.Host,
		Port:     port,
		Username: cfg.Username,
		Password: cfg.Password,
		Vhost:    "/",
	}
	return uri.String(), nil
}

func ConnectBroker(cfg config.RabbitMQConfig) (*Broker, error) {
	uri, err := brokerURI(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := amqp.DialConfig(uri, amqp.Config{
		Heartbeat: 10 * time.Second,
		Properties: amqp.Table{
			"connection_name": "impact-service",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ at %s:%s: %w", cfg.Host, cfg.Port, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	slog.Info("rabbitmq connected", "host", cfg.Host, "port", cfg.Port)
	return &Broker{conn: conn, publishCh: ch}, nil
}

func (b *Broker) PublishChannel() *amqp.Channel { return b.publishCh }

// ConsumerChannel opens a channel with a bounded prefetch.
func (b *Broker) ConsumerChannel() (*amqp.Channel, error) {
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open consumer channel: %w", err)
	}
	if err := ch.Qos(consumerPrefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to set prefetch: %w", err)
	}
	return ch, nil
}

// Close closes the connection, which also closes every channel on it.
func (b *Broker) Close() error {
	if err := b.conn.Close(); err != nil && err != amqp.ErrClosed {
		slog.Error("failed to close rabbitmq connection", "error", err)
		return err
	}
	slog.Info("rabbitmq connection closed")
	return nil
}

type queueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// declareRecordQueue declares the durable events queue. Events older than
// the aggregate TTL are worthless, so the broker drops them.
func declareRecordQueue(ch queueDeclarer) error {
	args := amqp.Table{"x-message-ttl": int32(time.Hour / time.Millisecond)}
	if _, err := ch.QueueDeclare(RecordEventsQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", RecordEventsQueue, err)
	}
	return nil
}
