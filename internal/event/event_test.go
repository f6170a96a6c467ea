package event

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"impact-service/internal/config"
	"impact-service/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []amqp.Publishing
	publishErr error
	deliveries chan amqp.Delivery
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Consume(_, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	return f.deliveries, nil
}

type fakeAcknowledger struct {
	mu      sync.Mutex
	acked   int
	nacked  int
	requeue bool
	done    chan struct{}
}

func newFakeAcknowledger() *fakeAcknowledger {
	return &fakeAcknowledger{done: make(chan struct{}, 10)}
}

func (a *fakeAcknowledger) Ack(uint64, bool) error {
	a.mu.Lock()
	a.acked++
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	a.nacked++
	a.requeue = requeue
	a.mu.Unlock()
	a.done <- struct{}{}
	return nil
}

func (a *fakeAcknowledger) Reject(uint64, bool) error { return nil }

type recordingInvalidator struct {
	mu        sync.Mutex
	districts []string
	err       error
}

func (r *recordingInvalidator) Invalidate(_ context.Context, district string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.districts = append(r.districts, district)
	return r.err
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.districts...)
}

func createTestEvent() models.RecordChangedEvent {
	return models.RecordChangedEvent{
		RecordID:     "rec-1",
		Kind:         models.RecordUpdated,
		Module:       models.ModuleVisit,
		District:     "Gulu",
		ActivityDate: "2024-09-10",
		Status:       models.RecordStatusSubmitted,
		OccurredAt:   time.Date(2025, time.March, 15, 9, 0, 0, 0, time.UTC),
	}
}

// ============================================================================
// PUBLISHER
// ============================================================================

func TestRecordPublisher_Publish(t *testing.T) {
	ch := &fakeChannel{}
	p := NewRecordPublisher(ch)

	require.NoError(t, p.PublishRecordChanged(context.Background(), createTestEvent()))
	require.NoError(t, p.PublishRecordChanged(context.Background(), createTestEvent()))

	assert.Equal(t, []string{RecordEventsQueue}, ch.declared, "queue declared once")
	require.Len(t, ch.published, 2)
	assert.Equal(t, "application/json", ch.published[0].ContentType)
	assert.Equal(t, amqp.Persistent, ch.published[0].DeliveryMode)

	var decoded models.RecordChangedEvent
	require.NoError(t, json.Unmarshal(ch.published[0].Body, &decoded))
	assert.Equal(t, "rec-1", decoded.RecordID)
	assert.Equal(t, "Gulu", decoded.District)

	published, failed := p.Stats()
	assert.Equal(t, int64(2), published)
	assert.Equal(t, int64(0), failed)
}

func TestRecordPublisher_PublishFailure(t *testing.T) {
	ch := &fakeChannel{publishErr: errors.New("channel closed")}
	p := NewRecordPublisher(ch)

	err := p.PublishRecordChanged(context.Background(), createTestEvent())
	assert.Error(t, err)
	_, failed := p.Stats()
	assert.Equal(t, int64(1), failed)
}

func TestLocalPublisher_DeliversToHandler(t *testing.T) {
	inv := &recordingInvalidator{}
	p := NewLocalPublisher(NewInvalidationHandler(inv))

	require.NoError(t, p.PublishRecordChanged(context.Background(), createTestEvent()))
	assert.Equal(t, []string{"Gulu"}, inv.calls())

	assert.NoError(t, NewLocalPublisher(nil).PublishRecordChanged(context.Background(), createTestEvent()))
}

// ============================================================================
// INVALIDATION HANDLER
// ============================================================================

func TestInvalidationHandler(t *testing.T) {
	t.Run("invalidates previous district when moved", func(t *testing.T) {
		inv := &recordingInvalidator{}
		evt := createTestEvent()
		evt.PreviousDistrict = "Lira"

		require.NoError(t, NewInvalidationHandler(inv).HandleRecordChanged(context.Background(), evt))
		assert.Equal(t, []string{"Gulu", "Lira"}, inv.calls())
	})

	t.Run("same district once", func(t *testing.T) {
		inv := &recordingInvalidator{}
		evt := createTestEvent()
		evt.PreviousDistrict = "Gulu"

		require.NoError(t, NewInvalidationHandler(inv).HandleRecordChanged(context.Background(), evt))
		assert.Equal(t, []string{"Gulu"}, inv.calls())
	})

	t.Run("errors are joined", func(t *testing.T) {
		inv := &recordingInvalidator{err: errors.New("redis down")}
		evt := createTestEvent()
		evt.PreviousDistrict = "Lira"

		err := NewInvalidationHandler(inv).HandleRecordChanged(context.Background(), evt)
		assert.ErrorContains(t, err, "redis down")
		assert.Len(t, inv.calls(), 2)
	})
}

// ============================================================================
// CONSUMER
// ============================================================================

func TestRecordConsumer_ProcessesDeliveries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := &fakeChannel{deliveries: make(chan amqp.Delivery, 2)}
	inv := &recordingInvalidator{}
	consumer := NewRecordConsumer(ch, NewInvalidationHandler(inv))
	require.NoError(t, consumer.Start(ctx))
	assert.Equal(t, []string{RecordEventsQueue}, ch.declared)

	ack := newFakeAcknowledger()
	body, err := json.Marshal(createTestEvent())
	require.NoError(t, err)
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
	ch.deliveries <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("{not json")}

	for i := 0; i < 2; i++ {
		select {
		case <-ack.done:
		case <-time.After(2 * time.Second):
			t.Fatal("delivery not settled")
		}
	}

	ack.mu.Lock()
	defer ack.mu.Unlock()
	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.False(t, ack.requeue, "malformed messages are dropped")
	assert.Equal(t, []string{"Gulu"}, inv.calls())
}

func TestRecordConsumer_HandlerFailureStillAcks(t *testing.T) {
	inv := &recordingInvalidator{err: errors.New("redis down")}
	consumer := NewRecordConsumer(&fakeChannel{}, NewInvalidationHandler(inv))

	ack := newFakeAcknowledger()
	body, err := json.Marshal(createTestEvent())
	require.NoError(t, err)
	consumer.processMessage(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body})

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)
}

// ============================================================================
// BROKER
// ============================================================================

func TestBrokerURI(t *testing.T) {
	uri, err := brokerURI(config.RabbitMQConfig{Username: "impact", Password: "p@ss", Host: "mq", Port: "5672"})
	require.NoError(t, err)

	parsed, err := amqp.ParseURI(uri)
	require.NoError(t, err)
	assert.Equal(t, "mq", parsed.Host)
	assert.Equal(t, 5672, parsed.Port)
	assert.Equal(t, "impact", parsed.Username)
	assert.Equal(t, "p@ss", parsed.Password)

	_, err = brokerURI(config.RabbitMQConfig{Host: "mq", Port: "amqp"})
	assert.Error(t, err)
}
