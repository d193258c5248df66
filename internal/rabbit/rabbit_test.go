package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"fmt"
	"testing"
	"time"

	"flipbook-fulfillment-service/internal/service"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markCall struct {
	number string
	amount int64
	actor  string
}

type fakeMarker struct {
	calls []markCall
	err   error
}

func (f *fakeMarker) MarkPaid(_ context.Context, number string, amount int64, actor string) error {
	f.calls = append(f.calls, markCall{number, amount, actor})
	return f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPaymentConsumerHandle(t *testing.T) {
	marker := &fakeMarker{}
	c := NewPaymentConsumer(marker, discard())

	err := c.Handle(context.Background(), []byte(`{"orderNumber":"FB202504039K2M","amount":28000,"depositor":"김하늘"}`))
	require.NoError(t, err)
	require.Len(t, marker.calls, 1)
	assert.Equal(t, markCall{"FB202504039K2M", 28000, PaymentActor}, marker.calls[0])
}

func TestPaymentConsumerRejectsBadMessages(t *testing.T) {
	marker := &fakeMarker{}
	c := NewPaymentConsumer(marker, discard())

	assert.Error(t, c.Handle(context.Background(), []byte(`not json`)))
	assert.ErrorIs(t, c.Handle(context.Background(), []byte(`{"amount":1}`)), ErrEmptyOrderNumber)
	assert.Empty(t, marker.calls)

	marker.err = errors.New("order not found")
	assert.Error(t, c.Handle(context.Background(), []byte(`{"orderNumber":"FB20250403AAAA","amount":1}`)))
}

func TestNewEnvelope(t *testing.T) {
	now := time.Date(2025, 4, 3, 19, 0, 0, 0, time.FixedZone("KST", 9*3600))
	env, err := NewEnvelope("flipbook-fulfillment", "order.status_changed", "FB202504039K2M",
		map[string]string{"from": "paid", "to": "producing"}, now)
	require.NoError(t, err)

	assert.Len(t, env.EventID, 36)
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, "FB202504039K2M", env.OrderNumber)
	assert.JSONEq(t, `{"from":"paid","to":"producing"}`, string(env.Payload))

	b, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"event_type":"order.status_changed"`)

	_, err = NewEnvelope("p", "t", "n", make(chan int), now)
	assert.Error(t, err)
}

type ackRecord struct {
	acked, nacked, requeued bool
}

func (a *ackRecord) Ack(uint64, bool) error { a.acked = true; return nil }

func (a *ackRecord) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func (a *ackRecord) Reject(_ uint64, requeue bool) error {
	a.nacked, a.requeued = true, requeue
	return nil
}

func TestSettle(t *testing.T) {
	storageDown := fmt.Errorf("%w: server selection timeout", service.ErrPersistence)

	tests := []struct {
		name        string
		err         error
		redelivered bool
		want        ackRecord
	}{
		{"handled", nil, false, ackRecord{acked: true}},
		{"storage failure retried once", storageDown, false, ackRecord{nacked: true, requeued: true}},
		{"storage failure again dead-lettered", storageDown, true, ackRecord{nacked: true}},
		{"amount mismatch dead-lettered", fmt.Errorf("%w: deposit 1", service.ErrValidation), false, ackRecord{nacked: true}},
		{"wrong status dead-lettered", service.ErrInvalidTransition, false, ackRecord{nacked: true}},
		{"missing order number dead-lettered", ErrEmptyOrderNumber, false, ackRecord{nacked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ackRecord{}
			d := amqp091.Delivery{Acknowledger: rec, DeliveryTag: 7, Redelivered: tt.redelivered}
			require.NoError(t, settle(d, tt.err))
			assert.Equal(t, tt.want, *rec)
		})
	}
}

func TestPaymentConsumerDrain(t *testing.T) {
	marker := &fakeMarker{err: fmt.Errorf("%w: mongo down", service.ErrPersistence)}
	c := NewPaymentConsumer(marker, discard())

	msgs := make(chan amqp091.Delivery, 1)
	rec := &ackRecord{}
	msgs <- amqp091.Delivery{Acknowledger: rec, Body: []byte(`{"orderNumber":"FB202504039K2M","amount":28000}`)}
	close(msgs)

	c.drain(context.Background(), msgs)
	require.Len(t, marker.calls, 1)
	assert.Equal(t, ackRecord{nacked: true, requeued: true}, *rec)
}

type failingOpener struct {
	calls int
	err   error
}

func (f *failingOpener) Channel() (*amqp091.Channel, error) {
	f.calls++
	return nil, f.err
}

func TestPublisherReportsUnavailableBroker(t *testing.T) {
	opener := &failingOpener{err: errors.New("connection refused")}

	_, err := NewPublisher(opener, "flipbook-fulfillment")
	require.Error(t, err)

	p := &Publisher{open: opener, producer: "flipbook-fulfillment"}
	err = p.Publish(context.Background(), "order.created", "FB202504039K2M", map[string]int{"totalPrice": 25000})
	assert.ErrorIs(t, err, opener.err)
	assert.ErrorIs(t, p.Err(), opener.err)

	_ = p.Publish(context.Background(), "order.created", "FB202504039K2M", nil)
	assert.Equal(t, 4, opener.calls, "each publish and health check retries the channel")

	assert.Error(t, SetupConsumers(context.Background(), opener, &fakeMarker{}, discard()))
}
