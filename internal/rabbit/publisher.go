package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// OrderEventsExchange fans order lifecycle events out to any interested queue.
const OrderEventsExchange = "flipbook_order_events"

// Envelope wraps every published event.
type Envelope struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Producer    string          `json:"producer"`
	OrderNumber string          `json:"order_number"`
	Payload     json.RawMessage `json:"payload"`
}

func NewEnvelope(producer, eventType, orderNumber string, payload any, now time.Time) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OccurredAt:  now.UTC(),
		Producer:    producer,
		OrderNumber: orderNumber,
		Payload:     raw,
	}, nil
}

// Publisher sends envelopes to OrderEventsExchange. amqp channels are not
// safe for concurrent publishing, so calls are serialized. A channel closed
// by the broker is reopened on the next Publish.
type Publisher struct {
	mu       sync.Mutex
	open     ChannelOpener
	ch       *amqp091.Channel
	closed   chan *amqp091.Error
	producer string
}

func NewPublisher(open ChannelOpener, producer string) (*Publisher, error) {
	p := &Publisher{open: open, producer: producer}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	ch, err := p.open.Channel()
	if err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(OrderEventsExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return err
	}
	p.ch = ch
	p.closed = ch.NotifyClose(make(chan *amqp091.Error, 1))
	return nil
}

// pollClosedLocked drops the channel once the broker has closed it.
func (p *Publisher) pollClosedLocked() {
	if p.ch == nil {
		return
	}
	select {
	case <-p.closed:
		p.ch = nil
	default:
	}
}

// Err reports why the publisher cannot currently deliver, or nil when it can.
// A dropped channel is reopened here too, so health checks recover without
// waiting for the next event.
func (p *Publisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollClosedLocked()
	if p.ch == nil {
		return p.connectLocked()
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, eventType, orderNumber string, payload any) error {
	env, err := NewEnvelope(p.producer, eventType, orderNumber, payload, time.Now())
	if err != nil {
		return err
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollClosedLocked()
	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("reopen publish channel: %w", err)
		}
	}
	err = p.ch.PublishWithContext(ctx, OrderEventsExchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.EventID,
		Timestamp:    env.OccurredAt,
		Type:         eventType,
		AppId:        p.producer,
		Body:         body,
	})
	if errors.Is(err, amqp091.ErrClosed) {
		p.ch = nil
	}
	return err
}
