// setup.go
package rabbit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"flipbook-fulfillment-service/internal/service"

	"github.com/rabbitmq/amqp091-go"
)

const (
	PaymentsExchange = "flipbook_payments"
	PaymentsQueue    = "flipbook_payment_confirmations"

	// Rejected payment messages are parked here for an operator.
	PaymentsDeadLetterExchange = "flipbook_payments.dlx"
	PaymentsDeadLetterQueue    = "flipbook_payment_confirmations.dead"
)

var resubscribeDelay = 5 * time.Second

// SetupConsumers declares the payments topology and consumes in the
// background until ctx is done. When the broker drops the channel the
// consumer resubscribes through open.
func SetupConsumers(ctx context.Context, open ChannelOpener, svc PaymentMarker, logger *slog.Logger) error {
	consumer := NewPaymentConsumer(svc, logger)

	msgs, err := subscribePayments(open)
	if err != nil {
		return err
	}

	go func() {
		for {
			consumer.drain(ctx, msgs)
			if ctx.Err() != nil {
				return
			}
			logger.Warn("payment deliveries channel closed, resubscribing")
			for {
				select {
				case <-ctx.Done():
					return
				case <-time.After(resubscribeDelay):
				}
				if msgs, err = subscribePayments(open); err == nil {
					break
				}
				logger.Error("payment resubscribe failed", "error", err)
			}
			logger.Info("resubscribed to payments exchange", "queue", PaymentsQueue)
		}
	}()

	logger.Info("subscribed to payments exchange", "exchange", PaymentsExchange, "queue", PaymentsQueue)
	return nil
}

func subscribePayments(open ChannelOpener) (<-chan amqp091.Delivery, error) {
	ch, err := open.Channel()
	if err != nil {
		return nil, err
	}
	if err := declarePayments(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	msgs, err := ch.Consume(PaymentsQueue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, err
	}
	return msgs, nil
}

func declarePayments(ch *amqp091.Channel) error {
	if err := ch.ExchangeDeclare(PaymentsDeadLetterExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(PaymentsDeadLetterQueue, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.QueueBind(PaymentsDeadLetterQueue, "", PaymentsDeadLetterExchange, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(PaymentsExchange, amqp091.ExchangeFanout, true, false, false, false, nil); err != nil {
		return err
	}
	args := amqp091.Table{"x-dead-letter-exchange": PaymentsDeadLetterExchange}
	if _, err := ch.QueueDeclare(PaymentsQueue, true, false, false, false, args); err != nil {
		return err
	}
	// fanout ignores the routing key
	return ch.QueueBind(PaymentsQueue, "", PaymentsExchange, false, nil)
}

func (c *PaymentConsumer) drain(ctx context.Context, msgs <-chan amqp091.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			if err := settle(m, c.Handle(ctx, m.Body)); err != nil {
				c.Logger.Error("payment delivery settle failed", "error", err)
			}
		}
	}
}

// settle acks a handled delivery. A storage failure goes back to the queue
// once; any other failure, or a second storage failure, is dead-lettered.
func settle(m amqp091.Delivery, handleErr error) error {
	switch {
	case handleErr == nil:
		return m.Ack(false)
	case errors.Is(handleErr, service.ErrPersistence) && !m.Redelivered:
		return m.Nack(false, true)
	default:
		return m.Nack(false, false)
	}
}
