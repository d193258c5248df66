package rabbit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"flipbook-fulfillment-service/internal/dto"
)

// PaymentActor is recorded in the status history for webhook confirmations.
const PaymentActor = "payment-webhook"

var ErrEmptyOrderNumber = errors.New("payment message without order number")

type PaymentMarker interface {
	MarkPaid(ctx context.Context, orderNumber string, amount int64, actor string) error
}

// PaymentConsumer moves orders to paid when the bank webhook reports a deposit.
type PaymentConsumer struct {
	Service PaymentMarker
	Logger  *slog.Logger
}

func NewPaymentConsumer(s PaymentMarker, logger *slog.Logger) *PaymentConsumer {
	return &PaymentConsumer{Service: s, Logger: logger.With("component", "payment-consumer")}
}

func (c *PaymentConsumer) Handle(ctx context.Context, body []byte) error {
	var msg dto.PaymentConfirmedMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		c.Logger.Error("payment message is not valid JSON", "error", err)
		return err
	}
	if msg.OrderNumber == "" {
		c.Logger.Error("payment message rejected", "error", ErrEmptyOrderNumber)
		return ErrEmptyOrderNumber
	}

	c.Logger.Info("payment confirmation received", "order_number", msg.OrderNumber, "amount", msg.Amount)
	if err := c.Service.MarkPaid(ctx, msg.OrderNumber, msg.Amount, PaymentActor); err != nil {
		c.Logger.Error("payment confirmation failed", "order_number", msg.OrderNumber, "error", err)
		return err
	}
	return nil
}
