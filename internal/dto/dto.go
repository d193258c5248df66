// dto.go
package dto

import (
	"time"

	"flipbook-fulfillment-service/internal/model"
)

// CreateOrderRequest carries the text fields of the order form. The video
// arrives as the multipart file "videoFile".
type CreateOrderRequest struct {
	CustomerName   string `form:"customerName"`
	CustomerPhone  string `form:"customerPhone"`
	CustomerEmail  string `form:"customerEmail"`
	RecipientName  string `form:"recipientName"`
	RecipientPhone string `form:"recipientPhone"`
	AddressZipcode string `form:"addressZipcode"`
	AddressMain    string `form:"addressMain"`
	AddressDetail  string `form:"addressDetail"`
	DeliveryMemo   string `form:"deliveryMemo"`
	IsGift         bool   `form:"-"` // only the literal "true" counts
	GiftMessage    string `form:"giftMessage"`
}

type UpdateStatusRequest struct {
	Status    string  `json:"status" binding:"required"`
	AdminNote *string `json:"adminNote"`
}

type UpdateTrackingRequest struct {
	Courier        string `json:"courier"`
	TrackingNumber string `json:"trackingNumber"`
}

// PaymentConfirmedMessage is published by the bank-transfer webhook.
type PaymentConfirmedMessage struct {
	OrderNumber string `json:"orderNumber"`
	Amount      int64  `json:"amount"`
	Depositor   string `json:"depositor"`
}

// TrackingView is the public, read-only projection of an order.
type TrackingView struct {
	OrderNumber string            `json:"orderNumber"`
	OrderedAt   time.Time         `json:"orderedAt"`
	Status      model.OrderStatus `json:"status"`
	Label       string            `json:"label"`
	Description string            `json:"description"`
	Step        int               `json:"step"`
	Cancelled   bool              `json:"cancelled"`
	Steps       []TrackingStep    `json:"steps,omitempty"`

	Courier        string `json:"courier,omitempty"`
	CourierLabel   string `json:"courierLabel,omitempty"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	TrackingURL    string `json:"trackingUrl,omitempty"`

	CustomerName  string `json:"customerName"`
	RecipientName string `json:"recipientName"`
	Address       string `json:"address"`
	TotalPrice    int64  `json:"totalPrice"`

	History []TrackingHistoryEntry `json:"history"`
}

// TrackingHistoryEntry is the customer-visible part of a status record.
// Operator notes and actor ids stay on the admin side.
type TrackingHistoryEntry struct {
	Status model.OrderStatus `json:"status"`
	Label  string            `json:"label"`
	At     time.Time         `json:"at"`
}

type TrackingStep struct {
	Status  model.OrderStatus `json:"status"`
	Label   string            `json:"label"`
	Step    int               `json:"step"`
	Done    bool              `json:"done"`
	Current bool              `json:"current"`
}

// StatusOption is one entry of the admin status dropdown.
type StatusOption struct {
	Value model.OrderStatus `json:"value"`
	model.StatusInfo
}
