// models.go
package model

import "time"

// Order is one flipbook purchase. Prices are whole won and fixed at creation.
type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"orderNumber"`

	VideoPath      string `json:"videoPath"`
	VideoFilename  string `json:"videoFilename"`
	VideoSizeBytes int64  `json:"videoSizeBytes"`

	Customer Customer `json:"customer"`
	Shipping Shipping `json:"shipping"`

	IsGift      bool    `json:"isGift"`
	GiftMessage *string `json:"giftMessage,omitempty"`

	BasePrice        int64 `json:"basePrice"`
	GiftPackagePrice int64 `json:"giftPackagePrice"`
	TotalPrice       int64 `json:"totalPrice"`

	Status         OrderStatus    `json:"status"`
	Courier        *string        `json:"courier,omitempty"`
	TrackingNumber *string        `json:"trackingNumber,omitempty"`
	AdminNote      *string        `json:"adminNote,omitempty"`
	History        []StatusRecord `json:"history"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Customer struct {
	Name  string  `json:"name"`
	Phone string  `json:"phone"`
	Email *string `json:"email,omitempty"`
}

type Shipping struct {
	RecipientName  string  `json:"recipientName"`
	RecipientPhone string  `json:"recipientPhone"`
	PostalCode     string  `json:"postalCode"`
	AddressMain    string  `json:"addressMain"`
	AddressDetail  *string `json:"addressDetail,omitempty"`
	DeliveryMemo   *string `json:"deliveryMemo,omitempty"`
}

// AddressLine renders "(zip) main detail" the way the tracking page shows it.
func (s Shipping) AddressLine() string {
	line := "(" + s.PostalCode + ") " + s.AddressMain
	if s.AddressDetail != nil && *s.AddressDetail != "" {
		line += " " + *s.AddressDetail
	}
	return line
}

// OrderReceivedNote marks the first history entry of every order.
const OrderReceivedNote = "주문 접수"

// StatusRecord is one entry of an order's status history.
type StatusRecord struct {
	Status OrderStatus `json:"status"`
	Note   string      `json:"note,omitempty"`
	Actor  string      `json:"actor,omitempty"`
	At     time.Time   `json:"at"`
}

// HasTracking reports whether courier and tracking number are both set.
func (o *Order) HasTracking() bool {
	return o.Courier != nil && *o.Courier != "" && o.TrackingNumber != nil && *o.TrackingNumber != ""
}

// OrderFilters narrows the admin order list. Zero value lists everything.
type OrderFilters struct {
	Status *OrderStatus
	Search string
}
