package repository

import (
	"fmt"
	"time"

	"flipbook-fulfillment-service/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// orderDocument is the stored shape. Column names follow the flipbook_orders table.
type orderDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	OrderNumber string             `bson:"order_number"`

	VideoURL       string `bson:"video_url"`
	VideoFilename  string `bson:"video_filename"`
	VideoSizeBytes int64  `bson:"video_size_bytes"`

	CustomerName  string  `bson:"customer_name"`
	CustomerPhone string  `bson:"customer_phone"`
	CustomerEmail *string `bson:"customer_email"`

	RecipientName  string  `bson:"recipient_name"`
	RecipientPhone string  `bson:"recipient_phone"`
	AddressZipcode string  `bson:"address_zipcode"`
	AddressMain    string  `bson:"address_main"`
	AddressDetail  *string `bson:"address_detail"`
	DeliveryMemo   *string `bson:"delivery_memo"`

	IsGift      bool    `bson:"is_gift"`
	GiftMessage *string `bson:"gift_message"`

	BasePrice        int64 `bson:"base_price"`
	GiftPackagePrice int64 `bson:"gift_package_price"`
	TotalPrice       int64 `bson:"total_price"`

	Status         string                 `bson:"status"`
	TrackingNumber *string                `bson:"tracking_number"`
	Courier        *string                `bson:"courier"`
	AdminNote      *string                `bson:"admin_note"`
	History        []statusRecordDocument `bson:"history"`

	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type statusRecordDocument struct {
	Status string    `bson:"status"`
	Note   string    `bson:"note,omitempty"`
	Actor  string    `bson:"actor,omitempty"`
	At     time.Time `bson:"at"`
}

func encodeOrder(o *model.Order) *orderDocument {
	doc := &orderDocument{
		OrderNumber:      o.OrderNumber,
		VideoURL:         o.VideoPath,
		VideoFilename:    o.VideoFilename,
		VideoSizeBytes:   o.VideoSizeBytes,
		CustomerName:     o.Customer.Name,
		CustomerPhone:    o.Customer.Phone,
		CustomerEmail:    o.Customer.Email,
		RecipientName:    o.Shipping.RecipientName,
		RecipientPhone:   o.Shipping.RecipientPhone,
		AddressZipcode:   o.Shipping.PostalCode,
		AddressMain:      o.Shipping.AddressMain,
		AddressDetail:    o.Shipping.AddressDetail,
		DeliveryMemo:     o.Shipping.DeliveryMemo,
		IsGift:           o.IsGift,
		GiftMessage:      o.GiftMessage,
		BasePrice:        o.BasePrice,
		GiftPackagePrice: o.GiftPackagePrice,
		TotalPrice:       o.TotalPrice,
		Status:           string(o.Status),
		TrackingNumber:   o.TrackingNumber,
		Courier:          o.Courier,
		AdminNote:        o.AdminNote,
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	for _, r := range o.History {
		doc.History = append(doc.History, encodeStatusRecord(r))
	}
	return doc
}

func encodeStatusRecord(r model.StatusRecord) statusRecordDocument {
	return statusRecordDocument{Status: string(r.Status), Note: r.Note, Actor: r.Actor, At: r.At}
}

// decodeOrder turns a stored document into an Order, rejecting documents
// that break the record invariants instead of passing them through.
func decodeOrder(doc *orderDocument) (*model.Order, error) {
	if doc.ID.IsZero() || doc.OrderNumber == "" {
		return nil, fmt.Errorf("%w: missing identity", ErrMalformedRecord)
	}
	status, err := model.ParseOrderStatus(doc.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: order %s: %v", ErrMalformedRecord, doc.OrderNumber, err)
	}
	if doc.TotalPrice != doc.BasePrice+doc.GiftPackagePrice {
		return nil, fmt.Errorf("%w: order %s: total %d != %d + %d", ErrMalformedRecord,
			doc.OrderNumber, doc.TotalPrice, doc.BasePrice, doc.GiftPackagePrice)
	}
	if present(doc.Courier) != present(doc.TrackingNumber) {
		return nil, fmt.Errorf("%w: order %s: courier and tracking number must be set together", ErrMalformedRecord, doc.OrderNumber)
	}

	o := &model.Order{
		ID:             doc.ID.Hex(),
		OrderNumber:    doc.OrderNumber,
		VideoPath:      doc.VideoURL,
		VideoFilename:  doc.VideoFilename,
		VideoSizeBytes: doc.VideoSizeBytes,
		Customer: model.Customer{
			Name:  doc.CustomerName,
			Phone: doc.CustomerPhone,
			Email: doc.CustomerEmail,
		},
		Shipping: model.Shipping{
			RecipientName:  doc.RecipientName,
			RecipientPhone: doc.RecipientPhone,
			PostalCode:     doc.AddressZipcode,
			AddressMain:    doc.AddressMain,
			AddressDetail:  doc.AddressDetail,
			DeliveryMemo:   doc.DeliveryMemo,
		},
		IsGift:           doc.IsGift,
		GiftMessage:      doc.GiftMessage,
		BasePrice:        doc.BasePrice,
		GiftPackagePrice: doc.GiftPackagePrice,
		TotalPrice:       doc.TotalPrice,
		Status:           status,
		Courier:          doc.Courier,
		TrackingNumber:   doc.TrackingNumber,
		AdminNote:        doc.AdminNote,
		History:          make([]model.StatusRecord, 0, len(doc.History)),
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
	for _, r := range doc.History {
		st, err := model.ParseOrderStatus(r.Status)
		if err != nil {
			return nil, fmt.Errorf("%w: order %s history: %v", ErrMalformedRecord, doc.OrderNumber, err)
		}
		o.History = append(o.History, model.StatusRecord{Status: st, Note: r.Note, Actor: r.Actor, At: r.At})
	}
	return o, nil
}

func present(s *string) bool { return s != nil && *s != "" }
