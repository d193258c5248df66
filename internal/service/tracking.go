package service

import (
	"context"
	"net/url"

	"flipbook-fulfillment-service/internal/dto"
	"flipbook-fulfillment-service/internal/model"
)

const trackerBaseURL = "https://tracker.delivery/#/"

// Track returns the customer-facing view of an order, served from cache when possible.
func (s *OrderService) Track(ctx context.Context, orderNumber string) (*dto.TrackingView, error) {
	orderNumber = NormalizeOrderNumber(orderNumber)

	view, ok, err := s.opts.Cache.Get(ctx, orderNumber)
	if err != nil {
		s.log.Warn("tracking cache read failed", "order_number", orderNumber, "error", err)
	}
	if ok {
		return view, nil
	}

	o, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	view = BuildTrackingView(o)
	if err := s.opts.Cache.Set(ctx, view); err != nil {
		s.log.Warn("tracking cache write failed", "order_number", orderNumber, "error", err)
	}
	return view, nil
}

// BuildTrackingView projects an order for the public tracking page.
// Cancelled orders carry no progress steps.
func BuildTrackingView(o *model.Order) *dto.TrackingView {
	info := o.Status.Info()
	v := &dto.TrackingView{
		OrderNumber:   o.OrderNumber,
		OrderedAt:     o.CreatedAt,
		Status:        o.Status,
		Label:         info.Label,
		Description:   info.Description,
		Step:          info.Step,
		Cancelled:     o.Status == model.StatusCancelled,
		CustomerName:  o.Customer.Name,
		RecipientName: o.Shipping.RecipientName,
		Address:       o.Shipping.AddressLine(),
		TotalPrice:    o.TotalPrice,
		History:       make([]dto.TrackingHistoryEntry, 0, len(o.History)),
	}
	for _, h := range o.History {
		v.History = append(v.History, dto.TrackingHistoryEntry{
			Status: h.Status,
			Label:  h.Status.Info().Label,
			At:     h.At,
		})
	}

	if !v.Cancelled {
		for _, st := range model.OrderedStatuses() {
			v.Steps = append(v.Steps, dto.TrackingStep{
				Status:  st,
				Label:   st.Info().Label,
				Step:    st.Step(),
				Done:    st.Step() <= info.Step,
				Current: st == o.Status,
			})
		}
	}

	if o.HasTracking() {
		v.Courier = *o.Courier
		v.CourierLabel = model.CourierLabel(*o.Courier)
		v.TrackingNumber = *o.TrackingNumber
		v.TrackingURL = TrackingURL(*o.TrackingNumber)
	}
	return v
}

// TrackingURL links to the carrier-agnostic tracker by tracking number alone.
func TrackingURL(trackingNumber string) string {
	return trackerBaseURL + url.PathEscape(trackingNumber)
}
