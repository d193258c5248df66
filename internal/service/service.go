package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"flipbook-fulfillment-service/internal/dto"
	"flipbook-fulfillment-service/internal/metrics"
	"flipbook-fulfillment-service/internal/model"
)

// OrderRepository is implemented by the Mongo and in-memory repositories.
type OrderRepository interface {
	Insert(ctx context.Context, o *model.Order) (string, error)
	FindByNumber(ctx context.Context, orderNumber string) (*model.Order, error)
	FindByID(ctx context.Context, id string) (*model.Order, error)
	List(ctx context.Context, f model.OrderFilters) ([]*model.Order, error)
	UpdateStatus(ctx context.Context, id string, status model.OrderStatus, adminNote *string, record model.StatusRecord) error
	UpdateTracking(ctx context.Context, id, courier, trackingNumber string, record model.StatusRecord) error
}

type VideoStorage interface {
	Upload(ctx context.Context, path string, r io.Reader) error
	Delete(ctx context.Context, path string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, eventType, orderNumber string, payload any) error
}

type TrackingCache interface {
	Get(ctx context.Context, orderNumber string) (*dto.TrackingView, bool, error)
	Set(ctx context.Context, view *dto.TrackingView) error
	Invalidate(ctx context.Context, orderNumber string) error
}

const (
	EventOrderCreated       = "order.created"
	EventStatusChanged      = "order.status_changed"
	EventTrackingRegistered = "order.tracking_registered"
)

// Video is the uploaded file of an order submission.
type Video struct {
	Filename string
	Size     int64
	Content  io.Reader
}

type Options struct {
	BasePrice        int64
	GiftPackagePrice int64
	MaxVideoBytes    int64 // 0 disables the size check
	Policy           model.TransitionPolicy
	Publisher        EventPublisher
	Cache            TrackingCache
	Logger           *slog.Logger
	Now              func() time.Time
}

type OrderService struct {
	repo   OrderRepository
	videos VideoStorage
	opts   Options
	log    *slog.Logger
}

func NewOrderService(repo OrderRepository, videos VideoStorage, opts Options) *OrderService {
	if opts.Policy == nil {
		opts.Policy = model.PermissivePolicy{}
	}
	if opts.Publisher == nil {
		opts.Publisher = noopPublisher{}
	}
	if opts.Cache == nil {
		opts.Cache = noopCache{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &OrderService{
		repo:   repo,
		videos: videos,
		opts:   opts,
		log:    opts.Logger.With("component", "order-service"),
	}
}

// CreateOrder validates the submission, uploads the video, then stores the
// order. If the insert fails the upload is removed and the removal checked.
func (s *OrderService) CreateOrder(ctx context.Context, req dto.CreateOrderRequest, video *Video) (string, error) {
	if err := s.validateCreate(req, video); err != nil {
		metrics.OrderCreateFailures.WithLabelValues("validation").Inc()
		return "", err
	}

	now := s.opts.Now()
	orderNumber := GenerateOrderNumber(now)
	filename := sanitizeFilename(video.Filename)
	path := fmt.Sprintf("%s/%d_%s", orderNumber, now.UnixMilli(), filename)

	if err := s.videos.Upload(ctx, path, video.Content); err != nil {
		metrics.OrderCreateFailures.WithLabelValues("upload").Inc()
		s.log.Error("video upload failed", "order_number", orderNumber, "path", path, "error", err)
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	o := s.buildOrder(orderNumber, path, filename, video.Size, req, now.UTC())

	if _, err := s.repo.Insert(ctx, o); err != nil {
		metrics.OrderCreateFailures.WithLabelValues("insert").Inc()
		s.log.Error("order insert failed", "order_number", orderNumber, "error", err)
		insertErr := fmt.Errorf("%w: %v", ErrPersistence, err)

		if delErr := s.videos.Delete(ctx, path); delErr != nil {
			metrics.OrderCreateFailures.WithLabelValues("rollback").Inc()
			s.log.Error("video rollback failed, orphaned upload", "order_number", orderNumber, "path", path, "error", delErr)
			return "", errors.Join(insertErr, fmt.Errorf("%w: %s: %v", ErrRollbackFailed, path, delErr))
		}
		return "", insertErr
	}

	metrics.OrdersCreated.Inc()
	s.log.Info("order created", "order_number", orderNumber, "total_price", o.TotalPrice, "gift", o.IsGift)
	s.publish(ctx, EventOrderCreated, orderNumber, map[string]any{
		"orderId":    o.ID,
		"totalPrice": o.TotalPrice,
		"isGift":     o.IsGift,
	})
	return orderNumber, nil
}

func (s *OrderService) validateCreate(req dto.CreateOrderRequest, video *Video) error {
	var missing []string
	if video == nil || video.Content == nil {
		missing = append(missing, "videoFile")
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		missing = append(missing, "customerName")
	}
	if strings.TrimSpace(req.CustomerPhone) == "" {
		missing = append(missing, "customerPhone")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrValidation, strings.Join(missing, ", "))
	}
	if s.opts.MaxVideoBytes > 0 && video.Size > s.opts.MaxVideoBytes {
		return fmt.Errorf("%w: video is %d bytes, limit %d", ErrValidation, video.Size, s.opts.MaxVideoBytes)
	}
	return nil
}

// buildOrder stamps the order with the same instant its number was derived from,
// so the FB date, created_at and the first history entry agree.
func (s *OrderService) buildOrder(orderNumber, path, filename string, size int64, req dto.CreateOrderRequest, now time.Time) *model.Order {
	var giftPrice int64
	if req.IsGift {
		giftPrice = s.opts.GiftPackagePrice
	}
	customerName := strings.TrimSpace(req.CustomerName)
	customerPhone := strings.TrimSpace(req.CustomerPhone)

	return &model.Order{
		OrderNumber:    orderNumber,
		VideoPath:      path,
		VideoFilename:  filename,
		VideoSizeBytes: size,
		Customer: model.Customer{
			Name:  customerName,
			Phone: customerPhone,
			Email: optional(req.CustomerEmail),
		},
		Shipping: model.Shipping{
			RecipientName:  orDefault(req.RecipientName, customerName),
			RecipientPhone: orDefault(req.RecipientPhone, customerPhone),
			PostalCode:     strings.TrimSpace(req.AddressZipcode),
			AddressMain:    strings.TrimSpace(req.AddressMain),
			AddressDetail:  optional(req.AddressDetail),
			DeliveryMemo:   optional(req.DeliveryMemo),
		},
		IsGift:           req.IsGift,
		GiftMessage:      optional(req.GiftMessage),
		BasePrice:        s.opts.BasePrice,
		GiftPackagePrice: giftPrice,
		TotalPrice:       s.opts.BasePrice + giftPrice,
		Status:           model.StatusPendingPayment,
		History:          []model.StatusRecord{{Status: model.StatusPendingPayment, Note: model.OrderReceivedNote, At: now}},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// GetByNumber looks an order up by its number, ignoring case.
func (s *OrderService) GetByNumber(ctx context.Context, orderNumber string) (*model.Order, error) {
	o, err := s.repo.FindByNumber(ctx, NormalizeOrderNumber(orderNumber))
	if err != nil {
		return nil, s.readError(err)
	}
	return o, nil
}

func (s *OrderService) GetByID(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, s.readError(err)
	}
	return o, nil
}

// List returns every matching order, newest first. status may be empty.
func (s *OrderService) List(ctx context.Context, status, search string) ([]*model.Order, error) {
	var f model.OrderFilters
	if status != "" {
		st, err := model.ParseOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		f.Status = &st
	}
	f.Search = strings.TrimSpace(search)

	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, s.readError(err)
	}
	return orders, nil
}

// UpdateStatus sets the status (and admin note, when given) of one order.
// Which moves are accepted depends on the configured TransitionPolicy.
func (s *OrderService) UpdateStatus(ctx context.Context, id, status string, adminNote *string, actor string) error {
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.opts.Policy.Check(o.Status, next); err != nil {
		return err
	}

	record := model.StatusRecord{Status: next, Actor: actor, At: s.opts.Now().UTC()}
	if adminNote != nil {
		record.Note = *adminNote
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, next, adminNote, record); err != nil {
		return s.writeError(err, "status update failed", o.OrderNumber)
	}

	metrics.StatusUpdates.WithLabelValues(string(next)).Inc()
	s.log.Info("order status updated", "order_number", o.OrderNumber, "from", o.Status, "to", next, "actor", actor)
	s.afterMutation(ctx, o.OrderNumber, EventStatusChanged, map[string]any{
		"from": o.Status,
		"to":   next,
	})
	return nil
}

// UpdateTracking registers courier and tracking number and moves the order to shipping.
func (s *OrderService) UpdateTracking(ctx context.Context, id, courier, trackingNumber, actor string) error {
	courier = strings.TrimSpace(courier)
	trackingNumber = strings.TrimSpace(trackingNumber)
	if courier == "" || trackingNumber == "" {
		return fmt.Errorf("%w: courier and tracking number are both required", ErrValidation)
	}
	o, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.opts.Policy.Check(o.Status, model.StatusShipping); err != nil {
		return err
	}

	record := model.StatusRecord{
		Status: model.StatusShipping,
		Note:   model.CourierLabel(courier) + " " + trackingNumber,
		Actor:  actor,
		At:     s.opts.Now().UTC(),
	}
	if err := s.repo.UpdateTracking(ctx, o.ID, courier, trackingNumber, record); err != nil {
		return s.writeError(err, "tracking update failed", o.OrderNumber)
	}

	metrics.TrackingRegistrations.Inc()
	metrics.StatusUpdates.WithLabelValues(string(model.StatusShipping)).Inc()
	s.log.Info("tracking registered", "order_number", o.OrderNumber, "courier", courier, "actor", actor)
	s.afterMutation(ctx, o.OrderNumber, EventTrackingRegistered, map[string]any{
		"from":           o.Status,
		"courier":        courier,
		"trackingNumber": trackingNumber,
	})
	return nil
}

// MarkPaid confirms a bank deposit for a pending order. Repeated
// confirmations of an already paid order are ignored.
func (s *OrderService) MarkPaid(ctx context.Context, orderNumber string, amount int64, actor string) error {
	o, err := s.GetByNumber(ctx, orderNumber)
	if err != nil {
		return err
	}
	switch o.Status {
	case model.StatusPaid:
		s.log.Info("payment already confirmed", "order_number", o.OrderNumber)
		return nil
	case model.StatusPendingPayment:
	default:
		return fmt.Errorf("%w: payment for order in status %s", ErrInvalidTransition, o.Status)
	}
	if amount != o.TotalPrice {
		return fmt.Errorf("%w: deposit %d does not match total %d", ErrValidation, amount, o.TotalPrice)
	}
	note := "입금 확인"
	return s.UpdateStatus(ctx, o.ID, string(model.StatusPaid), &note, actor)
}

// StatusOptions lists every status with its presentation data, for dropdowns.
func StatusOptions() []dto.StatusOption {
	all := model.AllStatuses()
	out := make([]dto.StatusOption, 0, len(all))
	for _, st := range all {
		out = append(out, dto.StatusOption{Value: st, StatusInfo: st.Info()})
	}
	return out
}

func (s *OrderService) afterMutation(ctx context.Context, orderNumber, eventType string, payload map[string]any) {
	if err := s.opts.Cache.Invalidate(ctx, orderNumber); err != nil {
		s.log.Warn("tracking cache invalidation failed", "order_number", orderNumber, "error", err)
	}
	s.publish(ctx, eventType, orderNumber, payload)
}

func (s *OrderService) publish(ctx context.Context, eventType, orderNumber string, payload any) {
	if err := s.opts.Publisher.Publish(ctx, eventType, orderNumber, payload); err != nil {
		s.log.Warn("event publish failed", "event", eventType, "order_number", orderNumber, "error", err)
	}
}

func (s *OrderService) readError(err error) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrMalformedRecord) {
		return err
	}
	s.log.Error("order query failed", "error", err)
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func (s *OrderService) writeError(err error, msg, orderNumber string) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	s.log.Error(msg, "order_number", orderNumber, "error", err)
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "video"
	}
	return name
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return fallback
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, string, string, any) error { return nil }

type noopCache struct{}

func (noopCache) Get(context.Context, string) (*dto.TrackingView, bool, error) { return nil, false, nil }
func (noopCache) Set(context.Context, *dto.TrackingView) error                { return nil }
func (noopCache) Invalidate(context.Context, string) error                     { return nil }
