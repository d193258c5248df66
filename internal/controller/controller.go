package controller

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"flipbook-fulfillment-service/internal/dto"
	"flipbook-fulfillment-service/internal/middleware"
	"flipbook-fulfillment-service/internal/model"
	"flipbook-fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	uploadTimeout = 60 * time.Second
	queryTimeout  = 5 * time.Second
)

type OrderController struct {
	Service *service.OrderService
	Logger  *slog.Logger
}

func NewOrderController(s *service.OrderService, logger *slog.Logger) *OrderController {
	return &OrderController{Service: s, Logger: logger.With("component", "order-controller")}
}

// RegisterRoutes mounts public routes and the /admin group guarded by adminChain.
func RegisterRoutes(r gin.IRouter, ctl *OrderController, adminChain ...gin.HandlerFunc) {
	r.POST("/orders", ctl.CreateOrder)
	r.GET("/track/:orderNumber", ctl.Track)
	r.GET("/couriers", ctl.ListCouriers)
	r.GET("/statuses", ctl.ListStatuses)

	admin := r.Group("/admin", adminChain...)
	admin.GET("/orders", ctl.ListOrders)
	admin.GET("/orders/:id", ctl.GetOrder)
	admin.GET("/order-numbers/:orderNumber", ctl.GetOrderByNumber)
	admin.PATCH("/orders/:id/status", ctl.UpdateStatus)
	admin.PATCH("/orders/:id/tracking", ctl.UpdateTracking)
}

// POST /orders (multipart), no token required
func (ctl *OrderController) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBind(&req); err != nil {
		ctl.fail(c, service.ErrValidation, "필수 정보가 누락되었습니다.")
		return
	}
	req.IsGift = c.PostForm("isGift") == "true"

	var video *service.Video
	fh, err := c.FormFile("videoFile")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		ctl.fail(c, service.ErrValidation, "영상 파일을 읽을 수 없습니다.")
		return
	default:
		f, err := fh.Open()
		if err != nil {
			ctl.fail(c, service.ErrValidation, "영상 파일을 읽을 수 없습니다.")
			return
		}
		defer f.Close()
		video = &service.Video{Filename: fh.Filename, Size: fh.Size, Content: f}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), uploadTimeout)
	defer cancel()

	orderNumber, err := ctl.Service.CreateOrder(ctx, req, video)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			ctl.fail(c, err, "필수 정보가 누락되었습니다.")
		case errors.Is(err, service.ErrUpload):
			ctl.fail(c, err, "영상 업로드에 실패했습니다.")
		default:
			ctl.fail(c, err, "주문 저장에 실패했습니다.")
		}
		return
	}
	ok(c, http.StatusCreated, gin.H{"orderNumber": orderNumber})
}

// GET /track/:orderNumber, no token required
func (ctl *OrderController) Track(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	view, err := ctl.Service.Track(ctx, c.Param("orderNumber"))
	if err != nil {
		ctl.fail(c, err, "주문 조회 중 오류가 발생했습니다.")
		return
	}
	ok(c, http.StatusOK, gin.H{"tracking": view})
}

func (ctl *OrderController) ListCouriers(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"couriers": model.Couriers()})
}

func (ctl *OrderController) ListStatuses(c *gin.Context) {
	ok(c, http.StatusOK, gin.H{"statuses": service.StatusOptions()})
}

// GET /admin/orders?status=&search=
func (ctl *OrderController) ListOrders(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	orders, err := ctl.Service.List(ctx, c.Query("status"), c.Query("search"))
	if err != nil {
		ctl.fail(c, err, "주문 목록 조회에 실패했습니다.")
		return
	}
	ok(c, http.StatusOK, gin.H{"orders": orders})
}

// GET /admin/orders/:id
func (ctl *OrderController) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	o, err := ctl.Service.GetByID(ctx, c.Param("id"))
	if err != nil {
		ctl.fail(c, err, "주문 조회 중 오류가 발생했습니다.")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": o})
}

// GET /admin/order-numbers/:orderNumber
func (ctl *OrderController) GetOrderByNumber(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	o, err := ctl.Service.GetByNumber(ctx, c.Param("orderNumber"))
	if err != nil {
		ctl.fail(c, err, "주문 조회 중 오류가 발생했습니다.")
		return
	}
	ok(c, http.StatusOK, gin.H{"order": o})
}

// PATCH /admin/orders/:id/status
func (ctl *OrderController) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.fail(c, service.ErrValidation, "변경할 상태를 선택해주세요.")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	err := ctl.Service.UpdateStatus(ctx, c.Param("id"), req.Status, req.AdminNote, c.GetString(middleware.CtxUserID))
	if err != nil {
		ctl.fail(c, err, "상태 변경에 실패했습니다.")
		return
	}
	ok(c, http.StatusOK, nil)
}

// PATCH /admin/orders/:id/tracking
func (ctl *OrderController) UpdateTracking(c *gin.Context) {
	var req dto.UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ctl.fail(c, service.ErrValidation, "택배사와 운송장 번호를 입력해주세요.")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	err := ctl.Service.UpdateTracking(ctx, c.Param("id"), req.Courier, req.TrackingNumber, c.GetString(middleware.CtxUserID))
	if err != nil {
		ctl.fail(c, err, "운송장 등록에 실패했습니다.")
		return
	}
	ok(c, http.StatusOK, nil)
}

func ok(c *gin.Context, code int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(code, body)
}

// fail writes the tagged failure result. msg is the user-facing text for
// validation and persistence failures; other kinds carry their own text.
func (ctl *OrderController) fail(c *gin.Context, err error, msg string) {
	code, kind := http.StatusInternalServerError, "persistence"
	switch {
	case errors.Is(err, service.ErrValidation):
		code, kind = http.StatusBadRequest, "validation"
	case errors.Is(err, service.ErrNotFound):
		code, kind, msg = http.StatusNotFound, "not_found", "주문을 찾을 수 없습니다."
	case errors.Is(err, service.ErrInvalidTransition):
		code, kind, msg = http.StatusConflict, "invalid_transition", "허용되지 않는 상태 변경입니다."
	case errors.Is(err, service.ErrUpload):
		kind = "upload"
	case errors.Is(err, service.ErrMalformedRecord):
		kind = "malformed_record"
	}
	if code >= http.StatusInternalServerError {
		ctl.Logger.Error("request failed", "route", c.FullPath(), "kind", kind, "error", err)
	}
	c.JSON(code, gin.H{"success": false, "error": msg, "code": kind})
}
