package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"flipbook-fulfillment-service/internal/middleware"
	"flipbook-fulfillment-service/internal/repository"
	"flipbook-fulfillment-service/internal/service"
	"flipbook-fulfillment-service/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router *gin.Engine
	svc    *service.OrderService
	videos *storage.MemoryVideoStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	videos := storage.NewMemoryVideoStorage()
	svc := service.NewOrderService(repository.NewMemoryOrderRepository(), videos, service.Options{
		BasePrice:        25000,
		GiftPackagePrice: 3000,
		Logger:           logger,
	})

	r := gin.New()
	fakeAdmin := func(c *gin.Context) {
		c.Set(middleware.CtxUserID, "admin-1")
		c.Set(middleware.CtxUserPermissions, []string{"admin"})
		c.Next()
	}
	RegisterRoutes(r, NewOrderController(svc, logger), fakeAdmin, middleware.AdminOnly())
	return &testServer{router: r, svc: svc, videos: videos}
}

func (s *testServer) do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w.Code, body
}

func orderForm(t *testing.T, fields map[string]string, withVideo bool) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if withVideo {
		fw, err := mw.CreateFormFile("videoFile", "trip.mp4")
		require.NoError(t, err)
		_, err = fw.Write([]byte("not really a video"))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/orders", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func (s *testServer) createOrder(t *testing.T, gift string) string {
	t.Helper()
	code, body := s.do(t, orderForm(t, map[string]string{
		"customerName":   "김하늘",
		"customerPhone":  "010-1234-5678",
		"addressZipcode": "04524",
		"addressMain":    "서울 중구 세종대로 110",
		"isGift":         gift,
	}, true))
	require.Equal(t, http.StatusCreated, code, body)
	return body["orderNumber"].(string)
}

func TestCreateOrderEndpoint(t *testing.T) {
	s := newTestServer(t)

	number := s.createOrder(t, "true")
	assert.Regexp(t, `^FB\d{8}[A-Z0-9]{4}$`, number)
	require.Len(t, s.videos.Paths(), 1)
	assert.True(t, strings.HasPrefix(s.videos.Paths()[0], number+"/"))

	o, err := s.svc.GetByNumber(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, int64(28000), o.TotalPrice)
	assert.Equal(t, "trip.mp4", o.VideoFilename)

	other := s.createOrder(t, "yes")
	o, err = s.svc.GetByNumber(context.Background(), other)
	require.NoError(t, err)
	assert.False(t, o.IsGift)
	assert.Equal(t, int64(25000), o.TotalPrice)
}

func TestCreateOrderEndpointValidation(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, orderForm(t, map[string]string{"customerName": "김하늘"}, true))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "validation", body["code"])

	code, _ = s.do(t, orderForm(t, map[string]string{"customerName": "a", "customerPhone": "1"}, false))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Empty(t, s.videos.Paths())
}

func TestTrackEndpoint(t *testing.T) {
	s := newTestServer(t)
	number := s.createOrder(t, "false")

	code, body := s.do(t, httptest.NewRequest(http.MethodGet, "/track/"+strings.ToLower(number), nil))
	require.Equal(t, http.StatusOK, code)
	tracking := body["tracking"].(map[string]any)
	assert.Equal(t, number, tracking["orderNumber"])
	assert.Equal(t, float64(1), tracking["step"])
	assert.Len(t, tracking["steps"], 6)

	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/track/FB20250403ZZZZ", nil))
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", body["code"])
}

func TestAdminFlow(t *testing.T) {
	s := newTestServer(t)
	number := s.createOrder(t, "false")
	o, err := s.svc.GetByNumber(context.Background(), number)
	require.NoError(t, err)

	code, body := s.do(t, jsonRequest(http.MethodPatch, "/admin/orders/"+o.ID+"/status", `{"status":"delivered","adminNote":"직접 전달"}`))
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])

	code, body = s.do(t, jsonRequest(http.MethodPatch, "/admin/orders/"+o.ID+"/tracking", `{"courier":"cj","trackingNumber":"1234567890"}`))
	require.Equal(t, http.StatusOK, code, body)

	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/orders/"+o.ID, nil))
	require.Equal(t, http.StatusOK, code)
	order := body["order"].(map[string]any)
	assert.Equal(t, "shipping", order["status"])
	assert.Equal(t, "cj", order["courier"])
	assert.Equal(t, "1234567890", order["trackingNumber"])
	assert.Equal(t, "직접 전달", order["adminNote"])

	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/orders?status=shipping&search=1234", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 1)

	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/orders?status=cancelled", nil))
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["orders"], 0)

	code, _ = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/orders?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = s.do(t, httptest.NewRequest(http.MethodGet, "/admin/order-numbers/"+strings.ToLower(number), nil))
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, o.ID, body["order"].(map[string]any)["id"])
}

func TestAdminValidationErrors(t *testing.T) {
	s := newTestServer(t)
	number := s.createOrder(t, "false")
	o, err := s.svc.GetByNumber(context.Background(), number)
	require.NoError(t, err)

	code, body := s.do(t, jsonRequest(http.MethodPatch, "/admin/orders/"+o.ID+"/tracking", `{"courier":"cj"}`))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation", body["code"])

	code, _ = s.do(t, jsonRequest(http.MethodPatch, "/admin/orders/"+o.ID+"/status", `{}`))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, jsonRequest(http.MethodPatch, "/admin/orders/ffffffffffffffffffffffff/status", `{"status":"paid"}`))
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewOrderService(repository.NewMemoryOrderRepository(), storage.NewMemoryVideoStorage(), service.Options{Logger: logger})

	r := gin.New()
	plainUser := func(c *gin.Context) {
		c.Set(middleware.CtxUserPermissions, []string{"user"})
		c.Next()
	}
	RegisterRoutes(r, NewOrderController(svc, logger), plainUser, middleware.AdminOnly())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/orders", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/couriers", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "CJ대한통운")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/statuses", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"value":"pending_payment"`)
}

func TestHealth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	brokerErr := errors.New("rabbitmq publish channel closed")
	var down bool

	r := gin.New()
	r.GET("/healthz", Health(map[string]func() error{
		"rabbitmq": func() error {
			if down {
				return brokerErr
			}
			return nil
		},
	}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	down = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","failing":{"rabbitmq":"rabbitmq publish channel closed"}}`, w.Body.String())
}
