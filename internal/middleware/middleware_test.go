package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"flipbook-fulfillment-service/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type fakeValidator map[string]*service.AuthUser

func (f fakeValidator) ValidateToken(_ context.Context, token string) (*service.AuthUser, error) {
	if u, ok := f[token]; ok {
		return u, nil
	}
	return nil, service.ErrInvalidToken
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := fakeValidator{
		"admin-token": {ID: "u1", Permissions: []string{"admin"}, Enabled: true},
		"user-token":  {ID: "u2", Permissions: []string{"user"}, Enabled: true},
	}

	r := gin.New()
	r.Use(RequestLogger(logger))
	admin := r.Group("/admin", AuthMiddleware(users, logger), AdminOnly())
	admin.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(CtxUserID))
	})
	return r
}

func TestAuthAndAdminMiddleware(t *testing.T) {
	r := newRouter()

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"missing header", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"not admin", "Bearer user-token", http.StatusForbidden, ""},
		{"admin", "Bearer admin-token", http.StatusOK, "u1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}
