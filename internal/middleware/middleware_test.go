package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	autosell_errors "xianyu-autosell/pkg/errors"
	"xianyu-autosell/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestIDMiddleware())
	var seen interface{}
	engine.GET("/", func(c *gin.Context) {
		seen = c.Request.Context().Value(logger.RequestIdKey)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
	assert.Equal(t, "abc-123", seen)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get("X-Request-Id"), 32)
}

func TestErrorHandlerMapsDomainErrors(t *testing.T) {
	engine := gin.New()
	engine.Use(ErrorHandler(logger.NewNop()))
	engine.GET("/missing", func(c *gin.Context) {
		_ = c.Error(autosell_errors.ErrNotFound)
	})
	engine.GET("/boom", func(c *gin.Context) {
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"error":"not found","code":"NOT_FOUND","kind":"rejected"}`, w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestOperatorAuthDisabledWithoutSecret(t *testing.T) {
	engine := gin.New()
	engine.Use(OperatorAuth(""))
	engine.GET("/", func(c *gin.Context) {
		_, ok := OperatorFromContext(c.Request.Context())
		assert.False(t, ok)
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRateLimitWithoutLimiterPasses(t *testing.T) {
	engine := gin.New()
	engine.POST("/", RateLimitMiddleware(nil, "process", nil), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}
