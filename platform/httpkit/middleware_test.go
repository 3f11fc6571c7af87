package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"servewell_backend/platform/apperr"
	"servewell_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

func TestKeyedRateLimiterSeparatesKeys(t *testing.T) {
	l := NewKeyedRateLimiter(rate.Limit(0.001), 2, time.Minute, logger.Nop())

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("expected burst of two for key a")
	}
	if l.Allow("a") {
		t.Fatalf("expected third event for key a to be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("expected key b to have its own bucket")
	}
}

func TestRateLimitMiddlewareRejects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewKeyedRateLimiter(rate.Limit(0.001), 1, time.Minute, logger.Nop())

	engine := gin.New()
	engine.Use(l.RateLimit())
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	first := httptest.NewRecorder()
	engine.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/ping", nil))
	second := httptest.NewRecorder()
	engine.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if first.Code != http.StatusNoContent {
		t.Fatalf("expected first request to pass, got %d", first.Code)
	}
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be limited, got %d", second.Code)
	}
}

func TestHandleErrorMapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	HandleError(c, apperr.NotFound("order not found"))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(rec)
	HandleError(c, errors.New("pq: connection refused"))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for untyped errors, got %d", rec.Code)
	}
}

func TestGeneratedTokenMatchesItsHash(t *testing.T) {
	plain, hash, err := GenerateToken()
	if err != nil {
		t.Fatalf("GenerateToken returned error: %v", err)
	}
	if !TokenMatches(plain, hash) {
		t.Fatalf("expected generated token to match its hash")
	}
	if TokenMatches(plain+"x", hash) {
		t.Fatalf("expected altered token to be rejected")
	}
	if TokenMatches("", hash) || TokenMatches(plain, "") {
		t.Fatalf("expected empty values never to match")
	}
}
