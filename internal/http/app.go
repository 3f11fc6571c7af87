package http

import (
	"context"
	"net/http"

	"servewell_backend/platform/config"
	"servewell_backend/platform/httpkit"
	"servewell_backend/platform/logger"
)

// HealthChecker exposes minimal functionality for readiness checks.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// App holds the fully initialized application dependencies.
// This is populated by main.go (the composition root) and passed to the router.
type App struct {
	Config config.HTTPConfig
	Logger *logger.Logger
	// Health is used for readiness checks (DB ping).
	Health HealthChecker
	// Metrics serves /metrics when set.
	Metrics http.Handler
	// WebhookRateLimiter is shared with modules through RouterContext.
	WebhookRateLimiter *httpkit.KeyedRateLimiter
	Modules            []Module
}
