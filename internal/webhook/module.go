// Package webhook provides the inbound WhatsApp webhook module. Messages are
// authenticated per company and handed to the task queue; the conversation
// step itself runs in the worker.
package webhook

import (
	apphttp "servewell_backend/internal/http"
	"servewell_backend/internal/scheduler"
	"servewell_backend/platform/logger"
)

// Module is the webhook bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	log     *logger.Logger
}

// NewModule creates the webhook module.
func NewModule(companies CompanyResolver, queue scheduler.StepEnqueuer, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(companies, queue, log),
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "webhook"
}

// RegisterRoutes mounts webhook routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.POST("/whatsapp/:securityToken", TokenRateLimit(ctx.WebhookRateLimiter, m.log), m.handler.HandleWhatsApp)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
