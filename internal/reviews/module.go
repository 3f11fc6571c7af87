// Package reviews provides the post-purchase feedback bounded context module.
// This file wires order ingestion and conversation read-back into the router.
package reviews

import (
	apphttp "servewell_backend/internal/http"
	"servewell_backend/internal/reviews/handler"
	"servewell_backend/platform/logger"
	"servewell_backend/platform/validator"
)

// Store is the persistence the HTTP surface needs.
type Store interface {
	handler.CompanyFinder
	handler.OrderStore
}

// Module is the reviews bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	companies handler.CompanyFinder
	log       *logger.Logger
}

// NewModule creates the reviews module. audio may be nil.
func NewModule(store Store, seeder handler.Seeder, audio handler.AudioLinker, val *validator.Validator, region string, log *logger.Logger) *Module {
	return &Module{
		handler:   handler.New(store, seeder, audio, val, region, log),
		companies: store,
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reviews"
}

// RegisterRoutes mounts order routes behind company token auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	orders := ctx.V1.Group("/orders")
	orders.Use(handler.CompanyAuth(m.companies, m.log))
	m.handler.RegisterRoutes(orders)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
