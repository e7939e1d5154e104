// Package api implements the HTTP surface: gin handlers and the
// router that wires them behind authentication and rate-limit
// middleware, translating service-layer results into the wire schema.
package api

import (
	"github.com/subraAntoine/apilexia/internal/service"
)

// Handler bundles the composition root every endpoint handler reads
// from; constructed once at process startup and shared across requests.
type Handler struct {
	services *service.Services
}

func NewHandler(services *service.Services) *Handler {
	return &Handler{services: services}
}
