// Package server wires HTTP handlers into a ServeMux for the chat
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/Tyrowin/linechat/internal/chat"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application routes.
// The metrics route is registered only when metricsHandler is non-nil.
func SetupRoutes(hub *chat.Hub, gateway http.Handler, metricsHandler http.Handler) *http.ServeMux {
	health := HealthHandler(hub)

	mux := http.NewServeMux()
	mux.Handle("/", health)
	mux.Handle("/healthz", health)
	mux.Handle("/ws", gateway)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	return mux
}
