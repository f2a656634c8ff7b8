// Package server exposes HTTP handlers for health checks alongside the
// WebSocket gateway.
package server

import (
	"fmt"
	"net/http"

	"github.com/Tyrowin/linechat/internal/chat"
)

// HealthHandler provides a simple health check endpoint that returns server
// status and the number of participants online.
func HealthHandler(hub *chat.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "LineChat server is running! %d online\n", hub.Roster().Len())
	}
}
