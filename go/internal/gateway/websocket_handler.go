package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Authorizer decides whether a request may open a dashboard connection
type Authorizer func(r *http.Request) bool

// WebSocketHandler handles WebSocket upgrade requests for admin dashboards
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	hub               *Hub
	authorize         Authorizer
}

// NewWebSocketHandler creates a new WebSocket handler. A nil authorizer allows every request.
func NewWebSocketHandler(cm *ConnectionManager, hub *Hub, authorize Authorizer) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		hub:               hub,
		authorize:         authorize,
	}
}

// HandleAdminConnection handles GET /ws/admin
func (h *WebSocketHandler) HandleAdminConnection(w http.ResponseWriter, r *http.Request) {
	if h.authorize != nil && !h.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	// After a successful upgrade the response is owned by the socket, so
	// failures past that point can only be logged
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to open dashboard connection")
	}
}

// HandleConnectionStats handles GET /ws/stats
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.hub.Stats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/admin", h.HandleAdminConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
}
