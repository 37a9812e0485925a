package gateway

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Service is the live dashboard gateway: the broadcast hub plus its WebSocket transport
type Service struct {
	hub               *Hub
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the gateway service
type Config struct {
	HubConfig        HubConfig
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		HubConfig:        DefaultHubConfig(),
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// NewService creates a new gateway service
func NewService(clock clockwork.Clock, participants ParticipantSource, timers TimerSource, config Config, authorize Authorizer) *Service {
	hub := NewHub(clock, participants, timers, config.HubConfig)
	connectionManager := NewConnectionManager(hub, config.ConnectionConfig)
	wsHandler := NewWebSocketHandler(connectionManager, hub, authorize)

	return &Service{
		hub:               hub,
		connectionManager: connectionManager,
		wsHandler:         wsHandler,
	}
}

// Start runs the broadcast loop until ctx is cancelled
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting dashboard gateway")
	s.hub.Run(ctx)
	log.Info().Msg("dashboard gateway stopped")
}

// RegisterRoutes registers the WebSocket HTTP routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	s.wsHandler.RegisterRoutes(mux)
	log.Info().Msg("dashboard gateway routes registered")
}

// NotifyParticipants pushes the latest participant list to every dashboard
func (s *Service) NotifyParticipants() {
	s.hub.NotifyParticipants()
}

// NotifyTimer pushes the latest countdown to every dashboard
func (s *Service) NotifyTimer() {
	s.hub.NotifyTimer()
}

// GetStats returns statistics about the gateway service
func (s *Service) GetStats() HubStats {
	return s.hub.Stats()
}
