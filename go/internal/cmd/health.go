package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mcdev12/proctor/go/internal/eventbus"
	"github.com/rs/zerolog/log"
)

type HealthStatus struct {
	Healthy              bool     `json:"healthy"`
	Status               string   `json:"status"`
	Uptime               float64  `json:"uptime"`
	DatabaseConnected    *bool    `json:"database_connected,omitempty"`
	NATSConnected        *bool    `json:"nats_connected,omitempty"`
	DashboardConnections int      `json:"dashboard_connections"`
	Participants         int      `json:"participants"`
	Errors               []string `json:"errors"`
}

// connectionChecker is implemented by publishers that hold a broker connection
type connectionChecker interface {
	IsConnected() bool
}

type HealthChecker struct {
	db           *sql.DB
	bus          eventbus.Publisher
	dashboards   func() int
	participants func() int
	startedAt    time.Time
}

func NewHealthChecker(services *Services, startedAt time.Time) *HealthChecker {
	return &HealthChecker{
		db:           services.database,
		bus:          services.Bus,
		dashboards:   func() int { return services.Gateway.GetStats().Subscribers },
		participants: func() int { return services.App.Participants().Count },
		startedAt:    startedAt,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Uptime:  time.Since(h.startedAt).Seconds(),
		Errors:  []string{},
	}

	// Check database connection
	if h.db != nil {
		connected := true
		if err := h.db.PingContext(ctx); err != nil {
			connected = false
			status.Healthy = false
			log.Error().Err(err).Msg("health check: database ping failed")
			status.Errors = append(status.Errors, "database unreachable")
		}
		status.DatabaseConnected = &connected
	}

	// Check NATS connection
	if checker, ok := h.bus.(connectionChecker); ok {
		connected := checker.IsConnected()
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
		status.NATSConnected = &connected
	}

	if h.dashboards != nil {
		status.DashboardConnections = h.dashboards()
	}
	if h.participants != nil {
		status.Participants = h.participants()
	}

	status.Status = "ok"
	if !status.Healthy {
		status.Status = "degraded"
	}
	return status
}

// HTTP handler helper
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
