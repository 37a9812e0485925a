package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/eventbus"
	"github.com/mcdev12/proctor/go/internal/exam"
	"github.com/mcdev12/proctor/go/internal/gateway"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/mcdev12/proctor/go/internal/presence"
	"github.com/mcdev12/proctor/go/internal/proctor"
	"github.com/mcdev12/proctor/go/internal/students"
	"github.com/rs/zerolog/log"
)

type Services struct {
	App     *proctor.App
	Proctor *proctor.Service
	Gateway *gateway.Service
	Janitor *presence.Janitor
	Bus     eventbus.Publisher

	database *sql.DB
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Store → App → Service, with the in-memory core shared by the gateway and janitor
	clock := clockwork.NewRealClock()
	services := &Services{}

	store, err := setupStore(ctx, config, clock, services)
	if err != nil {
		return nil, err
	}

	bus, err := setupEventBus(ctx, config)
	if err != nil {
		services.Close()
		return nil, err
	}
	services.Bus = bus

	machine := exam.NewMachine(clock, models.ExamConfig{DurationMinutes: config.Exam.DefaultDurationMinutes})
	registry := presence.NewRegistry(clock)

	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.HubConfig.TickInterval = config.Broadcast.TickInterval
	gatewayService := gateway.NewService(clock, registry, machine, gatewayConfig, proctor.AdminAuthorizer(config.Server.AdminToken))

	app := proctor.NewApp(store, machine, registry, gatewayService, bus, clock)
	if err := app.RestoreConfig(ctx); err != nil {
		log.Warn().Err(err).Msg("using default exam config")
	}
	proctorService := proctor.NewService(app, config.Server.AdminToken)

	janitor := presence.NewJanitor(registry, app, clock, presence.JanitorConfig{
		SweepInterval:     config.Presence.SweepInterval,
		InactivityTimeout: config.Presence.InactivityTimeout,
	})

	services.App = app
	services.Proctor = proctorService
	services.Gateway = gatewayService
	services.Janitor = janitor
	return services, nil
}

func setupStore(ctx context.Context, config *Config, clock clockwork.Clock, services *Services) (proctor.Store, error) {
	if config.Store.Driver == storeDriverMemory {
		log.Warn().Msg("using in-memory store, results are lost on restart")
		return students.NewMemoryStore(clock), nil
	}

	database, err := setupDatabase(ctx)
	if err != nil {
		return nil, err
	}
	services.database = database
	return students.NewRepository(database), nil
}

func setupEventBus(ctx context.Context, config *Config) (eventbus.Publisher, error) {
	if config.Events.NatsURL == "" {
		log.Info().Msg("NATS_URL not set, domain events go to the log")
		return eventbus.NewLogPublisher(), nil
	}

	jsConfig := eventbus.DefaultJetStreamConfig()
	jsConfig.URL = config.Events.NatsURL
	jsConfig.StreamName = config.Events.StreamName

	publisher, err := eventbus.NewJetStreamPublisher(ctx, jsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	log.Info().
		Str("nats_url", jsConfig.URL).
		Str("stream", jsConfig.StreamName).
		Msg("publishing domain events to JetStream")
	return publisher, nil
}

// Close releases the event bus and database connections
func (s *Services) Close() {
	if s.Bus != nil {
		if err := s.Bus.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close event publisher")
		}
	}
	if s.database != nil {
		if err := s.database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}
}
