package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often the janitor looks for stale participants
const DefaultSweepInterval = 30 * time.Second

// EvictionHandler is told about participants removed by a sweep
type EvictionHandler interface {
	HandleEviction(ctx context.Context, ids []string)
}

// JanitorConfig holds janitor timing
type JanitorConfig struct {
	SweepInterval     time.Duration
	InactivityTimeout time.Duration
}

// DefaultJanitorConfig returns the default sweep cadence and inactivity timeout
func DefaultJanitorConfig() JanitorConfig {
	return JanitorConfig{
		SweepInterval:     DefaultSweepInterval,
		InactivityTimeout: DefaultInactivityTimeout,
	}
}

// Janitor periodically evicts participants that stopped sending activity
type Janitor struct {
	registry *Registry
	handler  EvictionHandler
	clock    clockwork.Clock
	config   JanitorConfig
}

// NewJanitor creates a janitor for the registry
func NewJanitor(registry *Registry, handler EvictionHandler, clock clockwork.Clock, config JanitorConfig) *Janitor {
	if config.SweepInterval <= 0 {
		config.SweepInterval = DefaultSweepInterval
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = DefaultInactivityTimeout
	}
	return &Janitor{
		registry: registry,
		handler:  handler,
		clock:    clock,
		config:   config,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (j *Janitor) Run(ctx context.Context) {
	ticker := j.clock.NewTicker(j.config.SweepInterval)
	defer ticker.Stop()

	log.Info().
		Dur("sweep_interval", j.config.SweepInterval).
		Dur("inactivity_timeout", j.config.InactivityTimeout).
		Msg("presence janitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("presence janitor shutting down")
			return
		case <-ticker.Chan():
			// cancellation wins over a tick that raced it
			if ctx.Err() != nil {
				log.Info().Msg("presence janitor shutting down")
				return
			}
			if err := j.Sweep(ctx); err != nil {
				log.Error().Err(err).Msg("presence sweep failed")
			}
		}
	}
}

// Sweep runs one eviction pass. A panic inside the pass is returned as an error.
func (j *Janitor) Sweep(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sweep panicked: %v", r)
		}
	}()

	evicted := j.registry.EvictStale(j.clock.Now(), j.config.InactivityTimeout)
	if len(evicted) == 0 {
		return nil
	}

	log.Info().
		Strs("participant_ids", evicted).
		Int("remaining", j.registry.Len()).
		Msg("evicted inactive participants")

	if j.handler != nil {
		j.handler.HandleEviction(ctx, evicted)
	}
	return nil
}
