package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the cadence of periodic timer broadcasts
const DefaultTickInterval = time.Second

// ErrHubClosed is returned when subscribing to a hub that has stopped
var ErrHubClosed = errors.New("broadcast hub closed")

// Subscriber receives broadcast frames. Send must never block; it returns
// false when the frame could not be queued, after which the hub drops the
// subscriber and closes it.
type Subscriber interface {
	ID() string
	Send(data []byte) bool
	Close()
}

// ParticipantSource provides the current participant list
type ParticipantSource interface {
	Snapshot() []models.Participant
}

// TimerSource provides the current exam countdown
type TimerSource interface {
	TimerSnapshot() models.TimerSnapshot
}

// HubConfig holds hub timing and buffering
type HubConfig struct {
	TickInterval   time.Duration
	RegisterBuffer int
}

// DefaultHubConfig returns the default hub configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		TickInterval:   DefaultTickInterval,
		RegisterBuffer: 64,
	}
}

// HubStats describes the current subscriber set
type HubStats struct {
	Subscribers int `json:"total_connections"`
}

// Hub fans snapshots out to every subscriber. All sends happen on the Run
// loop, which always reads the latest state when it wakes up, so the last
// frame a subscriber gets of each type matches the current state.
type Hub struct {
	clock        clockwork.Clock
	participants ParticipantSource
	timers       TimerSource
	config       HubConfig

	subscribers map[Subscriber]struct{}
	mu          sync.RWMutex

	registerCh     chan Subscriber
	participantsCh chan struct{}
	timerCh        chan struct{}
	done           chan struct{}
	stopOnce       sync.Once
}

// NewHub creates a broadcast hub reading state from the given sources
func NewHub(clock clockwork.Clock, participants ParticipantSource, timers TimerSource, config HubConfig) *Hub {
	if config.TickInterval <= 0 {
		config.TickInterval = DefaultTickInterval
	}
	if config.RegisterBuffer <= 0 {
		config.RegisterBuffer = DefaultHubConfig().RegisterBuffer
	}
	return &Hub{
		clock:          clock,
		participants:   participants,
		timers:         timers,
		config:         config,
		subscribers:    make(map[Subscriber]struct{}),
		registerCh:     make(chan Subscriber, config.RegisterBuffer),
		participantsCh: make(chan struct{}, 1),
		timerCh:        make(chan struct{}, 1),
		done:           make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.config.TickInterval)
	defer ticker.Stop()
	defer h.shutdown()

	log.Info().Dur("tick_interval", h.config.TickInterval).Msg("broadcast hub started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("broadcast hub shutting down")
			return
		case sub := <-h.registerCh:
			h.register(sub)
		case <-h.participantsCh:
			h.broadcastParticipants()
		case <-h.timerCh:
			h.broadcastTimer()
		case <-ticker.Chan():
			if ctx.Err() != nil {
				return
			}
			h.broadcastTimer()
		}
	}
}

// Subscribe hands a new subscriber to the Run loop, which sends it the
// current participant list before anything else.
func (h *Hub) Subscribe(ctx context.Context, sub Subscriber) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}

	select {
	case h.registerCh <- sub:
		// shutdown closes done before draining registerCh, so a send that
		// lands after the drain is caught here
		select {
		case <-h.done:
			sub.Close()
			return ErrHubClosed
		default:
			return nil
		}
	case <-h.done:
		return ErrHubClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unsubscribe removes and closes a subscriber. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	_, exists := h.subscribers[sub]
	delete(h.subscribers, sub)
	remaining := len(h.subscribers)
	h.mu.Unlock()

	sub.Close()

	if exists {
		log.Info().
			Str("subscriber_id", sub.ID()).
			Int("total_connections", remaining).
			Msg("subscriber unregistered")
	}
}

// NotifyParticipants asks the loop to push a fresh participant list.
// Signals raised before the loop gets to them collapse into one broadcast.
func (h *Hub) NotifyParticipants() {
	select {
	case h.participantsCh <- struct{}{}:
	default:
	}
}

// NotifyTimer asks the loop to push a fresh countdown without waiting for the next tick
func (h *Hub) NotifyTimer() {
	select {
	case h.timerCh <- struct{}{}:
	default:
	}
}

// Stats returns statistics about current subscribers
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return HubStats{Subscribers: len(h.subscribers)}
}

func (h *Hub) register(sub Subscriber) {
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	total := len(h.subscribers)
	h.mu.Unlock()

	log.Info().
		Str("subscriber_id", sub.ID()).
		Int("total_connections", total).
		Msg("subscriber registered")

	data, err := h.participantsFrame()
	if err != nil {
		log.Error().Err(err).Msg("failed to build initial participants snapshot")
		return
	}
	h.deliver([]Subscriber{sub}, data)
}

func (h *Hub) broadcastParticipants() {
	data, err := h.participantsFrame()
	if err != nil {
		log.Error().Err(err).Msg("failed to build participants snapshot")
		return
	}
	h.broadcast(EventTypeParticipants, data)
}

func (h *Hub) broadcastTimer() {
	event, err := NewTimerEvent(h.clock.Now(), h.timers.TimerSnapshot())
	if err != nil {
		log.Error().Err(err).Msg("failed to build timer snapshot")
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal timer event")
		return
	}
	h.broadcast(EventTypeTimer, data)
}

func (h *Hub) participantsFrame() ([]byte, error) {
	event, err := NewParticipantsEvent(h.clock.Now(), h.participants.Snapshot())
	if err != nil {
		return nil, err
	}
	return json.Marshal(event)
}

func (h *Hub) broadcast(eventType EventType, data []byte) {
	// Take a copy so sends never run under the lock
	h.mu.RLock()
	targets := make([]Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	h.deliver(targets, data)

	log.Debug().
		Str("event_type", string(eventType)).
		Int("connections", len(targets)).
		Msg("event broadcasted")
}

func (h *Hub) deliver(targets []Subscriber, data []byte) {
	for _, sub := range targets {
		if !sub.Send(data) {
			log.Warn().
				Str("subscriber_id", sub.ID()).
				Msg("subscriber send failed, dropping subscriber")
			h.Unsubscribe(sub)
		}
	}
}

func (h *Hub) shutdown() {
	h.stopOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		subs := h.subscribers
		h.subscribers = make(map[Subscriber]struct{})
		h.mu.Unlock()

		for sub := range subs {
			sub.Close()
		}

		// Registrations that never reached the loop
		for {
			select {
			case sub := <-h.registerCh:
				sub.Close()
			default:
				return
			}
		}
	})
}
