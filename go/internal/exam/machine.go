package exam

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
)

// ErrInvalidDuration is returned when an exam is configured with less than one minute
var ErrInvalidDuration = apperr.Validation("duration must be at least 1 minute")

// DefaultDurationMinutes is used until an admin configures the exam
const DefaultDurationMinutes = 60

// State is the stored state of the single exam. Status is never part of it;
// it is always derived from these fields and the current time.
type State struct {
	StartTime *time.Time
	Stopped   bool
	Config    models.ExamConfig
}

// StatusAt derives the exam status at now.
func (s State) StatusAt(now time.Time) models.ExamStatus {
	switch {
	case s.Stopped:
		return models.ExamStatusFinished
	case s.StartTime == nil:
		return models.ExamStatusWaiting
	case now.Before(s.StartTime.Add(s.Config.Duration())):
		return models.ExamStatusRunning
	default:
		return models.ExamStatusFinished
	}
}

// SnapshotAt builds the countdown view of the exam at now.
func (s State) SnapshotAt(now time.Time) models.TimerSnapshot {
	total := s.Config.Duration()
	snap := models.TimerSnapshot{
		Status:  s.StatusAt(now),
		TotalMs: total.Milliseconds(),
	}

	switch snap.Status {
	case models.ExamStatusWaiting:
		snap.RemainingMs = snap.TotalMs
	case models.ExamStatusRunning:
		started := *s.StartTime
		snap.StartTime = &started
		snap.RemainingMs = started.Add(total).Sub(now).Milliseconds()
		snap.IsRunning = true
	case models.ExamStatusFinished:
		if s.StartTime != nil {
			started := *s.StartTime
			snap.StartTime = &started
		}
	}

	return snap
}

// Machine holds the exam lifecycle: waiting → running → finished, plus reset
type Machine struct {
	mu    sync.Mutex
	clock clockwork.Clock
	state State
}

// NewMachine creates a waiting exam with the given config
func NewMachine(clock clockwork.Clock, cfg models.ExamConfig) *Machine {
	if cfg.DurationMinutes < 1 {
		cfg.DurationMinutes = DefaultDurationMinutes
	}
	return &Machine{
		clock: clock,
		state: State{Config: cfg},
	}
}

// Configure replaces the config and starts the countdown immediately.
// Calling it while an exam is running restarts the countdown.
func (m *Machine) Configure(durationMinutes int) (models.TimerSnapshot, error) {
	if durationMinutes < 1 {
		return models.TimerSnapshot{}, ErrInvalidDuration
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.state = State{
		StartTime: &now,
		Config:    models.ExamConfig{DurationMinutes: durationMinutes},
	}
	return m.state.SnapshotAt(now), nil
}

// Start begins the countdown with the current config
func (m *Machine) Start() models.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.state.StartTime = &now
	m.state.Stopped = false
	return m.state.SnapshotAt(now)
}

// Stop ends the exam. It stays finished until Reset.
func (m *Machine) Stop() models.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.StartTime = nil
	m.state.Stopped = true
	return m.state.SnapshotAt(m.clock.Now())
}

// Reset returns the exam to waiting and keeps the config
func (m *Machine) Reset() models.TimerSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.StartTime = nil
	m.state.Stopped = false
	return m.state.SnapshotAt(m.clock.Now())
}

// Restore replaces the config without touching the lifecycle. Used to seed
// the machine from the durable store at boot.
func (m *Machine) Restore(cfg models.ExamConfig) {
	if cfg.DurationMinutes < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Config = cfg
}

// Status derives the status at now
func (m *Machine) Status(now time.Time) models.ExamStatus {
	return m.State().StatusAt(now)
}

// Snapshot builds the timer view at now
func (m *Machine) Snapshot(now time.Time) models.TimerSnapshot {
	return m.State().SnapshotAt(now)
}

// TimerSnapshot builds the timer view at the machine clock's current time
func (m *Machine) TimerSnapshot() models.TimerSnapshot {
	return m.Snapshot(m.clock.Now())
}

// IsRunning reports whether the exam is running right now
func (m *Machine) IsRunning() bool {
	return m.Status(m.clock.Now()) == models.ExamStatusRunning
}

// Config returns the current config
func (m *Machine) Config() models.ExamConfig {
	return m.State().Config
}

// State returns a copy of the stored state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.state
	if s.StartTime != nil {
		started := *s.StartTime
		s.StartTime = &started
	}
	return s
}
