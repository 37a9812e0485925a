package exam

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/apperr"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

func newTestMachine() (*Machine, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClockAt(t0)
	return NewMachine(clock, models.ExamConfig{DurationMinutes: 60}), clock
}

func TestConfigure(t *testing.T) {
	for _, d := range []int{1, 2, 45, 60, 90, 600} {
		m, _ := newTestMachine()

		snap, err := m.Configure(d)
		require.NoError(t, err)

		total := time.Duration(d) * time.Minute
		assert.Equal(t, models.ExamStatusRunning, snap.Status)
		assert.Equal(t, models.ExamStatusRunning, m.Status(t0))
		assert.Equal(t, models.ExamStatusRunning, m.Status(t0.Add(total-time.Millisecond)))
		assert.Equal(t, models.ExamStatusFinished, m.Status(t0.Add(total+time.Millisecond)))
		assert.Equal(t, d, m.Config().DurationMinutes)
	}
}

func TestConfigureRejectsInvalidDuration(t *testing.T) {
	m, _ := newTestMachine()

	for _, d := range []int{0, -1, -60} {
		_, err := m.Configure(d)
		require.ErrorIs(t, err, ErrInvalidDuration)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
	assert.Equal(t, models.ExamStatusWaiting, m.Status(t0))
	assert.Equal(t, 60, m.Config().DurationMinutes)
}

func TestSixtyMinuteExam(t *testing.T) {
	m, _ := newTestMachine()
	_, err := m.Configure(60)
	require.NoError(t, err)

	assert.Equal(t, models.ExamStatusRunning, m.Status(t0.Add(59*time.Minute)))
	assert.Equal(t, models.ExamStatusFinished, m.Status(t0.Add(61*time.Minute)))
}

func TestWaitingRegardlessOfTime(t *testing.T) {
	m, _ := newTestMachine()

	for _, offset := range []time.Duration{0, time.Hour, 48 * time.Hour, -time.Hour} {
		assert.Equal(t, models.ExamStatusWaiting, m.Status(t0.Add(offset)))
	}
}

func TestStop(t *testing.T) {
	m, clock := newTestMachine()
	_, err := m.Configure(30)
	require.NoError(t, err)

	snap := m.Stop()
	assert.Equal(t, models.ExamStatusFinished, snap.Status)
	assert.Nil(t, m.State().StartTime)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, models.ExamStatusFinished, m.Status(clock.Now()))
}

func TestReset(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *Machine)
	}{
		{name: "waiting", setup: func(m *Machine) {}},
		{name: "running", setup: func(m *Machine) { _, _ = m.Configure(20) }},
		{name: "stopped", setup: func(m *Machine) { _, _ = m.Configure(20); m.Stop() }},
		{name: "started", setup: func(m *Machine) { m.Start() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, clock := newTestMachine()
			tt.setup(m)

			snap := m.Reset()
			assert.Equal(t, models.ExamStatusWaiting, snap.Status)
			assert.Equal(t, models.ExamStatusWaiting, m.Status(clock.Now()))
			assert.Nil(t, m.State().StartTime)
			assert.False(t, m.State().Stopped)
		})
	}
}

func TestResetPreservesConfig(t *testing.T) {
	m, _ := newTestMachine()
	_, err := m.Configure(25)
	require.NoError(t, err)

	m.Reset()
	assert.Equal(t, 25, m.Config().DurationMinutes)
}

func TestReconfigureRestartsCountdown(t *testing.T) {
	m, clock := newTestMachine()
	_, err := m.Configure(10)
	require.NoError(t, err)

	clock.Advance(8 * time.Minute)
	_, err = m.Configure(10)
	require.NoError(t, err)

	snap := m.TimerSnapshot()
	assert.Equal(t, (10 * time.Minute).Milliseconds(), snap.RemainingMs)
	assert.Equal(t, clock.Now(), *snap.StartTime)
}

func TestSnapshot(t *testing.T) {
	m, clock := newTestMachine()

	waiting := m.TimerSnapshot()
	assert.Equal(t, models.TimerSnapshot{
		Status:      models.ExamStatusWaiting,
		RemainingMs: time.Hour.Milliseconds(),
		TotalMs:     time.Hour.Milliseconds(),
	}, waiting)

	m.Start()
	clock.Advance(15 * time.Minute)
	running := m.TimerSnapshot()
	assert.True(t, running.IsRunning)
	assert.Equal(t, (45 * time.Minute).Milliseconds(), running.RemainingMs)
	assert.Equal(t, time.Hour.Milliseconds(), running.TotalMs)

	clock.Advance(time.Hour)
	finished := m.TimerSnapshot()
	assert.False(t, finished.IsRunning)
	assert.Equal(t, models.ExamStatusFinished, finished.Status)
	assert.Zero(t, finished.RemainingMs)
}

func TestStatusIsDerivedOnEveryRead(t *testing.T) {
	m, clock := newTestMachine()
	_, err := m.Configure(1)
	require.NoError(t, err)
	assert.True(t, m.IsRunning())

	clock.Advance(time.Minute)
	assert.False(t, m.IsRunning())
	assert.Equal(t, models.ExamStatusFinished, m.TimerSnapshot().Status)
}

func TestRestore(t *testing.T) {
	m, _ := newTestMachine()

	m.Restore(models.ExamConfig{DurationMinutes: 75})
	assert.Equal(t, 75, m.Config().DurationMinutes)
	assert.Equal(t, models.ExamStatusWaiting, m.Status(t0))

	m.Restore(models.ExamConfig{DurationMinutes: 0})
	assert.Equal(t, 75, m.Config().DurationMinutes)
}

func TestStateReturnsCopy(t *testing.T) {
	m, _ := newTestMachine()
	m.Start()

	s := m.State()
	*s.StartTime = s.StartTime.Add(-time.Hour)

	assert.Equal(t, t0, *m.State().StartTime)
}
