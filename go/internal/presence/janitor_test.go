package presence

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu      sync.Mutex
	batches [][]string
	calls   chan []string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{calls: make(chan []string, 16)}
}

func (h *recordingHandler) HandleEviction(_ context.Context, ids []string) {
	h.mu.Lock()
	h.batches = append(h.batches, ids)
	h.mu.Unlock()
	h.calls <- ids
}

type panickingHandler struct{}

func (panickingHandler) HandleEviction(context.Context, []string) {
	panic("broadcast exploded")
}

func TestSweep(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := NewRegistry(clock)
	h := newRecordingHandler()
	j := NewJanitor(r, h, clock, DefaultJanitorConfig())

	_, _ = r.Login("+100", "Ana")
	require.NoError(t, j.Sweep(context.Background()))
	assert.Empty(t, h.batches, "nothing stale, handler must not be called")

	clock.Advance(5*time.Minute + time.Second)
	require.NoError(t, j.Sweep(context.Background()))
	require.Len(t, h.batches, 1)
	assert.Equal(t, []string{"+100"}, h.batches[0])
	assert.Zero(t, r.Len())
}

func TestSweepRecoversPanics(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := NewRegistry(clock)
	j := NewJanitor(r, panickingHandler{}, clock, DefaultJanitorConfig())

	_, _ = r.Login("+100", "Ana")
	clock.Advance(10 * time.Minute)

	err := j.Sweep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcast exploded")
}

func TestJanitorRun(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	r := NewRegistry(clock)
	h := newRecordingHandler()
	j := NewJanitor(r, h, clock, DefaultJanitorConfig())

	_, _ = r.Login("+100", "Ana")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	clock.Advance(6 * time.Minute)
	select {
	case ids := <-h.calls:
		assert.Equal(t, []string{"+100"}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not evict the stale participant")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after cancellation")
	}

	// no sweep runs once the janitor has stopped
	_, _ = r.Login("+200", "Bea")
	clock.Advance(time.Hour)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, h.calls)
}

func TestNewJanitorDefaults(t *testing.T) {
	j := NewJanitor(NewRegistry(clockwork.NewRealClock()), nil, clockwork.NewRealClock(), JanitorConfig{})
	assert.Equal(t, DefaultJanitorConfig(), j.config)
}
