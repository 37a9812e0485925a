package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/proctor/go/internal/exam"
	"github.com/mcdev12/proctor/go/internal/models"
	"github.com/mcdev12/proctor/go/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startGateway(t *testing.T, authorize Authorizer) (*Service, *presence.Registry, *httptest.Server) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	registry := presence.NewRegistry(clock)
	machine := exam.NewMachine(clock, models.ExamConfig{DurationMinutes: 60})
	svc := NewService(clock, registry, machine, DefaultConfig(), authorize)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		cancel()
		<-done
	})
	return svc, registry, server
}

func dial(t *testing.T, server *httptest.Server, query string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/admin" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func readWSEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

func TestAdminConnectionReceivesSnapshot(t *testing.T) {
	svc, registry, server := startGateway(t, nil)
	_, err := registry.Login("+100", "Ana")
	require.NoError(t, err)

	conn, _, err := dial(t, server, "")
	require.NoError(t, err)
	defer conn.Close()

	event := readWSEvent(t, conn)
	require.Equal(t, EventTypeParticipants, event.Type)
	assert.JSONEq(t, `1`, string(mustField(t, event.Data, "count")))

	_, err = registry.Login("+200", "Bea")
	require.NoError(t, err)
	svc.NotifyParticipants()

	event = readWSEvent(t, conn)
	require.Equal(t, EventTypeParticipants, event.Type)
	assert.JSONEq(t, `2`, string(mustField(t, event.Data, "count")))
}

func TestAdminConnectionUnauthorized(t *testing.T) {
	_, _, server := startGateway(t, func(r *http.Request) bool {
		return r.URL.Query().Get("token") == "s3cret"
	})

	_, resp, err := dial(t, server, "?token=wrong")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := dial(t, server, "?token=s3cret")
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, EventTypeParticipants, readWSEvent(t, conn).Type)
}

func TestConnectionStats(t *testing.T) {
	svc, _, server := startGateway(t, nil)

	conn, _, err := dial(t, server, "")
	require.NoError(t, err)
	readWSEvent(t, conn)

	resp, err := http.Get(server.URL + "/ws/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var stats HubStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 1, stats.Subscribers)

	conn.Close()
	require.Eventually(t, func() bool { return svc.GetStats().Subscribers == 0 }, 2*time.Second, 10*time.Millisecond)
}

func mustField(t *testing.T, data json.RawMessage, field string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &fields))
	value, ok := fields[field]
	require.True(t, ok, "missing field %s", field)
	return value
}
