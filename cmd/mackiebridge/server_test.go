package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mackiebridge/internal/surface"
)

// serveSnapshots answers RequestStateSnapshot events like the daemon loop.
func serveSnapshots(ctx context.Context, events <-chan Event, snap surface.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if req, ok := ev.(RequestStateSnapshot); ok {
				req.Reply <- snap
			}
		}
	}
}

func newTestStatusServer(t *testing.T, snap *surface.Snapshot) (*StatusServer, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var events chan Event
	if snap != nil {
		events = make(chan Event, 4)
		go serveSnapshots(ctx, events, *snap)
	}
	status := NewStatusServer(quietLogger(), events, HubConfig{})
	go status.Hub().Run(ctx)

	ts := httptest.NewServer(newStatusRouter(status, []string{"http://localhost:3000"}, false))
	t.Cleanup(ts.Close)
	return status, ts
}

func TestStatusRouter_Health(t *testing.T) {
	_, ts := newTestStatusServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, version, body["version"])
}

func TestStatusRouter_State(t *testing.T) {
	_, ts := newTestStatusServer(t, &surface.Snapshot{Mode: "send", Page: 1, Flip: true})

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap surface.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "send", snap.Mode)
	assert.Equal(t, 1, snap.Page)
	assert.True(t, snap.Flip)
}

func TestStatusRouter_StateWithoutDaemon(t *testing.T) {
	_, ts := newTestStatusServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusRouter_CORS(t *testing.T) {
	_, ts := newTestStatusServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestStatusRouter_WebSocketStateInitThenBroadcast(t *testing.T) {
	status, ts := newTestStatusServer(t, &surface.Snapshot{Mode: "pan", VUMode: "led"})

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	typ, data := decodeEnvelope(t, raw)
	assert.Equal(t, "state_init", typ)
	var snap surface.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "pan", snap.Mode)

	waitUntil(t, time.Second, func() bool { return status.Hub().Count() == 1 }, "client not registered")
	status.Hub().BroadcastBytes([]byte(`{"type":"vu_mode_changed","data":"lcd_vertical"}`))

	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	typ, _ = decodeEnvelopeNoTs(t, raw)
	assert.Equal(t, surface.NotifyVUModeChanged, typ)
}

func decodeEnvelopeNoTs(t *testing.T, raw []byte) (string, json.RawMessage) {
	t.Helper()
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &env))
	return env.Type, env.Data
}

func TestStatusRouter_WebSocketWithoutSnapshotIsDropped(t *testing.T) {
	status, ts := newTestStatusServer(t, nil)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/state"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				t.Fatal("connection kept open without state_init")
			}
			break
		}
		t.Fatalf("unexpected frame %s", raw)
	}
	waitUntil(t, time.Second, func() bool { return status.Hub().Count() == 0 }, "client still registered")
}
