package hostlink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mackiebridge/internal/host"
)

func TestDecodeObservations(t *testing.T) {
	obs, err := DecodeObservations([]byte(`{"type":"value","path":"transport.playing","value":true}`))
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "transport.playing", obs[0].Path)
	assert.Equal(t, true, obs[0].Value)

	obs, err = DecodeObservations([]byte(` [{"type":"bank","bank":"mixer","position":8,"size":8,"total":24},
		{"type":"value","path":"mixer.0.name","value":"Kick"}]`))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, 24, obs[0].Total)

	_, err = DecodeObservations([]byte(`{"type":"value"}`))
	assert.Error(t, err)
	_, err = DecodeObservations([]byte(`{"type":"nope","path":"x"}`))
	assert.Error(t, err)
	_, err = DecodeObservations([]byte(``))
	assert.Error(t, err)
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient("http://localhost:1234", nil, Options{})
	assert.Error(t, err)
	_, err = NewClient("ws://localhost:1234/bridge", nil, Options{})
	assert.NoError(t, err)
}

func TestClient_SendWhileDisconnected(t *testing.T) {
	c, err := NewClient("ws://127.0.0.1:1/", nil, Options{})
	require.NoError(t, err)
	assert.ErrorIs(t, c.Send(host.Command{Op: host.OpTrigger, Path: "undo"}), ErrNotConnected)
}

func TestClient_RoundTrip(t *testing.T) {
	received := make(chan host.Command, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"value","path":"transport.playing","value":true}`))

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd host.Command
		if json.Unmarshal(data, &cmd) == nil {
			received <- cmd
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), nil, Options{RetryInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	observed := make(chan host.Observation, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(o host.Observation) { observed <- o })
	}()

	select {
	case o := <-observed:
		assert.Equal(t, "transport.playing", o.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("no observation received")
	}

	require.NoError(t, c.Send(host.Command{Op: host.OpToggle, Path: "transport.playing"}))

	select {
	case cmd := <-received:
		assert.Equal(t, host.OpToggle, cmd.Op)
		assert.Equal(t, "transport.playing", cmd.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive command")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// Every connection is dropped right away.
		conn.Close()
	}))
	defer srv.Close()

	c, err := NewClient("ws"+strings.TrimPrefix(srv.URL, "http"), nil, Options{RetryInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	var mu sync.Mutex
	var connects, disconnects int
	c.OnConnect(func() {
		mu.Lock()
		connects++
		mu.Unlock()
	})
	c.OnDisconnect(func(error) {
		mu.Lock()
		disconnects++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, func(host.Observation) {}) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return connects >= 2 && disconnects >= 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestClient_SendQueuesWithoutBlocking(t *testing.T) {
	c, err := NewClient("ws://127.0.0.1:1/", nil, Options{SendQueue: 2})
	require.NoError(t, err)

	// Link up but no writer draining the queue, like a stalled host socket.
	c.up.Store(true)

	start := time.Now()
	require.NoError(t, c.Send(host.Command{Op: host.OpTrigger, Path: "undo"}))
	require.NoError(t, c.Send(host.Command{Op: host.OpTrigger, Path: "redo"}))
	assert.ErrorIs(t, c.Send(host.Command{Op: host.OpTrigger, Path: "save"}), ErrSendQueueFull)
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	var cmd host.Command
	require.NoError(t, json.Unmarshal(<-c.out, &cmd))
	assert.Equal(t, "undo", cmd.Path)
	assert.True(t, c.Connected())

	c.drop()
	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Send(host.Command{Op: host.OpTrigger, Path: "undo"}), ErrNotConnected)
}
