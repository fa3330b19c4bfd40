package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mackiebridge/internal/surface"
)

// ============================================================================
// State WebSocket: hub + per-client pumps + broadcaster
// ============================================================================
//
// This file implements:
//   - A Hub that tracks connected WebSocket clients
//   - Per-client write pumps so one slow client doesn't block others
//   - A broadcaster loop that fans surface notifications out to clients
//
// Constraints:
//   - The surface is daemon-owned; the initial snapshot goes through the
//     event loop (RequestStateSnapshot).
//   - Notification payloads are marshaled on the daemon goroutine, so the
//     broadcaster never reads controller state.
//   - Slow clients are disconnected when their send buffer fills.
//
// Messages are JSON text frames with an envelope: {type, ts, data}. The
// first message on connect is "state_init" with surface.Snapshot in data.
//
// ============================================================================

// envelope is the wire format envelope for WS messages.
type envelope struct {
	Type string     `json:"type"`
	Ts   *time.Time `json:"ts,omitempty"`
	Data any        `json:"data,omitempty"`
}

// Notification is a surface state change waiting to be broadcast.
type Notification struct {
	Kind string
	Data json.RawMessage
	At   time.Time
}

// statusNotifier implements surface.Notifier by queueing notifications for
// the broadcaster. It never blocks the daemon loop.
type statusNotifier struct {
	out    chan Notification
	logger *slog.Logger
	now    func() time.Time
}

func newStatusNotifier(buf int, logger *slog.Logger) *statusNotifier {
	if buf <= 0 {
		buf = 128
	}
	return &statusNotifier{
		out:    make(chan Notification, buf),
		logger: logger,
		now:    time.Now,
	}
}

// Notify implements surface.Notifier.
func (n *statusNotifier) Notify(kind string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		n.logger.Warn("notification marshal failed", "type", kind, "error", err)
		return
	}
	select {
	case n.out <- Notification{Kind: kind, Data: raw, At: n.now().UTC()}:
	default:
		n.logger.Warn("notification queue full, dropping", "type", kind)
	}
}

// C returns the notification stream for RunBroadcaster.
func (n *statusNotifier) C() <-chan Notification { return n.out }

// ============================================================================
// Hub
// ============================================================================

type Hub struct {
	logger *slog.Logger

	// Buffered broadcast channel for already-serialized JSON frames.
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.Mutex
	clients map[*Client]struct{}

	sendBuf int
}

type HubConfig struct {
	// SendBuf is the per-client outbound queue size.
	SendBuf int

	// BroadcastBuf is the hub inbound broadcast queue size.
	BroadcastBuf int
}

// NewHub constructs a hub. Call Run(ctx) to start it.
func NewHub(logger *slog.Logger, cfg HubConfig) *Hub {
	sendBuf := cfg.SendBuf
	if sendBuf <= 0 {
		sendBuf = 32
	}
	bcastBuf := cfg.BroadcastBuf
	if bcastBuf <= 0 {
		bcastBuf = 128
	}

	return &Hub{
		logger:     logger,
		broadcast:  make(chan []byte, bcastBuf),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		clients:    make(map[*Client]struct{}),
		sendBuf:    sendBuf,
	}
}

// Run processes hub events until ctx is canceled.
// It disconnects all clients on shutdown.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("ws hub starting")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("ws hub stopping (context canceled)")
			h.closeAllClients()
			return

		case c := <-h.register:
			if c.gone.Load() {
				// Left before the hub saw it join.
				h.closeClient(c)
				continue
			}
			h.mu.Lock()
			h.clients[c] = struct{}{}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws client registered", "client", c.id, "remote_addr", c.remoteAddr, "clients", n)

		case c := <-h.unregister:
			h.removeClient(c, "unregister")

		case msg := <-h.broadcast:
			// Collect slow clients first, remove them after unlocking.
			var slow []*Client

			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slow = append(slow, c)
				}
			}
			h.mu.Unlock()

			for _, c := range slow {
				h.removeClient(c, "slow_client")
			}
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
		safeCloseChan(c.send)
		delete(h.clients, c)
	}
}

func (h *Hub) removeClient(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.closeClient(c)
		h.logger.Info("ws client disconnected", "client", c.id, "remote_addr", c.remoteAddr, "reason", reason, "clients", n)
	}
}

func (h *Hub) closeClient(c *Client) {
	if c.conn != nil {
		_ = c.conn.Close()
	}
	// Closing send signals writePump to exit.
	safeCloseChan(c.send)
}

// leave removes c whether or not the hub has processed its registration.
func (h *Hub) leave(c *Client) {
	c.gone.Store(true)
	h.unregister <- c
}

func safeCloseChan(ch chan []byte) {
	defer func() {
		_ = recover() // ignore "close of closed channel"
	}()
	close(ch)
}

// BroadcastBytes enqueues a pre-serialized JSON WS frame for broadcast.
// It never blocks; if the hub queue is full it drops the message.
func (h *Hub) BroadcastBytes(msg []byte) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("ws hub broadcast queue full, dropping message", "bytes", len(msg))
	}
}

// ============================================================================
// Client
// ============================================================================

type Client struct {
	hub *Hub
	id  string

	conn *websocket.Conn
	send chan []byte

	remoteAddr string
	logger     *slog.Logger

	// gone is set once the server gave up on the client.
	gone atomic.Bool
}

// NewClient creates a client with a buffered send channel and a fresh id.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string, logger *slog.Logger) *Client {
	sendBuf := 32
	if hub != nil && hub.sendBuf > 0 {
		sendBuf = hub.sendBuf
	}
	return &Client{
		hub:        hub,
		id:         uuid.NewString(),
		conn:       conn,
		send:       make(chan []byte, sendBuf),
		remoteAddr: remoteAddr,
		logger:     logger,
	}
}

const (
	writeWait = 5 * time.Second

	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second
)

// positionCoalesceWindow is the maximum time bursty position updates are
// held (latest-wins) before broadcasting.
const positionCoalesceWindow = 50 * time.Millisecond

// closeStatus extracts a websocket close code / text when possible.
func closeStatus(err error) (code int, text string, ok bool) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code, ce.Text, true
	}
	return 0, "", false
}

func (c *Client) logExit(pump string, err error) {
	if errors.Is(err, websocket.ErrCloseSent) {
		return
	}
	if code, text, ok := closeStatus(err); ok {
		c.logger.Info("ws "+pump+" exiting (close)", "client", c.id, "code", code, "reason", text)
		return
	}
	c.logger.Info("ws "+pump+" exiting", "client", c.id, "error", err)
}

// writePump writes messages from the send queue to the websocket.
// It exits on write error or when send is closed.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub is disconnecting us.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logExit("writePump", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logExit("writePump", err)
				return
			}
		}
	}
}

// readPump reads and discards incoming messages to detect disconnects and
// handle control frames, then unregisters the client.
func (c *Client) readPump(ctx context.Context) {
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logExit("readPump", err)
			if c.hub != nil {
				c.hub.unregister <- c
			}
			return
		}
	}
}

// ============================================================================
// HTTP handler
// ============================================================================

// StatusServer serves controller state to websocket and HTTP clients.
type StatusServer struct {
	logger *slog.Logger
	hub    *Hub

	// Snapshot requests go through the daemon loop.
	events chan<- Event
}

// NewStatusServer constructs the status server components. Start
// Hub().Run(ctx) and RunBroadcaster separately.
func NewStatusServer(logger *slog.Logger, events chan<- Event, cfg HubConfig) *StatusServer {
	return &StatusServer{
		logger: logger,
		hub:    NewHub(logger, cfg),
		events: events,
	}
}

func (s *StatusServer) Hub() *Hub { return s.hub }

var upgrader = websocket.Upgrader{
	// Origin policy is enforced by the CORS middleware for HTTP routes; the
	// status feed is read-only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshotTimeout bounds a snapshot round trip through the daemon loop.
const snapshotTimeout = time.Second

var errNoDaemon = errors.New("daemon loop unavailable")

// requestSnapshot asks the daemon loop for the current controller state.
func (s *StatusServer) requestSnapshot(ctx context.Context) (surface.Snapshot, error) {
	if s.events == nil {
		return surface.Snapshot{}, errNoDaemon
	}
	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, snapshotTimeout)
		defer cancel()
	}

	reply := make(chan surface.Snapshot, 1)
	select {
	case <-ctx.Done():
		return surface.Snapshot{}, ctx.Err()
	case s.events <- RequestStateSnapshot{Reply: reply}:
	}

	select {
	case <-ctx.Done():
		return surface.Snapshot{}, ctx.Err()
	case snap := <-reply:
		return snap, nil
	}
}

// handleStateWS upgrades and registers a client, then sends state_init.
func (s *StatusServer) handleStateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", "error", err)
		return
	}

	client := NewClient(s.hub, conn, r.RemoteAddr, s.logger)

	// Register first so broadcasts can reach it.
	s.hub.register <- client

	// The pumps must not use r.Context(): net/http cancels it when this
	// handler returns. Lifetime is managed by the hub and socket errors.
	go client.writePump(context.Background())
	go client.readPump(context.Background())

	// A client that never gets state_init must not get broadcasts either.
	snap, err := s.requestSnapshot(r.Context())
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("ws snapshot request failed", "client", client.id, "error", err)
		}
		s.hub.leave(client)
		return
	}

	now := time.Now().UTC()
	initMsg, err := json.Marshal(envelope{Type: "state_init", Ts: &now, Data: snap})
	if err != nil {
		s.logger.Warn("ws state_init marshal failed", "client", client.id, "error", err)
		s.hub.leave(client)
		return
	}
	// If the client is already slow, disconnect.
	select {
	case client.send <- initMsg:
	default:
		s.hub.leave(client)
	}
}

// ============================================================================
// Broadcaster
// ============================================================================

// RunBroadcaster reads surface notifications, wraps them in envelopes and
// broadcasts them to all hub clients. Intended to run as a single goroutine.
//
// position_changed is rate limited: the latest pending value is flushed at
// most once per positionCoalesceWindow while updates keep arriving.
func RunBroadcaster(ctx context.Context, hub *Hub, src <-chan Notification, logger *slog.Logger) {
	if hub == nil || src == nil {
		return
	}

	var pending *Notification
	var timer *time.Timer
	var timerCh <-chan time.Time

	emit := func(n Notification) {
		ts := n.At
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		var data any
		if len(n.Data) > 0 {
			data = n.Data
		}
		msg, err := json.Marshal(envelope{Type: n.Kind, Ts: &ts, Data: data})
		if err != nil {
			logger.Warn("ws broadcaster marshal failed", "error", err, "type", n.Kind)
			return
		}
		hub.BroadcastBytes(msg)
	}

	flushPending := func() {
		if pending == nil {
			return
		}
		emit(*pending)
		pending = nil
	}

	stopTimer := func() {
		if timer != nil && !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer = nil
		timerCh = nil
	}

	for {
		select {
		case <-ctx.Done():
			flushPending()
			stopTimer()
			return

		case <-timerCh:
			flushPending()
			timer = nil
			timerCh = nil

		case n, ok := <-src:
			if !ok {
				flushPending()
				stopTimer()
				logger.Info("ws broadcaster stopping (source ended)")
				return
			}

			if n.Kind == surface.NotifyPositionChanged {
				// Latest wins; the window is not extended by new updates.
				copyN := n
				pending = &copyN
				if timer == nil {
					timer = time.NewTimer(positionCoalesceWindow)
					timerCh = timer.C
				}
				continue
			}

			// Keep ordering: pending position goes out first.
			flushPending()
			stopTimer()
			emit(n)
		}
	}
}
