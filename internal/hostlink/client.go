// Package hostlink connects the bridge to the host-side script over a
// websocket carrying JSON messages.
//
// Outbound: host.Command objects, one per text frame.
// Inbound: host.Observation objects, one per frame or a JSON array of them.
package hostlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mackiebridge/internal/host"
)

var (
	// ErrNotConnected is returned by Send while no connection is up.
	ErrNotConnected = errors.New("host link not connected")
	// ErrSendQueueFull is returned by Send when the writer is behind.
	ErrSendQueueFull = errors.New("host link send queue full")
)

// Options tunes connection behavior. Zero values get defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	RetryInterval    time.Duration
	// SendQueue is the number of commands buffered for the writer.
	SendQueue int
	// MaxAttempts bounds each connect round; 0 retries forever.
	MaxAttempts int
}

func (o Options) withDefaults() Options {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 2 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 500 * time.Millisecond
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	return o
}

// Client manages the websocket to the host.
type Client struct {
	url    string
	logger *slog.Logger
	opts   Options

	// mu guards conn. Only the writer goroutine writes to it.
	mu   sync.Mutex
	conn *websocket.Conn
	up   atomic.Bool

	out chan []byte

	onConnect    func()
	onDisconnect func(error)
}

// NewClient validates wsURL and returns an unconnected client.
func NewClient(wsURL string, logger *slog.Logger, opts Options) (*Client, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid websocket URL %q: scheme must be ws or wss", wsURL)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()
	return &Client{
		url:    u.String(),
		logger: logger,
		opts:   opts,
		out:    make(chan []byte, opts.SendQueue),
	}, nil
}

// OnConnect registers fn to run (on the Run goroutine) after every
// successful connect, e.g. to request a full state dump.
func (c *Client) OnConnect(fn func()) { c.onConnect = fn }

// OnDisconnect registers fn to run (on the Run goroutine) when an
// established connection drops, before reconnecting.
func (c *Client) OnDisconnect(fn func(error)) { c.onDisconnect = fn }

// connect establishes a websocket connection, replacing any old one.
func (c *Client) connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.up.Store(false)
	c.mu.Unlock()

	d := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := d.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.up.Store(true)
	c.mu.Unlock()
	return nil
}

// connectWithRetry keeps dialing at RetryInterval until it succeeds, the
// context ends or MaxAttempts is used up.
func (c *Client) connectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; c.opts.MaxAttempts == 0 || attempt < c.opts.MaxAttempts; attempt++ {
		err := c.connect(ctx)
		if err == nil {
			c.logger.Info("connected to host", "url", c.url)
			return nil
		}
		lastErr = err
		c.logger.Warn("host connection failed; retrying...", "error", err, "attempt", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.RetryInterval):
		}
	}
	return fmt.Errorf("failed to connect after %d attempts: %w", c.opts.MaxAttempts, lastErr)
}

// Run connects and reads observations until ctx is cancelled, reconnecting
// whenever the connection drops. deliver runs on this goroutine. Queued
// commands are written by a second goroutine that lives as long as Run.
func (c *Client) Run(ctx context.Context, deliver func(host.Observation)) error {
	defer c.Close()

	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	writerCtx, stopWriter := context.WithCancel(ctx)
	defer stopWriter()
	go c.writeLoop(writerCtx)

	for {
		if err := c.connectWithRetry(ctx); err != nil {
			return err
		}
		if c.onConnect != nil {
			c.onConnect()
		}

		err := c.readLoop(deliver)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("host connection lost; reconnecting...", "error", err)
		c.drop()
		if c.onDisconnect != nil {
			c.onDisconnect(err)
		}
	}
}

func (c *Client) readLoop(deliver func(host.Observation)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		obs, err := DecodeObservations(data)
		if err != nil {
			c.logger.Warn("dropping malformed host message", "error", err)
			continue
		}
		for _, o := range obs {
			deliver(o)
		}
	}
}

// Send queues one command for the writer and never blocks. While the link
// is down it returns ErrNotConnected; if the writer is behind it returns
// ErrSendQueueFull and the command is dropped.
func (c *Client) Send(cmd host.Command) error {
	if !c.up.Load() {
		return ErrNotConnected
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.out:
			if err := c.write(payload); err != nil {
				c.logger.Warn("host command not delivered", "error", err)
			}
		}
	}
}

func (c *Client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return ErrNotConnected
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		// Mark connection as broken; the read loop will notice too.
		c.conn.Close()
		c.conn = nil
		c.up.Store(false)
		return err
	}
	return nil
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool { return c.up.Load() }

func (c *Client) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.up.Store(false)
}

// Close closes the connection. Run returns once its context is done.
func (c *Client) Close() error {
	c.drop()
	return nil
}
