// Package conn owns the single persistent WebSocket connection to the feed.
// It runs the connect/read/reconnect lifecycle as an explicit state machine:
// DISCONNECTED → CONNECTING → CONNECTED → (transport close) → RECONNECTING
// → CONNECTING → … with capped-exponential backoff between attempts.
//
// Connect failures surface as state transitions, never as errors thrown at
// callers; callers observe State and the OnStateChange hook.
package conn

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"omnistream/internal/model"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultWriteTimeout     = 5 * time.Second
	defaultPingInterval     = 15 * time.Second
	defaultReconnectInitial = 1 * time.Second
	defaultReconnectMax     = 30 * time.Second
)

// ErrNotConnected is returned by Send while no transport is established.
var ErrNotConnected = errors.New("not connected")

// Config holds transport settings.
type Config struct {
	URL string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration

	// Reconnect backoff bounds. The delay grows exponentially from Initial
	// and is capped at Max; the manager never gives up and never busy-loops.
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = defaultHandshakeTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.PingInterval == 0 {
		c.PingInterval = defaultPingInterval
	}
	if c.ReconnectInitial == 0 {
		c.ReconnectInitial = defaultReconnectInitial
	}
	if c.ReconnectMax == 0 {
		c.ReconnectMax = defaultReconnectMax
	}
	return c
}

// Manager drives the connection lifecycle. Hooks are invoked from the
// manager's own goroutine: OnMessage synchronously from the read loop (so
// delivery order equals arrival order), OnConnected after every successful
// (re)connect and before any message from that session is delivered.
type Manager struct {
	cfg Config
	log *slog.Logger

	state atomic.Int32

	mu sync.Mutex // guards ws and writes to it
	ws *websocket.Conn

	cancel context.CancelFunc

	OnMessage     func(raw []byte)
	OnConnected   func()
	OnStateChange func(model.ConnectionState)
}

// New creates a manager for the given endpoint.
func New(cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{cfg: cfg.withDefaults(), log: log}
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	return model.ConnectionState(m.state.Load())
}

// Run drives the lifecycle until ctx is cancelled or Close is called.
// Blocking; always returns nil after a clean teardown.
func (m *Manager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: m.cfg.HandshakeTimeout}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.cfg.ReconnectInitial
	bo.MaxInterval = m.cfg.ReconnectMax
	bo.MaxElapsedTime = 0 // retry forever; the subscription layer owns give-up policy

	for {
		m.setState(model.StateConnecting)

		ws, resp, err := dialer.DialContext(ctx, m.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				m.setState(model.StateDisconnected)
				return nil
			}
			status := ""
			if resp != nil {
				status = resp.Status
			}
			m.log.Warn("dial failed", "url", m.cfg.URL, "status", status, "err", err)
			m.setState(model.StateReconnecting)
			if !sleepCtx(ctx, bo.NextBackOff()) {
				m.setState(model.StateDisconnected)
				return nil
			}
			continue
		}

		bo.Reset()
		m.mu.Lock()
		m.ws = ws
		m.mu.Unlock()
		m.setState(model.StateConnected)
		m.log.Info("connected", "url", m.cfg.URL)

		// Resubscribe before the first message of the session is delivered.
		if m.OnConnected != nil {
			m.OnConnected()
		}

		m.readLoop(ctx, ws)

		m.mu.Lock()
		m.ws = nil
		m.mu.Unlock()
		ws.Close()

		if ctx.Err() != nil {
			m.setState(model.StateDisconnected)
			return nil
		}

		m.setState(model.StateReconnecting)
		delay := bo.NextBackOff()
		m.log.Warn("connection lost, reconnecting", "delay", delay)
		if !sleepCtx(ctx, delay) {
			m.setState(model.StateDisconnected)
			return nil
		}
	}
}

// readLoop consumes messages until the transport errors or ctx ends.
func (m *Manager) readLoop(ctx context.Context, ws *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)

	// Unblock ReadMessage on shutdown, and keep the connection alive with
	// periodic pings.
	go func() {
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				ws.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(m.cfg.WriteTimeout)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				m.log.Warn("read error", "err", err)
			}
			return
		}
		if m.OnMessage != nil {
			m.OnMessage(raw)
		}
	}
}

// Send writes one text message. Returns ErrNotConnected while no transport
// is up; the caller decides whether that matters (subscription commands are
// replayed on reconnect anyway).
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ws == nil {
		return ErrNotConnected
	}
	m.ws.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	return m.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears the connection down and stops the reconnect loop.
func (m *Manager) Close() {
	m.mu.Lock()
	cancel := m.cancel
	ws := m.ws
	m.mu.Unlock()

	if ws != nil {
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}
	if cancel != nil {
		cancel()
	}
}

func (m *Manager) setState(s model.ConnectionState) {
	old := model.ConnectionState(m.state.Swap(int32(s)))
	if old != s && m.OnStateChange != nil {
		m.OnStateChange(s)
	}
}

// sleepCtx waits for d or until ctx ends; reports whether the full delay
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
