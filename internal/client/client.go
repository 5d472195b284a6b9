// Package client assembles the streaming pipeline: one WebSocket connection,
// the channel demultiplexer, the candle engine, the indicator pipeline and
// the operator event log.
//
// All series state is owned by a single event-loop goroutine. The transport
// read loop only hands raw frames over a channel, and external commands
// (symbol changes) enter through the same loop, so candle and indicator
// state never needs a lock. Consumers read via immutable snapshots behind
// atomic pointers.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"omnistream/config"
	"omnistream/internal/candle"
	"omnistream/internal/conn"
	"omnistream/internal/eventlog"
	"omnistream/internal/indicator"
	"omnistream/internal/metrics"
	"omnistream/internal/model"
	"omnistream/internal/protocol"
)

// DisplayMode selects which candle series a chart consumer renders. It is
// presentation state only; both series are always maintained.
type DisplayMode int32

const (
	ModeRaw DisplayMode = iota
	ModeSynthetic
)

func (m DisplayMode) String() string {
	if m == ModeSynthetic {
		return "synthetic"
	}
	return "raw"
}

// ErrUnsupportedTimeframe is returned by ChangeSymbol for a timeframe
// outside the configured set. The active subscription is left untouched.
var ErrUnsupportedTimeframe = errors.New("unsupported timeframe")

// Client is the top-level streaming client. Construct with New, drive with
// Run; all other methods are safe from any goroutine.
type Client struct {
	cfg *config.Config
	log *slog.Logger
	met *metrics.Metrics

	mgr    *conn.Manager
	demux  *protocol.Demux
	engine *candle.Engine
	events *eventlog.Ring

	msgCh chan []byte
	cmdCh chan func()

	sub        atomic.Pointer[model.Subscription]
	lastTick   atomic.Pointer[model.Tick]
	brain      atomic.Pointer[model.BrainSignal]
	telemetry  atomic.Pointer[model.SystemTelemetry]
	indicators atomic.Pointer[indicator.Snapshot]
	mode       atomic.Int32
}

// New wires a client from configuration. Nothing connects until Run.
func New(cfg *config.Config, met *metrics.Metrics, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		log:    log,
		met:    met,
		engine: candle.NewEngine(),
		events: eventlog.New(cfg.EventLogCapacity),
		msgCh:  make(chan []byte, 1024),
		cmdCh:  make(chan func(), 16),
	}

	sub := cfg.InitialSubscription()
	c.sub.Store(&sub)
	c.engine.Reset(sub)

	c.demux = protocol.NewDemux(protocol.Handlers{
		Tick:    c.handleTick,
		History: c.handleHistory,
		Brain:   c.handleBrain,
		System:  c.handleSystem,
		Alert:   c.handleAlert,
	})
	c.demux.OnMalformed = c.handleMalformed

	c.mgr = conn.New(conn.Config{
		URL:              cfg.Endpoint,
		PingInterval:     cfg.PingInterval.Std(),
		ReconnectInitial: cfg.ReconnectInitial.Std(),
		ReconnectMax:     cfg.ReconnectMax.Std(),
	}, log)
	c.mgr.OnMessage = c.enqueue
	c.mgr.OnConnected = c.resubscribe
	c.mgr.OnStateChange = c.onStateChange

	return c
}

// Run drives the client until ctx is cancelled. Blocking.
func (c *Client) Run(ctx context.Context) error {
	connDone := make(chan struct{})
	go func() {
		defer close(connDone)
		c.mgr.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			c.mgr.Close()
			<-connDone
			return nil
		case raw := <-c.msgCh:
			c.demux.Dispatch(raw)
		case cmd := <-c.cmdCh:
			cmd()
		}
	}
}

// enqueue hands a raw frame from the transport goroutine to the event loop.
// The buffer absorbs bursts; a sustained overload drops frames rather than
// stalling the read loop into a transport timeout.
func (c *Client) enqueue(raw []byte) {
	select {
	case c.msgCh <- raw:
	default:
		c.met.FramesDropped.Inc()
		c.log.Warn("event loop backlog full, dropping frame")
	}
}

// resubscribe replays the active subscription on every (re)connect. The
// connection manager invokes it before delivering any message of the new
// session, so history for the right target always precedes ticks.
func (c *Client) resubscribe() {
	sub := *c.sub.Load()
	data, err := protocol.EncodeSubscribe(sub)
	if err != nil {
		c.log.Error("encode subscribe", "err", err)
		return
	}
	if err := c.mgr.Send(data); err != nil {
		c.log.Warn("resubscribe send failed", "sub", sub.Key(), "err", err)
		return
	}
	c.events.Appendf("subscribed to %s", sub.Key())
	c.log.Info("subscribed", "sub", sub.Key())
}

func (c *Client) onStateChange(s model.ConnectionState) {
	c.met.ConnState.Set(float64(s))
	if s == model.StateReconnecting {
		c.met.Reconnects.Inc()
	}
	c.events.Appendf("connection %s", s)
}

// ChangeSymbol switches the active (symbol, timeframe) target. The series
// is cleared immediately; it stays empty until the feed answers with a
// history snapshot for the new target. Ticks for the old symbol arriving in
// between no longer match and are discarded.
//
// The switch executes on the event loop; ctx bounds the wait when Run is
// not (or no longer) active.
func (c *Client) ChangeSymbol(ctx context.Context, symbol string, tf model.Timeframe) error {
	if symbol == "" {
		return fmt.Errorf("empty symbol")
	}
	if !c.cfg.SupportsTimeframe(tf) {
		return fmt.Errorf("%w: %q", ErrUnsupportedTimeframe, tf)
	}

	done := make(chan struct{})
	cmd := func() {
		defer close(done)
		sub := model.Subscription{Symbol: symbol, Timeframe: tf}
		c.sub.Store(&sub)
		c.engine.Reset(sub)
		c.lastTick.Store(nil)
		c.indicators.Store(nil)
		c.met.SeriesLength.Set(0)
		c.events.Appendf("switching to %s", sub.Key())

		data, err := protocol.EncodeSubscribe(sub)
		if err != nil {
			c.log.Error("encode subscribe", "err", err)
			return
		}
		if err := c.mgr.Send(data); err != nil {
			// Offline is fine: the subscription replays on reconnect.
			c.log.Debug("subscribe deferred until reconnect", "sub", sub.Key(), "err", err)
			return
		}
		c.log.Info("subscribed", "sub", sub.Key())
	}

	select {
	case c.cmdCh <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// channel handlers, all on the event-loop goroutine

func (c *Client) handleTick(tick model.Tick) {
	c.met.EnvelopesTotal.WithLabelValues(protocol.ChannelMarket).Inc()

	sub := c.sub.Load()
	if tick.Symbol != sub.Symbol {
		c.met.TicksDiscarded.Inc()
		return
	}
	if err := c.engine.ApplyTick(tick); err != nil {
		// No series yet (history not loaded): nothing to fold the tick into.
		c.met.TicksDiscarded.Inc()
		return
	}
	c.met.TicksTotal.Inc()
	t := tick
	c.lastTick.Store(&t)
}

func (c *Client) handleHistory(snap protocol.HistorySnapshot) {
	c.met.EnvelopesTotal.WithLabelValues(protocol.ChannelHistory).Inc()

	sub := c.sub.Load()
	// The wrapped form carries attribution; a snapshot for a target we are
	// no longer subscribed to is stale and must not clobber the series.
	if snap.Symbol != "" && (snap.Symbol != sub.Symbol || snap.Timeframe != sub.Timeframe) {
		c.log.Debug("discarding stale history",
			"got", snap.Symbol+"@"+string(snap.Timeframe), "want", sub.Key())
		return
	}

	if err := c.engine.Rebuild(*sub, snap.Bars); err != nil {
		c.met.RebuildErrors.Inc()
		c.events.Appendf("history rejected: %v", err)
		c.log.Warn("history rejected", "sub", sub.Key(), "err", err)
		return
	}
	c.met.Rebuilds.Inc()
	c.met.SeriesLength.Set(float64(len(snap.Bars)))
	c.recomputeIndicators()
	c.events.Appendf("history loaded: %d bars for %s", len(snap.Bars), sub.Key())
	c.log.Info("history loaded", "sub", sub.Key(), "bars", len(snap.Bars))
}

func (c *Client) handleBrain(sig model.BrainSignal) {
	c.met.EnvelopesTotal.WithLabelValues(protocol.ChannelBrain).Inc()

	prev := c.brain.Swap(&sig)
	if prev == nil || prev.Action != sig.Action {
		c.events.Appendf("brain: %s (%.0f%%) %s", sig.Action, sig.Confidence*100, sig.Reason)
		c.log.Info("brain signal", "action", sig.Action, "confidence", sig.Confidence)
	}
}

func (c *Client) handleSystem(tel model.SystemTelemetry) {
	c.met.EnvelopesTotal.WithLabelValues(protocol.ChannelSystem).Inc()

	prev := c.telemetry.Swap(&tel)
	if tel.Degraded() && (prev == nil || prev.Status != tel.Status) {
		c.events.Appendf("system %s (cpu %.0f%% ram %.0f%%)", tel.Status, tel.CPUUsage, tel.RAMUsage)
		c.log.Warn("system degraded", "status", tel.Status, "cpu", tel.CPUUsage, "ram", tel.RAMUsage)
	}
}

func (c *Client) handleAlert(al model.Alert) {
	c.met.EnvelopesTotal.WithLabelValues(protocol.ChannelAlert).Inc()
	c.met.AlertsTotal.Inc()
	c.events.Appendf("ALERT: %s", al.Message)
	c.log.Warn("alert", "message", al.Message)
}

func (c *Client) handleMalformed(reason string) {
	c.met.ParseFailures.Inc()
	c.events.Appendf("dropped message: %s", reason)
	c.log.Debug("dropped malformed message", "reason", reason)
}

// recomputeIndicators runs the full batch over the current series. Invoked
// only after a rebuild: indicators are not latency-critical, and the live
// tick only moves the still-forming tail bar.
func (c *Client) recomputeIndicators() {
	start := time.Now()
	snap := indicator.Compute(c.engine.Snapshot().Raw)
	c.met.IndicatorComputeDur.Observe(time.Since(start).Seconds())
	c.indicators.Store(&snap)
}

// read-side accessors

// ChartView pairs the immutable series snapshot with the presentation mode
// a renderer should honor.
type ChartView struct {
	*candle.Snapshot
	Mode DisplayMode
}

// Chart returns the latest candle snapshot (both series) and display mode.
func (c *Client) Chart() ChartView {
	return ChartView{Snapshot: c.engine.Snapshot(), Mode: c.DisplayMode()}
}

// Subscription returns the active subscription target.
func (c *Client) Subscription() model.Subscription { return *c.sub.Load() }

// LastTick returns the most recent accepted tick, ok=false before the first.
func (c *Client) LastTick() (model.Tick, bool) {
	t := c.lastTick.Load()
	if t == nil {
		return model.Tick{}, false
	}
	return *t, true
}

// Brain returns the latest brain signal, ok=false before the first.
func (c *Client) Brain() (model.BrainSignal, bool) {
	s := c.brain.Load()
	if s == nil {
		return model.BrainSignal{}, false
	}
	return *s, true
}

// Telemetry returns the latest system telemetry, ok=false before the first.
func (c *Client) Telemetry() (model.SystemTelemetry, bool) {
	t := c.telemetry.Load()
	if t == nil {
		return model.SystemTelemetry{}, false
	}
	return *t, true
}

// Indicators returns the latest indicator snapshot, ok=false before the
// first computation.
func (c *Client) Indicators() (indicator.Snapshot, bool) {
	s := c.indicators.Load()
	if s == nil {
		return indicator.Snapshot{}, false
	}
	return *s, true
}

// Events returns the operator event log, newest first.
func (c *Client) Events() []eventlog.Entry { return c.events.Entries() }

// State returns the connection state.
func (c *Client) State() model.ConnectionState { return c.mgr.State() }

// SetDisplayMode selects the rendered series. Presentation only; it never
// touches the series data.
func (c *Client) SetDisplayMode(m DisplayMode) { c.mode.Store(int32(m)) }

// DisplayMode returns the selected rendered series.
func (c *Client) DisplayMode() DisplayMode { return DisplayMode(c.mode.Load()) }

// Health summarizes the client for the HTTP health endpoint.
func (c *Client) Health() metrics.Health {
	return metrics.Health{
		ConnectionState: c.State().String(),
		Subscription:    c.Subscription().Key(),
		Bars:            len(c.engine.Snapshot().Raw),
	}
}
