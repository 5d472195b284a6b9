// Package candle maintains the dual candle series of the chart: the raw
// OHLCV bars delivered by the feed and the derived Heiken-Ashi synthetic
// bars. History snapshots trigger a full O(n) rebuild; live ticks touch only
// the tail bar, so the recurrence work per tick is O(1).
//
// The engine is single-owner: all mutation happens on the client event loop.
// Readers get immutable, versioned snapshots via an atomic pointer and never
// observe a partially rebuilt series.
package candle

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"omnistream/internal/model"
)

var (
	two  = decimal.NewFromInt(2)
	four = decimal.NewFromInt(4)
)

// ErrNoHistory is returned when a live update arrives before any rebuild.
var ErrNoHistory = errors.New("no history series to update")

// Snapshot is an immutable point-in-time copy of the series pair. Version
// strictly increases with every published update.
type Snapshot struct {
	Version      uint64
	Subscription model.Subscription
	Raw          []model.RawBar
	Synthetic    []model.SyntheticBar
}

// LastRaw returns the tail raw bar, ok=false on an empty series.
func (s *Snapshot) LastRaw() (model.RawBar, bool) {
	if len(s.Raw) == 0 {
		return model.RawBar{}, false
	}
	return s.Raw[len(s.Raw)-1], true
}

// Engine owns the working series pair and publishes snapshots.
type Engine struct {
	raw     []model.RawBar
	syn     []model.SyntheticBar
	sub     model.Subscription
	version uint64

	snap atomic.Pointer[Snapshot]
}

// NewEngine creates an engine with an empty series.
func NewEngine() *Engine {
	e := &Engine{}
	e.snap.Store(&Snapshot{})
	return e
}

// Snapshot returns the most recently published series snapshot. Safe to call
// from any goroutine; the returned value is never mutated.
func (e *Engine) Snapshot() *Snapshot {
	return e.snap.Load()
}

// HasHistory reports whether at least one rebuild has populated the series.
func (e *Engine) HasHistory() bool {
	return len(e.raw) > 0
}

// Len returns the current series length.
func (e *Engine) Len() int {
	return len(e.raw)
}

// Reset clears both series, e.g. on a symbol change. The next history
// snapshot repopulates them; ticks in between have nothing to update.
func (e *Engine) Reset(sub model.Subscription) {
	e.raw = nil
	e.syn = nil
	e.sub = sub
	e.publish()
}

// Rebuild replaces the raw series wholesale and recomputes the synthetic
// series left-to-right. Heiken-Ashi open/close depend on the previous
// synthetic bar, so this is inherently linear; it runs only on history
// snapshots, never per tick.
//
// Bars must have strictly increasing open times; otherwise the series is
// left untouched and an error is returned.
func (e *Engine) Rebuild(sub model.Subscription, bars []model.RawBar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].OpenTime.After(bars[i-1].OpenTime) {
			return fmt.Errorf("history bar %d: open time %v not after %v",
				i, bars[i].OpenTime, bars[i-1].OpenTime)
		}
	}

	e.sub = sub
	e.raw = append(e.raw[:0:0], bars...) // fresh backing array
	e.syn = make([]model.SyntheticBar, len(bars))
	for i, b := range bars {
		var prev *model.SyntheticBar
		if i > 0 {
			prev = &e.syn[i-1]
		}
		e.syn[i] = synthesize(prev, b)
	}

	e.publish()
	return nil
}

// ApplyTick folds a live tick into the tail raw bar (close = price, high and
// low widen monotonically) and recomputes only the tail synthetic bar
// against its predecessor. Volume is owned by the feed's bar bucketing and
// is not touched here.
func (e *Engine) ApplyTick(tick model.Tick) error {
	n := len(e.raw)
	if n == 0 {
		return ErrNoHistory
	}

	tail := &e.raw[n-1]
	tail.Close = tick.Price
	if tick.Price.GreaterThan(tail.High) {
		tail.High = tick.Price
	}
	if tick.Price.LessThan(tail.Low) {
		tail.Low = tick.Price
	}

	var prev *model.SyntheticBar
	if n > 1 {
		prev = &e.syn[n-2]
	}
	e.syn[n-1] = synthesize(prev, *tail)

	e.publish()
	return nil
}

// synthesize computes one Heiken-Ashi bar. prev is nil for the first bar of
// a series.
func synthesize(prev *model.SyntheticBar, b model.RawBar) model.SyntheticBar {
	synClose := b.Open.Add(b.High).Add(b.Low).Add(b.Close).Div(four)

	var synOpen decimal.Decimal
	if prev == nil {
		synOpen = b.Open.Add(b.Close).Div(two)
	} else {
		synOpen = prev.Open.Add(prev.Close).Div(two)
	}

	synHigh := b.High
	synLow := b.Low
	if prev != nil {
		// High/low must also cover the synthetic body.
		synHigh = decimal.Max(b.High, synOpen, synClose)
		synLow = decimal.Min(b.Low, synOpen, synClose)
	}

	return model.SyntheticBar{
		OpenTime: b.OpenTime,
		Open:     synOpen,
		High:     synHigh,
		Low:      synLow,
		Close:    synClose,
	}
}

// publish copies the working series into a fresh immutable snapshot. The
// per-tick recurrence above is O(1); publication is a contiguous memcpy
// bounded by the in-memory window.
func (e *Engine) publish() {
	e.version++
	snap := &Snapshot{
		Version:      e.version,
		Subscription: e.sub,
		Raw:          append([]model.RawBar(nil), e.raw...),
		Synthetic:    append([]model.SyntheticBar(nil), e.syn...),
	}
	e.snap.Store(snap)
}
