package protocol

import (
	"encoding/json"
	"fmt"

	"omnistream/internal/model"
)

// Handlers receive decoded channel payloads, in transport arrival order.
// A nil handler means messages on that channel are decoded and discarded.
type Handlers struct {
	Tick    func(model.Tick)
	History func(HistorySnapshot)
	Brain   func(model.BrainSignal)
	System  func(model.SystemTelemetry)
	Alert   func(model.Alert)
}

// Demux parses inbound envelopes and routes each to exactly one typed
// handler. Malformed messages (invalid structure, unknown channel, bad
// payload) are dropped via OnMalformed; Dispatch never panics and never
// reorders messages.
type Demux struct {
	h Handlers

	// OnMalformed is invoked with a short reason whenever a message is
	// dropped. Optional.
	OnMalformed func(reason string)
}

// NewDemux creates a demultiplexer routing to the given handlers.
func NewDemux(h Handlers) *Demux {
	return &Demux{h: h}
}

// Dispatch decodes one raw transport message and routes it. Called
// synchronously from the transport read loop: processing order equals
// arrival order.
func (d *Demux) Dispatch(raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.drop(fmt.Sprintf("invalid envelope: %v", err))
		return
	}

	switch env.Channel {
	case ChannelMarket:
		tick, err := decodeTick(env.Data)
		if err != nil {
			d.drop(fmt.Sprintf("market payload: %v", err))
			return
		}
		if d.h.Tick != nil {
			d.h.Tick(tick)
		}

	case ChannelHistory:
		snap, err := decodeHistory(env.Data)
		if err != nil {
			d.drop(fmt.Sprintf("candle_history payload: %v", err))
			return
		}
		if d.h.History != nil {
			d.h.History(snap)
		}

	case ChannelBrain:
		var sig model.BrainSignal
		if err := json.Unmarshal(env.Data, &sig); err != nil {
			d.drop(fmt.Sprintf("brain payload: %v", err))
			return
		}
		if d.h.Brain != nil {
			d.h.Brain(sig)
		}

	case ChannelSystem:
		var tel model.SystemTelemetry
		if err := json.Unmarshal(env.Data, &tel); err != nil {
			d.drop(fmt.Sprintf("system payload: %v", err))
			return
		}
		if d.h.System != nil {
			d.h.System(tel)
		}

	case ChannelAlert:
		var al model.Alert
		if err := json.Unmarshal(env.Data, &al); err != nil {
			d.drop(fmt.Sprintf("alert payload: %v", err))
			return
		}
		if d.h.Alert != nil {
			d.h.Alert(al)
		}

	default:
		// Unknown discriminators are treated as malformed.
		d.drop(fmt.Sprintf("unknown channel %q", env.Channel))
	}
}

func (d *Demux) drop(reason string) {
	if d.OnMalformed != nil {
		d.OnMalformed(reason)
	}
}

// decode errors

type fieldError struct {
	field string
	err   error
}

func (e fieldError) Error() string {
	if e.err == nil {
		return "missing field " + e.field
	}
	return fmt.Sprintf("bad %s: %v", e.field, e.err)
}

func errMissingField(field string) error         { return fieldError{field: field} }
func errBadNumber(field string, err error) error { return fieldError{field: field, err: err} }

func errBarArity(idx, got int) error {
	return fmt.Errorf("bar tuple %d has %d elements, want 6", idx, got)
}
