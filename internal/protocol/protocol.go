// Package protocol defines the wire protocol of the multiplexed feed and
// the channel demultiplexer that routes inbound envelopes to typed handlers.
//
// Every server message is an envelope {channel, data}. The payload is
// decoded exactly once here, at the boundary; downstream components only
// ever see typed values, never raw JSON.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"omnistream/internal/model"
)

// Channel discriminators carried in the envelope.
const (
	ChannelMarket  = "market"
	ChannelHistory = "candle_history"
	ChannelBrain   = "brain"
	ChannelSystem  = "system"
	ChannelAlert   = "alert"
)

// envelope is the outer frame of every server message.
type envelope struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// subscribeCmd is the single client → server command.
type subscribeCmd struct {
	Type      string `json:"type"` // always "SUBSCRIBE"
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// EncodeSubscribe builds the wire bytes for a SUBSCRIBE command.
func EncodeSubscribe(sub model.Subscription) ([]byte, error) {
	return json.Marshal(subscribeCmd{
		Type:      "SUBSCRIBE",
		Symbol:    sub.Symbol,
		Timeframe: string(sub.Timeframe),
	})
}

// HistorySnapshot is a decoded candle_history payload. Symbol and Timeframe
// are empty when the feed sends the bare tuple form; the client then
// attributes the snapshot to the active subscription.
type HistorySnapshot struct {
	Symbol    string
	Timeframe model.Timeframe
	Bars      []model.RawBar
}

// tickPayload mirrors the market channel data.
type tickPayload struct {
	Symbol    string      `json:"symbol"`
	Price     json.Number `json:"price"`
	Volume    json.Number `json:"volume"`
	Timestamp json.Number `json:"timestamp"` // epoch milliseconds
}

// historyObject is the wrapped candle_history form carrying attribution.
type historyObject struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	Bars      [][]json.Number `json:"bars"`
}

func decodeTick(data json.RawMessage) (model.Tick, error) {
	var p tickPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.Tick{}, err
	}
	if p.Symbol == "" {
		return model.Tick{}, errMissingField("symbol")
	}
	price, err := decimal.NewFromString(p.Price.String())
	if err != nil {
		return model.Tick{}, errBadNumber("price", err)
	}
	volume := decimal.Zero
	if p.Volume != "" {
		if volume, err = decimal.NewFromString(p.Volume.String()); err != nil {
			return model.Tick{}, errBadNumber("volume", err)
		}
	}
	ts := time.Now().UTC()
	if p.Timestamp != "" {
		ms, err := p.Timestamp.Int64()
		if err != nil {
			return model.Tick{}, errBadNumber("timestamp", err)
		}
		ts = time.UnixMilli(ms).UTC()
	}
	return model.Tick{Symbol: p.Symbol, Price: price, Volume: volume, TS: ts}, nil
}

func decodeHistory(data json.RawMessage) (HistorySnapshot, error) {
	// Bare form first: an array of [openTimeMs, open, high, low, close, volume].
	var tuples [][]json.Number
	if err := json.Unmarshal(data, &tuples); err == nil {
		bars, err := decodeBars(tuples)
		if err != nil {
			return HistorySnapshot{}, err
		}
		return HistorySnapshot{Bars: bars}, nil
	}

	// Wrapped form: {symbol, timeframe, bars}.
	var obj historyObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return HistorySnapshot{}, err
	}
	bars, err := decodeBars(obj.Bars)
	if err != nil {
		return HistorySnapshot{}, err
	}
	return HistorySnapshot{
		Symbol:    obj.Symbol,
		Timeframe: model.Timeframe(obj.Timeframe),
		Bars:      bars,
	}, nil
}

func decodeBars(tuples [][]json.Number) ([]model.RawBar, error) {
	bars := make([]model.RawBar, 0, len(tuples))
	for i, tup := range tuples {
		if len(tup) < 6 {
			return nil, errBarArity(i, len(tup))
		}
		ms, err := tup[0].Int64()
		if err != nil {
			return nil, errBadNumber("openTime", err)
		}
		var vals [5]decimal.Decimal
		for j := 0; j < 5; j++ {
			v, err := decimal.NewFromString(tup[j+1].String())
			if err != nil {
				return nil, errBadNumber("ohlcv", err)
			}
			vals[j] = v
		}
		bars = append(bars, model.RawBar{
			OpenTime: time.UnixMilli(ms).UTC(),
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return bars, nil
}
