package model

// Timeframe is a bar interval identifier as used on the wire, e.g. "1m",
// "15m", "1h". The supported set is configuration, not a compiled-in enum.
type Timeframe string

// Subscription is the single active (symbol, timeframe) target of the
// client. Mutated only by the subscription controller; the connection
// manager reads it to emit wire commands on (re)connect.
type Subscription struct {
	Symbol    string    `json:"symbol"`
	Timeframe Timeframe `json:"timeframe"`
}

// Key returns a stable identity string, e.g. "BTC/USDT@1m".
func (s Subscription) Key() string {
	return s.Symbol + "@" + string(s.Timeframe)
}
