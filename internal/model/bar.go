package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawBar is one OHLCV aggregate over a fixed time bucket, as delivered by
// the feed's history channel. Within a series OpenTime is strictly
// increasing; only the tail bar of a series is ever still updating.
type RawBar struct {
	OpenTime time.Time       `json:"open_time"` // bucket start (UTC)
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

// SyntheticBar is the Heiken-Ashi transform of a RawBar. One synthetic bar
// corresponds 1:1 to one raw bar by OpenTime; open/close depend recursively
// on the previous synthetic bar.
type SyntheticBar struct {
	OpenTime time.Time       `json:"open_time"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
}
