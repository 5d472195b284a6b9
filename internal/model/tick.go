package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tick is a single real-time price/volume observation for a symbol.
// Prices are decimal to avoid float drift in candle arithmetic.
// Immutable once received.
type Tick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Volume decimal.Decimal `json:"volume"`
	TS     time.Time       `json:"ts"` // UTC
}
