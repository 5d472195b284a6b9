package indicator

import (
	"time"

	"github.com/moznion/go-optional"

	"omnistream/internal/model"
)

// Config holds the periods for one pipeline run.
type Config struct {
	RSIPeriod   int
	EMAPeriod   int
	MACDFast    int
	MACDSlow    int
	MACDSignal  int
	StochK      int
	StochD      int
	CloudTenkan int
	CloudKijun  int
	CloudSenkou int
}

// DefaultConfig returns the standard charting periods.
func DefaultConfig() Config {
	return Config{
		RSIPeriod:   DefaultRSIPeriod,
		EMAPeriod:   DefaultEMAPeriod,
		MACDFast:    DefaultMACDFast,
		MACDSlow:    DefaultMACDSlow,
		MACDSignal:  DefaultMACDSignal,
		StochK:      DefaultStochK,
		StochD:      DefaultStochD,
		CloudTenkan: DefaultCloudTenkan,
		CloudKijun:  DefaultCloudKijun,
		CloudSenkou: DefaultCloudSenkou,
	}
}

// Snapshot is the batched result of one pipeline run. Each field is
// independently absent when its window requirement is not met or its
// computation failed.
type Snapshot struct {
	RSI        optional.Option[float64]         `json:"rsi"`
	EMA        optional.Option[float64]         `json:"ema"`
	MACD       optional.Option[MACDValue]       `json:"macd"`
	Stochastic optional.Option[StochasticValue] `json:"stochastic"`
	Cloud      optional.Option[CloudValue]      `json:"cloud"`
	ComputedAt time.Time                        `json:"computed_at"`
	Bars       int                              `json:"bars"`
}

// Compute runs the full pipeline with default periods.
func Compute(bars []model.RawBar) Snapshot {
	return ComputeWith(DefaultConfig(), bars)
}

// ComputeWith runs every indicator over the raw series. Indicators are
// isolated from each other: a panic or short window in one leaves the
// others intact.
func ComputeWith(cfg Config, bars []model.RawBar) Snapshot {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close.InexactFloat64()
		highs[i] = b.High.InexactFloat64()
		lows[i] = b.Low.InexactFloat64()
	}

	return Snapshot{
		RSI: guarded(func() (float64, error) {
			return rsi(closes, cfg.RSIPeriod)
		}),
		EMA: guarded(func() (float64, error) {
			return ema(closes, cfg.EMAPeriod)
		}),
		MACD: guarded(func() (MACDValue, error) {
			return macd(closes, cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal)
		}),
		Stochastic: guarded(func() (StochasticValue, error) {
			return stochastic(highs, lows, closes, cfg.StochK, cfg.StochD)
		}),
		Cloud: guarded(func() (CloudValue, error) {
			return cloud(highs, lows, cfg.CloudTenkan, cfg.CloudKijun, cfg.CloudSenkou)
		}),
		ComputedAt: time.Now().UTC(),
		Bars:       len(bars),
	}
}

// guarded runs one indicator and maps errors and panics to None. Numeric
// edge cases inside an indicator must never take down the batch.
func guarded[T any](f func() (T, error)) (result optional.Option[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = optional.None[T]()
		}
	}()

	v, err := f()
	if err != nil {
		return optional.None[T]()
	}
	return optional.Some(v)
}
