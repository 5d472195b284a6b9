package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"omnistream/internal/model"
)

// series builds n bars with the given close values; highs sit 1 above and
// lows 1 below the close.
func series(closes ...float64) []model.RawBar {
	t0 := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	bars := make([]model.RawBar, len(closes))
	for i, c := range closes {
		bars[i] = model.RawBar{
			OpenTime: t0.Add(time.Duration(i) * time.Minute),
			Open:     decimal.NewFromFloat(c),
			High:     decimal.NewFromFloat(c + 1),
			Low:      decimal.NewFromFloat(c - 1),
			Close:    decimal.NewFromFloat(c),
			Volume:   decimal.NewFromInt(1),
		}
	}
	return bars
}

func flatSeries(n int, value float64) []model.RawBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = value
	}
	return series(closes...)
}

func risingSeries(n int) []model.RawBar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	return series(closes...)
}

func TestCompute_DegradesByWindowLength(t *testing.T) {
	cases := []struct {
		bars                        int
		rsi, ema, macd, stoch, cld bool
	}{
		{bars: 0},
		{bars: 10},
		{bars: 16, rsi: true, stoch: true},
		{bars: 20, rsi: true, ema: true, stoch: true},
		{bars: 40, rsi: true, ema: true, macd: true, stoch: true},
		{bars: 60, rsi: true, ema: true, macd: true, stoch: true, cld: true},
	}

	for _, tc := range cases {
		snap := Compute(risingSeries(tc.bars))
		if snap.RSI.IsSome() != tc.rsi {
			t.Errorf("bars=%d: rsi present=%v, want %v", tc.bars, snap.RSI.IsSome(), tc.rsi)
		}
		if snap.EMA.IsSome() != tc.ema {
			t.Errorf("bars=%d: ema present=%v, want %v", tc.bars, snap.EMA.IsSome(), tc.ema)
		}
		if snap.MACD.IsSome() != tc.macd {
			t.Errorf("bars=%d: macd present=%v, want %v", tc.bars, snap.MACD.IsSome(), tc.macd)
		}
		if snap.Stochastic.IsSome() != tc.stoch {
			t.Errorf("bars=%d: stochastic present=%v, want %v", tc.bars, snap.Stochastic.IsSome(), tc.stoch)
		}
		if snap.Cloud.IsSome() != tc.cld {
			t.Errorf("bars=%d: cloud present=%v, want %v", tc.bars, snap.Cloud.IsSome(), tc.cld)
		}
		if snap.Bars != tc.bars {
			t.Errorf("bars=%d: snapshot reports %d", tc.bars, snap.Bars)
		}
	}
}

func TestRSI_AllGainsSaturatesAt100(t *testing.T) {
	snap := Compute(risingSeries(30))
	v, err := snap.RSI.Take()
	if err != nil {
		t.Fatal("rsi should be present")
	}
	if v != 100 {
		t.Errorf("monotone rising closes must give RSI 100, got %v", v)
	}
}

func TestEMA_FlatSeriesEqualsPrice(t *testing.T) {
	snap := Compute(flatSeries(30, 250))
	v, err := snap.EMA.Take()
	if err != nil {
		t.Fatal("ema should be present")
	}
	if math.Abs(v-250) > 1e-9 {
		t.Errorf("EMA of a flat series must equal the price, got %v", v)
	}
}

func TestMACD_FlatSeriesIsZero(t *testing.T) {
	snap := Compute(flatSeries(60, 100))
	v, err := snap.MACD.Take()
	if err != nil {
		t.Fatal("macd should be present")
	}
	if math.Abs(v.Value) > 1e-9 || math.Abs(v.Signal) > 1e-9 || math.Abs(v.Histogram) > 1e-9 {
		t.Errorf("MACD of a flat series must be zero, got %+v", v)
	}
}

func TestStochastic_CloseAtWindowHigh(t *testing.T) {
	// Close rises each bar while highs/lows bracket it; the close never
	// reaches the running high (c+1), so %K stays below 100 but above 50.
	snap := Compute(risingSeries(30))
	v, err := snap.Stochastic.Take()
	if err != nil {
		t.Fatal("stochastic should be present")
	}
	if v.K <= 50 || v.K > 100 {
		t.Errorf("rising closes must give a high %%K, got %v", v.K)
	}
	if v.D <= 50 || v.D > 100 {
		t.Errorf("rising closes must give a high %%D, got %v", v.D)
	}
}

func TestStochastic_FlatWindowMidpoint(t *testing.T) {
	highs := make([]float64, 20)
	lows := make([]float64, 20)
	closes := make([]float64, 20)
	for i := range closes {
		highs[i], lows[i], closes[i] = 100, 100, 100
	}
	v, err := stochastic(highs, lows, closes, DefaultStochK, DefaultStochD)
	if err != nil {
		t.Fatalf("stochastic: %v", err)
	}
	if v.K != 50 || v.D != 50 {
		t.Errorf("flat window must give the midpoint, got %+v", v)
	}
}

func TestCloud_FlatSeriesSpans(t *testing.T) {
	snap := Compute(flatSeries(60, 100))
	v, err := snap.Cloud.Take()
	if err != nil {
		t.Fatal("cloud should be present")
	}
	// highs=101, lows=99 constant: every midpoint is 100.
	if math.Abs(v.SpanA-100) > 1e-9 || math.Abs(v.SpanB-100) > 1e-9 {
		t.Errorf("flat series spans must sit at the price, got %+v", v)
	}
}

func TestGuarded_PanicDegradesToAbsent(t *testing.T) {
	opt := guarded(func() (float64, error) {
		panic("numeric edge case")
	})
	if opt.IsSome() {
		t.Error("a panicking indicator must degrade to absent")
	}
}

func TestCompute_IsolationAcrossIndicators(t *testing.T) {
	// A window long enough for RSI/EMA/stochastic but too short for MACD
	// and the cloud: the failing ones must not drag the rest down.
	snap := Compute(risingSeries(25))
	if !snap.RSI.IsSome() || !snap.EMA.IsSome() || !snap.Stochastic.IsSome() {
		t.Error("short-window failures must not block other indicators")
	}
	if snap.MACD.IsSome() || snap.Cloud.IsSome() {
		t.Error("macd/cloud must be absent at 25 bars")
	}
}
