// Package indicator computes a batch of technical indicators over the
// current historical window. Each indicator is a pure function of the raw
// series; a failure or short window degrades that one field to absent and
// never blocks the others.
package indicator

import "errors"

// Default periods. These match common charting defaults; the cloud spans
// are the classic Ichimoku (9, 26, 52).
const (
	DefaultRSIPeriod   = 14
	DefaultEMAPeriod   = 20
	DefaultMACDFast    = 12
	DefaultMACDSlow    = 26
	DefaultMACDSignal  = 9
	DefaultStochK      = 14
	DefaultStochD      = 3
	DefaultCloudTenkan = 9
	DefaultCloudKijun  = 26
	DefaultCloudSenkou = 52
)

// errInsufficientData marks a window too short for an indicator. Callers
// map it to an absent field, not an error.
var errInsufficientData = errors.New("insufficient data")

// MACDValue carries the MACD line, its signal line and histogram.
type MACDValue struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// StochasticValue carries the %K/%D oscillator pair.
type StochasticValue struct {
	K float64 `json:"k"`
	D float64 `json:"d"`
}

// CloudValue carries the two Ichimoku cloud spans for the current bar.
type CloudValue struct {
	SpanA float64 `json:"span_a"`
	SpanB float64 `json:"span_b"`
}

// rsi computes Wilder-smoothed RSI over the full window and returns the
// final value. Needs period+1 closes for the first delta window.
func rsi(closes []float64, period int) (float64, error) {
	if len(closes) < period+1 {
		return 0, errInsufficientData
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			avgGain += delta
		} else {
			avgLoss -= delta
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	p := float64(period)
	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if delta > 0 {
			gain = delta
		} else {
			loss = -delta
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}

// emaSeries computes the full EMA series, SMA-seeded at index period-1.
// Values before the seed index are zero and must not be read.
func emaSeries(values []float64, period int) ([]float64, error) {
	if len(values) < period {
		return nil, errInsufficientData
	}

	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)

	mult := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*mult + out[i-1]*(1-mult)
	}
	return out, nil
}

// ema returns the final EMA value over the window.
func ema(closes []float64, period int) (float64, error) {
	series, err := emaSeries(closes, period)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// macd computes the MACD line (fast EMA - slow EMA), its EMA signal line
// and the histogram. The signal line needs signalPeriod valid MACD points,
// so the window must hold at least slow+signalPeriod-1 closes.
func macd(closes []float64, fast, slow, signalPeriod int) (MACDValue, error) {
	if len(closes) < slow+signalPeriod-1 {
		return MACDValue{}, errInsufficientData
	}

	fastSeries, err := emaSeries(closes, fast)
	if err != nil {
		return MACDValue{}, err
	}
	slowSeries, err := emaSeries(closes, slow)
	if err != nil {
		return MACDValue{}, err
	}

	// The MACD line exists from the first index where the slow EMA does.
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastSeries[i]-slowSeries[i])
	}

	signalSeries, err := emaSeries(line, signalPeriod)
	if err != nil {
		return MACDValue{}, err
	}

	value := line[len(line)-1]
	signal := signalSeries[len(signalSeries)-1]
	return MACDValue{Value: value, Signal: signal, Histogram: value - signal}, nil
}

// stochastic computes %K over the trailing kPeriod window and %D as the
// simple average of the last dPeriod %K values.
func stochastic(highs, lows, closes []float64, kPeriod, dPeriod int) (StochasticValue, error) {
	if len(closes) < kPeriod+dPeriod-1 {
		return StochasticValue{}, errInsufficientData
	}

	kAt := func(end int) float64 { // end = inclusive last index of the window
		hh, ll := highs[end], lows[end]
		for i := end - kPeriod + 1; i < end; i++ {
			if highs[i] > hh {
				hh = highs[i]
			}
			if lows[i] < ll {
				ll = lows[i]
			}
		}
		if hh == ll {
			return 50 // flat window; midpoint by convention
		}
		return (closes[end] - ll) / (hh - ll) * 100
	}

	last := len(closes) - 1
	var dSum float64
	for i := 0; i < dPeriod; i++ {
		dSum += kAt(last - i)
	}
	return StochasticValue{K: kAt(last), D: dSum / float64(dPeriod)}, nil
}

// cloud computes the current Ichimoku spans: spanA is the tenkan/kijun
// midpoint, spanB the senkou-period range midpoint.
func cloud(highs, lows []float64, tenkanP, kijunP, senkouP int) (CloudValue, error) {
	if len(highs) < senkouP {
		return CloudValue{}, errInsufficientData
	}

	mid := func(period int) float64 {
		start := len(highs) - period
		hh, ll := highs[start], lows[start]
		for i := start + 1; i < len(highs); i++ {
			if highs[i] > hh {
				hh = highs[i]
			}
			if lows[i] < ll {
				ll = lows[i]
			}
		}
		return (hh + ll) / 2
	}

	tenkan := mid(tenkanP)
	kijun := mid(kijunP)
	return CloudValue{SpanA: (tenkan + kijun) / 2, SpanB: mid(senkouP)}, nil
}
