package indicators

import (
	"errors"
	"math"

	"gold-trader/models"
)

// Indicator windows. The longest effective warm-up is the MACD signal line,
// which needs slowWindow bars for EMA26 plus signalWindow MACD values.
const (
	smaWindow    = 20
	fastWindow   = 12
	slowWindow   = 26
	signalWindow = 9
	rsiWindow    = 14
	bbWindow     = 20
	bbStdDevs    = 2.0
)

// WarmupBars is the number of bars needed before every indicator in a set is
// defined.
const WarmupBars = slowWindow + signalWindow - 1

// ErrInsufficientHistory is returned when a price series is too short for the
// requested indicator warm-up.
var ErrInsufficientHistory = errors.New("insufficient price history")

// Compute derives an IndicatorSet per input bar, aligned 1:1 with the input.
// Bars are assumed ascending by timestamp; gaps are passed through faithfully.
// Each field stays nil until its own warm-up window is satisfied.
func Compute(bars []models.PriceBar) []models.IndicatorSet {
	closes := models.Closes(bars)

	sma20 := smaSeries(closes, smaWindow)
	ema12 := emaSeries(closes, fastWindow)
	ema26 := emaSeries(closes, slowWindow)
	rsi14 := rsiSeries(closes, rsiWindow)

	// MACD exists where both EMAs do; the signal line is an EMA of the MACD
	// values themselves, so its warm-up stacks on top of the slow EMA's.
	macd := make([]*float64, len(closes))
	for i := range closes {
		if ema12[i] != nil && ema26[i] != nil {
			v := *ema12[i] - *ema26[i]
			macd[i] = &v
		}
	}
	macdSignal := emaOfDefined(macd, signalWindow)

	sets := make([]models.IndicatorSet, len(bars))
	for i, bar := range bars {
		set := models.IndicatorSet{
			Timestamp:  bar.Timestamp,
			SMA20:      sma20[i],
			EMA12:      ema12[i],
			EMA26:      ema26[i],
			RSI14:      rsi14[i],
			MACD:       macd[i],
			MACDSignal: macdSignal[i],
		}
		if macd[i] != nil && macdSignal[i] != nil {
			h := *macd[i] - *macdSignal[i]
			set.MACDHistogram = &h
		}
		if i >= bbWindow-1 {
			middle := mean(closes[i-bbWindow+1 : i+1])
			sigma := popStdDev(closes[i-bbWindow+1:i+1], middle)
			upper := middle + bbStdDevs*sigma
			lower := middle - bbStdDevs*sigma
			set.BBMiddle = &middle
			set.BBUpper = &upper
			set.BBLower = &lower
		}
		sets[i] = set
	}

	return sets
}

// Latest returns the newest IndicatorSet and the one before it (needed for
// crossing detection). It fails with ErrInsufficientHistory when the series
// is shorter than the full warm-up.
func Latest(bars []models.PriceBar) (latest models.IndicatorSet, previous *models.IndicatorSet, err error) {
	if len(bars) < WarmupBars {
		return models.IndicatorSet{}, nil, ErrInsufficientHistory
	}
	sets := Compute(bars)
	latest = sets[len(sets)-1]
	if len(sets) > 1 {
		previous = &sets[len(sets)-2]
	}
	return latest, previous, nil
}

// smaSeries computes the simple moving average; undefined before n bars.
func smaSeries(closes []float64, n int) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) < n {
		return out
	}
	sum := 0.0
	for i, c := range closes {
		sum += c
		if i >= n {
			sum -= closes[i-n]
		}
		if i >= n-1 {
			v := sum / float64(n)
			out[i] = &v
		}
	}
	return out
}

// emaSeries seeds with the SMA of the first n closes, then applies
// ema[t] = close[t]*k + ema[t-1]*(1-k) with k = 2/(n+1).
func emaSeries(closes []float64, n int) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) < n {
		return out
	}
	k := 2.0 / float64(n+1)
	ema := mean(closes[:n])
	out[n-1] = ptr(ema)
	for i := n; i < len(closes); i++ {
		ema = closes[i]*k + ema*(1-k)
		out[i] = ptr(ema)
	}
	return out
}

// emaOfDefined applies the seeded EMA recurrence over the defined region of a
// sparse series, keeping the output aligned with the input.
func emaOfDefined(values []*float64, n int) []*float64 {
	out := make([]*float64, len(values))

	start := -1
	for i, v := range values {
		if v != nil {
			start = i
			break
		}
	}
	if start < 0 || len(values)-start < n {
		return out
	}

	k := 2.0 / float64(n+1)
	seed := 0.0
	for i := start; i < start+n; i++ {
		seed += *values[i]
	}
	ema := seed / float64(n)
	out[start+n-1] = ptr(ema)
	for i := start + n; i < len(values); i++ {
		ema = *values[i]*k + ema*(1-k)
		out[i] = ptr(ema)
	}
	return out
}

// rsiSeries computes the Wilder-smoothed RSI. A flat market (zero average
// gain and loss) reads 50; zero average loss with gains reads 100.
func rsiSeries(closes []float64, n int) []*float64 {
	out := make([]*float64, len(closes))
	if len(closes) < n+1 {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = ptr(rsiValue(avgGain, avgLoss))

	for i := n + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(n-1) + gain) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + loss) / float64(n)
		out[i] = ptr(rsiValue(avgGain, avgLoss))
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// popStdDev is the population standard deviation around a precomputed mean.
func popStdDev(values []float64, m float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

func ptr(v float64) *float64 {
	return &v
}
