package leadlag

import (
	"math"

	"github.com/LarsOlovLindberg/Spelar/internal/series"
)

// Bias is the outcome side an edge is computed for.
type Bias string

const (
	BiasYes Bias = "YES"
	BiasNo  Bias = "NO"
)

// Estimator computes lead-lag edges, lag estimates and noise floors from the
// rolling histories in a series.Store.
type Estimator struct {
	store *series.Store
}

func New(store *series.Store) *Estimator {
	return &Estimator{store: store}
}

func (e *Estimator) Store() *series.Store { return e.store }

// EdgeResult is the directional mispricing for one market over a lookback
// window, in percentage points.
type EdgeResult struct {
	SpotRet float64
	PmRet   float64
	Edge    float64
}

// Edge computes the trailing move of both legs over lookback samples and the
// resulting edge. For YES bias edge = spotRet - pmRet; for NO bias
// edge = -spotRet - pmRet. The second return is false during warm-up
// (fewer than lookback+1 points), which is not an error.
func (e *Estimator) Edge(key string, lookback int, bias Bias) (EdgeResult, bool) {
	if lookback <= 0 {
		return EdgeResult{}, false
	}
	lead := e.store.Leading(key)
	lag := e.store.Lagging(key)
	if len(lead) < lookback+1 || len(lag) < lookback+1 {
		return EdgeResult{}, false
	}

	spotRet := pctMove(lead[len(lead)-1-lookback].Price, lead[len(lead)-1].Price)
	pmRet := pctMove(lag[len(lag)-1-lookback].Price, lag[len(lag)-1].Price)

	edge := spotRet - pmRet
	if bias == BiasNo {
		edge = -spotRet - pmRet
	}
	return EdgeResult{SpotRet: spotRet, PmRet: pmRet, Edge: edge}, true
}

// Trend returns the lagging-leg (market price) percent move over lookback
// samples. Used by the momentum variant where no reference leg drives entries.
func (e *Estimator) Trend(key string, lookback int) (float64, bool) {
	if lookback <= 0 {
		return 0, false
	}
	lag := e.store.Lagging(key)
	if len(lag) < lookback+1 {
		return 0, false
	}
	return pctMove(lag[len(lag)-1-lookback].Price, lag[len(lag)-1].Price), true
}

// NoiseResult is the adaptive noise floor for one market.
type NoiseResult struct {
	OK     bool
	Stddev float64
	Points int
	Reason string
}

// Noise estimates micro-jitter as the sample standard deviation of the most
// recent window of leading-leg percent returns. A flat window reports
// low_variance instead of a zero floor.
func (e *Estimator) Noise(key string, window, minPoints int) NoiseResult {
	lead := e.store.Leading(key)
	rets := pctReturns(lead)
	if len(rets) > window {
		rets = rets[len(rets)-window:]
	}
	if len(rets) < minPoints {
		return NoiseResult{Reason: "stale_or_warmup", Points: len(rets)}
	}
	sd := sampleStddev(rets)
	if sd < varianceEps {
		return NoiseResult{Reason: "low_variance", Points: len(rets)}
	}
	return NoiseResult{OK: true, Stddev: sd, Points: len(rets)}
}

const varianceEps = 1e-12

// pctMove is the percent change from prev to cur, 0 when prev is 0.
func pctMove(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return (cur/prev - 1) * 100
}

// pctReturns converts a price history into consecutive percent returns.
func pctReturns(pts []series.PricePoint) []float64 {
	if len(pts) < 2 {
		return nil
	}
	out := make([]float64, 0, len(pts)-1)
	for i := 1; i < len(pts); i++ {
		out = append(out, pctMove(pts[i-1].Price, pts[i].Price))
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStddev is the n-1 normalized standard deviation; 0 for fewer than two
// samples.
func sampleStddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

// pearson computes the Pearson correlation of two equal-length vectors. The
// second return is false when either vector has (near) zero variance; such
// windows are discarded rather than treated as correlation 0.
func pearson(xs, ys []float64) (float64, bool) {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return 0, false
	}
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx < varianceEps || syy < varianceEps {
		return 0, false
	}
	return sxy / math.Sqrt(sxx*syy), true
}

// medianPositive returns the median of the positive values in xs.
func medianPositive(xs []float64) (float64, bool) {
	pos := make([]float64, 0, len(xs))
	for _, x := range xs {
		if x > 0 {
			pos = append(pos, x)
		}
	}
	if len(pos) == 0 {
		return 0, false
	}
	// Insertion sort; windows here are small.
	for i := 1; i < len(pos); i++ {
		for j := i; j > 0 && pos[j] < pos[j-1]; j-- {
			pos[j], pos[j-1] = pos[j-1], pos[j]
		}
	}
	mid := len(pos) / 2
	if len(pos)%2 == 1 {
		return pos[mid], true
	}
	return (pos[mid-1] + pos[mid]) / 2, true
}
