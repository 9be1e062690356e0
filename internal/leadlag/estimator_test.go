package leadlag

import (
	"math"
	"testing"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/series"
)

func seed(s *series.Store, key string, lead, lag []float64, stepSecs int) {
	base := time.Unix(1_700_000_000, 0)
	for i := range lead {
		s.Append(key, lead[i], lag[i], base.Add(time.Duration(i*stepSecs)*time.Second))
	}
}

func TestEdgeYesAndNoBias(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{100, 102, 103}, []float64{0.50, 0.51, 0.505}, 5)
	e := New(st)

	res, ok := e.Edge("btc", 2, BiasYes)
	if !ok {
		t.Fatalf("expected edge, got warm-up")
	}
	if math.Abs(res.SpotRet-3.0) > 1e-9 {
		t.Fatalf("SpotRet: got %v want 3.0", res.SpotRet)
	}
	if math.Abs(res.PmRet-1.0) > 1e-9 {
		t.Fatalf("PmRet: got %v want 1.0", res.PmRet)
	}
	if math.Abs(res.Edge-2.0) > 1e-9 {
		t.Fatalf("YES edge: got %v want 2.0", res.Edge)
	}

	res, ok = e.Edge("btc", 2, BiasNo)
	if !ok {
		t.Fatalf("expected edge, got warm-up")
	}
	if math.Abs(res.Edge-(-4.0)) > 1e-9 {
		t.Fatalf("NO edge: got %v want -4.0", res.Edge)
	}
}

func TestEdgeWarmup(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{100, 101}, []float64{0.5, 0.5}, 5)
	e := New(st)
	if _, ok := e.Edge("btc", 2, BiasYes); ok {
		t.Fatalf("expected warm-up with 2 points and lookback 2")
	}
	if _, ok := e.Edge("missing", 2, BiasYes); ok {
		t.Fatalf("expected warm-up for unknown key")
	}
}

func TestEdgeZeroPriorPrice(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{0, 50, 60}, []float64{0, 0.5, 0.6}, 5)
	e := New(st)
	res, ok := e.Edge("btc", 2, BiasYes)
	if !ok {
		t.Fatalf("expected edge")
	}
	if res.SpotRet != 0 || res.PmRet != 0 {
		t.Fatalf("zero prior price must yield zero return, got %v / %v", res.SpotRet, res.PmRet)
	}
}

func TestTrend(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{1, 1, 1}, []float64{0.40, 0.42, 0.44}, 5)
	e := New(st)
	mv, ok := e.Trend("btc", 2)
	if !ok {
		t.Fatalf("expected trend")
	}
	if math.Abs(mv-10.0) > 1e-9 {
		t.Fatalf("Trend: got %v want 10.0", mv)
	}
	if _, ok := e.Trend("btc", 5); ok {
		t.Fatalf("expected warm-up for lookback 5")
	}
}

func TestNoise(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{100, 101, 100, 102, 101, 103}, []float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5}, 5)
	e := New(st)

	res := e.Noise("btc", 10, 3)
	if !res.OK {
		t.Fatalf("expected noise estimate, got reason %q", res.Reason)
	}
	if res.Stddev <= 0 {
		t.Fatalf("Stddev: got %v", res.Stddev)
	}

	res = e.Noise("btc", 10, 20)
	if res.OK || res.Reason != "stale_or_warmup" {
		t.Fatalf("expected stale_or_warmup, got %+v", res)
	}
}

func TestNoiseFlatSeriesReportsLowVariance(t *testing.T) {
	st := series.NewStore(10)
	flat := make([]float64, 10)
	for i := range flat {
		flat[i] = 100
	}
	seed(st, "btc", flat, flat, 5)
	e := New(st)
	res := e.Noise("btc", 10, 3)
	if res.OK || res.Reason != "low_variance" {
		t.Fatalf("flat series must report low_variance, got %+v", res)
	}
}

func defaultLagOpts() LagOptions {
	return LagOptions{
		MaxLagPoints:  5,
		MinPoints:     6,
		MinCorrPoints: 4,
		MinAbsCorr:    0.5,
		MinCorrGap:    0.05,
	}
}

func TestEstimateLagDelayedReplay(t *testing.T) {
	lead := []float64{100, 101, 99.5, 102, 100.8, 103.2, 101.0, 104.5, 102.2, 105.9}
	lag := make([]float64, len(lead))
	for i := range lag {
		if i < 3 {
			lag[i] = lead[0]
		} else {
			lag[i] = lead[i-3]
		}
	}
	st := series.NewStore(10)
	seed(st, "btc", lead, lag, 5)
	e := New(st)

	opts := defaultLagOpts()
	opts.MinCorrGap = 0.01
	est := e.EstimateLag("btc", opts)
	if !est.OK {
		t.Fatalf("expected ok, got reason %q (%+v)", est.Reason, est)
	}
	if est.LagPoints != 3 {
		t.Fatalf("LagPoints: got %d want 3", est.LagPoints)
	}
	if math.Abs(est.LagMs-15000) > 1e-6 {
		t.Fatalf("LagMs: got %v want 15000", est.LagMs)
	}
	if math.Abs(est.DtMs-5000) > 1e-6 {
		t.Fatalf("DtMs: got %v want 5000", est.DtMs)
	}
	if est.BestCorr < 0.999 {
		t.Fatalf("BestCorr: got %v want ~1.0", est.BestCorr)
	}
}

func TestEstimateLagFlatSeries(t *testing.T) {
	flat := make([]float64, 10)
	for i := range flat {
		flat[i] = 100
	}
	st := series.NewStore(10)
	seed(st, "btc", flat, flat, 5)
	e := New(st)

	est := e.EstimateLag("btc", defaultLagOpts())
	if est.OK || est.Reason != "low_variance" {
		t.Fatalf("flat series must fail with low_variance, got %+v", est)
	}
}

func TestEstimateLagFailureReasons(t *testing.T) {
	e := New(series.NewStore(10))
	if est := e.EstimateLag("missing", defaultLagOpts()); est.Reason != "no_history" {
		t.Fatalf("empty history: got %q want no_history", est.Reason)
	}

	st := series.NewStore(10)
	seed(st, "btc", []float64{100, 101, 102}, []float64{0.5, 0.51, 0.52}, 5)
	e = New(st)
	if est := e.EstimateLag("btc", defaultLagOpts()); est.Reason != "not_enough_prices" {
		t.Fatalf("short history: got %q want not_enough_prices", est.Reason)
	}
}

func TestEstimateLagSameTimestampNoDt(t *testing.T) {
	st := series.NewStore(10)
	seed(st, "btc", []float64{100, 101, 99, 102, 100, 103, 101, 104}, []float64{0.5, 0.51, 0.49, 0.52, 0.5, 0.53, 0.51, 0.54}, 0)
	e := New(st)
	if est := e.EstimateLag("btc", defaultLagOpts()); est.Reason != "no_dt" {
		t.Fatalf("zero spacing: got %q want no_dt", est.Reason)
	}
}
