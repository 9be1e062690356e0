package leadlag

import "math"

// LagOptions bounds the lagged-correlation scan.
type LagOptions struct {
	MaxLagPoints  int
	MinPoints     int
	MinCorrPoints int
	MinAbsCorr    float64
	MinCorrGap    float64
}

// LagEstimate is the outcome of one lagged-correlation scan. Reason is set
// whenever OK is false.
type LagEstimate struct {
	OK             bool
	LagMs          float64
	LagPoints      int
	DtMs           float64
	BestCorr       float64
	SecondBestCorr float64
	CorrGap        float64
	Reason         string
}

func failedLag(reason string) LagEstimate {
	return LagEstimate{Reason: reason}
}

// EstimateLag scans lags 0..opts.MaxLagPoints, sliding the lagging series back
// by the lag and correlating it against the leading series. Tick spacing is
// the median inter-sample gap, which tolerates scheduling jitter. The
// second-best correlation across lags is kept so callers can demand a
// confidence gap before trusting the estimate.
func (e *Estimator) EstimateLag(key string, opts LagOptions) LagEstimate {
	lead := e.store.Leading(key)
	lag := e.store.Lagging(key)
	if len(lead) == 0 || len(lag) == 0 {
		return failedLag("no_history")
	}
	if len(lead) < opts.MinPoints || len(lag) < opts.MinPoints {
		return failedLag("not_enough_prices")
	}

	sRet := pctReturns(lead)
	pRet := pctReturns(lag)
	n := len(sRet)
	if len(pRet) < n {
		n = len(pRet)
	}
	if n < opts.MinCorrPoints {
		return failedLag("not_enough_returns")
	}
	sRet = sRet[len(sRet)-n:]
	pRet = pRet[len(pRet)-n:]

	dts := make([]float64, 0, len(lead)-1)
	for i := 1; i < len(lead); i++ {
		dts = append(dts, float64(lead[i].At.Sub(lead[i-1].At).Milliseconds()))
	}
	dtMs, ok := medianPositive(dts)
	if !ok {
		return failedLag("no_dt")
	}
	if dtMs <= 0 {
		return failedLag("bad_dt")
	}

	if sampleStddev(sRet) < varianceEps || sampleStddev(pRet) < varianceEps {
		return failedLag("low_variance")
	}

	bestLag := -1
	bestCorr := 0.0
	secondBest := 0.0
	haveSecond := false
	for l := 0; l <= opts.MaxLagPoints; l++ {
		if n-l < opts.MinCorrPoints {
			break
		}
		// The lagging market at i tracks the leader at i-l.
		corr, ok := pearson(sRet[:n-l], pRet[l:])
		if !ok {
			continue
		}
		switch {
		case bestLag < 0 || corr > bestCorr:
			if bestLag >= 0 {
				secondBest = bestCorr
				haveSecond = true
			}
			bestLag = l
			bestCorr = corr
		case !haveSecond || corr > secondBest:
			secondBest = corr
			haveSecond = true
		}
	}
	if bestLag < 0 {
		return failedLag("no_valid_corr")
	}

	est := LagEstimate{
		LagPoints:      bestLag,
		LagMs:          float64(bestLag) * dtMs,
		DtMs:           dtMs,
		BestCorr:       bestCorr,
		SecondBestCorr: secondBest,
	}
	if haveSecond {
		est.CorrGap = bestCorr - secondBest
	} else {
		est.CorrGap = math.Abs(bestCorr)
	}

	if math.Abs(bestCorr) < opts.MinAbsCorr {
		est.Reason = "corr_too_low"
		return est
	}
	if est.CorrGap < opts.MinCorrGap {
		est.Reason = "corr_gap_too_low"
		return est
	}
	est.OK = true
	return est
}
