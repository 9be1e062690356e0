package agent

import (
	"math"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/leadlag"
)

// Gate reason tags. Every skipped entry carries exactly one of these so
// behavior is auditable from the event log alone.
const (
	reasonStaleOrWarmup         = "stale_or_warmup"
	reasonPriceOutOfBand        = "price_out_of_band"
	reasonSpreadTooHigh         = "spread_too_high"
	reasonMoveTooSmall          = "move_too_small"
	reasonEdgeTooLow            = "edge_too_low"
	reasonNetEdgeTooLow         = "net_edge_too_low"
	reasonLagTooShort           = "lag_too_short"
	reasonInsufficientLiquidity = "insufficient_liquidity"
	reasonThrottled             = "throttled"
	reasonKillSwitch            = "kill_switch"
	reasonNotTrendSide          = "trend_side_not_selected"
)

// spreadPct is the full bid-ask spread as a percent of mid. Returns +Inf
// when the quote is unusable, which trips the spread gate.
func spreadPct(bid, ask float64) float64 {
	if bid <= 0 || ask <= 0 || ask < bid {
		return math.Inf(1)
	}
	mid := (bid + ask) / 2
	return (ask - bid) / mid * 100
}

// adaptiveThreshold is the minimum source move required before an entry is
// considered: the static floor, a noise multiple, or a multiple of the
// half-spread cost, whichever is largest. A warm-up noise estimate
// contributes nothing.
func adaptiveThreshold(cfg Config, noise leadlag.NoiseResult, halfSpreadPct float64) float64 {
	th := cfg.MoveMinPct
	if noise.OK && noise.Stddev*cfg.NoiseMult > th {
		th = noise.Stddev * cfg.NoiseMult
	}
	if halfSpreadPct*cfg.SpreadMoveMult > th {
		th = halfSpreadPct * cfg.SpreadMoveMult
	}
	return th
}

// entrySignal carries everything the entry gates need for one candidate.
type entrySignal struct {
	Bid, Ask float64

	Edge   leadlag.EdgeResult
	EdgeOK bool
	Trend  float64
	Noise  leadlag.NoiseResult
	Lag    leadlag.LagEstimate
}

// checkEntry runs the signal-side entry gates in order and returns the first
// blocking reason. Liquidity, throttle and ledger gates run later because
// they need the sizer and tick-local state.
func checkEntry(cfg Config, sig entrySignal) (string, bool) {
	if !sig.EdgeOK {
		return reasonStaleOrWarmup, false
	}
	if sig.Ask > cfg.AvoidAbove || sig.Ask < cfg.AvoidBelow {
		return reasonPriceOutOfBand, false
	}
	sp := spreadPct(sig.Bid, sig.Ask)
	if sp > cfg.SpreadCapPct {
		return reasonSpreadTooHigh, false
	}

	half := sp / 2
	th := adaptiveThreshold(cfg, sig.Noise, half)
	if math.Abs(sig.Edge.SpotRet) < th && sig.Trend < th {
		return reasonMoveTooSmall, false
	}
	if sig.Edge.Edge < cfg.EdgeMinPct {
		return reasonEdgeTooLow, false
	}
	if sig.Edge.Edge-half-cfg.FeePct < cfg.NetEdgeMinPct {
		return reasonNetEdgeTooLow, false
	}
	if cfg.MinLagMs > 0 {
		if !sig.Lag.OK || sig.Lag.LagMs < cfg.MinLagMs {
			return reasonLagTooShort, false
		}
	}
	return "", true
}

// tickDelay is the sleep before the next tick: the base interval, doubled
// per consecutive failure up to 2^4, capped at five minutes.
func tickDelay(interval time.Duration, failures int) time.Duration {
	const maxDelay = 5 * time.Minute
	if interval <= 0 {
		interval = time.Second
	}
	shift := failures
	if shift < 0 {
		shift = 0
	}
	if shift > 4 {
		shift = 4
	}
	d := interval << uint(shift)
	if d > maxDelay {
		return maxDelay
	}
	return d
}
