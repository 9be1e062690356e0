package ledger

import "time"

// ExitRules configures the exit triggers for an open position.
type ExitRules struct {
	// EdgeExit closes when the live edge has decayed to this level or below,
	// in percentage points.
	EdgeExit float64
	// MaxHold closes after this holding time regardless of edge.
	MaxHold time.Duration
	// StopFrac closes on an adverse move of this fraction from the average
	// entry (0.25 = -25%).
	StopFrac float64
}

// ShouldExit evaluates the exit triggers for pos. edgeOK is false while the
// edge signal is warming up; the edge trigger is skipped then, but max-hold
// and stop still apply. The returned reason is one of edge_exit, max_hold,
// stop.
func ShouldExit(pos Position, edge float64, edgeOK bool, now time.Time, r ExitRules) (string, bool) {
	if edgeOK && edge <= r.EdgeExit {
		return "edge_exit", true
	}
	if r.MaxHold > 0 && now.Sub(pos.OpenedAt) >= r.MaxHold {
		return "max_hold", true
	}
	if r.StopFrac > 0 && pos.AvgEntry > 0 && pos.LastMark > 0 {
		if pos.LastMark/pos.AvgEntry-1 <= -r.StopFrac {
			return "stop", true
		}
	}
	return "", false
}

// ScaleRules configures pyramiding into a winning position.
type ScaleRules struct {
	// TriggerPct is the minimum favorable move, in percent, since the last
	// recorded scale reference price.
	TriggerPct float64
	// Cooldown is the minimum spacing between scale-ins.
	Cooldown time.Duration
	// MaxAdds caps the number of scale-ins per position.
	MaxAdds int
	// MaxShares caps total position size after the add.
	MaxShares float64
}

// CanScale checks the scale-in gates for pos given the current mark and the
// shares the orchestrator wants to add. Entry gates (spread, price band,
// liquidity) are the caller's job; this covers only position-local state.
func CanScale(pos Position, mark, addShares float64, now time.Time, r ScaleRules) (string, bool) {
	if pos.ScaleAdds >= r.MaxAdds {
		return "max_adds", false
	}
	if now.Sub(pos.LastScaleAt) < r.Cooldown {
		return "scale_cooldown", false
	}
	if pos.LastScaleMid <= 0 || mark <= 0 {
		return "no_mark", false
	}
	if (mark/pos.LastScaleMid-1)*100 < r.TriggerPct {
		return "scale_trigger_not_met", false
	}
	if r.MaxShares > 0 && pos.Shares+addShares > r.MaxShares {
		return "position_cap", false
	}
	return "", true
}
