package ledger

import (
	"errors"
	"math"
	"testing"
	"time"
)

var t0 = time.Unix(1_700_000_000, 0)

func TestBuyOpensPosition(t *testing.T) {
	p := NewPaper(1000)
	fill, err := p.Buy("tok1", "btc-above-100k", "Yes", 100, 0.40, t0)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if fill.TradeID == "" || fill.Side != "BUY" {
		t.Fatalf("fill: %+v", fill)
	}
	if got := p.Cash(); math.Abs(got-960) > 1e-9 {
		t.Fatalf("Cash: got %v want 960", got)
	}
	pos, ok := p.Position("tok1")
	if !ok {
		t.Fatalf("position missing")
	}
	if pos.Shares != 100 || pos.AvgEntry != 0.40 || pos.ScaleAdds != 0 {
		t.Fatalf("position: %+v", pos)
	}
}

func TestBuyInsufficientCashRejectedWithoutMutation(t *testing.T) {
	p := NewPaper(100)
	// 300 shares at 0.40 = 120 USD notional.
	_, err := p.Buy("tok1", "m", "Yes", 300, 0.40, t0)
	if !errors.Is(err, ErrInsufficientCash) {
		t.Fatalf("expected ErrInsufficientCash, got %v", err)
	}
	if got := p.Cash(); got != 100 {
		t.Fatalf("cash must be unchanged on reject: got %v", got)
	}
	if _, ok := p.Position("tok1"); ok {
		t.Fatalf("position must not exist after reject")
	}
}

func TestBuyZeroSizeRejected(t *testing.T) {
	p := NewPaper(100)
	if _, err := p.Buy("tok1", "m", "Yes", 0, 0.40, t0); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("zero shares: got %v", err)
	}
	if _, err := p.Buy("tok1", "m", "Yes", 10, 0, t0); !errors.Is(err, ErrZeroSize) {
		t.Fatalf("zero price: got %v", err)
	}
}

func TestScaleInRecomputesWeightedEntry(t *testing.T) {
	p := NewPaper(1000)
	if _, err := p.Buy("tok1", "m", "Yes", 100, 0.40, t0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Buy("tok1", "m", "Yes", 50, 0.46, t0.Add(time.Minute)); err != nil {
		t.Fatalf("scale: %v", err)
	}
	pos, _ := p.Position("tok1")
	want := (0.40*100 + 0.46*50) / 150
	if math.Abs(pos.AvgEntry-want) > 1e-9 {
		t.Fatalf("AvgEntry: got %v want %v", pos.AvgEntry, want)
	}
	if pos.Shares != 150 || pos.ScaleAdds != 1 {
		t.Fatalf("position: %+v", pos)
	}
	if !pos.LastScaleAt.Equal(t0.Add(time.Minute)) {
		t.Fatalf("LastScaleAt: %v", pos.LastScaleAt)
	}
}

func TestSellRealizesPnlAndNeverTouchesEntry(t *testing.T) {
	p := NewPaper(1000)
	if _, err := p.Buy("tok1", "m", "Yes", 100, 0.40, t0); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := p.Sell("tok1", 40, 0.50, t0.Add(time.Minute)); err != nil {
		t.Fatalf("partial sell: %v", err)
	}
	if got := p.Realized(); math.Abs(got-4.0) > 1e-9 {
		t.Fatalf("Realized: got %v want 4.0", got)
	}
	pos, ok := p.Position("tok1")
	if !ok || pos.Shares != 60 {
		t.Fatalf("position after partial sell: %+v ok=%v", pos, ok)
	}
	if pos.AvgEntry != 0.40 {
		t.Fatalf("sell must not change AvgEntry: got %v", pos.AvgEntry)
	}

	if _, err := p.Sell("tok1", 999, 0.30, t0.Add(2*time.Minute)); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := p.Position("tok1"); ok {
		t.Fatalf("position must be removed after full exit")
	}
	// 4.0 from the first sell, 60 * (0.30-0.40) = -6.0 from the second.
	if got := p.Realized(); math.Abs(got-(-2.0)) > 1e-9 {
		t.Fatalf("Realized: got %v want -2.0", got)
	}
}

func TestSellWithoutPosition(t *testing.T) {
	p := NewPaper(100)
	if _, err := p.Sell("tok1", 10, 0.5, t0); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("expected ErrNoPosition, got %v", err)
	}
}

func TestEquityMarksAtLastBid(t *testing.T) {
	p := NewPaper(1000)
	if _, err := p.Buy("tok1", "m", "Yes", 100, 0.40, t0); err != nil {
		t.Fatalf("open: %v", err)
	}
	p.Mark("tok1", 0.55)
	if got := p.Equity(); math.Abs(got-(960+55)) > 1e-9 {
		t.Fatalf("Equity: got %v want 1015", got)
	}
	// Non-positive marks are ignored.
	p.Mark("tok1", 0)
	pos, _ := p.Position("tok1")
	if pos.LastMark != 0.55 {
		t.Fatalf("LastMark: got %v", pos.LastMark)
	}
}

func TestShouldExit(t *testing.T) {
	rules := ExitRules{EdgeExit: 0.05, MaxHold: 180 * time.Second, StopFrac: 0.25}
	pos := Position{OpenedAt: t0, AvgEntry: 0.40, LastMark: 0.40}

	if reason, ok := ShouldExit(pos, 0.04, true, t0.Add(time.Minute), rules); !ok || reason != "edge_exit" {
		t.Fatalf("edge decay: got %q %v", reason, ok)
	}
	if reason, ok := ShouldExit(pos, 0.50, true, t0.Add(time.Minute), rules); ok {
		t.Fatalf("healthy position must not exit: %q", reason)
	}
	if reason, ok := ShouldExit(pos, 0.50, true, t0.Add(181*time.Second), rules); !ok || reason != "max_hold" {
		t.Fatalf("max hold: got %q %v", reason, ok)
	}

	stopped := pos
	stopped.LastMark = 0.29 // -27.5% from 0.40
	if reason, ok := ShouldExit(stopped, 0.50, true, t0.Add(time.Minute), rules); !ok || reason != "stop" {
		t.Fatalf("stop: got %q %v", reason, ok)
	}

	// Warm-up edge skips the edge trigger but not the others.
	if reason, ok := ShouldExit(pos, 0, false, t0.Add(time.Minute), rules); ok {
		t.Fatalf("warm-up edge must not trigger edge_exit: %q", reason)
	}
}

func TestCanScale(t *testing.T) {
	rules := ScaleRules{TriggerPct: 2.0, Cooldown: time.Minute, MaxAdds: 2, MaxShares: 500}
	pos := Position{Shares: 100, ScaleAdds: 0, LastScaleAt: t0, LastScaleMid: 0.40}
	later := t0.Add(2 * time.Minute)

	if reason, ok := CanScale(pos, 0.41, 50, later, rules); !ok {
		t.Fatalf("expected scale allowed, got %q", reason)
	}
	if reason, ok := CanScale(pos, 0.404, 50, later, rules); ok || reason != "scale_trigger_not_met" {
		t.Fatalf("small move: got %q %v", reason, ok)
	}
	if reason, ok := CanScale(pos, 0.41, 50, t0.Add(30*time.Second), rules); ok || reason != "scale_cooldown" {
		t.Fatalf("cooldown: got %q %v", reason, ok)
	}

	maxed := pos
	maxed.ScaleAdds = 2
	if reason, ok := CanScale(maxed, 0.41, 50, later, rules); ok || reason != "max_adds" {
		t.Fatalf("max adds: got %q %v", reason, ok)
	}
	if reason, ok := CanScale(pos, 0.41, 450, later, rules); ok || reason != "position_cap" {
		t.Fatalf("cap: got %q %v", reason, ok)
	}
}
