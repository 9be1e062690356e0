package ladder

import (
	"math"
	"testing"
	"time"
)

func TestBaseKey(t *testing.T) {
	cases := []struct {
		slug, want string
	}{
		{"btc-100k-by-december-31", "btc-100k"},
		{"btc-100k-by-2025-12-31", "btc-100k"},
		{"eth-flip-btc-in-2026", "eth-flip-btc"},
		{"will-btc-hit-100k-2025", "will-btc-hit-100k"},
		{"recession-before-march", "recession"},
		{"btc-2025-12-31", "btc"},
		{"plain-market", "plain-market"},
		{"2025-12-31", "2025-12-31"},
	}
	for _, tc := range cases {
		if got := BaseKey(tc.slug); got != tc.want {
			t.Fatalf("BaseKey(%q): got %q want %q", tc.slug, got, tc.want)
		}
	}
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestScanCalendarSpread(t *testing.T) {
	markets := []Market{
		{Slug: "btc-100k-by-2026-01-10", EndDate: day(10), YesBid: 0.60, YesAsk: 0.62},
		{Slug: "btc-100k-by-2026-01-20", EndDate: day(20), YesBid: 0.53, YesAsk: 0.55},
	}
	opps := Scan(markets, 0.0)
	if len(opps) != 1 {
		t.Fatalf("opportunities: got %d want 1 (%+v)", len(opps), opps)
	}
	o := opps[0]
	if o.Kind != KindCalendar {
		t.Fatalf("Kind: got %q", o.Kind)
	}
	if math.Abs(o.GuaranteedProfit-0.05) > 1e-9 {
		t.Fatalf("GuaranteedProfit: got %v want 0.05", o.GuaranteedProfit)
	}
	if math.Abs(o.BetweenDeadlinesProfit-1.05) > 1e-9 {
		t.Fatalf("BetweenDeadlinesProfit: got %v want 1.05", o.BetweenDeadlinesProfit)
	}
	if o.Early.EndDate.After(o.Late.EndDate) {
		t.Fatalf("pair ordering violated: %+v", o)
	}
}

func TestScanDoubleWin(t *testing.T) {
	markets := []Market{
		{Slug: "eth-5k-by-2026-01-10", EndDate: day(10), NoAsk: 0.50, YesBid: 0.43},
		{Slug: "eth-5k-by-2026-01-20", EndDate: day(20), YesAsk: 0.45, YesBid: 0.43},
	}
	opps := Scan(markets, 0.0)
	if len(opps) != 1 {
		t.Fatalf("opportunities: got %d want 1 (%+v)", len(opps), opps)
	}
	o := opps[0]
	if o.Kind != KindDoubleWin {
		t.Fatalf("Kind: got %q", o.Kind)
	}
	if math.Abs(o.Cost-0.95) > 1e-9 {
		t.Fatalf("Cost: got %v want 0.95", o.Cost)
	}
	if math.Abs(o.GuaranteedProfit-0.05) > 1e-9 {
		t.Fatalf("GuaranteedProfit: got %v want 0.05", o.GuaranteedProfit)
	}
	if math.Abs(o.BetweenDeadlinesProfit-1.05) > 1e-9 {
		t.Fatalf("BetweenDeadlinesProfit: got %v want 1.05", o.BetweenDeadlinesProfit)
	}
}

func TestScanInputOrderDoesNotMatter(t *testing.T) {
	// Later deadline listed first; the scan must reorder, never evaluate the
	// reversed pair.
	markets := []Market{
		{Slug: "btc-100k-by-2026-01-20", EndDate: day(20), YesBid: 0.53, YesAsk: 0.55},
		{Slug: "btc-100k-by-2026-01-10", EndDate: day(10), YesBid: 0.60, YesAsk: 0.62},
	}
	opps := Scan(markets, 0.0)
	if len(opps) != 1 {
		t.Fatalf("opportunities: got %d (%+v)", len(opps), opps)
	}
	if opps[0].Early.Slug != "btc-100k-by-2026-01-10" {
		t.Fatalf("early leg: got %q", opps[0].Early.Slug)
	}
	if math.Abs(opps[0].GuaranteedProfit-0.05) > 1e-9 {
		t.Fatalf("GuaranteedProfit: got %v", opps[0].GuaranteedProfit)
	}
}

func TestScanThresholdAndGrouping(t *testing.T) {
	markets := []Market{
		// Unprofitable pair: early bid below late ask.
		{Slug: "btc-100k-by-2026-01-10", EndDate: day(10), YesBid: 0.50, YesAsk: 0.52},
		{Slug: "btc-100k-by-2026-01-20", EndDate: day(20), YesBid: 0.53, YesAsk: 0.55},
		// Single-member group, never evaluated.
		{Slug: "sol-500-by-2026-01-15", EndDate: day(15), YesBid: 0.90, YesAsk: 0.91},
		// Missing end date, dropped.
		{Slug: "btc-100k-by-2026-02-01", YesBid: 0.99, YesAsk: 0.995},
	}
	if opps := Scan(markets, 0.0); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %+v", opps)
	}

	// Marginal profit must clear the threshold strictly.
	markets2 := []Market{
		{Slug: "btc-100k-by-2026-01-10", EndDate: day(10), YesBid: 0.57, YesAsk: 0.58},
		{Slug: "btc-100k-by-2026-01-20", EndDate: day(20), YesBid: 0.53, YesAsk: 0.55},
	}
	if opps := Scan(markets2, 0.02); len(opps) != 0 {
		t.Fatalf("profit equal to threshold must not fire, got %+v", opps)
	}
	if opps := Scan(markets2, 0.019); len(opps) != 1 {
		t.Fatalf("profit above threshold must fire, got %+v", opps)
	}
}

func TestScanAdjacentPairsOnly(t *testing.T) {
	markets := []Market{
		{Slug: "btc-100k-by-2026-01-10", EndDate: day(10), YesBid: 0.70, YesAsk: 0.72},
		{Slug: "btc-100k-by-2026-01-20", EndDate: day(20), YesBid: 0.60, YesAsk: 0.62},
		{Slug: "btc-100k-by-2026-01-30", EndDate: day(30), YesBid: 0.50, YesAsk: 0.52},
	}
	opps := Scan(markets, 0.0)
	// (10,20) and (20,30), never (10,30).
	if len(opps) != 2 {
		t.Fatalf("opportunities: got %d want 2 (%+v)", len(opps), opps)
	}
	for _, o := range opps {
		gap := o.Late.EndDate.Sub(o.Early.EndDate)
		if gap != 10*24*time.Hour {
			t.Fatalf("non-adjacent pair evaluated: %+v", o)
		}
	}
	// Ranked best first.
	if opps[0].GuaranteedProfit < opps[1].GuaranteedProfit {
		t.Fatalf("not sorted by profit: %+v", opps)
	}
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	if !d.Allow("k", now) {
		t.Fatalf("first fire must be allowed")
	}
	if d.Allow("k", now.Add(30*time.Second)) {
		t.Fatalf("refire inside cooldown must be blocked")
	}
	if !d.Allow("k", now.Add(61*time.Second)) {
		t.Fatalf("refire after cooldown must be allowed")
	}
	if !d.Allow("k2", now) {
		t.Fatalf("distinct key must be independent")
	}
}

func TestLegBudget(t *testing.T) {
	if got := LegBudget(100); got != 50 {
		t.Fatalf("LegBudget: got %v", got)
	}
	if got := LegBudget(-5); got != 0 {
		t.Fatalf("negative budget: got %v", got)
	}
}
