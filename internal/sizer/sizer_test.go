package sizer

import (
	"errors"
	"math"
	"testing"

	"github.com/LarsOlovLindberg/Spelar/internal/clob"
)

func TestSuggestBuyBand(t *testing.T) {
	book := Book{
		Asks: []Level{{Price: 0.50, Size: 100}, {Price: 0.51, Size: 200}},
	}
	res, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 0.10, HardCapUSD: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BestPrice != 0.50 {
		t.Fatalf("BestPrice: got %v want 0.50", res.BestPrice)
	}
	if math.Abs(res.BandNotionalUSD-152.0) > 1e-9 {
		t.Fatalf("BandNotionalUSD: got %v want 152", res.BandNotionalUSD)
	}
	if math.Abs(res.SuggestedUSD-15.2) > 1e-9 {
		t.Fatalf("SuggestedUSD: got %v want 15.2", res.SuggestedUSD)
	}
	if math.Abs(res.SuggestedShares-30.4) > 1e-9 {
		t.Fatalf("SuggestedShares: got %v want 30.4", res.SuggestedShares)
	}
}

func TestSuggestBandExcludesFarLevels(t *testing.T) {
	book := Book{
		Asks: []Level{{Price: 0.50, Size: 100}, {Price: 0.60, Size: 1000}},
	}
	res, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 1.0, HardCapUSD: 10000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(res.BandNotionalUSD-50.0) > 1e-9 {
		t.Fatalf("levels beyond the band must not count: got %v want 50", res.BandNotionalUSD)
	}
}

func TestSuggestSellBand(t *testing.T) {
	book := Book{
		Bids: []Level{{Price: 0.48, Size: 50}, {Price: 0.49, Size: 100}},
	}
	res, err := Suggest(book, SideSell, Params{SlippageCap: 0.01, MaxFraction: 0.5, HardCapUSD: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BestPrice != 0.49 {
		t.Fatalf("BestPrice: got %v want 0.49", res.BestPrice)
	}
	if math.Abs(res.BandLimitPrice-0.48) > 1e-9 {
		t.Fatalf("BandLimitPrice: got %v want 0.48", res.BandLimitPrice)
	}
	wantNotional := 0.49*100 + 0.48*50
	if math.Abs(res.BandNotionalUSD-wantNotional) > 1e-9 {
		t.Fatalf("BandNotionalUSD: got %v want %v", res.BandNotionalUSD, wantNotional)
	}
}

func TestSuggestEmptySide(t *testing.T) {
	book := Book{Bids: []Level{{Price: 0.5, Size: 10}}}
	_, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 0.1, HardCapUSD: 100})
	if !errors.Is(err, ErrNoLiquidity) {
		t.Fatalf("expected ErrNoLiquidity, got %v", err)
	}
}

func TestSuggestMinOrderRoundUp(t *testing.T) {
	book := Book{
		Asks:         []Level{{Price: 0.50, Size: 100}},
		MinOrderSize: 20,
	}
	// Fraction alone suggests 5 USD = 10 shares, below the venue minimum.
	res, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 0.10, HardCapUSD: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.MinOrderApplied {
		t.Fatalf("expected min-order round-up, got %+v", res)
	}
	if res.SuggestedShares != 20 || math.Abs(res.SuggestedUSD-10.0) > 1e-9 {
		t.Fatalf("round-up: got shares %v usd %v", res.SuggestedShares, res.SuggestedUSD)
	}
}

func TestSuggestMinOrderBeyondBandNotApplied(t *testing.T) {
	book := Book{
		Asks:         []Level{{Price: 0.50, Size: 15}},
		MinOrderSize: 20,
	}
	res, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 0.10, HardCapUSD: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MinOrderApplied {
		t.Fatalf("band cannot fill the minimum, round-up must not apply: %+v", res)
	}
}

func TestSuggestUnsortedLevels(t *testing.T) {
	book := Book{
		Asks: []Level{{Price: 0.51, Size: 200}, {Price: 0.50, Size: 100}, {Price: 0, Size: 999}},
	}
	res, err := Suggest(book, SideBuy, Params{SlippageCap: 0.01, MaxFraction: 0.10, HardCapUSD: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.BestPrice != 0.50 {
		t.Fatalf("BestPrice after normalize: got %v want 0.50", res.BestPrice)
	}
	if math.Abs(res.SuggestedUSD-15.2) > 1e-9 {
		t.Fatalf("SuggestedUSD: got %v want 15.2", res.SuggestedUSD)
	}
}

func TestFromCLOB(t *testing.T) {
	raw := &clob.OrderBookSummary{
		Bids:     []clob.OrderSummary{{Price: "0.48", Size: "50"}},
		Asks:     []clob.OrderSummary{{Price: "0.50", Size: "100"}},
		MinOrder: "5",
		TickSize: "0.01",
	}
	book, err := FromCLOB(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(book.Bids) != 1 || book.Bids[0].Price != 0.48 {
		t.Fatalf("bids: %+v", book.Bids)
	}
	if book.MinOrderSize != 5 || book.TickSize != 0.01 {
		t.Fatalf("meta: %+v", book)
	}

	raw.Asks[0].Price = "abc"
	if _, err := FromCLOB(raw); err == nil {
		t.Fatalf("expected parse failure")
	}
	if _, err := FromCLOB(nil); err == nil {
		t.Fatalf("expected nil book failure")
	}
}
