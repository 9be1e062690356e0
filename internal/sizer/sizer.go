// Package sizer converts an order-book snapshot into a maximum executable
// order size bounded by band liquidity and hard risk caps.
package sizer

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoLiquidity is returned when the relevant side of the book is empty.
var ErrNoLiquidity = errors.New("no liquidity on this side")

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Level is one order-book price bucket.
type Level struct {
	Price float64
	Size  float64
}

// Book is a parsed order-book snapshot. Bids and Asks need not arrive sorted;
// the sizer normalizes ordering itself.
type Book struct {
	Bids         []Level
	Asks         []Level
	MinOrderSize float64
	TickSize     float64
}

// Params bounds a sizing decision.
type Params struct {
	// SlippageCap is the absolute price distance from the best quote that
	// still counts as executable liquidity.
	SlippageCap float64
	// MaxFraction of the band notional the order may consume.
	MaxFraction float64
	// HardCapUSD is the absolute notional ceiling.
	HardCapUSD float64
}

// Result describes the suggested maximum order.
type Result struct {
	Side            Side
	BestPrice       float64
	BandLimitPrice  float64
	BandShares      float64
	BandNotionalUSD float64
	SuggestedUSD    float64
	SuggestedShares float64
	// MinOrderApplied is set when the venue minimum forced a round-up.
	MinOrderApplied bool
}

// Suggest sizes an order against the book. BUY consumes asks ascending from
// the best ask inside [best, best+cap]; SELL consumes bids descending from
// the best bid inside [best-cap, best].
func Suggest(book Book, side Side, p Params) (Result, error) {
	levels := book.Asks
	if side == SideSell {
		levels = book.Bids
	}
	levels = normalize(levels, side)
	if len(levels) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrNoLiquidity, side)
	}

	best := levels[0].Price
	limit := best + p.SlippageCap
	if side == SideSell {
		limit = best - p.SlippageCap
	}

	var bandShares, bandNotional float64
	for _, l := range levels {
		if side == SideBuy && l.Price > limit {
			break
		}
		if side == SideSell && l.Price < limit {
			break
		}
		bandShares += l.Size
		bandNotional += l.Price * l.Size
	}

	usd := bandNotional * p.MaxFraction
	if usd > p.HardCapUSD {
		usd = p.HardCapUSD
	}

	res := Result{
		Side:            side,
		BestPrice:       best,
		BandLimitPrice:  limit,
		BandShares:      bandShares,
		BandNotionalUSD: bandNotional,
		SuggestedUSD:    usd,
	}
	if best > 0 {
		res.SuggestedShares = usd / best
	}

	// A venue minimum below the suggestion is moot. Above it, round up when
	// the band actually holds that many shares and the hard cap allows it.
	if min := book.MinOrderSize; min > 0 && res.SuggestedShares > 0 && res.SuggestedShares < min {
		minUSD := min * best
		if min <= bandShares && minUSD <= p.HardCapUSD {
			res.SuggestedShares = min
			res.SuggestedUSD = minUSD
			res.MinOrderApplied = true
		}
	}
	return res, nil
}

// normalize drops empty levels and sorts best-first for the given side.
func normalize(levels []Level, side Side) []Level {
	out := make([]Level, 0, len(levels))
	for _, l := range levels {
		if l.Price <= 0 || l.Size <= 0 {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if side == SideSell {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	return out
}
