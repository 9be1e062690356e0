package sizer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/LarsOlovLindberg/Spelar/internal/clob"
)

// FromCLOB converts a raw CLOB order-book summary (string-valued levels) into
// a Book. Levels that fail to parse poison the whole snapshot; a partially
// parsed book would misstate depth.
func FromCLOB(raw *clob.OrderBookSummary) (Book, error) {
	if raw == nil {
		return Book{}, fmt.Errorf("nil order book")
	}
	bids, err := parseLevels(raw.Bids)
	if err != nil {
		return Book{}, fmt.Errorf("bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		return Book{}, fmt.Errorf("asks: %w", err)
	}

	b := Book{Bids: bids, Asks: asks}
	if s := strings.TrimSpace(raw.MinOrder); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Book{}, fmt.Errorf("min_order_size %q: %w", raw.MinOrder, err)
		}
		b.MinOrderSize = v
	}
	if s := strings.TrimSpace(raw.TickSize); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Book{}, fmt.Errorf("tick_size %q: %w", raw.TickSize, err)
		}
		b.TickSize = v
	}
	return b, nil
}

func parseLevels(raw []clob.OrderSummary) ([]Level, error) {
	out := make([]Level, 0, len(raw))
	for _, l := range raw {
		price, err := strconv.ParseFloat(strings.TrimSpace(l.Price), 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", l.Price, err)
		}
		size, err := strconv.ParseFloat(strings.TrimSpace(l.Size), 64)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", l.Size, err)
		}
		out = append(out, Level{Price: price, Size: size})
	}
	return out, nil
}
