// Package ledger owns paper-trading position state: entries, scale-ins,
// exits, stops and auto-settlement. All monetary math is in USD floats; cash
// and share counts never go negative.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientCash = errors.New("insufficient_cash")
	ErrZeroSize         = errors.New("zero_size")
	ErrNoPosition       = errors.New("no_position")
)

// sharesEps treats dust below this as a flat position.
const sharesEps = 1e-9

// cashEps absorbs float round-off when checking affordability.
const cashEps = 1e-9

// Position is one open holding, exactly one per token id.
type Position struct {
	TokenID  string  `json:"token_id"`
	Market   string  `json:"market"`
	Outcome  string  `json:"outcome"`
	Shares   float64 `json:"shares"`
	AvgEntry float64 `json:"avg_entry_price"`

	OpenedAt time.Time `json:"opened_at"`
	LastMark float64   `json:"last_mark_price"`

	ScaleAdds    int       `json:"scale_adds"`
	LastScaleAt  time.Time `json:"last_scale_at"`
	LastScaleMid float64   `json:"last_scale_mid"`
}

// Paper is the simulated ledger. Safe for concurrent use; the tick loop and
// the fill-reconciliation goroutine both touch it.
type Paper struct {
	mu        sync.Mutex
	cash      float64
	realized  float64
	positions map[string]*Position
	fills     *Fills
}

func NewPaper(startingCash float64) *Paper {
	return &Paper{
		cash:      startingCash,
		positions: make(map[string]*Position),
		fills:     NewFills(),
	}
}

func (p *Paper) Fills() *Fills { return p.fills }

// Buy fills a paper BUY at price for shares. The first buy on a token opens
// the position; later buys scale in and recompute the size-weighted average
// entry. Rejects without mutation when cash cannot cover the notional.
func (p *Paper) Buy(tokenID, market, outcome string, shares, price float64, now time.Time) (FillEvent, error) {
	if shares <= 0 || price <= 0 {
		return FillEvent{}, fmt.Errorf("%w: shares=%v price=%v", ErrZeroSize, shares, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	notional := shares * price
	if p.cash+cashEps < notional {
		return FillEvent{}, fmt.Errorf("%w: need %.2f have %.2f", ErrInsufficientCash, notional, p.cash)
	}

	p.cash -= notional
	pos := p.positions[tokenID]
	if pos == nil {
		pos = &Position{
			TokenID:      tokenID,
			Market:       market,
			Outcome:      outcome,
			Shares:       shares,
			AvgEntry:     price,
			OpenedAt:     now,
			LastMark:     price,
			LastScaleAt:  now,
			LastScaleMid: price,
		}
		p.positions[tokenID] = pos
	} else {
		total := pos.Shares + shares
		pos.AvgEntry = (pos.AvgEntry*pos.Shares + price*shares) / total
		pos.Shares = total
		pos.ScaleAdds++
		pos.LastScaleAt = now
		pos.LastScaleMid = price
	}

	fill := FillEvent{
		TradeID: uuid.NewString(),
		TokenID: tokenID,
		Side:    "BUY",
		Size:    shares,
		Price:   price,
		At:      now,
	}
	p.fills.ApplyFill(fill)
	return fill, nil
}

// Sell fills a paper SELL at price. Shares in excess of the held size are
// clamped; the average entry price is never touched by a sell. A position
// sold down to dust is removed.
func (p *Paper) Sell(tokenID string, shares, price float64, now time.Time) (FillEvent, error) {
	if shares <= 0 || price < 0 {
		return FillEvent{}, fmt.Errorf("%w: shares=%v price=%v", ErrZeroSize, shares, price)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pos := p.positions[tokenID]
	if pos == nil || pos.Shares <= sharesEps {
		return FillEvent{}, fmt.Errorf("%w: %s", ErrNoPosition, tokenID)
	}
	if shares > pos.Shares {
		shares = pos.Shares
	}

	p.cash += shares * price
	p.realized += (price - pos.AvgEntry) * shares
	pos.Shares -= shares
	pos.LastMark = price
	if pos.Shares <= sharesEps {
		delete(p.positions, tokenID)
	}

	fill := FillEvent{
		TradeID: uuid.NewString(),
		TokenID: tokenID,
		Side:    "SELL",
		Size:    shares,
		Price:   price,
		At:      now,
	}
	p.fills.ApplyFill(fill)
	return fill, nil
}

// Mark records the latest mark price (best bid) for an open position.
func (p *Paper) Mark(tokenID string, price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pos := p.positions[tokenID]; pos != nil && price > 0 {
		pos.LastMark = price
	}
}

// Cash returns free cash.
func (p *Paper) Cash() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash
}

// Realized returns accumulated realized P&L.
func (p *Paper) Realized() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.realized
}

// Equity is cash plus open positions at their last mark.
func (p *Paper) Equity() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	eq := p.cash
	for _, pos := range p.positions {
		eq += pos.Shares * pos.LastMark
	}
	return eq
}

// Position returns a copy of the open position for tokenID.
func (p *Paper) Position(tokenID string) (Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.positions[tokenID]
	if pos == nil {
		return Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, ordered by token id.
func (p *Paper) Positions() []Position {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenID < out[j].TokenID })
	return out
}

// Holds reports whether tokenID has an open position.
func (p *Paper) Holds(tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pos := p.positions[tokenID]
	return pos != nil && pos.Shares > sharesEps
}
