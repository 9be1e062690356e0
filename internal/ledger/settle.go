package ledger

import (
	"log"
	"time"
)

// Resolution is what the market-metadata service reports about an event a
// position is held in.
type Resolution struct {
	Closed  bool
	EndDate time.Time
	// ResolvedPrice is the venue-reported settlement price for the held
	// outcome, when available.
	ResolvedPrice *float64
}

// SettlementReason tags fills produced by SettleResolved.
const SettlementReason = "auto_exit_closed"

// Settlement describes one force-settled position.
type Settlement struct {
	Fill   FillEvent
	Reason string
}

// SettleResolved force-sells every open position whose market has resolved:
// the end date plus grace has passed, or the market reports closed. The fill
// price is the resolved outcome price when the venue provides one, otherwise
// the last observed mark. resolve returning false leaves the position alone.
func (p *Paper) SettleResolved(resolve func(tokenID string) (Resolution, bool), grace time.Duration, now time.Time) []Settlement {
	var out []Settlement
	for _, pos := range p.Positions() {
		res, ok := resolve(pos.TokenID)
		if !ok {
			continue
		}
		expired := !res.EndDate.IsZero() && now.After(res.EndDate.Add(grace))
		if !res.Closed && !expired {
			continue
		}

		price := pos.LastMark
		if res.ResolvedPrice != nil {
			price = *res.ResolvedPrice
		}
		fill, err := p.Sell(pos.TokenID, pos.Shares, price, now)
		if err != nil {
			log.Printf("[ledger] settle %s failed: %v", pos.TokenID, err)
			continue
		}
		log.Printf("[ledger] settled token=%s shares=%.2f price=%.4f reason=%s", pos.TokenID, fill.Size, price, SettlementReason)
		out = append(out, Settlement{Fill: fill, Reason: SettlementReason})
	}
	return out
}
