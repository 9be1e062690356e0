package ladder

import (
	"sort"
	"time"
)

// Market is one candidate with the quotes the scan needs. Quotes that are
// unavailable are zero and simply disable the structures that need them.
type Market struct {
	Slug     string
	Question string
	EndDate  time.Time

	YesTokenID string
	NoTokenID  string

	YesBid float64
	YesAsk float64
	NoBid  float64
	NoAsk  float64
}

// Kind names the arbitrage structure of an opportunity.
type Kind string

const (
	// KindCalendar sells early YES, buys late YES.
	KindCalendar Kind = "calendar_spread"
	// KindDoubleWin buys early NO and late YES.
	KindDoubleWin Kind = "double_win"
)

// Opportunity is one actionable adjacent-deadline pair.
type Opportunity struct {
	BaseKey string
	Kind    Kind
	Early   Market
	Late    Market

	// Cost is the total entry cost for double-win structures, 0 otherwise.
	Cost float64
	// GuaranteedProfit is the worst-case payoff per 1 USD of face value.
	GuaranteedProfit float64
	// BetweenDeadlinesProfit is the payoff when the event lands between the
	// two deadlines.
	BetweenDeadlinesProfit float64
}

// Scan groups markets by base key, orders each group by deadline and
// evaluates adjacent pairs. Only pairs whose guaranteed profit exceeds
// minProfit are returned, best first.
func Scan(markets []Market, minProfit float64) []Opportunity {
	groups := make(map[string][]Market)
	for _, m := range markets {
		if m.EndDate.IsZero() {
			continue
		}
		key := BaseKey(m.Slug)
		groups[key] = append(groups[key], m)
	}

	var out []Opportunity
	for key, group := range groups {
		if len(group) < 2 {
			continue
		}
		sort.Slice(group, func(i, j int) bool { return group[i].EndDate.Before(group[j].EndDate) })
		for i := 0; i+1 < len(group); i++ {
			early, late := group[i], group[i+1]
			if !early.EndDate.Before(late.EndDate) {
				continue
			}
			out = append(out, evalPair(key, early, late, minProfit)...)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GuaranteedProfit > out[j].GuaranteedProfit })
	return out
}

func evalPair(key string, early, late Market, minProfit float64) []Opportunity {
	var out []Opportunity

	// Early YES resolving first dominates late YES, so selling early against
	// buying late locks in the quoted spread.
	if early.YesBid > 0 && late.YesAsk > 0 {
		guaranteed := early.YesBid - late.YesAsk
		if guaranteed > minProfit {
			out = append(out, Opportunity{
				BaseKey:                key,
				Kind:                   KindCalendar,
				Early:                  early,
				Late:                   late,
				GuaranteedProfit:       guaranteed,
				BetweenDeadlinesProfit: guaranteed + 1,
			})
		}
	}

	// Early NO plus late YES pays at least 1 whenever the deadlines disagree,
	// and 2 when the event lands between them.
	if early.NoAsk > 0 && late.YesAsk > 0 {
		cost := early.NoAsk + late.YesAsk
		guaranteed := 1 - cost
		if guaranteed > minProfit {
			out = append(out, Opportunity{
				BaseKey:                key,
				Kind:                   KindDoubleWin,
				Early:                  early,
				Late:                   late,
				Cost:                   cost,
				GuaranteedProfit:       guaranteed,
				BetweenDeadlinesProfit: 2 - cost,
			})
		}
	}
	return out
}

// PairKey identifies an opportunity for de-duplication across ticks.
func (o Opportunity) PairKey() string {
	return string(o.Kind) + "|" + o.Early.Slug + "|" + o.Late.Slug
}
