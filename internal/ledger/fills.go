package ledger

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FillEvent is one executed trade, simulated or observed on the user channel.
type FillEvent struct {
	TradeID string    `json:"trade_id"`
	TokenID string    `json:"token_id"`
	Side    string    `json:"side"`
	Size    float64   `json:"size"`
	Price   float64   `json:"price"`
	At      time.Time `json:"timestamp"`
}

// Fills tracks applied fills keyed by trade id so replays are no-ops, plus
// the resulting net shares per token. Reconciliation streams may deliver the
// same fill more than once; idempotence makes that safe.
type Fills struct {
	mu   sync.Mutex
	seen map[string]struct{}
	net  map[string]float64
}

func NewFills() *Fills {
	return &Fills{
		seen: make(map[string]struct{}),
		net:  make(map[string]float64),
	}
}

// ApplyFill folds ev into the net share totals. Returns false without
// mutation when the trade id was already applied or is empty.
func (f *Fills) ApplyFill(ev FillEvent) bool {
	id := strings.TrimSpace(ev.TradeID)
	if id == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[id]; dup {
		return false
	}
	f.seen[id] = struct{}{}

	delta := ev.Size
	if strings.EqualFold(ev.Side, "SELL") {
		delta = -delta
	}
	f.net[ev.TokenID] += delta
	return true
}

// NetShares returns the net signed share count observed for tokenID.
func (f *Fills) NetShares(tokenID string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.net[tokenID]
}

// Applied reports whether tradeID has been folded in already.
func (f *Fills) Applied(tradeID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.seen[tradeID]
	return ok
}

// AppliedIDs returns every applied trade id (checkpoint support).
func (f *Fills) AppliedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.seen))
	for id := range f.seen {
		out = append(out, id)
	}
	return out
}

func (f *Fills) restore(ids []string, net map[string]float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.seen[id] = struct{}{}
	}
	for k, v := range net {
		f.net[k] = v
	}
}

// FillFromLoose decodes a fill from the loosely shaped JSON objects upstream
// feeds emit. Key aliases: trade_id|tradeId|id, token_id|tokenId|asset_id|
// assetId, side|taker_side, size|amount|shares, price|rate,
// timestamp|ts|created_at. Values may be numbers or numeric strings.
func FillFromLoose(raw map[string]json.RawMessage) (FillEvent, error) {
	var ev FillEvent

	ev.TradeID = looseString(raw, "trade_id", "tradeId", "id")
	if ev.TradeID == "" {
		return FillEvent{}, fmt.Errorf("fill missing trade id")
	}
	ev.TokenID = looseString(raw, "token_id", "tokenId", "asset_id", "assetId")
	if ev.TokenID == "" {
		return FillEvent{}, fmt.Errorf("fill missing token id")
	}

	side := strings.ToUpper(looseString(raw, "side", "taker_side"))
	if side != "BUY" && side != "SELL" {
		return FillEvent{}, fmt.Errorf("fill side %q", side)
	}
	ev.Side = side

	size, ok := looseFloat(raw, "size", "amount", "shares")
	if !ok || size <= 0 {
		return FillEvent{}, fmt.Errorf("fill size missing or non-positive")
	}
	ev.Size = size

	price, ok := looseFloat(raw, "price", "rate")
	if !ok || price < 0 {
		return FillEvent{}, fmt.Errorf("fill price missing or negative")
	}
	ev.Price = price

	if ts, ok := looseFloat(raw, "timestamp", "ts", "created_at"); ok {
		// Upstream mixes seconds and milliseconds.
		if ts > 1e12 {
			ev.At = time.UnixMilli(int64(ts))
		} else if ts > 0 {
			ev.At = time.Unix(int64(ts), 0)
		}
	}
	return ev, nil
}

func looseString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil && n.String() != "" {
			return n.String()
		}
	}
	return ""
}

func looseFloat(raw map[string]json.RawMessage, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
