package ladder

import (
	"sync"
	"time"
)

// Deduper rate-limits firing on the same opportunity. An opportunity key is
// allowed once per cooldown window.
type Deduper struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastFire map[string]time.Time
}

func NewDeduper(cooldown time.Duration) *Deduper {
	return &Deduper{
		cooldown: cooldown,
		lastFire: make(map[string]time.Time),
	}
}

// Allow reports whether key may fire now, and records the firing if so.
func (d *Deduper) Allow(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.lastFire[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.lastFire[key] = now
	return true
}

// LegBudget splits a per-opportunity budget into equal notional per leg.
func LegBudget(totalUSD float64) float64 {
	if totalUSD <= 0 {
		return 0
	}
	return totalUSD / 2
}
