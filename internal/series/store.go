package series

import (
	"sync"
	"time"
)

// PricePoint is one observed price at a point in time.
type PricePoint struct {
	At    time.Time
	Price float64
}

// DefaultMinCapacity is the floor on per-key history length regardless of the
// configured lookback.
const DefaultMinCapacity = 50

// Store keeps bounded, time-ordered price histories per market key. Each key
// holds two parallel legs: the leading reference series (spot/futures) and the
// lagging series (the prediction-market price). Oldest points are evicted once
// capacity is exceeded.
type Store struct {
	mu       sync.Mutex
	capacity int
	hist     map[string]*history
}

type history struct {
	lead []PricePoint
	lag  []PricePoint
}

// NewStore returns a store whose per-key capacity is max(lookback*3, 50).
func NewStore(lookback int) *Store {
	cap := lookback * 3
	if cap < DefaultMinCapacity {
		cap = DefaultMinCapacity
	}
	return &Store{
		capacity: cap,
		hist:     make(map[string]*history),
	}
}

// Append records one (leading, lagging) price pair for key at time at.
func (s *Store) Append(key string, lead, lag float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hist[key]
	if h == nil {
		h = &history{}
		s.hist[key] = h
	}
	h.lead = appendBounded(h.lead, PricePoint{At: at, Price: lead}, s.capacity)
	h.lag = appendBounded(h.lag, PricePoint{At: at, Price: lag}, s.capacity)
}

func appendBounded(pts []PricePoint, p PricePoint, capacity int) []PricePoint {
	pts = append(pts, p)
	if len(pts) > capacity {
		// Shift instead of re-slicing so the backing array does not grow
		// without bound.
		copy(pts, pts[len(pts)-capacity:])
		pts = pts[:capacity]
	}
	return pts
}

// Leading returns a copy of the leading-leg history for key.
func (s *Store) Leading(key string) []PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[key]
	if h == nil {
		return nil
	}
	out := make([]PricePoint, len(h.lead))
	copy(out, h.lead)
	return out
}

// Lagging returns a copy of the lagging-leg history for key.
func (s *Store) Lagging(key string) []PricePoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[key]
	if h == nil {
		return nil
	}
	out := make([]PricePoint, len(h.lag))
	copy(out, h.lag)
	return out
}

// Len returns the number of stored points for key (both legs always have the
// same length).
func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.hist[key]
	if h == nil {
		return 0
	}
	return len(h.lead)
}

// Keys returns the tracked market keys.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.hist))
	for k := range s.hist {
		out = append(out, k)
	}
	return out
}
