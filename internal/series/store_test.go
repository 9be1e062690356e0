package series

import (
	"testing"
	"time"
)

func TestStoreAppendEvictsOldest(t *testing.T) {
	s := NewStore(1) // capacity floor = 50
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 60; i++ {
		s.Append("btc", float64(i), float64(i)/100, base.Add(time.Duration(i)*time.Second))
	}

	if got := s.Len("btc"); got != DefaultMinCapacity {
		t.Fatalf("Len: got %d want %d", got, DefaultMinCapacity)
	}
	lead := s.Leading("btc")
	if lead[0].Price != 10 {
		t.Fatalf("oldest surviving point: got %v want 10", lead[0].Price)
	}
	if lead[len(lead)-1].Price != 59 {
		t.Fatalf("newest point: got %v want 59", lead[len(lead)-1].Price)
	}
}

func TestStoreCapacityScalesWithLookback(t *testing.T) {
	s := NewStore(40) // 40*3 > 50
	base := time.Unix(1_700_000_000, 0)
	for i := 0; i < 200; i++ {
		s.Append("eth", float64(i), 0.5, base.Add(time.Duration(i)*time.Second))
	}
	if got := s.Len("eth"); got != 120 {
		t.Fatalf("Len: got %d want 120", got)
	}
}

func TestStoreAccessorsReturnCopies(t *testing.T) {
	s := NewStore(5)
	s.Append("sol", 100, 0.4, time.Unix(1_700_000_000, 0))

	lead := s.Leading("sol")
	lead[0].Price = -1
	if got := s.Leading("sol")[0].Price; got != 100 {
		t.Fatalf("store mutated through accessor copy: got %v", got)
	}

	if pts := s.Lagging("missing"); pts != nil {
		t.Fatalf("expected nil history for unknown key, got %v", pts)
	}
}

func TestStoreKeys(t *testing.T) {
	s := NewStore(5)
	s.Append("a", 1, 1, time.Now())
	s.Append("b", 1, 1, time.Now())
	keys := s.Keys()
	if len(keys) != 2 {
		t.Fatalf("Keys: got %v", keys)
	}
}
