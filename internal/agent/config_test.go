package agent

import (
	"testing"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/leadlag"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AGENT_WATCH", "btc-up|XXBTZUSD|bitcoin-up-today|Yes")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Interval != 15*time.Second {
		t.Fatalf("Interval = %v, want 15s", cfg.Interval)
	}
	if cfg.Lookback != 6 || cfg.NoiseWindow != 40 {
		t.Fatalf("lookback/noise window = %d/%d, want 6/40", cfg.Lookback, cfg.NoiseWindow)
	}
	if cfg.EdgeMinPct != 0.20 || cfg.NetEdgeMinPct != 0.05 || cfg.EdgeExitPct != 0.05 {
		t.Fatalf("edge knobs = %v/%v/%v", cfg.EdgeMinPct, cfg.NetEdgeMinPct, cfg.EdgeExitPct)
	}
	if cfg.MaxHold != 180*time.Second || cfg.StopFrac != 0.25 {
		t.Fatalf("exit knobs = %v/%v", cfg.MaxHold, cfg.StopFrac)
	}
	if cfg.AvoidAbove != 0.90 || cfg.AvoidBelow != 0.02 {
		t.Fatalf("price band = [%v, %v]", cfg.AvoidBelow, cfg.AvoidAbove)
	}
	if cfg.PaperBalance != 1000 || cfg.HardCapUSD != 2000 {
		t.Fatalf("balance/cap = %v/%v", cfg.PaperBalance, cfg.HardCapUSD)
	}
	if len(cfg.Watch) != 1 || cfg.Watch[0].Bias != leadlag.BiasYes {
		t.Fatalf("watch = %+v", cfg.Watch)
	}
}

func TestLoadConfigDurationAsSeconds(t *testing.T) {
	t.Setenv("AGENT_WATCH", "btc-up|XXBTZUSD|bitcoin-up-today|Yes")
	t.Setenv("AGENT_INTERVAL", "30")
	t.Setenv("AGENT_MAX_HOLD", "5m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("Interval = %v, want 30s from bare seconds", cfg.Interval)
	}
	if cfg.MaxHold != 5*time.Minute {
		t.Fatalf("MaxHold = %v, want 5m", cfg.MaxHold)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("AGENT_WATCH", "btc-up|XXBTZUSD|bitcoin-up-today|Yes")
	t.Setenv("AGENT_EDGE_MIN_PCT", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for non-numeric AGENT_EDGE_MIN_PCT")
	}
}

func TestLoadConfigRequiresWatch(t *testing.T) {
	t.Setenv("AGENT_WATCH", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when AGENT_WATCH is empty")
	}
}

func TestParseWatch(t *testing.T) {
	items, err := ParseWatch("btc-up|XXBTZUSD|bitcoin-up-today|Yes; eth-down|XETHZUSD|ethereum-up-today|No")
	if err != nil {
		t.Fatalf("ParseWatch: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	if items[0].Bias != leadlag.BiasYes || items[1].Bias != leadlag.BiasNo {
		t.Fatalf("biases = %v/%v", items[0].Bias, items[1].Bias)
	}
	if items[1].SpotPair != "XETHZUSD" {
		t.Fatalf("spot pair = %q", items[1].SpotPair)
	}

	// Explicit bias overrides the outcome-derived default.
	items, err = ParseWatch("btc-down|XXBTZUSD|bitcoin-up-today|Yes|no")
	if err != nil {
		t.Fatalf("ParseWatch with bias: %v", err)
	}
	if items[0].Bias != leadlag.BiasNo {
		t.Fatalf("bias = %v, want NO", items[0].Bias)
	}

	for _, bad := range []string{
		"too|few|fields",
		"a|b|c|d|maybe",
		"dup|p|s|Yes; dup|p|s|No",
		"|p|s|Yes",
	} {
		if _, err := ParseWatch(bad); err == nil {
			t.Fatalf("ParseWatch(%q) should fail", bad)
		}
	}
}
