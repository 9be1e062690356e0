package agent

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/leadlag"
)

// WatchItem pairs one Kraken spot instrument with one Polymarket outcome
// token. Name keys the rolling history and shows up in logs.
type WatchItem struct {
	Name     string
	SpotPair string
	Slug     string
	Outcome  string
	Bias     leadlag.Bias
}

// Config holds every knob of the tick loop. Percent-valued fields are in
// percentage points (0.25 = 0.25%); fractions are plain ratios.
type Config struct {
	Interval time.Duration
	Workers  int

	Lookback       int
	MoveMinPct     float64
	NoiseWindow    int
	NoiseMult      float64
	SpreadMoveMult float64

	EdgeMinPct    float64
	NetEdgeMinPct float64
	EdgeExitPct   float64
	FeePct        float64

	MinLagMs     float64
	MaxLagPoints int
	MinAbsCorr   float64
	MinCorrGap   float64

	AvoidAbove   float64
	AvoidBelow   float64
	SpreadCapPct float64

	SlippageCap    float64
	MaxFraction    float64
	HardCapUSD     float64
	MinNotionalUSD float64

	MaxHold  time.Duration
	StopFrac float64

	ScaleTriggerPct float64
	ScaleCooldown   time.Duration
	MaxAdds         int
	MaxShares       float64

	MarketTTL   time.Duration
	SettleGrace time.Duration

	// TrendAutoSide restricts new entries to the watch item with the
	// strongest trailing move, for watchlists quoting both legs of the
	// same binary.
	TrendAutoSide bool

	PaperBalance float64

	GammaURL  string
	ClobURL   string
	KrakenURL string

	KillSwitchPath string
	CheckpointPath string
	EventsPath     string
	StatusPath     string

	Watch []WatchItem
}

// LoadConfig reads AGENT_* environment variables, applying defaults tuned
// for 15s ticks on crypto hourly markets. AGENT_WATCH is required.
func LoadConfig() (Config, error) {
	cfg := Config{}
	var err error

	if cfg.Interval, err = envDuration("AGENT_INTERVAL", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Workers, err = envInt("AGENT_WORKERS", 4); err != nil {
		return Config{}, err
	}
	if cfg.Workers < 1 || cfg.Workers > 32 {
		return Config{}, fmt.Errorf("AGENT_WORKERS must be in [1,32], got %d", cfg.Workers)
	}

	if cfg.Lookback, err = envInt("AGENT_LOOKBACK", 6); err != nil {
		return Config{}, err
	}
	if cfg.MoveMinPct, err = envFloat("AGENT_MOVE_MIN_PCT", 0.25); err != nil {
		return Config{}, err
	}
	if cfg.NoiseWindow, err = envInt("AGENT_NOISE_WINDOW", 40); err != nil {
		return Config{}, err
	}
	if cfg.NoiseMult, err = envFloat("AGENT_NOISE_MULT", 2.0); err != nil {
		return Config{}, err
	}
	if cfg.SpreadMoveMult, err = envFloat("AGENT_SPREAD_MOVE_MULT", 1.0); err != nil {
		return Config{}, err
	}

	if cfg.EdgeMinPct, err = envFloat("AGENT_EDGE_MIN_PCT", 0.20); err != nil {
		return Config{}, err
	}
	if cfg.NetEdgeMinPct, err = envFloat("AGENT_NET_EDGE_MIN_PCT", 0.05); err != nil {
		return Config{}, err
	}
	if cfg.EdgeExitPct, err = envFloat("AGENT_EDGE_EXIT_PCT", 0.05); err != nil {
		return Config{}, err
	}
	if cfg.FeePct, err = envFloat("AGENT_FEE_PCT", 0); err != nil {
		return Config{}, err
	}

	if cfg.MinLagMs, err = envFloat("AGENT_MIN_LAG_MS", 0); err != nil {
		return Config{}, err
	}
	if cfg.MaxLagPoints, err = envInt("AGENT_MAX_LAG_POINTS", 6); err != nil {
		return Config{}, err
	}
	if cfg.MinAbsCorr, err = envFloat("AGENT_MIN_ABS_CORR", 0.30); err != nil {
		return Config{}, err
	}
	if cfg.MinCorrGap, err = envFloat("AGENT_MIN_CORR_GAP", 0.05); err != nil {
		return Config{}, err
	}

	if cfg.AvoidAbove, err = envFloat("AGENT_AVOID_ABOVE", 0.90); err != nil {
		return Config{}, err
	}
	if cfg.AvoidBelow, err = envFloat("AGENT_AVOID_BELOW", 0.02); err != nil {
		return Config{}, err
	}
	if cfg.SpreadCapPct, err = envFloat("AGENT_SPREAD_CAP_PCT", 1.0); err != nil {
		return Config{}, err
	}

	if cfg.SlippageCap, err = envFloat("AGENT_SLIPPAGE_CAP", 0.01); err != nil {
		return Config{}, err
	}
	if cfg.MaxFraction, err = envFloat("AGENT_MAX_FRACTION", 0.10); err != nil {
		return Config{}, err
	}
	if cfg.HardCapUSD, err = envFloat("AGENT_HARD_CAP_USD", 2000); err != nil {
		return Config{}, err
	}
	if cfg.MinNotionalUSD, err = envFloat("AGENT_MIN_NOTIONAL_USD", 5); err != nil {
		return Config{}, err
	}

	if cfg.MaxHold, err = envDuration("AGENT_MAX_HOLD", 180*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StopFrac, err = envFloat("AGENT_STOP_FRAC", 0.25); err != nil {
		return Config{}, err
	}

	if cfg.ScaleTriggerPct, err = envFloat("AGENT_SCALE_TRIGGER_PCT", 0); err != nil {
		return Config{}, err
	}
	if cfg.ScaleCooldown, err = envDuration("AGENT_SCALE_COOLDOWN", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MaxAdds, err = envInt("AGENT_MAX_ADDS", 2); err != nil {
		return Config{}, err
	}
	if cfg.MaxShares, err = envFloat("AGENT_MAX_SHARES", 10000); err != nil {
		return Config{}, err
	}

	if cfg.MarketTTL, err = envDuration("AGENT_MARKET_TTL", 60*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SettleGrace, err = envDuration("AGENT_SETTLE_GRACE", 120*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.PaperBalance, err = envFloat("AGENT_PAPER_BALANCE", 1000); err != nil {
		return Config{}, err
	}
	if cfg.TrendAutoSide, err = envBool("AGENT_TREND_AUTO_SIDE", false); err != nil {
		return Config{}, err
	}

	cfg.GammaURL = envStr("GAMMA_API_URL", "")
	cfg.ClobURL = envStr("CLOB_API_URL", "")
	cfg.KrakenURL = envStr("KRAKEN_API_URL", "")

	cfg.KillSwitchPath = envStr("AGENT_KILL_SWITCH", "agent.kill")
	cfg.CheckpointPath = envStr("AGENT_CHECKPOINT", "data/agent_checkpoint.json")
	cfg.EventsPath = envStr("AGENT_EVENTS_JSONL", "data/agent_events.jsonl")
	cfg.StatusPath = envStr("AGENT_STATUS_JSON", "data/agent_status.json")

	cfg.Watch, err = ParseWatch(os.Getenv("AGENT_WATCH"))
	if err != nil {
		return Config{}, err
	}
	if len(cfg.Watch) == 0 {
		return Config{}, fmt.Errorf("AGENT_WATCH is required (name|spot_pair|slug|outcome entries separated by ';')")
	}

	return cfg, nil
}

// ParseWatch parses "name|spot_pair|slug|outcome[|bias]" entries separated
// by ';'. Bias defaults to YES for a "Yes"-like outcome and NO otherwise.
func ParseWatch(raw string) ([]WatchItem, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var items []WatchItem
	seen := make(map[string]bool)
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "|")
		if len(fields) < 4 || len(fields) > 5 {
			return nil, fmt.Errorf("invalid AGENT_WATCH entry %q (want name|spot_pair|slug|outcome[|bias])", entry)
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		item := WatchItem{
			Name:     fields[0],
			SpotPair: fields[1],
			Slug:     fields[2],
			Outcome:  fields[3],
		}
		if item.Name == "" || item.SpotPair == "" || item.Slug == "" || item.Outcome == "" {
			return nil, fmt.Errorf("invalid AGENT_WATCH entry %q: empty field", entry)
		}
		if seen[item.Name] {
			return nil, fmt.Errorf("duplicate AGENT_WATCH name %q", item.Name)
		}
		seen[item.Name] = true

		switch {
		case len(fields) == 5 && strings.EqualFold(fields[4], "yes"):
			item.Bias = leadlag.BiasYes
		case len(fields) == 5 && strings.EqualFold(fields[4], "no"):
			item.Bias = leadlag.BiasNo
		case len(fields) == 5:
			return nil, fmt.Errorf("invalid AGENT_WATCH bias %q (want yes or no)", fields[4])
		case strings.EqualFold(item.Outcome, "no"):
			item.Bias = leadlag.BiasNo
		default:
			item.Bias = leadlag.BiasYes
		}
		items = append(items, item)
	}
	return items, nil
}

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envFloat(key string, def float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

// envDuration accepts either a Go duration ("90s", "3m") or a bare number
// of seconds.
func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return 0, fmt.Errorf("invalid %s %q", key, raw)
}
