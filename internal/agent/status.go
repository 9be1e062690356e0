package agent

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/ledger"
)

var (
	errNoData        = errors.New("no usable market data this tick")
	errCannotResolve = errors.New("cannot resolve outcome token")
)

// Status is the per-tick snapshot the dashboard layer tails.
type Status struct {
	Time         time.Time         `json:"time"`
	Cash         float64           `json:"cash"`
	Realized     float64           `json:"realized_pnl"`
	Equity       float64           `json:"equity"`
	Positions    []ledger.Position `json:"positions"`
	LastReasons  map[string]string `json:"last_reasons,omitempty"`
	TickFailures int               `json:"tick_failures,omitempty"`
	KillSwitch   bool              `json:"kill_switch,omitempty"`
}

// writeStatus replaces the status file atomically so tailers never see a
// torn write.
func (r *Runner) writeStatus(now time.Time) {
	if r.cfg.StatusPath == "" {
		return
	}
	st := Status{
		Time:         now.UTC(),
		Cash:         r.paper.Cash(),
		Realized:     r.paper.Realized(),
		Equity:       r.paper.Equity(),
		Positions:    r.paper.Positions(),
		LastReasons:  r.lastReasons,
		TickFailures: r.failures,
		KillSwitch:   r.killActed,
	}

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		log.Printf("[agent] marshal status: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.StatusPath), 0o755); err != nil {
		log.Printf("[agent] write status: %v", err)
		return
	}
	tmp := r.cfg.StatusPath + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		log.Printf("[agent] write status: %v", err)
		return
	}
	if err := os.Rename(tmp, r.cfg.StatusPath); err != nil {
		log.Printf("[agent] write status: %v", err)
	}
}
