package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Checkpoint is the persisted form of a paper ledger, written across agent
// restarts so open positions and applied fill ids survive.
type Checkpoint struct {
	Cash      float64            `json:"cash"`
	Realized  float64            `json:"realized_pnl"`
	Positions []Position         `json:"positions,omitempty"`
	FillIDs   []string           `json:"fill_ids,omitempty"`
	NetShares map[string]float64 `json:"net_shares,omitempty"`
}

// LoadCheckpoint reads a ledger checkpoint. A missing file is a clean first
// run (found=false, no error).
func LoadCheckpoint(path string) (Checkpoint, bool, error) {
	if path == "" {
		return Checkpoint{}, false, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, err
	}
	var ckpt Checkpoint
	if err := json.Unmarshal(b, &ckpt); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint %s: %w", path, err)
	}
	return ckpt, true, nil
}

// SaveCheckpoint writes ckpt atomically (temp file + rename).
func SaveCheckpoint(path string, ckpt Checkpoint) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(ckpt, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Snapshot exports the current ledger state as a checkpoint.
func (p *Paper) Snapshot() Checkpoint {
	p.mu.Lock()
	cash, realized := p.cash, p.realized
	p.mu.Unlock()

	f := p.fills
	f.mu.Lock()
	ids := make([]string, 0, len(f.seen))
	for id := range f.seen {
		ids = append(ids, id)
	}
	net := make(map[string]float64, len(f.net))
	for k, v := range f.net {
		net[k] = v
	}
	f.mu.Unlock()

	return Checkpoint{
		Cash:      cash,
		Realized:  realized,
		Positions: p.Positions(),
		FillIDs:   ids,
		NetShares: net,
	}
}

// Restore replaces the ledger state with ckpt. Meant for startup only.
func (p *Paper) Restore(ckpt Checkpoint) {
	p.mu.Lock()
	p.cash = ckpt.Cash
	p.realized = ckpt.Realized
	p.positions = make(map[string]*Position, len(ckpt.Positions))
	for i := range ckpt.Positions {
		pos := ckpt.Positions[i]
		p.positions[pos.TokenID] = &pos
	}
	p.mu.Unlock()

	p.fills.restore(ckpt.FillIDs, ckpt.NetShares)
}
