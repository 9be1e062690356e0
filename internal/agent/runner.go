package agent

import (
	"context"
	"log"
	"math"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LarsOlovLindberg/Spelar/internal/cache"
	"github.com/LarsOlovLindberg/Spelar/internal/clob"
	"github.com/LarsOlovLindberg/Spelar/internal/gamma"
	"github.com/LarsOlovLindberg/Spelar/internal/jsonl"
	"github.com/LarsOlovLindberg/Spelar/internal/leadlag"
	"github.com/LarsOlovLindberg/Spelar/internal/ledger"
	"github.com/LarsOlovLindberg/Spelar/internal/series"
	"github.com/LarsOlovLindberg/Spelar/internal/sizer"
)

// SpotSource is the reference-price leg, typically Kraken spot.
type SpotSource interface {
	LastPrice(ctx context.Context, pair string) (float64, error)
}

// BookSource fetches one order-book snapshot. Each fan-out worker owns its
// own instance so HTTP state is never shared across workers.
type BookSource interface {
	GetOrderBook(ctx context.Context, tokenID string) (*clob.OrderBookSummary, error)
}

// MarketSource resolves market metadata by slug.
type MarketSource interface {
	ResolveMarketBySlug(ctx context.Context, slug string) (gamma.MarketRef, error)
}

// OrderCanceller is the only live-trading surface the tick loop touches:
// the kill switch cancels all resting orders through it. Nil in pure paper
// mode.
type OrderCanceller interface {
	CancelAll(ctx context.Context, useServerTime bool) (map[string]any, error)
}

// Deps wires the external collaborators into a Runner.
type Deps struct {
	Spot    SpotSource
	Markets MarketSource
	// Books must contain at least one fetcher; the tick fan-out checks one
	// out per in-flight task.
	Books     []BookSource
	Canceller OrderCanceller
	Events    *jsonl.Writer
}

// Runner drives the tick loop. All mutation of the store, caches and ledger
// happens on the Run goroutine after fan-out results are joined; the
// external-fill goroutine only touches the ledger's fill store, which has
// its own lock.
type Runner struct {
	cfg    Config
	spot   SpotSource
	market MarketSource
	books  chan BookSource
	cancel OrderCanceller
	events *jsonl.Writer

	store  *series.Store
	est    *leadlag.Estimator
	paper  *ledger.Paper
	refTTL *cache.TTL[string, gamma.MarketRef]

	// tokenIndex maps held/watched token ids to their latest metadata, for
	// marking and settlement. Tick-goroutine only.
	tokenIndex map[string]tokenInfo

	failures    int
	killActed   bool
	lastReasons map[string]string
}

type tokenInfo struct {
	item WatchItem
	ref  gamma.MarketRef
}

func NewRunner(cfg Config, deps Deps) (*Runner, error) {
	store := series.NewStore(cfg.Lookback)
	books := make(chan BookSource, len(deps.Books))
	for _, b := range deps.Books {
		books <- b
	}
	r := &Runner{
		cfg:         cfg,
		spot:        deps.Spot,
		market:      deps.Markets,
		books:       books,
		cancel:      deps.Canceller,
		events:      deps.Events,
		store:       store,
		est:         leadlag.New(store),
		paper:       ledger.NewPaper(cfg.PaperBalance),
		refTTL:      cache.New[string, gamma.MarketRef](),
		tokenIndex:  make(map[string]tokenInfo),
		lastReasons: make(map[string]string),
	}

	if ckpt, found, err := ledger.LoadCheckpoint(cfg.CheckpointPath); err != nil {
		return nil, err
	} else if found {
		r.paper.Restore(ckpt)
		log.Printf("[agent] restored checkpoint: cash=%.2f realized=%.2f positions=%d",
			ckpt.Cash, ckpt.Realized, len(ckpt.Positions))
	}
	return r, nil
}

// Ledger exposes the paper ledger for fill reconciliation and shutdown.
func (r *Runner) Ledger() *ledger.Paper { return r.paper }

// Run ticks until ctx is cancelled. A failed tick never exits the loop; it
// stretches the sleep instead.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.Tick(ctx); err != nil {
			r.failures++
			log.Printf("[agent] tick failed (%d consecutive): %v", r.failures, err)
		} else {
			r.failures = 0
		}

		delay := tickDelay(r.cfg.Interval, r.failures)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Shutdown persists the ledger checkpoint.
func (r *Runner) Shutdown() {
	if r.cfg.CheckpointPath == "" {
		return
	}
	if err := ledger.SaveCheckpoint(r.cfg.CheckpointPath, r.paper.Snapshot()); err != nil {
		log.Printf("[agent] save checkpoint: %v", err)
	} else {
		log.Printf("[agent] checkpoint saved to %s", r.cfg.CheckpointPath)
	}
}

// RunFillStream folds externally observed fills into the fill store until
// the channel closes or ctx is cancelled. Application is idempotent by
// trade id, so replays after reconnects are safe.
func (r *Runner) RunFillStream(ctx context.Context, fills <-chan ledger.FillEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fills:
			if !ok {
				return
			}
			if r.paper.Fills().ApplyFill(ev) {
				log.Printf("[agent] external fill %s %s %.4f @ %.4f", ev.Side, ev.TokenID, ev.Size, ev.Price)
				_ = r.events.WriteEvent("external_fill", ev)
			}
		}
	}
}

// candidate is the joined per-market snapshot one tick works from.
type candidate struct {
	item WatchItem
	ref  gamma.MarketRef

	tokenID  string
	spot     float64
	bid, ask float64
	book     sizer.Book

	err error
}

// Decision is one audit-log entry: what the tick did for a market and why.
type Decision struct {
	Market  string  `json:"market"`
	TokenID string  `json:"token_id,omitempty"`
	Action  string  `json:"action"`
	Reason  string  `json:"reason,omitempty"`
	Edge    float64 `json:"edge,omitempty"`
	Spot    float64 `json:"spot,omitempty"`
	Bid     float64 `json:"bid,omitempty"`
	Ask     float64 `json:"ask,omitempty"`
	Shares  float64 `json:"shares,omitempty"`
	USD     float64 `json:"usd,omitempty"`
}

// Tick runs one full pass: fetch, update histories, settle, exit, scale,
// enter, and write observability state. It returns an error only when no
// watched market produced usable data, which is what drives backoff.
func (r *Runner) Tick(ctx context.Context) error {
	now := time.Now()
	cands := r.fetchCandidates(ctx)

	usable := 0
	for i := range cands {
		c := &cands[i]
		if c.err != nil {
			log.Printf("[agent] %s: no data this tick: %v", c.item.Name, c.err)
			r.note(c.item.Name, "fetch_failed")
			continue
		}
		usable++
		mid := (c.bid + c.ask) / 2
		r.store.Append(c.item.Name, c.spot, mid, now)
		r.tokenIndex[c.tokenID] = tokenInfo{item: c.item, ref: c.ref}
		r.paper.Mark(c.tokenID, c.bid)
	}

	killed := r.killSwitchActive()
	if killed {
		r.fireKillSwitch(ctx)
	} else {
		r.killActed = false
	}

	r.settle(now)
	r.applyExits(cands, now)

	trendSide := ""
	if r.cfg.TrendAutoSide {
		if item, _, ok := r.pickBestTrend(r.cfg.Lookback); ok {
			trendSide = item.Name
		}
	}

	entered := false
	for i := range cands {
		c := &cands[i]
		if c.err != nil {
			continue
		}
		d := r.decideEntry(c, now, killed, trendSide, &entered)
		r.note(c.item.Name, d.Reason)
		if d.Action != "hold" {
			_ = r.events.WriteEvent("decision", d)
		}
	}

	r.writeStatus(now)

	if usable == 0 {
		return errNoData
	}
	return nil
}

// fetchCandidates does the intra-tick fan-out: spot prices, market metadata
// (through the TTL cache, misses fetched in parallel) and order books. The
// cache itself is only read and written on the tick goroutine.
func (r *Runner) fetchCandidates(ctx context.Context) []candidate {
	cands := make([]candidate, len(r.cfg.Watch))
	refs := make([]gamma.MarketRef, len(r.cfg.Watch))
	refErr := make([]error, len(r.cfg.Watch))
	cached := make([]bool, len(r.cfg.Watch))

	for i, item := range r.cfg.Watch {
		cands[i].item = item
		if ref, ok := r.refTTL.Get(item.Slug, r.cfg.MarketTTL); ok {
			refs[i] = ref
			cached[i] = true
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range r.cfg.Watch {
		i := i
		item := r.cfg.Watch[i]
		g.Go(func() error {
			spot, err := r.spot.LastPrice(gctx, item.SpotPair)
			if err != nil {
				cands[i].err = err
				return nil
			}
			cands[i].spot = spot
			return nil
		})
		if !cached[i] {
			g.Go(func() error {
				ref, err := r.market.ResolveMarketBySlug(gctx, item.Slug)
				if err != nil {
					refErr[i] = err
					return nil
				}
				refs[i] = ref
				return nil
			})
		}
	}
	_ = g.Wait()

	for i := range cands {
		if cands[i].err != nil {
			continue
		}
		if refErr[i] != nil {
			cands[i].err = refErr[i]
			continue
		}
		if !cached[i] {
			r.refTTL.Put(cands[i].item.Slug, refs[i])
		}
		cands[i].ref = refs[i]
		tokenID, ok := refs[i].TokenIDFor(cands[i].item.Outcome)
		if !ok {
			cands[i].err = errCannotResolve
			continue
		}
		cands[i].tokenID = tokenID
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i := range cands {
		i := i
		if cands[i].err != nil {
			continue
		}
		g.Go(func() error {
			fetcher := <-r.books
			defer func() { r.books <- fetcher }()

			raw, err := fetcher.GetOrderBook(gctx, cands[i].tokenID)
			if err != nil {
				cands[i].err = err
				return nil
			}
			book, err := sizer.FromCLOB(raw)
			if err != nil {
				cands[i].err = err
				return nil
			}
			bid, ask, ok := raw.BestBidAsk()
			if !ok {
				cands[i].err = sizer.ErrNoLiquidity
				return nil
			}
			cands[i].book = book
			cands[i].bid = bid
			cands[i].ask = ask
			return nil
		})
	}
	_ = g.Wait()

	return cands
}

// settle force-closes positions in resolved markets, pricing at the
// venue-reported outcome price when one exists.
func (r *Runner) settle(now time.Time) {
	settled := r.paper.SettleResolved(func(tokenID string) (ledger.Resolution, bool) {
		info, ok := r.tokenIndex[tokenID]
		if !ok {
			return ledger.Resolution{}, false
		}
		res := ledger.Resolution{Closed: info.ref.Closed, EndDate: info.ref.EndDate}
		if price, ok := info.ref.ResolvedPriceFor(info.item.Outcome); ok {
			res.ResolvedPrice = &price
		}
		return res, true
	}, r.cfg.SettleGrace, now)

	for _, s := range settled {
		_ = r.events.WriteEvent("settlement", s)
	}
}

// applyExits closes open positions whose exit triggers fired, selling into
// the current best bid.
func (r *Runner) applyExits(cands []candidate, now time.Time) {
	rules := ledger.ExitRules{
		EdgeExit: r.cfg.EdgeExitPct,
		MaxHold:  r.cfg.MaxHold,
		StopFrac: r.cfg.StopFrac,
	}
	for i := range cands {
		c := &cands[i]
		if c.err != nil {
			continue
		}
		pos, ok := r.paper.Position(c.tokenID)
		if !ok {
			continue
		}
		edge, edgeOK := r.est.Edge(c.item.Name, r.cfg.Lookback, c.item.Bias)
		reason, exit := ledger.ShouldExit(pos, edge.Edge, edgeOK, now, rules)
		if !exit {
			continue
		}
		fill, err := r.paper.Sell(c.tokenID, pos.Shares, c.bid, now)
		if err != nil {
			log.Printf("[agent] %s: exit sell failed: %v", c.item.Name, err)
			continue
		}
		log.Printf("[agent] %s: exit %s: sold %.4f @ %.4f (realized %.2f)",
			c.item.Name, reason, fill.Size, fill.Price, r.paper.Realized())
		_ = r.events.WriteEvent("decision", Decision{
			Market: c.item.Name, TokenID: c.tokenID, Action: "exit", Reason: reason,
			Edge: edge.Edge, Bid: c.bid, Ask: c.ask, Shares: fill.Size, USD: fill.Size * fill.Price,
		})
	}
}

// decideEntry runs the gates for one candidate and commits the entry or
// scale-in when everything passes. At most one entry fires per tick.
func (r *Runner) decideEntry(c *candidate, now time.Time, killed bool, trendSide string, entered *bool) Decision {
	d := Decision{Market: c.item.Name, TokenID: c.tokenID, Spot: c.spot, Bid: c.bid, Ask: c.ask}

	pos, holding := r.paper.Position(c.tokenID)
	if holding && r.cfg.ScaleTriggerPct <= 0 {
		d.Action = "hold"
		return d
	}

	if killed {
		d.Action = "skip"
		d.Reason = reasonKillSwitch
		return d
	}

	if trendSide != "" && !holding && c.item.Name != trendSide {
		d.Action = "skip"
		d.Reason = reasonNotTrendSide
		return d
	}

	edge, edgeOK := r.est.Edge(c.item.Name, r.cfg.Lookback, c.item.Bias)
	trend, _ := r.est.Trend(c.item.Name, r.cfg.Lookback)
	sig := entrySignal{
		Bid:    c.bid,
		Ask:    c.ask,
		Edge:   edge,
		EdgeOK: edgeOK,
		Trend:  trend,
		Noise:  r.est.Noise(c.item.Name, r.cfg.NoiseWindow, r.cfg.Lookback),
	}
	if r.cfg.MinLagMs > 0 {
		sig.Lag = r.est.EstimateLag(c.item.Name, leadlag.LagOptions{
			MaxLagPoints:  r.cfg.MaxLagPoints,
			MinPoints:     r.cfg.Lookback + 1,
			MinCorrPoints: r.cfg.Lookback,
			MinAbsCorr:    r.cfg.MinAbsCorr,
			MinCorrGap:    r.cfg.MinCorrGap,
		})
	}
	d.Edge = edge.Edge

	if reason, ok := checkEntry(r.cfg, sig); !ok {
		d.Action = "skip"
		d.Reason = reason
		return d
	}

	res, err := sizer.Suggest(c.book, sizer.SideBuy, sizer.Params{
		SlippageCap: r.cfg.SlippageCap,
		MaxFraction: r.cfg.MaxFraction,
		HardCapUSD:  r.cfg.HardCapUSD,
	})
	if err != nil || res.SuggestedUSD < r.cfg.MinNotionalUSD {
		d.Action = "skip"
		d.Reason = reasonInsufficientLiquidity
		return d
	}

	if holding {
		ok, reason := r.canScale(pos, c, res.SuggestedShares, now)
		if !ok {
			d.Action = "skip"
			d.Reason = reason
			return d
		}
	} else if *entered {
		d.Action = "skip"
		d.Reason = reasonThrottled
		return d
	}

	fill, err := r.paper.Buy(c.tokenID, c.ref.Slug, c.item.Outcome, res.SuggestedShares, res.BestPrice, now)
	if err != nil {
		d.Action = "skip"
		d.Reason = err.Error()
		return d
	}

	if holding {
		d.Action = "scale"
	} else {
		d.Action = "enter"
		*entered = true
	}
	d.Shares = fill.Size
	d.USD = fill.Size * fill.Price
	log.Printf("[agent] %s: %s %.4f shares @ %.4f (edge %.3f, cash %.2f)",
		c.item.Name, d.Action, fill.Size, fill.Price, edge.Edge, r.paper.Cash())
	return d
}

func (r *Runner) canScale(pos ledger.Position, c *candidate, addShares float64, now time.Time) (bool, string) {
	mid := (c.bid + c.ask) / 2
	reason, ok := ledger.CanScale(pos, mid, addShares, now, ledger.ScaleRules{
		TriggerPct: r.cfg.ScaleTriggerPct,
		Cooldown:   r.cfg.ScaleCooldown,
		MaxAdds:    r.cfg.MaxAdds,
		MaxShares:  r.cfg.MaxShares,
	})
	return ok, reason
}

func (r *Runner) killSwitchActive() bool {
	if r.cfg.KillSwitchPath == "" {
		return false
	}
	_, err := os.Stat(r.cfg.KillSwitchPath)
	return err == nil
}

// fireKillSwitch cancels all resting live orders, once per activation.
func (r *Runner) fireKillSwitch(ctx context.Context) {
	if r.killActed {
		return
	}
	r.killActed = true
	log.Printf("[agent] kill switch present at %s: entries suspended", r.cfg.KillSwitchPath)
	if r.cancel == nil {
		return
	}
	cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := r.cancel.CancelAll(cctx, false); err != nil {
		log.Printf("[agent] kill switch cancel-all: %v", err)
	} else {
		log.Printf("[agent] kill switch: cancelled all resting orders")
	}
}

func (r *Runner) note(market, reason string) {
	if reason == "" {
		delete(r.lastReasons, market)
		return
	}
	r.lastReasons[market] = reason
}

// pickBestTrend returns the watch item with the highest trailing return.
// With both legs of a binary quoted it takes the first best found, so an
// exact tie sticks with the earlier item.
func (r *Runner) pickBestTrend(lookback int) (WatchItem, float64, bool) {
	var best WatchItem
	bestVal := math.Inf(-1)
	found := false
	for _, item := range r.cfg.Watch {
		tr, ok := r.est.Trend(item.Name, lookback)
		if !ok {
			continue
		}
		if tr > bestVal {
			best, bestVal, found = item, tr, true
		}
	}
	return best, bestVal, found
}
