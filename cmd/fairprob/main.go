package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LarsOlovLindberg/Spelar/internal/deribit"
	"github.com/LarsOlovLindberg/Spelar/internal/dotenv"
	"github.com/LarsOlovLindberg/Spelar/internal/gamma"
	"github.com/LarsOlovLindberg/Spelar/internal/kraken"
	"github.com/LarsOlovLindberg/Spelar/internal/prob"
)

// fairprob prices a strike/barrier event from options-implied volatility and
// compares it against a Polymarket quote, when a slug is given.
func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var (
		currency   string
		pair       string
		futSymbol  string
		level      float64
		expiryRaw  string
		framingRaw string
		drift      float64
		slug       string
		outcome    string
	)
	flag.StringVar(&currency, "currency", "BTC", "Deribit option currency (BTC, ETH)")
	flag.StringVar(&pair, "spot-pair", "XXBTZUSD", "Kraken spot pair for the reference price")
	flag.StringVar(&futSymbol, "futures-symbol", "", "use this Kraken Futures symbol instead of spot (e.g. PI_XBTUSD)")
	flag.Float64Var(&level, "level", 0, "strike or barrier price (required)")
	flag.StringVar(&expiryRaw, "expiry", "", "event expiry, RFC3339 (required)")
	flag.StringVar(&framingRaw, "framing", "above", "above, below, touch_above, touch_below, no_touch_above, no_touch_below")
	flag.Float64Var(&drift, "drift", 0, "annualized drift for touch probabilities")
	flag.StringVar(&slug, "slug", "", "Polymarket slug to compare against (optional)")
	flag.StringVar(&outcome, "outcome", "Yes", "outcome label for the comparison")
	flag.Parse()

	if level <= 0 {
		log.Fatalf("[fatal] -level is required and must be > 0")
	}
	expiry, err := time.Parse(time.RFC3339, expiryRaw)
	if err != nil {
		log.Fatalf("[fatal] invalid -expiry %q: %v", expiryRaw, err)
	}
	framing := prob.Framing(strings.ToLower(strings.TrimSpace(framingRaw)))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	price, src, err := referencePrice(ctx, pair, futSymbol)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	dc, err := deribit.NewClient("")
	if err != nil {
		log.Fatalf("[fatal] deribit: %v", err)
	}
	kind := "call"
	if framing == prob.FramingBelow || framing == prob.FramingTouchBelow || framing == prob.FramingNoTouchBelow {
		kind = "put"
	}
	inst, err := dc.FindOption(ctx, currency, expiry, level, kind)
	if err != nil {
		log.Fatalf("[fatal] find option: %v", err)
	}
	summary, err := dc.GetBookSummary(ctx, inst.InstrumentName)
	if err != nil {
		log.Fatalf("[fatal] book summary: %v", err)
	}

	p, err := prob.EventProbability(framing, price, level, summary.MarkIV, expiry, time.Now(), drift)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	fmt.Printf("reference: %.2f (%s)\n", price, src)
	fmt.Printf("iv source: %s (mark_iv=%.2f, expiry %s, strike %.0f)\n",
		inst.InstrumentName, summary.MarkIV, inst.Expiry().Format(time.RFC3339), inst.Strike)
	fmt.Printf("fair probability (%s %.0f): %.4f\n", framing, level, p)

	if slug == "" {
		return
	}
	gc, err := gamma.NewClient("")
	if err != nil {
		log.Fatalf("[fatal] gamma: %v", err)
	}
	ref, err := gc.ResolveMarketBySlug(ctx, slug)
	if err != nil {
		log.Fatalf("[fatal] resolve %s: %v", slug, err)
	}
	quote, ok := ref.ResolvedPriceFor(outcome)
	if !ok {
		log.Fatalf("[fatal] %s has no price for outcome %q", slug, outcome)
	}
	fmt.Printf("polymarket %s %s: %.4f (model edge %+.4f)\n", slug, outcome, quote, p-quote)
}

func referencePrice(ctx context.Context, pair, futSymbol string) (float64, string, error) {
	if futSymbol != "" {
		fc, err := kraken.NewFuturesClient("", "", "")
		if err != nil {
			return 0, "", fmt.Errorf("kraken futures: %w", err)
		}
		price, err := fc.LastPrice(ctx, futSymbol)
		if err != nil {
			return 0, "", fmt.Errorf("futures last price: %w", err)
		}
		return price, "kraken futures " + futSymbol, nil
	}
	sc, err := kraken.NewSpotClient("")
	if err != nil {
		return 0, "", fmt.Errorf("kraken: %w", err)
	}
	price, err := sc.LastPrice(ctx, pair)
	if err != nil {
		return 0, "", fmt.Errorf("spot last price: %w", err)
	}
	return price, "kraken spot " + pair, nil
}
