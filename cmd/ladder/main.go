package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LarsOlovLindberg/Spelar/internal/clob"
	"github.com/LarsOlovLindberg/Spelar/internal/dotenv"
	"github.com/LarsOlovLindberg/Spelar/internal/gamma"
	"github.com/LarsOlovLindberg/Spelar/internal/jsonl"
	"github.com/LarsOlovLindberg/Spelar/internal/ladder"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var (
		gammaURL   string
		clobURL    string
		search     string
		slugs      string
		minProfit  float64
		maxMarkets int
		workers    int
		outPath    string
	)
	flag.StringVar(&gammaURL, "gamma-url", "", "Gamma API base URL (default production)")
	flag.StringVar(&clobURL, "clob-url", "", "CLOB API base URL (default production)")
	flag.StringVar(&search, "search", "", "slug substring to search markets for")
	flag.StringVar(&slugs, "slugs", "", "comma-separated explicit market slugs")
	flag.Float64Var(&minProfit, "min-profit", 0.02, "minimum guaranteed profit per share")
	flag.IntVar(&maxMarkets, "max-markets", 200, "maximum markets to scan")
	flag.IntVar(&workers, "workers", 4, "parallel order-book fetches")
	flag.StringVar(&outPath, "out", "", "append opportunities to this JSONL file")
	flag.Parse()

	if search == "" && slugs == "" {
		log.Fatalf("[fatal] -search or -slugs is required")
	}

	gc, err := gamma.NewClient(gammaURL)
	if err != nil {
		log.Fatalf("[fatal] gamma: %v", err)
	}
	cc, err := clob.NewReadOnlyClient(clobURL)
	if err != nil {
		log.Fatalf("[fatal] clob: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	refs, err := collectRefs(ctx, gc, search, slugs, maxMarkets)
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}
	log.Printf("[ladder] scanning %d markets", len(refs))

	markets := quoteMarkets(ctx, cc, refs, workers)

	opps := ladder.Scan(markets, minProfit)
	if len(opps) == 0 {
		fmt.Println("no opportunities above threshold")
		return
	}

	events := jsonl.New(outPath)
	defer events.Close()

	for i, opp := range opps {
		fmt.Printf("%2d. [%s] %s\n", i+1, opp.Kind, opp.BaseKey)
		fmt.Printf("    early: %s (ends %s)\n", opp.Early.Slug, opp.Early.EndDate.Format(time.RFC3339))
		fmt.Printf("    late:  %s (ends %s)\n", opp.Late.Slug, opp.Late.EndDate.Format(time.RFC3339))
		fmt.Printf("    guaranteed %.4f, between-deadlines %.4f\n", opp.GuaranteedProfit, opp.BetweenDeadlinesProfit)
		if err := events.WriteEvent("opportunity", opp); err != nil {
			log.Printf("[warn] write %s: %v", outPath, err)
		}
	}
}

func collectRefs(ctx context.Context, gc *gamma.Client, search, slugs string, maxMarkets int) ([]gamma.MarketRef, error) {
	if slugs != "" {
		var refs []gamma.MarketRef
		for _, slug := range strings.Split(slugs, ",") {
			slug = strings.TrimSpace(slug)
			if slug == "" {
				continue
			}
			ref, err := gc.ResolveMarketBySlug(ctx, slug)
			if err != nil {
				log.Printf("[warn] %s: %v", slug, err)
				continue
			}
			refs = append(refs, ref)
		}
		return refs, nil
	}
	return gc.ListMarkets(ctx, search, true, maxMarkets)
}

// quoteMarkets fetches top-of-book quotes for both outcome tokens of every
// market. Markets whose books cannot be fetched are scanned with zero quotes
// on that side, which the scanner treats as unquoted.
func quoteMarkets(ctx context.Context, cc *clob.Client, refs []gamma.MarketRef, workers int) []ladder.Market {
	markets := make([]ladder.Market, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range refs {
		i := i
		ref := refs[i]
		g.Go(func() error {
			m := ladder.Market{
				Slug:     ref.Slug,
				Question: ref.Question,
				EndDate:  ref.EndDate,
			}
			if id, ok := ref.TokenIDFor("Yes"); ok {
				m.YesTokenID = id
				if book, err := cc.GetOrderBook(gctx, id); err == nil {
					m.YesBid, m.YesAsk, _ = book.BestBidAsk()
				} else {
					log.Printf("[warn] %s yes book: %v", ref.Slug, err)
				}
			}
			if id, ok := ref.TokenIDFor("No"); ok {
				m.NoTokenID = id
				if book, err := cc.GetOrderBook(gctx, id); err == nil {
					m.NoBid, m.NoAsk, _ = book.BestBidAsk()
				} else {
					log.Printf("[warn] %s no book: %v", ref.Slug, err)
				}
			}
			markets[i] = m
			return nil
		})
	}
	_ = g.Wait()
	return markets
}
