package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/LarsOlovLindberg/Spelar/internal/agent"
	"github.com/LarsOlovLindberg/Spelar/internal/clob"
	"github.com/LarsOlovLindberg/Spelar/internal/dotenv"
	"github.com/LarsOlovLindberg/Spelar/internal/gamma"
	"github.com/LarsOlovLindberg/Spelar/internal/jsonl"
	"github.com/LarsOlovLindberg/Spelar/internal/kraken"
	"github.com/LarsOlovLindberg/Spelar/internal/userws"
)

func main() {
	log.SetFlags(0)

	if err := dotenv.Load(); err != nil {
		log.Printf("[warn] %v", err)
	}

	var once bool
	flag.BoolVar(&once, "once", false, "run a single tick and exit")
	flag.Parse()

	cfg, err := agent.LoadConfig()
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	spot, err := kraken.NewSpotClient(cfg.KrakenURL)
	if err != nil {
		log.Fatalf("[fatal] kraken: %v", err)
	}
	markets, err := gamma.NewClient(cfg.GammaURL)
	if err != nil {
		log.Fatalf("[fatal] gamma: %v", err)
	}

	books := make([]agent.BookSource, 0, cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		b, err := clob.NewReadOnlyClient(cfg.ClobURL)
		if err != nil {
			log.Fatalf("[fatal] clob: %v", err)
		}
		books = append(books, b)
	}

	canceller, liveClient := buildLiveClient(cfg.ClobURL)

	events := jsonl.New(cfg.EventsPath)
	defer events.Close()

	runner, err := agent.NewRunner(cfg, agent.Deps{
		Spot:      spot,
		Markets:   markets,
		Books:     books,
		Canceller: canceller,
		Events:    events,
	})
	if err != nil {
		log.Fatalf("[fatal] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if liveClient != nil {
		startFillStream(ctx, runner)
	}

	if once {
		if err := runner.Tick(ctx); err != nil {
			log.Printf("[agent] tick: %v", err)
		}
		runner.Shutdown()
		return
	}

	log.Printf("[agent] starting: %d markets, interval %s", len(cfg.Watch), cfg.Interval)
	err = runner.Run(ctx)
	runner.Shutdown()
	if err != nil && err != context.Canceled {
		log.Fatalf("[fatal] %v", err)
	}
	log.Printf("[agent] stopped")
}

// buildLiveClient wires the authenticated CLOB client when live credentials
// are present in the environment. Paper mode works without any of them.
func buildLiveClient(host string) (agent.OrderCanceller, *clob.Client) {
	pkHex := strings.TrimSpace(firstNonEmpty(os.Getenv("CLOB_PRIVATE_KEY"), os.Getenv("PRIVATE_KEY")))
	if pkHex == "" {
		return nil, nil
	}
	pk, err := crypto.HexToECDSA(strings.TrimPrefix(pkHex, "0x"))
	if err != nil {
		log.Printf("[warn] invalid PRIVATE_KEY, live cancel disabled: %v", err)
		return nil, nil
	}

	c, err := clob.NewClient(host, 137, pk, common.Address{}, 0)
	if err != nil {
		log.Printf("[warn] clob client, live cancel disabled: %v", err)
		return nil, nil
	}

	creds := clob.ApiKeyCreds{
		Key:        strings.TrimSpace(os.Getenv("CLOB_API_KEY")),
		Secret:     strings.TrimSpace(os.Getenv("CLOB_SECRET")),
		Passphrase: strings.TrimSpace(os.Getenv("CLOB_PASSPHRASE")),
	}
	if creds.Key == "" || creds.Secret == "" || creds.Passphrase == "" {
		log.Printf("[warn] CLOB api creds incomplete, live cancel disabled")
		return nil, nil
	}
	c.SetApiCreds(creds)
	return c, c
}

// startFillStream subscribes to the user channel and folds external fills
// into the ledger's fill store.
func startFillStream(ctx context.Context, runner *agent.Runner) {
	auth := userws.Auth{
		APIKey:     strings.TrimSpace(os.Getenv("CLOB_API_KEY")),
		Secret:     strings.TrimSpace(os.Getenv("CLOB_SECRET")),
		Passphrase: strings.TrimSpace(os.Getenv("CLOB_PASSPHRASE")),
	}
	url := firstNonEmpty(os.Getenv("CLOB_WS_URL"), userws.DefaultURL)

	fills, errs := userws.Start(ctx, url, auth, userws.Options{})
	go runner.RunFillStream(ctx, fills)
	go func() {
		for err := range errs {
			log.Printf("[userws] %v", err)
		}
	}()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
