package kraken

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSignAuthent(t *testing.T) {
	// Reference vector for a 32-byte base64 secret and an empty query.
	const secret = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	got, err := signAuthent(secret, "/derivatives/api/v3/accounts", "1700000000000", "")
	if err != nil {
		t.Fatalf("signAuthent: %v", err)
	}
	const want = "K2qdDA0ScuFTnn5EAJNUJ2H51aFjPTM00XteHxQwgATJNAaOHUZ5mdtJer19IUZtvdhwWRBg9lOXugpilb8VQQ=="
	if got != want {
		t.Fatalf("signature mismatch: got %q want %q", got, want)
	}
}

func TestSignAuthentBadSecret(t *testing.T) {
	if _, err := signAuthent("%%%", "/derivatives/api/v3/accounts", "1", ""); err == nil {
		t.Fatalf("expected base64 decode failure")
	}
}

func TestSpotLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/0/public/Ticker" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("pair"); got != "XBTUSD" {
			http.Error(w, "bad pair", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":[],"result":{"XXBTZUSD":{"c":["97123.40","0.01"]}}}`))
	}))
	defer srv.Close()

	c, err := NewSpotClient(srv.URL)
	if err != nil {
		t.Fatalf("NewSpotClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	price, err := c.LastPrice(ctx, "XBTUSD")
	if err != nil {
		t.Fatalf("LastPrice: %v", err)
	}
	if price != 97123.40 {
		t.Fatalf("price: got %v want 97123.40", price)
	}
}

func TestSpotLastPriceAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error":["EQuery:Unknown asset pair"],"result":{}}`))
	}))
	defer srv.Close()

	c, err := NewSpotClient(srv.URL)
	if err != nil {
		t.Fatalf("NewSpotClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := c.LastPrice(ctx, "NOPEUSD"); err == nil || !strings.Contains(err.Error(), "Unknown asset pair") {
		t.Fatalf("expected API error, got %v", err)
	}
}

func TestFuturesLastPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/derivatives/api/v3/tickers" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","tickers":[
  {"symbol":"PI_XBTUSD","last":97100.5,"markPrice":97101.0},
  {"symbol":"PI_ETHUSD","last":0,"markPrice":3500.25}
]}`))
	}))
	defer srv.Close()

	c, err := NewFuturesClient(srv.URL, "", "")
	if err != nil {
		t.Fatalf("NewFuturesClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	price, err := c.LastPrice(ctx, "pi_xbtusd")
	if err != nil {
		t.Fatalf("LastPrice: %v", err)
	}
	if price != 97100.5 {
		t.Fatalf("price: got %v", price)
	}

	// Untraded symbol falls back to mark price.
	price, err = c.LastPrice(ctx, "PI_ETHUSD")
	if err != nil {
		t.Fatalf("LastPrice mark fallback: %v", err)
	}
	if price != 3500.25 {
		t.Fatalf("mark fallback: got %v", price)
	}

	if _, err := c.LastPrice(ctx, "PI_NOPE"); err == nil {
		t.Fatalf("unknown symbol must fail")
	}
}

func TestFuturesAccountsSendsAuthHeaders(t *testing.T) {
	const secret = "MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY="
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/derivatives/api/v3/accounts" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("APIKey") != "key-1" {
			http.Error(w, "missing APIKey", http.StatusUnauthorized)
			return
		}
		nonce := r.Header.Get("Nonce")
		want, err := signAuthent(secret, "/derivatives/api/v3/accounts", nonce, "")
		if err != nil || r.Header.Get("Authent") != want {
			http.Error(w, "bad Authent", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":"success","accounts":{"flex":{"type":"multiCollateralMarginAccount","currency":"USD","balances":{"usd":123.45}}}}`))
	}))
	defer srv.Close()

	c, err := NewFuturesClient(srv.URL, "key-1", secret)
	if err != nil {
		t.Fatalf("NewFuturesClient: %v", err)
	}
	c.nonce = func() string { return "1700000000000" }

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	accounts, err := c.Accounts(ctx)
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if got := accounts["flex"].Balances["usd"]; got != 123.45 {
		t.Fatalf("balance: got %v", got)
	}
}

func TestFuturesPrivateWithoutCreds(t *testing.T) {
	c, err := NewFuturesClient(TestnetFuturesURL, "", "")
	if err != nil {
		t.Fatalf("NewFuturesClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Accounts(ctx); err == nil || !strings.Contains(err.Error(), "credentials required") {
		t.Fatalf("expected credentials error, got %v", err)
	}
}
