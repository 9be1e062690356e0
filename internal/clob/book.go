package clob

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// NewReadOnlyClient returns a client for the public market-data endpoints
// (books, tick sizes, fee rates, neg-risk flags). L1/L2 authenticated calls
// fail until a keyed client is used instead.
func NewReadOnlyClient(host string) (*Client, error) {
	if host == "" {
		host = "https://clob.polymarket.com"
	}
	host = strings.TrimRight(host, "/")
	if !strings.HasPrefix(host, "http") {
		return nil, fmt.Errorf("clob host must be http(s), got %q", host)
	}
	return &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		tickSize:   make(map[string]string),
		feeRate:    make(map[string]int),
		negRisk:    make(map[string]bool),
	}, nil
}

// SetHTTPClient swaps the underlying HTTP client. Each worker in a fan-out
// pool gets its own instance so connections are not shared across workers.
func (c *Client) SetHTTPClient(hc *http.Client) {
	if hc != nil {
		c.httpClient = hc
	}
}

// BestBidAsk scans the book for the highest bid and lowest ask, tolerating
// either level ordering. ok is false when either side is empty or
// unparseable.
func (b *OrderBookSummary) BestBidAsk() (bid, ask float64, ok bool) {
	if b == nil {
		return 0, 0, false
	}
	var haveBid, haveAsk bool
	for _, lvl := range b.Bids {
		p, err := strconv.ParseFloat(strings.TrimSpace(lvl.Price), 64)
		if err != nil || p <= 0 {
			continue
		}
		if !haveBid || p > bid {
			bid = p
			haveBid = true
		}
	}
	for _, lvl := range b.Asks {
		p, err := strconv.ParseFloat(strings.TrimSpace(lvl.Price), 64)
		if err != nil || p <= 0 {
			continue
		}
		if !haveAsk || p < ask {
			ask = p
			haveAsk = true
		}
	}
	return bid, ask, haveBid && haveAsk
}
