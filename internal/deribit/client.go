// Package deribit reads public options-market data used to derive
// risk-neutral event probabilities.
package deribit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultURL = "https://www.deribit.com"

type Client struct {
	host       string
	httpClient *http.Client
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("deribit url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("deribit url must be http(s), got %q", host)
	}
	return &Client{
		host:       host,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, result any) error {
	if c == nil {
		return fmt.Errorf("deribit client nil")
	}
	endpoint := c.host + path
	if params != nil {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 4<<10)
		return fmt.Errorf("deribit %s: status=%d body=%q", path, resp.StatusCode, body)
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("deribit decode: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("deribit %s: rpc %d %s", path, envelope.Error.Code, envelope.Error.Message)
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("deribit result decode: %w", err)
	}
	return nil
}

// BookSummary carries the fields the probability model needs. MarkIV is
// quoted in percent (e.g. 55.2).
type BookSummary struct {
	InstrumentName  string  `json:"instrument_name"`
	MarkIV          float64 `json:"mark_iv"`
	UnderlyingPrice float64 `json:"underlying_price"`
	MarkPrice       float64 `json:"mark_price"`
	BidPrice        float64 `json:"bid_price"`
	AskPrice        float64 `json:"ask_price"`
}

// GetBookSummary returns the book summary for one option instrument.
func (c *Client) GetBookSummary(ctx context.Context, instrument string) (BookSummary, error) {
	instrument = strings.TrimSpace(instrument)
	if instrument == "" {
		return BookSummary{}, fmt.Errorf("instrument required")
	}

	q := url.Values{}
	q.Set("instrument_name", instrument)
	var result []BookSummary
	if err := c.getJSON(ctx, "/api/v2/public/get_book_summary_by_instrument", q, &result); err != nil {
		return BookSummary{}, err
	}
	if len(result) == 0 {
		return BookSummary{}, fmt.Errorf("deribit: no book summary for %q", instrument)
	}
	return result[0], nil
}

// Instrument is one listed option.
type Instrument struct {
	InstrumentName string  `json:"instrument_name"`
	Strike         float64 `json:"strike"`
	OptionType     string  `json:"option_type"`
	ExpirationMs   int64   `json:"expiration_timestamp"`
}

func (i Instrument) Expiry() time.Time {
	return time.UnixMilli(i.ExpirationMs)
}

// Instruments lists live options for a currency ("BTC", "ETH").
func (c *Client) Instruments(ctx context.Context, currency string) ([]Instrument, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, fmt.Errorf("currency required")
	}

	q := url.Values{}
	q.Set("currency", currency)
	q.Set("kind", "option")
	q.Set("expired", "false")
	var result []Instrument
	if err := c.getJSON(ctx, "/api/v2/public/get_instruments", q, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// FindOption picks the listed option closest to the wanted expiry and strike,
// scored by expiry distance first and strike distance second. kind is "call"
// or "put"; empty matches either.
func (c *Client) FindOption(ctx context.Context, currency string, expiry time.Time, strike float64, kind string) (Instrument, error) {
	instruments, err := c.Instruments(ctx, currency)
	if err != nil {
		return Instrument{}, err
	}
	kind = strings.ToLower(strings.TrimSpace(kind))

	best := -1
	var bestExpiryDist time.Duration
	var bestStrikeDist float64
	for i, inst := range instruments {
		if kind != "" && !strings.EqualFold(inst.OptionType, kind) {
			continue
		}
		expiryDist := inst.Expiry().Sub(expiry)
		if expiryDist < 0 {
			expiryDist = -expiryDist
		}
		strikeDist := math.Abs(inst.Strike - strike)
		if best < 0 || expiryDist < bestExpiryDist ||
			(expiryDist == bestExpiryDist && strikeDist < bestStrikeDist) {
			best = i
			bestExpiryDist = expiryDist
			bestStrikeDist = strikeDist
		}
	}
	if best < 0 {
		return Instrument{}, fmt.Errorf("deribit: no %s option for %s", kind, currency)
	}
	return instruments[best], nil
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
