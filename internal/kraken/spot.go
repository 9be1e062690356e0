// Package kraken wraps the Kraken spot and futures REST APIs used as the
// leading reference series.
package kraken

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultSpotURL = "https://api.kraken.com"

type SpotClient struct {
	host       string
	httpClient *http.Client
}

func NewSpotClient(host string) (*SpotClient, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultSpotURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("kraken spot url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("kraken spot url must be http(s), got %q", host)
	}
	return &SpotClient{
		host:       host,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type spotTickerResp struct {
	Error  []string                  `json:"error"`
	Result map[string]spotTickerPair `json:"result"`
}

type spotTickerPair struct {
	// c is [last trade price, last trade volume].
	Last []string `json:"c"`
}

// LastPrice returns the last trade price for a spot pair (e.g. "XBTUSD").
func (c *SpotClient) LastPrice(ctx context.Context, pair string) (float64, error) {
	if c == nil {
		return 0, fmt.Errorf("kraken spot client nil")
	}
	pair = strings.TrimSpace(pair)
	if pair == "" {
		return 0, fmt.Errorf("pair required")
	}

	q := url.Values{}
	q.Set("pair", pair)
	endpoint := c.host + "/0/public/Ticker?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 4<<10)
		return 0, fmt.Errorf("kraken spot ticker: status=%d body=%q", resp.StatusCode, body)
	}

	var out spotTickerResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("kraken spot decode: %w", err)
	}
	if len(out.Error) > 0 {
		return 0, fmt.Errorf("kraken spot error: %s", strings.Join(out.Error, "; "))
	}

	// The result key is Kraken's internal pair name, which rarely matches the
	// requested one; take the first entry.
	for _, v := range out.Result {
		if len(v.Last) == 0 {
			break
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(v.Last[0]), 64)
		if err != nil {
			return 0, fmt.Errorf("kraken spot last price %q: %w", v.Last[0], err)
		}
		return price, nil
	}
	return 0, fmt.Errorf("kraken spot: no ticker for %q", pair)
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
