package gamma

import (
	"bytes"
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

const DefaultURL = "https://gamma-api.polymarket.com"

// DefaultUserAgent mimics a browser UA to avoid Cloudflare 403s.
const DefaultUserAgent = "Mozilla/5.0"

type Client struct {
	host       string
	httpClient *http.Client
	userAgent  string
}

func NewClient(host string) (*Client, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("gamma url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("gamma url must be http(s), got %q", host)
	}

	return &Client{
		host: host,
		httpClient: &http.Client{
			Timeout: 12 * time.Second,
		},
		userAgent: DefaultUserAgent,
	}, nil
}

type stringList []string

// UnmarshalJSON accepts both a JSON array and the string-encoded JSON array
// Gamma commonly returns for list fields (outcomes, clobTokenIds,
// outcomePrices).
func (s *stringList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = nil
		return nil
	}

	if b[0] == '"' {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			*s = nil
			return nil
		}
		var vals []string
		if err := json.Unmarshal([]byte(raw), &vals); err != nil {
			return err
		}
		*s = vals
		return nil
	}

	var vals []string
	if err := json.Unmarshal(b, &vals); err != nil {
		return err
	}
	*s = vals
	return nil
}

type looseFloat float64

// UnmarshalJSON accepts a JSON number or a numeric string; blank strings and
// null decode to 0.
func (f *looseFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("numeric string %q: %w", s, err)
		}
		*f = looseFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = looseFloat(v)
	return nil
}

type market struct {
	Slug          string     `json:"slug"`
	Question      string     `json:"question"`
	Outcomes      stringList `json:"outcomes"`
	OutcomePrices stringList `json:"outcomePrices"`
	ClobTokenIDs  stringList `json:"clobTokenIds"`
	Active        bool       `json:"active"`
	Closed        bool       `json:"closed"`
	EndDate       string     `json:"endDate"`
	Liquidity     looseFloat `json:"liquidityNum"`
	Volume        looseFloat `json:"volumeNum"`
}

type event struct {
	Slug    string   `json:"slug"`
	Markets []market `json:"markets"`
}

// MarketRef is the normalized market metadata the rest of the agent consumes.
// Binary markets carry exactly two outcomes and two token ids in matching
// order.
type MarketRef struct {
	Slug          string
	Question      string
	Outcomes      []string
	TokenIDs      []string
	OutcomePrices []float64
	Active        bool
	Closed        bool
	EndDate       time.Time
	Liquidity     float64
	Volume        float64
}

// ResolvedPriceFor returns the settlement price for the given outcome label,
// if the market reports outcome prices.
func (m MarketRef) ResolvedPriceFor(outcome string) (float64, bool) {
	if len(m.OutcomePrices) != len(m.Outcomes) {
		return 0, false
	}
	for i, o := range m.Outcomes {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(outcome)) {
			return m.OutcomePrices[i], true
		}
	}
	return 0, false
}

// TokenIDFor returns the token id for the given outcome label.
func (m MarketRef) TokenIDFor(outcome string) (string, bool) {
	if len(m.TokenIDs) != len(m.Outcomes) {
		return "", false
	}
	for i, o := range m.Outcomes {
		if strings.EqualFold(strings.TrimSpace(o), strings.TrimSpace(outcome)) {
			return m.TokenIDs[i], true
		}
	}
	return "", false
}

func (m *market) toRef() (MarketRef, error) {
	ids := make([]string, 0, len(m.ClobTokenIDs))
	for _, id := range m.ClobTokenIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) != 2 {
		return MarketRef{}, fmt.Errorf("gamma: expected 2 clobTokenIds for %q, got %d", m.Slug, len(ids))
	}
	if len(m.Outcomes) != 2 {
		return MarketRef{}, fmt.Errorf("gamma: expected 2 outcomes for %q, got %d", m.Slug, len(m.Outcomes))
	}

	ref := MarketRef{
		Slug:      m.Slug,
		Question:  m.Question,
		Outcomes:  append([]string(nil), m.Outcomes...),
		TokenIDs:  ids,
		Active:    m.Active,
		Closed:    m.Closed,
		Liquidity: float64(m.Liquidity),
		Volume:    float64(m.Volume),
	}
	if s := strings.TrimSpace(m.EndDate); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			ref.EndDate = t
		}
	}
	if len(m.OutcomePrices) == len(m.Outcomes) {
		prices := make([]float64, 0, len(m.OutcomePrices))
		ok := true
		for _, s := range m.OutcomePrices {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				ok = false
				break
			}
			prices = append(prices, v)
		}
		if ok {
			ref.OutcomePrices = prices
		}
	}
	return ref, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 8<<10)
		return fmt.Errorf("gamma %s: status=%d body=%q", endpoint, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gamma decode: %w", err)
	}
	return nil
}

// ResolveMarketBySlug looks a market up through the events endpoint,
// preferring the market whose slug matches exactly.
func (c *Client) ResolveMarketBySlug(ctx context.Context, slug string) (MarketRef, error) {
	if c == nil {
		return MarketRef{}, fmt.Errorf("gamma client nil")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return MarketRef{}, fmt.Errorf("market slug required")
	}

	q := url.Values{}
	q.Set("slug", slug)
	var events []event
	if err := c.getJSON(ctx, c.host+"/events?"+q.Encode(), &events); err != nil {
		return MarketRef{}, err
	}
	if len(events) == 0 {
		return MarketRef{}, fmt.Errorf("gamma: no event for slug %q", slug)
	}

	var chosen *market
	for i := range events {
		ev := &events[i]
		for j := range ev.Markets {
			if strings.TrimSpace(ev.Markets[j].Slug) == slug {
				chosen = &ev.Markets[j]
				break
			}
		}
		if chosen != nil {
			break
		}
	}
	if chosen == nil {
		if len(events[0].Markets) == 0 {
			return MarketRef{}, fmt.Errorf("gamma: event %q has no markets", slug)
		}
		chosen = &events[0].Markets[0]
	}
	return chosen.toRef()
}

// ListMarkets pages through the markets endpoint. search filters server-side;
// maxMarkets caps the total fetched (0 means one page).
func (c *Client) ListMarkets(ctx context.Context, search string, activeOnly bool, maxMarkets int) ([]MarketRef, error) {
	if c == nil {
		return nil, fmt.Errorf("gamma client nil")
	}
	const pageSize = 100
	if maxMarkets <= 0 {
		maxMarkets = pageSize
	}

	var out []MarketRef
	for offset := 0; len(out) < maxMarkets; offset += pageSize {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		if activeOnly {
			q.Set("active", "true")
			q.Set("closed", "false")
		}
		if s := strings.TrimSpace(search); s != "" {
			q.Set("slug_contains", s)
		}

		var page []market
		if err := c.getJSON(ctx, c.host+"/markets?"+q.Encode(), &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for i := range page {
			ref, err := page[i].toRef()
			if err != nil {
				// Non-binary markets are expected in listings; skip them.
				continue
			}
			out = append(out, ref)
			if len(out) >= maxMarkets {
				break
			}
		}
		if len(page) < pageSize {
			break
		}
	}
	return out, nil
}

// MarketByTokenID resolves the market that carries tokenID as one of its
// outcome tokens.
func (c *Client) MarketByTokenID(ctx context.Context, tokenID string) (MarketRef, error) {
	if c == nil {
		return MarketRef{}, fmt.Errorf("gamma client nil")
	}
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return MarketRef{}, fmt.Errorf("token id required")
	}

	q := url.Values{}
	q.Set("clob_token_ids", tokenID)
	var page []market
	if err := c.getJSON(ctx, c.host+"/markets?"+q.Encode(), &page); err != nil {
		return MarketRef{}, err
	}
	for i := range page {
		ref, err := page[i].toRef()
		if err != nil {
			continue
		}
		for _, id := range ref.TokenIDs {
			if id == tokenID {
				return ref, nil
			}
		}
	}
	return MarketRef{}, fmt.Errorf("gamma: no market for token %q", tokenID)
}

func readBodyLimit(r io.Reader, max int64) string {
	if r == nil || max <= 0 {
		return ""
	}
	lr := &io.LimitedReader{R: r, N: max}
	b, _ := io.ReadAll(lr)
	return strings.TrimSpace(string(b))
}
