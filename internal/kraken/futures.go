package kraken

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultFuturesURL = "https://futures.kraken.com"
	TestnetFuturesURL = "https://demo-futures.kraken.com"
)

// FuturesClient calls the Kraken Futures REST API. Public endpoints work
// without credentials; Accounts and OpenPositions need an API key pair.
type FuturesClient struct {
	host       string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	nonce      func() string
}

func NewFuturesClient(host, apiKey, apiSecret string) (*FuturesClient, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		host = DefaultFuturesURL
	}
	host = strings.TrimRight(host, "/")

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("kraken futures url parse %q: %w", host, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("kraken futures url must be http(s), got %q", host)
	}

	return &FuturesClient{
		host:       host,
		apiKey:     strings.TrimSpace(apiKey),
		apiSecret:  strings.TrimSpace(apiSecret),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		nonce: func() string {
			return strconv.FormatInt(time.Now().UnixMilli(), 10)
		},
	}, nil
}

// signAuthent builds the Authent header value:
// base64(HMAC-SHA512(base64decode(secret), SHA256(postData + nonce + path)))
// where path has the "/derivatives" prefix stripped.
func signAuthent(secret, endpointPath, nonce, postData string) (string, error) {
	path := strings.TrimPrefix(endpointPath, "/derivatives")
	msg := sha256.Sum256([]byte(postData + nonce + path))

	key, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode base64 secret: %w", err)
	}
	mac := hmac.New(sha512.New, key)
	_, _ = mac.Write(msg[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func (c *FuturesClient) get(ctx context.Context, endpointPath string, params url.Values, private bool, out any) error {
	if c == nil {
		return fmt.Errorf("kraken futures client nil")
	}
	postData := ""
	if params != nil {
		postData = params.Encode()
	}
	endpoint := c.host + endpointPath
	if postData != "" {
		endpoint += "?" + postData
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	if private {
		if c.apiKey == "" || c.apiSecret == "" {
			return fmt.Errorf("kraken futures: credentials required for %s", endpointPath)
		}
		nonce := c.nonce()
		authent, err := signAuthent(c.apiSecret, endpointPath, nonce, postData)
		if err != nil {
			return err
		}
		req.Header.Set("APIKey", c.apiKey)
		req.Header.Set("Nonce", nonce)
		req.Header.Set("Authent", authent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyLimit(resp.Body, 4<<10)
		return fmt.Errorf("kraken futures %s: status=%d body=%q", endpointPath, resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("kraken futures decode: %w", err)
	}
	return nil
}

// Ticker is one futures instrument quote.
type Ticker struct {
	Symbol    string  `json:"symbol"`
	Last      float64 `json:"last"`
	MarkPrice float64 `json:"markPrice"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
}

type tickersResp struct {
	Result  string   `json:"result"`
	Error   string   `json:"error"`
	Tickers []Ticker `json:"tickers"`
}

// Tickers returns quotes for all listed futures instruments.
func (c *FuturesClient) Tickers(ctx context.Context) ([]Ticker, error) {
	var out tickersResp
	if err := c.get(ctx, "/derivatives/api/v3/tickers", nil, false, &out); err != nil {
		return nil, err
	}
	if out.Result != "" && out.Result != "success" {
		return nil, fmt.Errorf("kraken futures tickers: %s", out.Error)
	}
	return out.Tickers, nil
}

// LastPrice returns the last traded price for one futures symbol, falling
// back to the mark price when the symbol has not traded.
func (c *FuturesClient) LastPrice(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return 0, fmt.Errorf("symbol required")
	}
	tickers, err := c.Tickers(ctx)
	if err != nil {
		return 0, err
	}
	for _, t := range tickers {
		if strings.EqualFold(t.Symbol, symbol) {
			if t.Last > 0 {
				return t.Last, nil
			}
			if t.MarkPrice > 0 {
				return t.MarkPrice, nil
			}
			return 0, fmt.Errorf("kraken futures: no price on %q", symbol)
		}
	}
	return 0, fmt.Errorf("kraken futures: unknown symbol %q", symbol)
}

// Account is one margin account summary.
type Account struct {
	Type     string             `json:"type"`
	Currency string             `json:"currency"`
	Balances map[string]float64 `json:"balances"`
}

type accountsResp struct {
	Result   string             `json:"result"`
	Error    string             `json:"error"`
	Accounts map[string]Account `json:"accounts"`
}

// Accounts returns the authenticated account summaries.
func (c *FuturesClient) Accounts(ctx context.Context) (map[string]Account, error) {
	var out accountsResp
	if err := c.get(ctx, "/derivatives/api/v3/accounts", nil, true, &out); err != nil {
		return nil, err
	}
	if out.Result != "" && out.Result != "success" {
		return nil, fmt.Errorf("kraken futures accounts: %s", out.Error)
	}
	return out.Accounts, nil
}

// OpenPosition is one open futures position.
type OpenPosition struct {
	Side   string  `json:"side"`
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Size   float64 `json:"size"`
}

type openPositionsResp struct {
	Result        string         `json:"result"`
	Error         string         `json:"error"`
	OpenPositions []OpenPosition `json:"openPositions"`
}

// OpenPositions returns the authenticated open positions.
func (c *FuturesClient) OpenPositions(ctx context.Context) ([]OpenPosition, error) {
	var out openPositionsResp
	if err := c.get(ctx, "/derivatives/api/v3/openpositions", nil, true, &out); err != nil {
		return nil, err
	}
	if out.Result != "" && out.Result != "success" {
		return nil, fmt.Errorf("kraken futures openpositions: %s", out.Error)
	}
	return out.OpenPositions, nil
}
