package clob

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// OpenOrder mirrors one entry of the /data/orders response payload.
type OpenOrder struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	Market       string `json:"market"`
	AssetID      string `json:"asset_id"`
	Side         string `json:"side"`
	Price        string `json:"price"`
	OriginalSize string `json:"original_size"`
	SizeMatched  string `json:"size_matched"`
	OrderType    string `json:"order_type"`
}

// GetOpenOrders lists resting orders, optionally filtered by market
// (condition id) and/or asset id.
func (c *Client) GetOpenOrders(ctx context.Context, market, assetID string, useServerTime bool) ([]OpenOrder, error) {
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	q := url.Values{}
	if market = strings.TrimSpace(market); market != "" {
		q.Set("market", market)
	}
	if assetID = strings.TrimSpace(assetID); assetID != "" {
		q.Set("asset_id", assetID)
	}

	path := "/data/orders"
	signedPath := path
	if len(q) > 0 {
		signedPath = path + "?" + q.Encode()
	}

	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodGet, signedPath, nil)
	if err != nil {
		return nil, err
	}

	var resp []OpenOrder
	if err := c.doJSON(ctx, http.MethodGet, signedPath, nil, headers, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// CancelAll cancels every resting order for the authenticated account.
func (c *Client) CancelAll(ctx context.Context, useServerTime bool) (map[string]any, error) {
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	path := "/cancel-all"
	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := c.doJSONBody(ctx, http.MethodDelete, path, nil, headers, nil, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}

type cancelMarketOrdersReq struct {
	Market  string `json:"market,omitempty"`
	AssetID string `json:"asset_id,omitempty"`
}

// CancelMarketOrders cancels every resting order on one market or outcome
// token.
func (c *Client) CancelMarketOrders(ctx context.Context, market, assetID string, useServerTime bool) (map[string]any, error) {
	market = strings.TrimSpace(market)
	assetID = strings.TrimSpace(assetID)
	if market == "" && assetID == "" {
		return nil, fmt.Errorf("market or asset id required")
	}
	if !c.HasApiCreds() {
		return nil, fmt.Errorf("api creds not configured")
	}

	body, err := json.Marshal(cancelMarketOrdersReq{Market: market, AssetID: assetID})
	if err != nil {
		return nil, fmt.Errorf("marshal cancel market orders: %w", err)
	}

	path := "/cancel-market-orders"
	ts, err := c.timestampForAuth(ctx, useServerTime)
	if err != nil {
		return nil, err
	}
	headers, err := c.l2Headers(ts, http.MethodDelete, path, body)
	if err != nil {
		return nil, err
	}

	var resp map[string]any
	if err := c.doJSONBody(ctx, http.MethodDelete, path, nil, headers, body, &resp); err != nil {
		return resp, err
	}
	return resp, nil
}
