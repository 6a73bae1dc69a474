// Package supabase calls Postgres functions exposed through the Supabase REST
// (PostgREST) gateway.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/FACorreiaa/go-pubcrawl/internal/app/models"
)

const NearbyUnvisitedPubsFn = "find_nearby_unvisited_pubs"

// RPCError is the PostgREST error body.
type RPCError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *RPCError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("rpc call failed with status %d", e.StatusCode)
}

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, serviceKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// WithHTTPClient swaps the transport, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// RPC invokes the Postgres function fn with named params and decodes the JSON
// result into out.
func (c *Client) RPC(ctx context.Context, fn string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", fn, err)
	}

	endpoint := c.baseURL + "/rest/v1/rpc/" + url.PathEscape(fn)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building %s request: %w", fn, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", fn, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", fn, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		rpcErr := &RPCError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(raw, rpcErr)
		c.logger.Warn("RPC call failed",
			zap.String("function", fn),
			zap.Int("status", resp.StatusCode),
			zap.String("code", rpcErr.Code),
			zap.String("message", rpcErr.Message))
		return rpcErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", fn, err)
	}
	return nil
}

// FindNearbyUnvisitedPubs returns unvisited pubs around the origin, nearest first.
func (c *Client) FindNearbyUnvisitedPubs(ctx context.Context, lon, lat float64) ([]models.NearbyPub, error) {
	params := map[string]float64{
		"origin_long": lon,
		"origin_lat":  lat,
	}

	var pubs []models.NearbyPub
	if err := c.RPC(ctx, NearbyUnvisitedPubsFn, params, &pubs); err != nil {
		return nil, err
	}

	c.logger.Debug("Nearby unvisited pubs fetched",
		zap.Float64("lon", lon),
		zap.Float64("lat", lat),
		zap.Int("count", len(pubs)))
	return pubs, nil
}
