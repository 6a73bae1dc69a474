// Package directions is a client for the OpenRouteService directions API.
package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.openrouteservice.org"
	DefaultProfile = "foot-walking"

	// GenericErrorMessage is reported when the provider fails without saying why.
	GenericErrorMessage = "Error from OpenRouteService"

	maxErrorBody = 64 << 10
)

// ProviderError is a failed or unusable directions response.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Route is a walking route through the requested coordinates. Raw is the
// provider's GeoJSON FeatureCollection exactly as received.
type Route struct {
	Raw      json.RawMessage
	Duration float64
	Distance float64
}

type Client struct {
	baseURL    string
	apiKey     string
	profile    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithProfile(profile string) Option {
	return func(c *Client) {
		if profile != "" {
			c.profile = profile
		}
	}
}

func NewClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		profile: DefaultProfile,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type routeRequest struct {
	Coordinates [][2]float64 `json:"coordinates"`
}

type routeResponse struct {
	Features []struct {
		Properties struct {
			Summary *struct {
				Duration float64 `json:"duration"`
				Distance float64 `json:"distance"`
			} `json:"summary"`
		} `json:"properties"`
	} `json:"features"`
}

// WalkingRoute asks for a route visiting coordinates ([lon, lat] pairs) in the
// given order. The provider only routes between consecutive points; it never
// reorders them.
func (c *Client) WalkingRoute(ctx context.Context, coordinates [][2]float64) (*Route, error) {
	body, err := json.Marshal(routeRequest{Coordinates: coordinates})
	if err != nil {
		return nil, fmt.Errorf("encoding directions request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/directions/%s/geojson", c.baseURL, c.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building directions request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, application/geo+json")
	req.Header.Set("Authorization", c.apiKey)

	c.logger.Debug("Requesting walking route",
		zap.String("profile", c.profile),
		zap.Int("points", len(coordinates)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading directions response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := providerMessage(raw)
		c.logger.Warn("Directions provider returned an error",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed routeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: GenericErrorMessage}
	}
	if len(parsed.Features) == 0 || parsed.Features[0].Properties.Summary == nil {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: GenericErrorMessage}
	}

	summary := parsed.Features[0].Properties.Summary
	return &Route{
		Raw:      json.RawMessage(raw),
		Duration: summary.Duration,
		Distance: summary.Distance,
	}, nil
}

// providerMessage pulls the reason out of an error body. The API answers with
// either {"error": {"code": n, "message": "..."}} or {"error": "..."}.
func providerMessage(raw []byte) string {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || len(envelope.Error) == 0 {
		return GenericErrorMessage
	}

	var detailed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(envelope.Error, &detailed); err == nil && detailed.Message != "" {
		return detailed.Message
	}

	var plain string
	if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
		return plain
	}
	return GenericErrorMessage
}
