package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

const defaultLookupURL = "http://ip-api.com/json/?fields=status,message,lat,lon"

// ErrLookup is returned when the caller's position cannot be derived from its IP.
var ErrLookup = errors.New("error when trying to locate by ip")

// Client resolves the caller's approximate position from its public IP.
type Client struct {
	httpClient *http.Client
	lookupURL  string
}

// Option applies Client options.
type Option func(*Client)

// WithLookupURL replaces the lookup endpoint.
func WithLookupURL(lookupURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(lookupURL); trimmed != "" {
			c.lookupURL = trimmed
		}
	}
}

// WithHTTPClient replaces default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

type lookupResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

// NewClient creates an ip-api client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lookupURL:  defaultLookupURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Locate returns the coordinate ip-api associates with the caller.
func (c *Client) Locate(ctx context.Context) (domain.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL, nil)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %w", ErrLookup, err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return domain.Coordinate{}, fmt.Errorf("%w: status %d", ErrLookup, res.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if !strings.EqualFold(payload.Status, "success") {
		message := strings.TrimSpace(payload.Message)
		if message == "" {
			message = "unknown failure"
		}
		return domain.Coordinate{}, fmt.Errorf("%w: %s", ErrLookup, message)
	}
	return domain.Coordinate{Latitude: payload.Lat, Longitude: payload.Lon}, nil
}
