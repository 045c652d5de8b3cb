package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mekedron/nearby/internal/domain"
)

const (
	defaultNearbySearchURL = "https://maps.googleapis.com/maps/api/place/nearbysearch/json"
	defaultCacheTTL        = 10 * time.Minute
	cacheKeyPrefix         = "nearby:search:"

	statusOK          = "OK"
	statusZeroResults = "ZERO_RESULTS"
)

var apiKeyPattern = regexp.MustCompile(`([?&]key=)[^&]*`)

// HTTPClient is implemented by http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the nearby-search endpoint.
type Client struct {
	httpClient     HTTPClient
	endpoint       string
	apiKey         string
	apiKeyM        sync.RWMutex
	cache          ResponseCache
	cacheTTL       time.Duration
	logger         *slog.Logger
	minRequestGap  time.Duration
	requestWindowM sync.Mutex
	nextRequestAt  time.Time
	verboseOutput  io.Writer
	verboseOutputM sync.RWMutex
}

// Option applies Client options.
type Option func(*Client)

// WithHTTPClient replaces default HTTP client.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithEndpoint replaces the nearby-search URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(endpoint); trimmed != "" {
			c.endpoint = trimmed
		}
	}
}

// WithAPIKey sets the provider key sent with each request.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithCache enables response caching for identical requests.
func WithCache(cache ResponseCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithLogger sets the logger used for cache diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRequestMinInterval limits request burst by enforcing minimum delay between upstream calls.
func WithRequestMinInterval(interval time.Duration) Option {
	return func(c *Client) {
		if interval < 0 {
			interval = 0
		}
		c.minRequestGap = interval
	}
}

// WithVerboseOutput enables per-request trace output for upstream HTTP calls.
func WithVerboseOutput(out io.Writer) Option {
	return func(c *Client) {
		c.SetVerboseOutput(out)
	}
}

// NewClient creates a nearby-search client. The HTTP client carries no
// timeout of its own; callers bound requests through the context.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		endpoint:   defaultNearbySearchURL,
		cacheTTL:   defaultCacheTTL,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetVerboseOutput sets destination for verbose HTTP request trace lines.
func (c *Client) SetVerboseOutput(out io.Writer) {
	c.verboseOutputM.Lock()
	c.verboseOutput = out
	c.verboseOutputM.Unlock()
}

// SetAPIKey replaces the provider key, e.g. once a profile has been resolved.
func (c *Client) SetAPIKey(key string) {
	c.apiKeyM.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.apiKeyM.Unlock()
}

func (c *Client) currentAPIKey() string {
	c.apiKeyM.RLock()
	defer c.apiKeyM.RUnlock()
	return c.apiKey
}

// cacheKey scopes entries to the endpoint so a shared Redis never serves one
// provider's body for another.
func (c *Client) cacheKey(query string) string {
	return fmt.Sprintf("%s%016x:%s", cacheKeyPrefix, xxhash.Sum64String(c.endpoint), query)
}

type nearbyResponse struct {
	Status       string           `json:"status"`
	ErrorMessage string           `json:"error_message"`
	Results      []map[string]any `json:"results"`
}

type placeResult struct {
	Name     string `json:"name"`
	PlaceID  string `json:"place_id"`
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// SearchNearby returns venues around coordinate, indexed by their position
// in the provider result list.
func (c *Client) SearchNearby(ctx context.Context, coordinate domain.Coordinate, radiusMeters int, category string) ([]domain.Venue, error) {
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("radius must be positive, got %d", radiusMeters)
	}
	query := nearbyQuery(coordinate, radiusMeters, category)
	cacheKey := c.cacheKey(query)

	if raw, ok := c.cached(ctx, cacheKey); ok {
		venues, err := decodeVenues(http.MethodGet, c.endpoint, http.StatusOK, raw)
		if err == nil {
			return venues, nil
		}
		c.logger.Warn("discarding unreadable cached nearby response", "key", cacheKey, "error", err)
	}

	rawURL := c.endpoint + querySeparator(c.endpoint) + query + "&key=" + url.QueryEscape(c.currentAPIKey())
	raw, statusCode, err := c.doGet(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	venues, err := decodeVenues(http.MethodGet, redactKey(rawURL), statusCode, raw)
	if err != nil {
		return nil, err
	}
	c.store(ctx, cacheKey, raw)
	return venues, nil
}

// nearbyQuery keeps the coordinate separator literal; coordinates use the
// shortest decimal form.
func nearbyQuery(coordinate domain.Coordinate, radiusMeters int, category string) string {
	var b strings.Builder
	b.WriteString("location=")
	b.WriteString(formatDegrees(coordinate.Latitude))
	b.WriteByte(',')
	b.WriteString(formatDegrees(coordinate.Longitude))
	b.WriteString("&radius=")
	b.WriteString(strconv.Itoa(radiusMeters))
	if trimmed := strings.TrimSpace(category); trimmed != "" {
		b.WriteString("&type=")
		b.WriteString(url.QueryEscape(trimmed))
	}
	return b.String()
}

func formatDegrees(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func querySeparator(endpoint string) string {
	if strings.Contains(endpoint, "?") {
		return "&"
	}
	return "?"
}

func redactKey(rawURL string) string {
	return apiKeyPattern.ReplaceAllString(rawURL, "${1}REDACTED")
}

func decodeVenues(method string, rawURL string, statusCode int, raw []byte) ([]domain.Venue, error) {
	var payload nearbyResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &UpstreamRequestError{
			Method:     method,
			URL:        rawURL,
			StatusCode: statusCode,
			Body:       string(raw),
			Cause:      fmt.Errorf("decode response body: %w", err),
		}
	}
	status := strings.ToUpper(strings.TrimSpace(payload.Status))
	if status != "" && status != statusOK && status != statusZeroResults {
		return nil, &ProviderStatusError{Status: status, Message: strings.TrimSpace(payload.ErrorMessage)}
	}

	venues := make([]domain.Venue, 0, len(payload.Results))
	for idx, entry := range payload.Results {
		place, err := decodeAny[placeResult](entry)
		if err != nil {
			return nil, &UpstreamRequestError{
				Method:     method,
				URL:        rawURL,
				StatusCode: statusCode,
				Cause:      fmt.Errorf("decode result %d: %w", idx, err),
			}
		}
		venues = append(venues, domain.Venue{
			Index: idx,
			Coordinate: domain.Coordinate{
				Latitude:  place.Geometry.Location.Lat,
				Longitude: place.Geometry.Location.Lng,
			},
			Name:    place.Name,
			PlaceID: place.PlaceID,
			Details: entry,
		})
	}
	return venues, nil
}

func (c *Client) doGet(ctx context.Context, rawURL string) ([]byte, int, error) {
	traceURL := redactKey(rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if err := c.waitForRequestSlot(ctx); err != nil {
		return nil, 0, err
	}

	startedAt := time.Now()
	c.traceRequestStart(http.MethodGet, traceURL)

	res, err := c.httpClient.Do(req)
	if err != nil {
		upstreamErr := &UpstreamRequestError{
			Method: http.MethodGet,
			URL:    traceURL,
			Cause:  err,
		}
		c.traceRequestDone(http.MethodGet, traceURL, 0, 0, startedAt, upstreamErr)
		return nil, 0, upstreamErr
	}
	defer func() {
		_ = res.Body.Close()
	}()

	rawResponse, err := io.ReadAll(res.Body)
	if err != nil {
		upstreamErr := &UpstreamRequestError{
			Method:     http.MethodGet,
			URL:        traceURL,
			StatusCode: res.StatusCode,
			Cause:      fmt.Errorf("read response body: %w", err),
		}
		c.traceRequestDone(http.MethodGet, traceURL, res.StatusCode, 0, startedAt, upstreamErr)
		return nil, res.StatusCode, upstreamErr
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		upstreamErr := &UpstreamRequestError{
			Method:     http.MethodGet,
			URL:        traceURL,
			StatusCode: res.StatusCode,
			Body:       string(rawResponse),
		}
		c.traceRequestDone(http.MethodGet, traceURL, res.StatusCode, len(rawResponse), startedAt, upstreamErr)
		return nil, res.StatusCode, upstreamErr
	}

	c.traceRequestDone(http.MethodGet, traceURL, res.StatusCode, len(rawResponse), startedAt, nil)
	return rawResponse, res.StatusCode, nil
}

func (c *Client) cached(ctx context.Context, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("nearby cache lookup failed", "key", key, "error", err)
		return nil, false
	}
	if ok {
		c.tracef("[cache] hit %s", key)
	}
	return raw, ok
}

func (c *Client) store(ctx context.Context, key string, raw []byte) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL); err != nil {
		c.logger.Warn("nearby cache store failed", "key", key, "error", err)
	}
}

func (c *Client) traceRequestStart(method, rawURL string) {
	c.tracef("[http] -> %s %s", method, rawURL)
}

func (c *Client) traceRequestDone(method, rawURL string, statusCode int, responseBytes int, startedAt time.Time, reqErr error) {
	duration := time.Since(startedAt).Round(time.Millisecond)
	if reqErr != nil {
		c.tracef("[http] <- %s %s error=%v duration=%s", method, rawURL, reqErr, duration)
		return
	}
	c.tracef(
		"[http] <- %s %s status=%d duration=%s bytes=%d",
		method,
		rawURL,
		statusCode,
		duration,
		responseBytes,
	)
}

func (c *Client) waitForRequestSlot(ctx context.Context) error {
	interval := c.minRequestGap
	if interval <= 0 {
		return nil
	}
	for {
		c.requestWindowM.Lock()
		wait := time.Until(c.nextRequestAt)
		if wait <= 0 {
			c.nextRequestAt = time.Now().Add(interval)
			c.requestWindowM.Unlock()
			return nil
		}
		c.requestWindowM.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) tracef(format string, args ...any) {
	c.verboseOutputM.RLock()
	out := c.verboseOutput
	c.verboseOutputM.RUnlock()
	if out == nil {
		return
	}
	_, _ = fmt.Fprintf(out, format+"\n", args...)
}

func decodeAny[T any](value any) (T, error) {
	var out T
	payload, err := json.Marshal(value)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, err
	}
	return out, nil
}
