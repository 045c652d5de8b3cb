package places

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

type captureHTTPClient struct {
	request      *http.Request
	statusCode   int
	responseBody string
	doErr        error
	doCalls      int
}

func (c *captureHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.doCalls++
	c.request = req
	if c.doErr != nil {
		return nil, c.doErr
	}
	statusCode := c.statusCode
	if statusCode == 0 {
		statusCode = 200
	}
	responseBody := c.responseBody
	if strings.TrimSpace(responseBody) == "" {
		responseBody = `{"status":"ZERO_RESULTS","results":[]}`
	}
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(responseBody)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

type memoryCache struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	payload, ok := m.entries[key]
	return payload, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.entries[key] = payload
	m.ttls[key] = ttl
	return nil
}

const twoVenues = `{
  "status": "OK",
  "results": [
    {"name": "Firuze", "place_id": "p-1", "geometry": {"location": {"lat": 40.3661, "lng": 49.8352}}, "rating": 4.5},
    {"name": "Sehrli Tendir", "place_id": "p-2", "geometry": {"location": {"lat": 40.3667, "lng": 49.8337}}}
  ]
}`

func TestSearchNearbyBuildsRequestURL(t *testing.T) {
	httpClient := &captureHTTPClient{}
	client := NewClient(
		WithHTTPClient(httpClient),
		WithEndpoint("https://places.test/nearbysearch/json"),
		WithAPIKey("secret-key"),
	)

	if _, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 40.0, Longitude: 49.0}, 3000, "restaurant"); err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if httpClient.request == nil {
		t.Fatal("expected request to be captured")
	}
	got := httpClient.request.URL.String()
	want := "https://places.test/nearbysearch/json?location=40,49&radius=3000&type=restaurant&key=secret-key"
	if got != want {
		t.Fatalf("unexpected url\nwant %s\ngot  %s", want, got)
	}
	if httpClient.request.Method != http.MethodGet {
		t.Fatalf("expected GET, got %s", httpClient.request.Method)
	}
}

func TestSearchNearbyKeepsResultOrder(t *testing.T) {
	client := NewClient(WithHTTPClient(&captureHTTPClient{responseBody: twoVenues}))

	venues, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 40.4093, Longitude: 49.8671}, 3000, "restaurant")
	if err != nil {
		t.Fatalf("search returned error: %v", err)
	}
	if len(venues) != 2 {
		t.Fatalf("expected 2 venues, got %d", len(venues))
	}
	for idx, venue := range venues {
		if venue.Index != idx {
			t.Fatalf("expected index %d, got %d", idx, venue.Index)
		}
	}
	if venues[0].Name != "Firuze" || venues[1].PlaceID != "p-2" {
		t.Fatalf("unexpected venues %+v", venues)
	}
	if venues[0].Coordinate.Latitude != 40.3661 || venues[0].Coordinate.Longitude != 49.8352 {
		t.Fatalf("unexpected coordinate %+v", venues[0].Coordinate)
	}
	if venues[0].Details["rating"] != 4.5 {
		t.Fatalf("expected provider entry to be kept verbatim, got %v", venues[0].Details)
	}
}

func TestSearchNearbyZeroResults(t *testing.T) {
	client := NewClient(WithHTTPClient(&captureHTTPClient{}))
	venues, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 3000, "restaurant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(venues) != 0 {
		t.Fatalf("expected no venues, got %d", len(venues))
	}
}

func TestSearchNearbyTransportFailure(t *testing.T) {
	client := NewClient(
		WithHTTPClient(&captureHTTPClient{doErr: errors.New("connection refused")}),
		WithAPIKey("secret-key"),
	)
	_, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 1, Longitude: 2}, 3000, "restaurant")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Fatalf("expected api key to be redacted, got %v", err)
	}
}

func TestSearchNearbyHTTPStatusError(t *testing.T) {
	client := NewClient(WithHTTPClient(&captureHTTPClient{statusCode: 503, responseBody: "unavailable"}))
	_, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 3000, "restaurant")
	var upstreamErr *UpstreamRequestError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected UpstreamRequestError, got %v", err)
	}
	if upstreamErr.StatusCode != 503 {
		t.Fatalf("expected status 503, got %d", upstreamErr.StatusCode)
	}
}

func TestSearchNearbyProviderStatusError(t *testing.T) {
	client := NewClient(WithHTTPClient(&captureHTTPClient{
		responseBody: `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid.","results":[]}`,
	}))
	_, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 3000, "restaurant")
	var statusErr *ProviderStatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected ProviderStatusError, got %v", err)
	}
	if statusErr.Status != "REQUEST_DENIED" || !errors.Is(err, ErrNetwork) {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSearchNearbyRejectsInvalidJSON(t *testing.T) {
	client := NewClient(WithHTTPClient(&captureHTTPClient{responseBody: "<html>"}))
	_, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 3000, "restaurant")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestSearchNearbyRejectsNonPositiveRadius(t *testing.T) {
	httpClient := &captureHTTPClient{}
	client := NewClient(WithHTTPClient(httpClient))
	if _, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 0, "restaurant"); err == nil {
		t.Fatal("expected error for zero radius")
	}
	if httpClient.doCalls != 0 {
		t.Fatalf("expected no request, got %d", httpClient.doCalls)
	}
}

func TestSearchNearbyUsesCache(t *testing.T) {
	httpClient := &captureHTTPClient{responseBody: twoVenues}
	cache := newMemoryCache()
	client := NewClient(WithHTTPClient(httpClient), WithCache(cache, time.Minute))
	coordinate := domain.Coordinate{Latitude: 40.4093, Longitude: 49.8671}

	if _, err := client.SearchNearby(context.Background(), coordinate, 3000, "restaurant"); err != nil {
		t.Fatalf("first search: %v", err)
	}
	venues, err := client.SearchNearby(context.Background(), coordinate, 3000, "restaurant")
	if err != nil {
		t.Fatalf("second search: %v", err)
	}
	if httpClient.doCalls != 1 {
		t.Fatalf("expected one upstream call, got %d", httpClient.doCalls)
	}
	if len(venues) != 2 {
		t.Fatalf("expected cached venues, got %d", len(venues))
	}
	if len(cache.ttls) != 1 {
		t.Fatalf("expected one cache entry, got %v", cache.ttls)
	}
	for key, ttl := range cache.ttls {
		if !strings.HasPrefix(key, "nearby:search:") || !strings.HasSuffix(key, ":location=40.4093,49.8671&radius=3000&type=restaurant") {
			t.Fatalf("unexpected cache key %q", key)
		}
		if ttl != time.Minute {
			t.Fatalf("expected ttl 1m, got %v", ttl)
		}
	}
}

func TestSearchNearbyCacheIsScopedToEndpoint(t *testing.T) {
	cache := newMemoryCache()
	coordinate := domain.Coordinate{Latitude: 40.4093, Longitude: 49.8671}

	staging := &captureHTTPClient{responseBody: `{"status":"ZERO_RESULTS","results":[]}`}
	stagingClient := NewClient(WithHTTPClient(staging), WithEndpoint("https://staging.example/nearby"), WithCache(cache, time.Minute))
	if _, err := stagingClient.SearchNearby(context.Background(), coordinate, 3000, "restaurant"); err != nil {
		t.Fatalf("staging search: %v", err)
	}

	production := &captureHTTPClient{responseBody: twoVenues}
	productionClient := NewClient(WithHTTPClient(production), WithCache(cache, time.Minute))
	venues, err := productionClient.SearchNearby(context.Background(), coordinate, 3000, "restaurant")
	if err != nil {
		t.Fatalf("production search: %v", err)
	}
	if production.doCalls != 1 || len(venues) != 2 {
		t.Fatalf("expected production to miss the staging entry, calls=%d venues=%d", production.doCalls, len(venues))
	}
	if len(cache.entries) != 2 {
		t.Fatalf("expected one entry per endpoint, got %d", len(cache.entries))
	}
}

func TestSetAPIKeyDuringSearches(t *testing.T) {
	client := NewClient(WithHTTPClient(&lockedHTTPClient{}))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			client.SetAPIKey("rotated-key")
		}()
		go func() {
			defer wg.Done()
			_, _ = client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 1, Longitude: 2}, 3000, "restaurant")
		}()
	}
	wg.Wait()

	httpClient := &captureHTTPClient{}
	client = NewClient(WithHTTPClient(httpClient), WithAPIKey("old"))
	client.SetAPIKey(" new-key ")
	if _, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 1, Longitude: 2}, 3000, "restaurant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := httpClient.request.URL.Query().Get("key"); got != "new-key" {
		t.Fatalf("expected rotated key, got %q", got)
	}
}

type lockedHTTPClient struct {
	mu    sync.Mutex
	inner captureHTTPClient
}

func (c *lockedHTTPClient) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inner.Do(req)
}

func TestSearchNearbyIgnoresCacheFailures(t *testing.T) {
	httpClient := &captureHTTPClient{responseBody: twoVenues}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	client := NewClient(WithHTTPClient(httpClient), WithCache(cache, 0))

	venues, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 1, Longitude: 2}, 3000, "restaurant")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(venues) != 2 || httpClient.doCalls != 1 {
		t.Fatalf("expected upstream fallback, venues=%d calls=%d", len(venues), httpClient.doCalls)
	}
}

func TestSearchNearbyDoesNotCacheFailures(t *testing.T) {
	cache := newMemoryCache()
	client := NewClient(
		WithHTTPClient(&captureHTTPClient{responseBody: `{"status":"OVER_QUERY_LIMIT"}`}),
		WithCache(cache, time.Minute),
	)
	if _, err := client.SearchNearby(context.Background(), domain.Coordinate{}, 3000, "restaurant"); err == nil {
		t.Fatal("expected provider status error")
	}
	if len(cache.entries) != 0 {
		t.Fatalf("expected nothing cached, got %v", cache.entries)
	}
}

func TestVerboseTraceRedactsKey(t *testing.T) {
	trace := &bytes.Buffer{}
	client := NewClient(
		WithHTTPClient(&captureHTTPClient{}),
		WithAPIKey("secret-key"),
		WithVerboseOutput(trace),
	)
	if _, err := client.SearchNearby(context.Background(), domain.Coordinate{Latitude: 1, Longitude: 2}, 3000, "restaurant"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := trace.String()
	if !strings.Contains(out, "[http] -> GET") || !strings.Contains(out, "key=REDACTED") {
		t.Fatalf("unexpected trace output %q", out)
	}
	if strings.Contains(out, "secret-key") {
		t.Fatalf("expected key to be redacted in trace, got %q", out)
	}
}
