package cli

import (
	"context"
	"io"
	"sync"

	"github.com/mekedron/nearby/internal/config"
	"github.com/mekedron/nearby/internal/domain"
)

type testPlacesAPI struct {
	mu       sync.Mutex
	venues   []domain.Venue
	err      error
	apiKey   string
	calls    int
	requests []domain.Coordinate
	radius   int
	category string
	verbose  io.Writer
}

func (m *testPlacesAPI) SearchNearby(_ context.Context, coordinate domain.Coordinate, radiusMeters int, category string) ([]domain.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.requests = append(m.requests, coordinate)
	m.radius = radiusMeters
	m.category = category
	return m.venues, m.err
}

func (m *testPlacesAPI) SetAPIKey(key string) {
	m.apiKey = key
}

func (m *testPlacesAPI) SetVerboseOutput(out io.Writer) {
	m.verbose = out
}

type testGeocoder struct {
	coordinate domain.Coordinate
	err        error
	addresses  []string
}

func (m *testGeocoder) Get(_ context.Context, address string) (domain.Coordinate, error) {
	m.addresses = append(m.addresses, address)
	return m.coordinate, m.err
}

type testGeoIP struct {
	coordinate domain.Coordinate
	err        error
	calls      int
}

func (m *testGeoIP) Locate(context.Context) (domain.Coordinate, error) {
	m.calls++
	return m.coordinate, m.err
}

type testProfiles struct {
	profile domain.Profile
	err     error
}

func (m *testProfiles) Find(context.Context, string) (domain.Profile, error) {
	if m.err != nil {
		return domain.Profile{}, m.err
	}
	return m.profile, nil
}

type testConfigManager struct {
	cfg     domain.Config
	missing bool
	saves   int
}

func (m *testConfigManager) Path() string {
	return "/tmp/test-config.json"
}

func (m *testConfigManager) Load(context.Context) (domain.Config, error) {
	if m.missing {
		return domain.Config{}, config.ErrConfigNotFound
	}
	return m.cfg, nil
}

func (m *testConfigManager) Save(_ context.Context, cfg domain.Config) error {
	m.cfg = cfg
	m.missing = false
	m.saves++
	return nil
}
