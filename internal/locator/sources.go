package locator

import (
	"context"
	"strings"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

// StaticSource always reports the same coordinate.
type StaticSource struct {
	Coordinate domain.Coordinate
	Now        func() time.Time
}

// CurrentFix implements Source.
func (s StaticSource) CurrentFix(ctx context.Context, _ FixOptions) (domain.Fix, error) {
	if err := ctx.Err(); err != nil {
		return domain.Fix{}, err
	}
	return domain.Fix{Coordinate: s.Coordinate, Timestamp: nowOr(s.Now)}, nil
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Get(ctx context.Context, address string) (domain.Coordinate, error)
}

// AddressSource takes fixes by geocoding a fixed address.
type AddressSource struct {
	geocoder Geocoder
	address  string
	now      func() time.Time
}

// NewAddressSource creates a source bound to one address.
func NewAddressSource(geocoder Geocoder, address string) *AddressSource {
	return &AddressSource{geocoder: geocoder, address: strings.TrimSpace(address), now: time.Now}
}

// CurrentFix implements Source.
func (s *AddressSource) CurrentFix(ctx context.Context, _ FixOptions) (domain.Fix, error) {
	coordinate, err := s.geocoder.Get(ctx, s.address)
	if err != nil {
		return domain.Fix{}, err
	}
	return domain.Fix{Coordinate: coordinate, Timestamp: nowOr(s.now)}, nil
}

// IPLocator resolves the caller's approximate position from its public address.
type IPLocator interface {
	Locate(ctx context.Context) (domain.Coordinate, error)
}

// IPSource takes coarse fixes from IP geolocation. It satisfies low-accuracy
// requests only.
type IPSource struct {
	locator IPLocator
	now     func() time.Time
}

// NewIPSource creates an IP geolocation source.
func NewIPSource(locator IPLocator) *IPSource {
	return &IPSource{locator: locator, now: time.Now}
}

// CurrentFix implements Source.
func (s *IPSource) CurrentFix(ctx context.Context, opts FixOptions) (domain.Fix, error) {
	if opts.HighAccuracy {
		return domain.Fix{}, ErrLocationUnavailable
	}
	coordinate, err := s.locator.Locate(ctx)
	if err != nil {
		return domain.Fix{}, err
	}
	return domain.Fix{Coordinate: coordinate, Timestamp: nowOr(s.now)}, nil
}

func nowOr(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
