package locator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mekedron/nearby/internal/domain"
	"github.com/mekedron/nearby/internal/permission"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultMaximumAge = time.Second
)

var (
	// ErrPermissionDenied marks a position request made without location access.
	ErrPermissionDenied = errors.New("location permission denied")
	// ErrLocationTimeout is returned when no fix arrives before the timeout.
	ErrLocationTimeout = errors.New("location request timed out")
	// ErrLocationUnavailable is returned when the position source cannot produce a fix.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// FixOptions mirrors the options passed to a single-fix position request.
type FixOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// Source produces one device position reading.
type Source interface {
	CurrentFix(ctx context.Context, opts FixOptions) (domain.Fix, error)
}

// Fetcher obtains one-shot positions behind a permission gate.
type Fetcher struct {
	gate   permission.Provider
	source Source
	opts   FixOptions
	now    func() time.Time

	mu   sync.Mutex
	last *domain.Fix
}

// Option applies Fetcher options.
type Option func(*Fetcher)

// WithTimeout overrides the fix timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.opts.Timeout = timeout
		}
	}
}

// WithMaximumAge overrides how old a reused fix may be.
func WithMaximumAge(age time.Duration) Option {
	return func(f *Fetcher) {
		if age >= 0 {
			f.opts.MaximumAge = age
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// NewFetcher creates a fetcher requesting low-accuracy fixes.
func NewFetcher(gate permission.Provider, source Source, opts ...Option) *Fetcher {
	f := &Fetcher{
		gate:   gate,
		source: source,
		opts: FixOptions{
			HighAccuracy: false,
			Timeout:      defaultTimeout,
			MaximumAge:   defaultMaximumAge,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Options returns the fix options used for each request.
func (f *Fetcher) Options() FixOptions {
	return f.opts
}

// CurrentPosition returns the device position. ok is false, with a nil
// error, when location access is not granted; the gate's own alert is the
// only feedback in that case.
func (f *Fetcher) CurrentPosition(ctx context.Context) (domain.Coordinate, bool, error) {
	state, err := f.gate.CheckOrRequest(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return domain.Coordinate{}, false, err
		}
		return domain.Coordinate{}, false, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	if !state.Granted() {
		return domain.Coordinate{}, false, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last != nil && f.last.Age(f.now()) <= f.opts.MaximumAge {
		return f.last.Coordinate, true, nil
	}

	fix, err := f.requestFix(ctx)
	if err != nil {
		return domain.Coordinate{}, false, err
	}
	f.last = &fix
	return fix.Coordinate, true, nil
}

func (f *Fetcher) requestFix(ctx context.Context) (domain.Fix, error) {
	fixCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	fix, err := f.source.CurrentFix(fixCtx, f.opts)
	if err != nil {
		if errors.Is(err, ErrLocationTimeout) {
			return domain.Fix{}, err
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return domain.Fix{}, fmt.Errorf("%w after %s", ErrLocationTimeout, f.opts.Timeout)
		}
		if errors.Is(err, context.Canceled) {
			return domain.Fix{}, err
		}
		return domain.Fix{}, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}
	if !fix.Coordinate.Valid() {
		return domain.Fix{}, fmt.Errorf("%w: coordinate out of range (%f, %f)", ErrLocationUnavailable, fix.Coordinate.Latitude, fix.Coordinate.Longitude)
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = f.now()
	}
	return fix, nil
}
