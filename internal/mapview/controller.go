package mapview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/mekedron/nearby/internal/domain"
	"github.com/mekedron/nearby/internal/locator"
)

// ErrUnknownMarker is returned for marker indices outside the venue list.
var ErrUnknownMarker = errors.New("unknown marker")

// Locator produces a one-shot position; ok is false when access is not granted.
type Locator interface {
	CurrentPosition(ctx context.Context) (domain.Coordinate, bool, error)
}

// Searcher queries venues around a coordinate.
type Searcher interface {
	SearchNearby(ctx context.Context, coordinate domain.Coordinate, radiusMeters int, category string) ([]domain.Venue, error)
}

// CardLayout sizes the result card carousel.
type CardLayout struct {
	Width   float64
	Spacing float64
}

// Config is the immutable screen configuration.
type Config struct {
	DefaultRegion domain.Region
	SearchRadius  int
	Category      string
	Card          CardLayout
}

// DefaultConfig returns the stock screen configuration.
func DefaultConfig() Config {
	return Config{
		DefaultRegion: domain.Region{
			Latitude:       40.4093,
			Longitude:      49.8671,
			LatitudeDelta:  0.01,
			LongitudeDelta: 0.01,
		},
		SearchRadius: 3000,
		Category:     "restaurant",
		Card:         CardLayout{Width: 280, Spacing: 20},
	}
}

// Controller owns the map screen state and runs the mount sequence once.
type Controller struct {
	cfg     Config
	locator Locator
	places  Searcher
	logger  *slog.Logger

	once    sync.Once
	outcome Outcome

	mu          sync.Mutex
	state       State
	unmounted   bool
	cancel      context.CancelFunc
	subscribers map[int]func(State)
	nextSubID   int
}

// Option applies Controller options.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.state.SessionID = id
		}
	}
}

// NewController creates a controller in the loading phase.
func NewController(cfg Config, locator Locator, places Searcher, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg,
		locator: locator,
		places:  places,
		logger:  slog.Default(),
		state: State{
			SessionID: uuid.NewString(),
			Region:    cfg.DefaultRegion,
			Venues:    []domain.Venue{},
			Loading:   true,
			Phase:     PhaseLoading,
		},
		subscribers: map[int]func(State){},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("session", c.state.SessionID)
	return c
}

// Config returns the controller configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// State returns a snapshot of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn for state changes and returns a function removing it.
func (c *Controller) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

// Mount runs locate, region update and nearby search in sequence. Only the
// first call does work; later calls return the first outcome.
func (c *Controller) Mount(ctx context.Context) Outcome {
	c.once.Do(func() {
		c.outcome = c.run(ctx)
	})
	return c.outcome
}

// Unmount cancels an in-flight mount; late results are discarded.
func (c *Controller) Unmount() {
	c.mu.Lock()
	c.unmounted = true
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) run(parent context.Context) Outcome {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return Outcome{Kind: OutcomeCanceled, Err: context.Canceled}
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	c.logger.Debug("mount started", "radius", c.cfg.SearchRadius, "category", c.cfg.Category)

	coordinate, ok, err := c.locator.CurrentPosition(ctx)
	if err != nil {
		return c.finish(c.classifyLocationError(ctx, err), err, nil)
	}
	if !ok {
		return c.finish(OutcomePermissionDenied, nil, nil)
	}

	if !c.update(func(s *State) {
		s.Region = s.Region.WithCenter(coordinate)
	}) {
		return Outcome{Kind: OutcomeCanceled, Err: context.Canceled}
	}
	c.logger.Debug("region updated", "latitude", coordinate.Latitude, "longitude", coordinate.Longitude)

	venues, err := c.places.SearchNearby(ctx, coordinate, c.cfg.SearchRadius, c.cfg.Category)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return c.finish(OutcomeCanceled, err, nil)
		}
		return c.finish(OutcomeNetworkError, err, nil)
	}
	if len(venues) == 0 {
		return c.finish(OutcomeEmpty, nil, venues)
	}
	return c.finish(OutcomeResults, nil, venues)
}

func (c *Controller) classifyLocationError(ctx context.Context, err error) OutcomeKind {
	switch {
	case errors.Is(err, locator.ErrLocationTimeout):
		return OutcomeLocationTimeout
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeLocationUnavailable
	}
}

// finish leaves the loading phase. Every outcome clears the loading flag.
func (c *Controller) finish(kind OutcomeKind, err error, venues []domain.Venue) Outcome {
	outcome := Outcome{Kind: kind, Err: err}
	applied := c.update(func(s *State) {
		s.Loading = false
		s.Venues = make([]domain.Venue, len(venues))
		copy(s.Venues, venues)
		s.Phase = PhaseReadyEmpty
		if len(venues) > 0 {
			s.Phase = PhaseReadyWithResults
		}
		s.Failure = nil
		if kind.Failed() {
			s.Failure = &Failure{Kind: kind}
			if err != nil {
				s.Failure.Message = err.Error()
			}
		}
	})
	if !applied {
		c.logger.Debug("discarding result after unmount", "outcome", kind)
		return Outcome{Kind: OutcomeCanceled, Err: context.Canceled}
	}

	switch kind {
	case OutcomeResults, OutcomeEmpty:
		c.logger.Info("nearby venues loaded", "count", len(venues))
	case OutcomePermissionDenied:
		c.logger.Info("location access not granted; keeping default region")
	case OutcomeCanceled:
		c.logger.Debug("mount canceled")
	default:
		c.logger.Warn("mount failed", "outcome", kind, "error", err)
	}
	return outcome
}

// update applies fn unless the screen has been unmounted, then notifies
// subscribers outside the lock.
func (c *Controller) update(fn func(*State)) bool {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return false
	}
	fn(&c.state)
	snapshot := c.state.clone()
	subscribers := make([]func(State), 0, len(c.subscribers))
	for _, subscriber := range c.subscribers {
		subscribers = append(subscribers, subscriber)
	}
	c.mu.Unlock()

	for _, subscriber := range subscribers {
		subscriber(snapshot)
	}
	return true
}

// OnMarkerPress returns the carousel scroll offset for the card matching
// the pressed marker. It does not scroll anything itself.
func (c *Controller) OnMarkerPress(index int) (float64, error) {
	c.mu.Lock()
	count := len(c.state.Venues)
	c.mu.Unlock()
	if index < 0 || index >= count {
		return 0, fmt.Errorf("%w: index %d (have %d venues)", ErrUnknownMarker, index, count)
	}
	return CardOffset(index, c.cfg.Card), nil
}

// CardOffset is the horizontal scroll position of card index.
func CardOffset(index int, layout CardLayout) float64 {
	return float64(index)*layout.Width + float64(index)*layout.Spacing
}
