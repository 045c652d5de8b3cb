package places

import (
	"context"
	"time"

	"github.com/mekedron/nearby/internal/domain"
)

// API describes the nearby search used by the map screen.
type API interface {
	SearchNearby(ctx context.Context, coordinate domain.Coordinate, radiusMeters int, category string) ([]domain.Venue, error)
}

// ResponseCache stores raw nearby-search bodies by request key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}
