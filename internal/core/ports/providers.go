package ports

import (
	"context"

	"github.com/nearyou/nearsync/internal/core/domain"
)

// ShopProvider fetches points of interest inside a viewport. Implementations
// normalize the upstream record shapes into canonical POIs.
type ShopProvider interface {
	ShopsInArea(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error)
}

// PromotionProvider fetches one page of historical promotions.
type PromotionProvider interface {
	Promotions(ctx context.Context, offset, limit int) ([]domain.Promotion, error)
}

// PositionPoller is the degraded update source used when the live channel is
// gone for the session. Positions come most-recent first.
type PositionPoller interface {
	LatestPositions(ctx context.Context) ([]domain.PositionUpdate, error)
}

// TokenSource issues or returns a cached bearer token for the dashboard API
// and the live-channel auth frame.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// ProfileProvider exposes auxiliary per-user dashboard data.
type ProfileProvider interface {
	Profile(ctx context.Context) (*domain.UserProfile, error)
	Stats(ctx context.Context) (*domain.UserStats, error)
}
