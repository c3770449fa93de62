package ports

import (
	"context"
	"errors"

	"github.com/nearyou/nearsync/internal/core/domain"
)

// ErrCacheMiss is returned by CacheService.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheService is an optional second-level cache behind the in-memory stores.
// A nil CacheService is valid everywhere it is accepted.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher broadcasts engine events to external observers (UI banners,
// ops tooling). Engine correctness never depends on delivery.
type EventPublisher interface {
	PublishStateChange(ctx context.Context, from, to domain.ConnState) error
	PublishPositionUpdate(ctx context.Context, u domain.PositionUpdate) error
	PublishNotification(ctx context.Context, n domain.Notification) error
}

// LiveChannel is one established message-framed connection to the position
// stream. ReadMessage blocks until the next frame or a closure error.
type LiveChannel interface {
	WriteJSON(v any) error
	ReadMessage() ([]byte, error)
	// Close sends a close frame with the given code and tears the
	// connection down. Code 1000 marks an intentional disconnect.
	Close(code int) error
}

// ChannelDialer establishes live channels.
type ChannelDialer interface {
	Dial(ctx context.Context) (LiveChannel, error)
}
