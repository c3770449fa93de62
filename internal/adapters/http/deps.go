package http

import (
	"github.com/nats-io/nats.go"

	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/core/usecases"
)

// Dependencies carries everything the diagnostics handlers need.
type Dependencies struct {
	Live          *usecases.LiveService
	Tracker       *usecases.TrackerService
	Notifications *usecases.NotificationService
	POIs          *usecases.POIService
	Profile       ports.ProfileProvider
	Tokens        ports.TokenSource
	Cache         ports.CacheService // nil when valkey is disabled
	NATS          *nats.Conn         // nil when nats is disabled
}
