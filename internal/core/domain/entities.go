package domain

import (
	"time"
)

// Position is a single WGS-84 reading of the rider. Immutable once recorded.
type Position struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// PositionUpdate is one inbound event from the live channel or the polling
// fallback. Message, when non-empty, is an upstream-generated proximity
// message and is the only trigger for notifications.
type PositionUpdate struct {
	UserID    int64   `json:"user_id"`
	Lat       float64 `json:"latitude"`
	Lon       float64 `json:"longitude"`
	Message   string  `json:"message,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Position returns the update's coordinate pair.
func (u PositionUpdate) Position() Position {
	return Position{Lat: u.Lat, Lon: u.Lon}
}

// POI is a point of interest (shop) in canonical form. Upstream records come
// in heterogeneous shapes and are normalized before they enter the engine.
// Synthetic marks fallback-generated data so consumers can tell it apart from
// real upstream results.
type POI struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Category  string  `json:"category"`
	Lat       float64 `json:"latitude"`
	Lon       float64 `json:"longitude"`
	Synthetic bool    `json:"synthetic,omitempty"`
}

// Notification is a proximity message shown to the rider.
// No two notifications in the active store share the same Message.
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ShopName  string    `json:"shop_name,omitempty"`
	Category  string    `json:"category"`
}

// Promotion is one row of the historical promotions feed
// (GET /api/user/promotions).
type Promotion struct {
	EventID   int64     `json:"event_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	ShopName  string    `json:"shop_name"`
}

// UserProfile mirrors GET /api/user/profile.
type UserProfile struct {
	UserID     int64  `json:"user_id"`
	Age        int    `json:"age"`
	Profession string `json:"profession"`
	Interests  string `json:"interests"`
}

// UserStats mirrors GET /api/user/stats.
type UserStats struct {
	TotalEvents   int `json:"total_events"`
	ActiveDays    int `json:"active_days"`
	UniqueShops   int `json:"unique_shops"`
	Notifications int `json:"notifications"`
}
