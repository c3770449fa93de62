package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nearyou/nearsync/internal/core/domain"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/pkg/geospatial"
)

// TrackerService owns the current position and the session route. Each
// inbound update appends to the route, decides whether the POI cache must be
// refreshed, and resolves proximity notifications for message payloads.
type TrackerService struct {
	pois   *POIService
	notifs *NotificationService
	events ports.EventPublisher // optional

	viewportRadiusM float64
	minPOIs         int

	mu         sync.Mutex
	current    *domain.Position
	route      []domain.Position
	distanceKm float64
	lastBounds *domain.Bounds
}

// NewTrackerService creates a tracker. viewportRadiusM is the half-extent of
// the bounding box fetched around the rider; minPOIs is the count below which
// a refresh is forced regardless of bounds.
func NewTrackerService(pois *POIService, notifs *NotificationService, events ports.EventPublisher, viewportRadiusM float64, minPOIs int) *TrackerService {
	return &TrackerService{
		pois:            pois,
		notifs:          notifs,
		events:          events,
		viewportRadiusM: viewportRadiusM,
		minPOIs:         minPOIs,
	}
}

// OnUpdate processes one inbound position update. Updates arrive strictly in
// order from the live channel or the polling fallback, so route append order
// is arrival order.
func (s *TrackerService) OnUpdate(ctx context.Context, u domain.PositionUpdate) {
	pos := u.Position()

	s.mu.Lock()
	if len(s.route) > 0 {
		prev := s.route[len(s.route)-1]
		s.distanceKm += geospatial.HaversineKm(prev.Lat, prev.Lon, pos.Lat, pos.Lon)
	}
	s.current = &pos
	s.route = append(s.route, pos)
	refresh := s.lastBounds == nil || !s.lastBounds.Contains(pos)
	s.mu.Unlock()

	// Refetch only when the rider left the last viewport or too few POIs are
	// known; otherwise every update would hit upstream.
	if refresh || s.pois.Count() < s.minPOIs {
		bounds := s.viewportAround(pos)
		s.pois.GetOrFetch(ctx, bounds)
		s.mu.Lock()
		s.lastBounds = &bounds
		s.mu.Unlock()
	}

	// Proximity notifications come only from upstream-supplied messages,
	// never from geometry alone.
	if u.Message != "" && !s.notifs.Has(u.Message) {
		n := domain.Notification{
			ID:        uuid.NewString(),
			Message:   u.Message,
			Timestamp: time.Now(),
			Category:  "shopping",
		}
		if poi, ok := s.pois.Nearest(pos); ok {
			n.ShopName = poi.Name
			n.Category = InferCategory(poi.Name)
		}
		s.notifs.Add(ctx, n)
	}

	if s.events != nil {
		_ = s.events.PublishPositionUpdate(ctx, u)
	}
}

// SetViewport overrides the refresh viewport, e.g. when a UI reports its
// visible map area.
func (s *TrackerService) SetViewport(bounds domain.Bounds) {
	s.mu.Lock()
	s.lastBounds = &bounds
	s.mu.Unlock()
}

// CurrentPosition returns the latest position, or false before the first
// update.
func (s *TrackerService) CurrentPosition() (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.Position{}, false
	}
	return *s.current, true
}

// Route returns a copy of the session route in arrival order.
func (s *TrackerService) Route() []domain.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Position, len(s.route))
	copy(out, s.route)
	return out
}

// RouteDistanceKm returns the cumulative great-circle length of the route.
func (s *TrackerService) RouteDistanceKm() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distanceKm
}

// ClearRoute drops the recorded route and its distance. The current position
// is kept.
func (s *TrackerService) ClearRoute() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = nil
	s.distanceKm = 0
}

func (s *TrackerService) viewportAround(p domain.Position) domain.Bounds {
	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(p.Lat, p.Lon, s.viewportRadiusM)
	return domain.Bounds{West: minLon, South: minLat, East: maxLon, North: maxLat}
}
