package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nearyou/nearsync/internal/core/domain"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/core/usecases"
)

// --- Mock ShopProvider ---

type mockShopProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error)
}

func (m *mockShopProvider) ShopsInArea(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fn != nil {
		return m.fn(ctx, bounds)
	}
	return nil, nil
}

func (m *mockShopProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Mock CacheService ---

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, ports.ErrCacheMiss
}

func (m *mapCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Tests ---

var milanBounds = domain.Bounds{West: 9.18, South: 45.45, East: 9.21, North: 45.48}

func TestPOIService_CacheIdempotence(t *testing.T) {
	shops := &mockShopProvider{
		fn: func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
			return []domain.POI{{ID: "1", Name: "Bar Luna", Category: "bar", Lat: 45.46, Lon: 9.19}}, nil
		},
	}
	svc := usecases.NewPOIService(shops, nil, 300, 10, 1)

	first := svc.GetOrFetch(context.Background(), milanBounds)

	// Sub-rounding jitter must hit the same cache entry.
	jittered := domain.Bounds{
		West:  milanBounds.West + 0.00001,
		South: milanBounds.South - 0.00001,
		East:  milanBounds.East + 0.00001,
		North: milanBounds.North - 0.00001,
	}
	second := svc.GetOrFetch(context.Background(), jittered)

	if shops.callCount() != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", shops.callCount())
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Errorf("cache hit returned different list: %v vs %v", first, second)
	}
}

func TestPOIService_DistinctViewportsFetchSeparately(t *testing.T) {
	shops := &mockShopProvider{}
	svc := usecases.NewPOIService(shops, nil, 300, 10, 1)

	svc.GetOrFetch(context.Background(), milanBounds)
	svc.GetOrFetch(context.Background(), domain.Bounds{West: 9.30, South: 45.50, East: 9.33, North: 45.53})

	if shops.callCount() != 2 {
		t.Errorf("expected 2 upstream fetches, got %d", shops.callCount())
	}
}

func TestPOIService_SyntheticFallback(t *testing.T) {
	shops := &mockShopProvider{
		fn: func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
			return nil, errors.New("upstream down")
		},
	}
	svc := usecases.NewPOIService(shops, nil, 300, 10, 42)

	pois := svc.GetOrFetch(context.Background(), milanBounds)

	if len(pois) != 10 {
		t.Fatalf("expected 10 synthetic POIs, got %d", len(pois))
	}
	for _, poi := range pois {
		if !poi.Synthetic {
			t.Errorf("POI %s missing synthetic provenance flag", poi.ID)
		}
		if !milanBounds.Contains(domain.Position{Lat: poi.Lat, Lon: poi.Lon}) {
			t.Errorf("synthetic POI %s at (%f, %f) outside requested bounds", poi.ID, poi.Lat, poi.Lon)
		}
		if poi.Category == "" {
			t.Errorf("synthetic POI %s has no category", poi.ID)
		}
	}
	if svc.SyntheticCount() != 10 {
		t.Errorf("SyntheticCount = %d, want 10", svc.SyntheticCount())
	}

	// The degraded list is cached like a real one: no refetch storm.
	svc.GetOrFetch(context.Background(), milanBounds)
	if shops.callCount() != 1 {
		t.Errorf("expected 1 upstream attempt, got %d", shops.callCount())
	}
}

func TestPOIService_SecondLevelCacheSurvivesRestart(t *testing.T) {
	cache := newMapCache()
	shops := &mockShopProvider{
		fn: func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
			return []domain.POI{{ID: "7", Name: "SuperMarket Esselunga", Category: "supermercato", Lat: 45.47, Lon: 9.20}}, nil
		},
	}

	first := usecases.NewPOIService(shops, cache, 300, 10, 1)
	first.GetOrFetch(context.Background(), milanBounds)

	// A fresh engine instance sharing the cache must not refetch.
	second := usecases.NewPOIService(shops, cache, 300, 10, 1)
	pois := second.GetOrFetch(context.Background(), milanBounds)

	if shops.callCount() != 1 {
		t.Fatalf("expected 1 upstream fetch across instances, got %d", shops.callCount())
	}
	if len(pois) != 1 || pois[0].Name != "SuperMarket Esselunga" {
		t.Errorf("unexpected POIs from second level: %v", pois)
	}
}

func TestPOIService_Nearest(t *testing.T) {
	shops := &mockShopProvider{
		fn: func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
			return []domain.POI{
				{ID: "far", Name: "TechStore", Lat: 45.48, Lon: 9.21},
				{ID: "near", Name: "Pizzeria Da Mario", Lat: 45.4601, Lon: 9.1901},
				{ID: "mid", Name: "Bar Luna", Lat: 45.47, Lon: 9.20},
			}, nil
		},
	}
	svc := usecases.NewPOIService(shops, nil, 300, 10, 1)

	if _, ok := svc.Nearest(domain.Position{Lat: 45.46, Lon: 9.19}); ok {
		t.Fatal("Nearest on empty cache reported a POI")
	}

	svc.GetOrFetch(context.Background(), milanBounds)

	poi, ok := svc.Nearest(domain.Position{Lat: 45.46, Lon: 9.19})
	if !ok {
		t.Fatal("Nearest found nothing")
	}
	if poi.ID != "near" {
		t.Errorf("Nearest = %s, want near", poi.ID)
	}
}

func TestPOIService_Count(t *testing.T) {
	shops := &mockShopProvider{
		fn: func(ctx context.Context, bounds domain.Bounds) ([]domain.POI, error) {
			return []domain.POI{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil
		},
	}
	svc := usecases.NewPOIService(shops, nil, 300, 10, 1)

	if svc.Count() != 0 {
		t.Errorf("Count on empty cache = %d", svc.Count())
	}
	svc.GetOrFetch(context.Background(), milanBounds)
	if svc.Count() != 3 {
		t.Errorf("Count = %d, want 3", svc.Count())
	}
}
