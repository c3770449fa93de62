package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"

	"github.com/nearyou/nearsync/internal/core/domain"
	"github.com/nearyou/nearsync/internal/core/ports"
	"github.com/nearyou/nearsync/internal/pkg/geospatial"
	"github.com/nearyou/nearsync/internal/pkg/metrics"
)

// syntheticCategories is the fixed set used by the fallback generator.
var syntheticCategories = []string{
	"ristorante", "bar", "supermercato", "elettronica", "abbigliamento", "shopping",
}

// POIService owns the viewport-keyed POI cache. Entries are keyed by the
// 4-decimal-rounded viewport tuple; a hit requires an exact key match, there
// is no spatial containment check between different keys.
type POIService struct {
	shops ports.ShopProvider
	cache ports.CacheService // optional L2, nil disables it
	ttl   int                // L2 TTL in seconds

	syntheticCount int
	rnd            *rand.Rand

	mu        sync.Mutex
	viewports map[string][]domain.POI
	order     []string // key insertion order, keeps Nearest deterministic
}

// NewPOIService creates the cache. cache may be nil. syntheticCount is the
// number of POIs the degrade path generates per viewport.
func NewPOIService(shops ports.ShopProvider, cache ports.CacheService, ttlSeconds, syntheticCount int, seed int64) *POIService {
	return &POIService{
		shops:          shops,
		cache:          cache,
		ttl:            ttlSeconds,
		syntheticCount: syntheticCount,
		rnd:            rand.New(rand.NewSource(seed)),
		viewports:      make(map[string][]domain.POI),
	}
}

// GetOrFetch returns the POIs for the viewport, fetching upstream on a cache
// miss. It never fails: when the upstream fetch errors out, a synthetic list
// confined to the bounds is generated and cached so the rest of the pipeline
// always has data to operate on.
func (s *POIService) GetOrFetch(ctx context.Context, bounds domain.Bounds) []domain.POI {
	key := bounds.Key()

	s.mu.Lock()
	if pois, ok := s.viewports[key]; ok {
		s.mu.Unlock()
		metrics.POIFetches.WithLabelValues("memory").Inc()
		return pois
	}
	s.mu.Unlock()

	if pois, ok := s.fromL2(ctx, key); ok {
		metrics.POIFetches.WithLabelValues("l2").Inc()
		return s.store(key, pois)
	}

	pois, err := s.shops.ShopsInArea(ctx, bounds)
	if err != nil {
		slog.Warn("shop fetch failed, generating synthetic POIs",
			"viewport", key, "error", err)
		metrics.POIFetches.WithLabelValues("synthetic").Inc()
		return s.store(key, s.synthesize(bounds))
	}

	metrics.POIFetches.WithLabelValues("upstream").Inc()
	s.toL2(ctx, key, pois)
	return s.store(key, pois)
}

// Nearest resolves the closest known POI to p by linear scan over every
// loaded viewport, not just the last queried one. Ties keep the first
// encountered entry.
func (s *POIService) Nearest(p domain.Position) (domain.POI, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		best     domain.POI
		bestDist float64
		found    bool
	)
	for _, key := range s.order {
		for _, poi := range s.viewports[key] {
			d := geospatial.HaversineKm(p.Lat, p.Lon, poi.Lat, poi.Lon)
			if !found || d < bestDist {
				best, bestDist, found = poi, d, true
			}
		}
	}
	return best, found
}

// Count returns the total number of POIs across all cached viewports.
func (s *POIService) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, pois := range s.viewports {
		n += len(pois)
	}
	return n
}

// SyntheticCount returns how many cached POIs are fallback-generated.
func (s *POIService) SyntheticCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, pois := range s.viewports {
		for _, poi := range pois {
			if poi.Synthetic {
				n++
			}
		}
	}
	return n
}

func (s *POIService) store(key string, pois []domain.POI) []domain.POI {
	s.mu.Lock()
	defer s.mu.Unlock()

	// A concurrent fetch for the same key may have won; keep the first list
	// so repeated calls stay idempotent.
	if existing, ok := s.viewports[key]; ok {
		return existing
	}
	s.viewports[key] = pois
	s.order = append(s.order, key)
	return pois
}

func (s *POIService) fromL2(ctx context.Context, key string) ([]domain.POI, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, "pois:"+key)
	if err != nil {
		return nil, false
	}
	var pois []domain.POI
	if err := json.Unmarshal(data, &pois); err != nil {
		return nil, false
	}
	return pois, true
}

func (s *POIService) toL2(ctx context.Context, key string, pois []domain.POI) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(pois); err == nil {
		_ = s.cache.Set(ctx, "pois:"+key, data, s.ttl)
	}
}

// synthesize generates placeholder POIs with randomized positions confined to
// the bounds and categories drawn from the fixed set. Each carries the
// Synthetic provenance flag.
func (s *POIService) synthesize(bounds domain.Bounds) []domain.POI {
	pois := make([]domain.POI, 0, s.syntheticCount)
	for i := 0; i < s.syntheticCount; i++ {
		cat := syntheticCategories[s.rnd.Intn(len(syntheticCategories))]
		pois = append(pois, domain.POI{
			ID:        fmt.Sprintf("synthetic-%d", i+1),
			Name:      fmt.Sprintf("Negozio %d", i+1),
			Category:  cat,
			Lat:       bounds.South + s.rnd.Float64()*(bounds.North-bounds.South),
			Lon:       bounds.West + s.rnd.Float64()*(bounds.East-bounds.West),
			Synthetic: true,
		})
	}
	return pois
}
