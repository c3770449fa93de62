package geospatial

import (
	"math"
	"testing"
)

func TestHaversineKm_ZeroForSamePoint(t *testing.T) {
	points := [][2]float64{
		{0, 0},
		{45.46, 9.19},
		{-33.8688, 151.2093},
		{90, 0},
	}
	for _, p := range points {
		if d := HaversineKm(p[0], p[1], p[0], p[1]); d != 0 {
			t.Errorf("HaversineKm(%v, %v, same) = %f, want 0", p[0], p[1], d)
		}
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Duomo di Milano to Castello Sforzesco, roughly 1 km
	d := HaversineKm(45.4642, 9.1900, 45.4705, 9.1794)
	if d < 0.9 || d > 1.3 {
		t.Errorf("Duomo-Castello distance = %f km, want ~1.1", d)
	}
}

func TestRouteDistanceKm_ShortRoutes(t *testing.T) {
	if d := RouteDistanceKm(nil); d != 0 {
		t.Errorf("empty route distance = %f, want 0", d)
	}
	if d := RouteDistanceKm([][2]float64{{45.46, 9.19}}); d != 0 {
		t.Errorf("single-point route distance = %f, want 0", d)
	}
}

func TestRouteDistanceKm_SumsSegmentsInOrder(t *testing.T) {
	route := [][2]float64{
		{45.4600, 9.1900},
		{45.4642, 9.1900},
		{45.4642, 9.1794},
		{45.4705, 9.1850},
	}

	var sum float64
	for i := 1; i < len(route); i++ {
		sum += HaversineKm(route[i-1][0], route[i-1][1], route[i][0], route[i][1])
	}

	got := RouteDistanceKm(route)
	if math.Abs(got-sum) > 1e-12 {
		t.Errorf("RouteDistanceKm = %f, want %f", got, sum)
	}

	// Idempotent given the same route
	if again := RouteDistanceKm(route); again != got {
		t.Errorf("recomputation differs: %f vs %f", again, got)
	}
}

func TestBoundingBox_ContainsCenter(t *testing.T) {
	minLat, minLon, maxLat, maxLon := BoundingBox(45.46, 9.19, 500)
	if minLat >= 45.46 || maxLat <= 45.46 || minLon >= 9.19 || maxLon <= 9.19 {
		t.Errorf("box (%f,%f)-(%f,%f) does not contain center", minLat, minLon, maxLat, maxLon)
	}
}
