package geospatial

import "math"

const earthRadiusKm = 6371.0

// HaversineKm calculates the great-circle distance in kilometers between two
// points given in WGS-84 degrees.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// RouteDistanceKm sums the great-circle lengths of consecutive segments of a
// route given as (lat, lon) pairs. Returns 0 for fewer than 2 points.
func RouteDistanceKm(points [][2]float64) float64 {
	if len(points) < 2 {
		return 0
	}
	var total float64
	for i := 1; i < len(points); i++ {
		total += HaversineKm(points[i-1][0], points[i-1][1], points[i][0], points[i][1])
	}
	return total
}

// BoundingBox returns a box around a point with the given radius in meters.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / 111320.0
	lonDelta := radiusMeters / (111320.0 * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
