package domain

import "fmt"

// Bounds is a geographic bounding box in WGS-84 degrees.
type Bounds struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Key returns the canonical cache key for the viewport: each bound rounded to
// 4 decimal places. Two viewports that round to the same tuple address the
// same cache entry.
func (b Bounds) Key() string {
	return fmt.Sprintf("%.4f:%.4f:%.4f:%.4f", b.West, b.South, b.East, b.North)
}

// Contains reports whether p falls inside the box.
func (b Bounds) Contains(p Position) bool {
	return p.Lat >= b.South && p.Lat <= b.North &&
		p.Lon >= b.West && p.Lon <= b.East
}
