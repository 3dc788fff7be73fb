package models

import (
	"fmt"
	"math"

	"github.com/google/uuid"
)

// LngLat is a WGS84 coordinate. X is longitude, Y is latitude — always in
// that order. Use this type at every boundary instead of bare float pairs;
// transposed coordinates have historically been the most common geometry
// bug in this product.
type LngLat struct {
	Lng float64 `json:"x"`
	Lat float64 `json:"y"`
}

// Validate checks that both components are finite and within WGS84 range.
func (c LngLat) Validate() error {
	if math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) || math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) {
		return fmt.Errorf("coordinate components must be finite, got (%v, %v)", c.Lng, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", c.Lng)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", c.Lat)
	}
	return nil
}

// Bounds is a lng/lat axis-aligned bounding box. Containment is inclusive
// of the boundary on all four edges.
type Bounds struct {
	MinLng float64 `json:"min_lng"`
	MinLat float64 `json:"min_lat"`
	MaxLng float64 `json:"max_lng"`
	MaxLat float64 `json:"max_lat"`
}

// Validate checks that the box is well-formed (min <= max on both axes and
// all corners are valid coordinates).
func (b Bounds) Validate() error {
	if err := (LngLat{Lng: b.MinLng, Lat: b.MinLat}).Validate(); err != nil {
		return fmt.Errorf("invalid min corner: %w", err)
	}
	if err := (LngLat{Lng: b.MaxLng, Lat: b.MaxLat}).Validate(); err != nil {
		return fmt.Errorf("invalid max corner: %w", err)
	}
	if b.MinLng > b.MaxLng {
		return fmt.Errorf("min longitude %v greater than max %v", b.MinLng, b.MaxLng)
	}
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("min latitude %v greater than max %v", b.MinLat, b.MaxLat)
	}
	return nil
}

// Contains reports whether the coordinate lies within the box, boundary
// included.
func (b Bounds) Contains(c LngLat) bool {
	return c.Lng >= b.MinLng && c.Lng <= b.MaxLng && c.Lat >= b.MinLat && c.Lat <= b.MaxLat
}

// LineString is an ordered coordinate sequence with at least two vertices.
type LineString []LngLat

// Validate checks vertex count and each coordinate.
func (l LineString) Validate() error {
	if len(l) < 2 {
		return fmt.Errorf("line requires at least 2 coordinates, got %d", len(l))
	}
	for i, c := range l {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("coordinate %d: %w", i, err)
		}
	}
	return nil
}

// PolygonRings is a polygon as a list of rings: the first ring is the
// outer boundary, any further rings are holes. Every ring must be closed
// (first coordinate equals last) and carry at least four coordinates.
type PolygonRings [][]LngLat

// Validate checks ring structure and each coordinate.
func (p PolygonRings) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("polygon requires at least one ring")
	}
	for i, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("ring %d requires at least 4 coordinates, got %d", i, len(ring))
		}
		if ring[0] != ring[len(ring)-1] {
			return fmt.Errorf("ring %d is not closed", i)
		}
		for j, c := range ring {
			if err := c.Validate(); err != nil {
				return fmt.Errorf("ring %d coordinate %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// PointFeature is one stored point as returned by viewport queries.
type PointFeature struct {
	CellID     uuid.UUID `json:"cell_id"`
	Coordinate LngLat    `json:"coordinate"`
}
