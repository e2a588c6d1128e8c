// Package geo provides the spherical-Earth geometry used by the coverage engine:
// polygon containment over (lon, lat) rings, multi-polygon regions, bounding boxes
// and great-circle distance.
package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/unit"
)

// EarthRadiusKm is the spherical Earth radius used for distances (WGS-84 equatorial).
const EarthRadiusKm = 6378.137

// ErrInvalidRegion is returned by Region.Validate.
var ErrInvalidRegion = errors.New("invalid region")

// boxMargin expands every region bounding box, in degrees.
const boxMargin = 0.5

// Vertex is a polygon corner in degrees. Rings are stored (lon, lat) like GeoJSON.
type Vertex struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ring is an ordered list of vertices. Closing the ring (repeating the first
// vertex) is allowed but not required.
type Ring []Vertex

// Region is a named multi-part area (mainland plus islands or enclaves).
type Region struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Polygons []Ring `json:"polygons"`
}

// Box is a latitude/longitude rectangle in degrees.
type Box struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// DefaultBox is used when a region is unknown.
var DefaultBox = Box{MinLat: 40, MinLon: 20, MaxLat: 80, MaxLon: 170}

// World bounds every valid coordinate.
var World = Box{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}

// Span returns the larger of the latitude and longitude extents in degrees.
func (b Box) Span() float64 {
	return math.Max(b.MaxLat-b.MinLat, b.MaxLon-b.MinLon)
}

// Contains reports whether the point lies inside the box, edges included.
func (b Box) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Validate checks that every ring has at least three vertices and that every
// vertex lies in World. NaN and infinite coordinates are rejected. A nil region
// is valid and contains nothing.
func (r *Region) Validate() error {
	if r == nil {
		return nil
	}
	for i, ring := range r.Polygons {
		if len(ring) < 3 {
			return fmt.Errorf("%w: polygon %d has %d vertices, need at least 3", ErrInvalidRegion, i, len(ring))
		}
		for j, v := range ring {
			if !World.Contains(v.Lat, v.Lon) {
				return fmt.Errorf("%w: polygon %d vertex %d (lon %v, lat %v) outside [-180, 180]x[-90, 90]",
					ErrInvalidRegion, i, j, v.Lon, v.Lat)
			}
		}
	}
	return nil
}

// PointInPolygon is the even-odd ray-casting test. Rings with fewer than three
// vertices contain nothing.
func PointInPolygon(lat, lon float64, ring Ring) bool {
	if len(ring) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i].Lon, ring[i].Lat
		xj, yj := ring[j].Lon, ring[j].Lat
		if (yi > lat) != (yj > lat) && lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// PointInRegion reports whether the point lies in any polygon of the region.
// A nil region contains nothing.
func PointInRegion(lat, lon float64, region *Region) bool {
	if region == nil {
		return false
	}
	for _, ring := range region.Polygons {
		if PointInPolygon(lat, lon, ring) {
			return true
		}
	}
	return false
}

// BoundingBox returns the extent of all vertices of the region expanded by half a
// degree on every side. A nil region, or one without vertices, yields DefaultBox.
func BoundingBox(region *Region) Box {
	if region == nil {
		return DefaultBox
	}
	b := Box{MinLat: 90, MinLon: 180, MaxLat: -90, MaxLon: -180}
	n := 0
	for _, ring := range region.Polygons {
		for _, v := range ring {
			b.MinLat = math.Min(b.MinLat, v.Lat)
			b.MaxLat = math.Max(b.MaxLat, v.Lat)
			b.MinLon = math.Min(b.MinLon, v.Lon)
			b.MaxLon = math.Max(b.MaxLon, v.Lon)
			n++
		}
	}
	if n == 0 {
		return DefaultBox
	}
	b.MinLat -= boxMargin
	b.MinLon -= boxMargin
	b.MaxLat += boxMargin
	b.MaxLon += boxMargin
	return b
}

// BoxRegion builds a single-polygon region covering the given rectangle.
func BoxRegion(key string, minLat, minLon, maxLat, maxLon float64) *Region {
	return &Region{
		Key:  key,
		Name: key,
		Polygons: []Ring{{
			{Lon: minLon, Lat: minLat},
			{Lon: maxLon, Lat: minLat},
			{Lon: maxLon, Lat: maxLat},
			{Lon: minLon, Lat: maxLat},
			{Lon: minLon, Lat: minLat},
		}},
	}
}

// GreatCircleDistance returns the haversine distance in km between two points
// given in degrees. The longitude difference is wrapped into (-180°, 180°].
func GreatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := unit.AngleFromDeg(lat2 - lat1).Rad()
	dLon := unit.AngleFromDeg(lon2 - lon1).Rad()
	if dLon > math.Pi {
		dLon -= 2 * math.Pi
	}
	if dLon <= -math.Pi {
		dLon += 2 * math.Pi
	}
	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	h := sLat*sLat + math.Cos(unit.AngleFromDeg(lat1).Rad())*math.Cos(unit.AngleFromDeg(lat2).Rad())*sLon*sLon
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// NormalizeLon wraps a longitude in degrees into (-180, 180].
func NormalizeLon(lon float64) float64 {
	l := math.Mod(lon, 360)
	if l > 180 {
		l -= 360
	}
	if l <= -180 {
		l += 360
	}
	return l
}
