package coverage

import (
	"math"

	"github.com/soniakeys/unit"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/geo"
)

// gridCheckEvery is the number of row points between cancellation polls.
const gridCheckEvery = 4096

// Cell is one grid point. Covered only ever goes from false to true.
type Cell struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Covered bool    `json:"covered"`
}

// Grid is the set of region sample points owned by one run.
type Grid struct {
	Cells      []Cell
	Resolution float64 // degrees of latitude between rows

	covered int
	open    []int   // indices of cells not yet covered
	minLat  float64 // extent of cell latitudes
	maxLat  float64
}

// Resolution returns the grid step in degrees for a region span in degrees.
func Resolution(span float64) float64 {
	switch {
	case span > 50:
		return 2.0
	case span > 20:
		return 1.0
	case span > 10:
		return 0.5
	}
	return 0.3
}

// TimeStep returns the propagation step in seconds for a region span in degrees.
func TimeStep(span float64) float64 {
	switch {
	case span > 50:
		return 60
	case span > 20:
		return 45
	}
	return 30
}

// NewGrid samples the region's bounding box row by row. Longitude steps widen by
// 1/cos(lat), floored at cos = 0.1, and points outside the region are dropped.
// tok is polled at the start of every row and every gridCheckEvery points
// within a row; ok is false and the grid nil when it was set.
func NewGrid(region *geo.Region, tok cancel.Checker) (g *Grid, ok bool) {
	box := geo.BoundingBox(region)
	res := Resolution(box.Span())
	g = &Grid{Resolution: res, minLat: math.Inf(1), maxLat: math.Inf(-1)}

	for lat := box.MinLat; lat <= box.MaxLat; lat += res {
		if cancel.IsCancelled(tok) {
			return nil, false
		}
		lonStep := res / math.Max(0.1, math.Cos(unit.AngleFromDeg(lat).Rad()))
		for lon, k := box.MinLon, 1; lon <= box.MaxLon; lon, k = lon+lonStep, k+1 {
			if k%gridCheckEvery == 0 && cancel.IsCancelled(tok) {
				return nil, false
			}
			if !geo.PointInRegion(lat, lon, region) {
				continue
			}
			g.Cells = append(g.Cells, Cell{Lat: lat, Lon: lon})
			g.minLat = math.Min(g.minLat, lat)
			g.maxLat = math.Max(g.maxLat, lat)
		}
	}

	g.open = make([]int, len(g.Cells))
	for i := range g.open {
		g.open[i] = i
	}
	return g, true
}

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.Cells) }

// Covered returns the number of covered cells.
func (g *Grid) Covered() int { return g.covered }

// Percent returns covered/total·100, or 0 for an empty grid.
func (g *Grid) Percent() float64 {
	if len(g.Cells) == 0 {
		return 0
	}
	return float64(g.covered) / float64(len(g.Cells)) * 100
}

// Mark covers every uncovered cell within radius km of (lat, lon) and returns
// how many cells it newly covered.
func (g *Grid) Mark(lat, lon, radius float64) int {
	if len(g.open) == 0 {
		return 0
	}
	// Great-circle distance is at least R·|Δlat|; the slack keeps boundary
	// cells for the exact test.
	maxDLat := unit.Angle(radius/geo.EarthRadiusKm).Deg()*(1+1e-9) + 1e-12
	if lat-g.maxLat > maxDLat || g.minLat-lat > maxDLat {
		return 0
	}

	n := 0
	for i := 0; i < len(g.open); {
		c := &g.Cells[g.open[i]]
		if math.Abs(c.Lat-lat) <= maxDLat && geo.GreatCircleDistance(lat, lon, c.Lat, c.Lon) <= radius {
			c.Covered = true
			n++
			last := len(g.open) - 1
			g.open[i] = g.open[last]
			g.open = g.open[:last]
			continue
		}
		i++
	}
	g.covered += n
	return n
}
