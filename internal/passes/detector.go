// Package passes detects observation opportunities over a point target from a
// time-ordered stream of sub-satellite points, and derives revisit statistics.
package passes

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/SizovOleg/eo-services/internal/geo"
)

// Pass is one contiguous run of in-range samples. Times are seconds since the
// start of the simulation window.
type Pass struct {
	Start       float64 `json:"start"`
	End         float64 `json:"end"`
	MinDistance float64 `json:"min_distance"` // km, closest sample to the target
	Satellite   int     `json:"satellite"`    // satellite that opened the pass
}

// Duration returns End - Start in seconds. A single-sample pass has zero duration.
func (p Pass) Duration() float64 { return p.End - p.Start }

// Detector tracks the open pass over one target. Samples must be fed in time
// order; a sample from any satellite continues the open pass if it is in range.
type Detector struct {
	lat, lon  float64
	halfWidth float64

	open   bool
	cur    Pass
	passes []Pass
}

// NewDetector returns a detector for a target at (lat, lon) degrees with the
// given access half-width in km.
func NewDetector(lat, lon, halfWidth float64) *Detector {
	return &Detector{lat: lat, lon: lon, halfWidth: halfWidth}
}

// Observe feeds one sample and returns its distance to the target and whether it
// was in range. An out-of-range sample closes the open pass.
func (d *Detector) Observe(t, lat, lon float64, sat int) (float64, bool) {
	dist := geo.GreatCircleDistance(lat, lon, d.lat, d.lon)
	if dist > d.halfWidth {
		d.flush()
		return dist, false
	}
	if !d.open {
		d.open = true
		d.cur = Pass{Start: t, End: t, MinDistance: dist, Satellite: sat}
		return dist, true
	}
	d.cur.End = t
	d.cur.MinDistance = math.Min(d.cur.MinDistance, dist)
	return dist, true
}

func (d *Detector) flush() {
	if d.open {
		d.passes = append(d.passes, d.cur)
		d.open = false
	}
}

// Close ends the window, closing any open pass, and returns all passes in start
// order. Further samples start a new pass.
func (d *Detector) Close() []Pass {
	d.flush()
	return d.passes
}

// Intervals returns the revisit intervals in hours: the gaps between consecutive
// pass starts.
func Intervals(ps []Pass) []float64 {
	if len(ps) < 2 {
		return nil
	}
	out := make([]float64, len(ps)-1)
	for i := 1; i < len(ps); i++ {
		out[i-1] = (ps[i].Start - ps[i-1].Start) / 3600
	}
	return out
}

// Stats summarizes revisit intervals (hours). Count is the number of passes.
type Stats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Summarize returns nil when there are no intervals.
func Summarize(intervals []float64, passCount int) *Stats {
	if len(intervals) == 0 {
		return nil
	}
	return &Stats{
		Min:   floats.Min(intervals),
		Max:   floats.Max(intervals),
		Mean:  floats.Sum(intervals) / float64(len(intervals)),
		Count: passCount,
	}
}

// HourCount is one bucket of the hour-of-day histogram.
type HourCount struct {
	Hour  int `json:"hour"`
	Count int `json:"count"`
}

// HourOfDay buckets passes by the hour of day of their start time. The result
// always has 24 entries.
func HourOfDay(ps []Pass) []HourCount {
	out := make([]HourCount, 24)
	for h := range out {
		out[h].Hour = h
	}
	for _, p := range ps {
		h := int(math.Floor(math.Mod(p.Start, 86400) / 3600))
		if h >= 0 && h < 24 {
			out[h].Count++
		}
	}
	return out
}
