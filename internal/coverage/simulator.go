// Package coverage runs the coverage simulation: it propagates every satellite of
// a constellation over a multi-day window, accumulates which grid cells of a
// region fall inside the swath, and detects passes over an optional target.
//
// A run is single-threaded and owns its grid and sample buffers. Cancellation is
// polled at fixed points: before and during grid construction, before each satellite, before
// the sort, before the sweep and periodically during it. A cancelled run returns
// no result and is not an error.
package coverage

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/metrics"
	"github.com/SizovOleg/eo-services/internal/orbit"
	"github.com/SizovOleg/eo-services/internal/passes"
)

// sweepCheckEvery is the number of sweep samples between cancellation polls.
const sweepCheckEvery = 256

// Sample is one propagated sub-satellite point.
type Sample struct {
	Time      float64 // s since start of window
	Lat       float64 // deg
	Lon       float64 // deg, (-180, 180]
	Satellite int
}

// Segment is a continuous piece of one satellite's ground track, split where the
// longitude jumps by more than 180° between samples. Points are [lat, lon].
type Segment struct {
	Satellite int          `json:"satellite"`
	Points    [][2]float64 `json:"points"`
}

// CoveragePoint is the integer coverage percentage at the start of an hour.
type CoveragePoint struct {
	Hour     int `json:"hour"`
	Coverage int `json:"coverage"`
}

// Result is everything one run produces. The caller owns it.
type Result struct {
	Segments      []Segment              `json:"segments"`
	Grid          []Cell                 `json:"grid"`
	CoverageData  []CoveragePoint        `json:"coverage_data"`
	TotalCells    int                    `json:"total_cells"`
	CoveredCells  int                    `json:"covered_cells"`
	FinalCoverage float64                `json:"final_coverage"` // percent
	Passes        []passes.Pass          `json:"passes"`
	Intervals     []float64              `json:"intervals"` // hours between pass starts
	PeriodStats   *passes.Stats          `json:"period_stats"`
	HourOfDay     []passes.HourCount     `json:"hour_of_day"`
	Topology      constellation.Topology `json:"topology"`
	Planes        int                    `json:"planes"`
	Satellites    int                    `json:"satellites"`
	Period        float64                `json:"period"`       // s
	AccessWidth   float64                `json:"access_width"` // km
	TimeStep      float64                `json:"time_step"`    // s
}

// Simulator runs coverage simulations. It holds no per-run state and may be
// shared by concurrent callers.
type Simulator struct {
	logger *slog.Logger
}

// NewSimulator returns a simulator that logs run summaries at Debug.
func NewSimulator(logger *slog.Logger) *Simulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{logger: logger}
}

// Run executes one simulation. ok is false when tok was observed cancelled; the
// result is then nil. The request is assumed valid (see Request.Validate).
func (s *Simulator) Run(req Request, tok cancel.Checker) (res *Result, ok bool) {
	start := time.Now()
	defer func() {
		metrics.RecordSimulation("run", !ok, time.Since(start))
	}()

	if cancel.IsCancelled(tok) {
		s.logger.Debug("simulation cancelled", "stage", "start")
		return nil, false
	}

	span := geo.BoundingBox(req.Region).Span()
	grid, ok := NewGrid(req.Region, tok)
	if !ok {
		s.logger.Debug("simulation cancelled", "stage", "grid")
		return nil, false
	}
	step := TimeStep(span)
	duration := req.Duration()

	kin := req.Params.Kinematics()
	props := req.Propagators()
	steps := int(duration/step) + 1
	samples := make([]Sample, 0, steps*len(props))
	var segments []Segment

	for si, prop := range props {
		if cancel.IsCancelled(tok) {
			s.logger.Debug("simulation cancelled", "stage", "propagate", "satellite", si)
			return nil, false
		}
		segments = appendTrack(segments, &samples, prop, si, step, duration)
	}
	metrics.AddSamples(len(samples))

	if cancel.IsCancelled(tok) {
		s.logger.Debug("simulation cancelled", "stage", "sort")
		return nil, false
	}
	slices.SortStableFunc(samples, func(a, b Sample) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})

	if cancel.IsCancelled(tok) {
		s.logger.Debug("simulation cancelled", "stage", "sweep")
		return nil, false
	}

	halfSwath := req.Params.SwathWidth / 2
	accessWidth := req.Params.AccessWidth()
	var det *passes.Detector
	if req.Target != nil {
		det = passes.NewDetector(req.Target.Lat, req.Target.Lon, accessWidth/2)
	}

	series := newSeries(grid.Len())
	for i, smp := range samples {
		if i%sweepCheckEvery == 0 && i > 0 && cancel.IsCancelled(tok) {
			s.logger.Debug("simulation cancelled", "stage", "sweep", "sample", i)
			return nil, false
		}
		series.observe(smp.Time, grid.Covered())
		grid.Mark(smp.Lat, smp.Lon, halfSwath)
		if det != nil {
			det.Observe(smp.Time, smp.Lat, smp.Lon, smp.Satellite)
		}
	}

	var ps []passes.Pass
	if det != nil {
		ps = det.Close()
	}
	intervals := passes.Intervals(ps)

	res = &Result{
		Segments:      segments,
		Grid:          grid.Cells,
		CoverageData:  series.points(),
		TotalCells:    grid.Len(),
		CoveredCells:  grid.Covered(),
		FinalCoverage: grid.Percent(),
		Passes:        ps,
		Intervals:     intervals,
		PeriodStats:   passes.Summarize(intervals, len(ps)),
		HourOfDay:     passes.HourOfDay(ps),
		Topology:      req.Topology,
		Planes:        constellation.PlaneCount(req.Satellites, req.Topology, req.Planes),
		Satellites:    len(props),
		Period:        kin.Period,
		AccessWidth:   accessWidth,
		TimeStep:      step,
	}
	metrics.SetCoveredRatio(res.FinalCoverage / 100)

	s.logger.Debug("simulation complete",
		"satellites", len(props),
		"topology", req.Topology,
		"days", req.Days,
		"cells", res.TotalCells,
		"covered", res.CoveredCells,
		"final_coverage", res.FinalCoverage,
		"passes", len(ps),
		"samples", len(samples),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, true
}

// appendTrack propagates one satellite from t=0 to duration inclusive, appending
// its samples and returning segments extended with its ground track.
func appendTrack(segments []Segment, samples *[]Sample, prop *orbit.Propagator, sat int, step, duration float64) []Segment {
	var seg [][2]float64
	prevLon := math.NaN()
	for t := 0.0; t <= duration; t += step {
		p := prop.At(t)
		*samples = append(*samples, Sample{Time: t, Lat: p.Lat, Lon: p.Lon, Satellite: sat})
		if !math.IsNaN(prevLon) && math.Abs(p.Lon-prevLon) > 180 {
			if len(seg) > 1 {
				segments = append(segments, Segment{Satellite: sat, Points: seg})
			}
			seg = nil
		}
		seg = append(seg, [2]float64{p.Lat, p.Lon})
		prevLon = p.Lon
	}
	if len(seg) > 1 {
		segments = append(segments, Segment{Satellite: sat, Points: seg})
	}
	return segments
}

// series records the covered count at hour boundaries: when the sweep reaches
// the first sample of a new hour, the count known before that sample is taken.
type series struct {
	total    int
	lastHour int
	data     []CoveragePoint
}

func newSeries(total int) *series {
	return &series{total: total, lastHour: -1}
}

func (s *series) observe(t float64, covered int) {
	hour := int(math.Floor(t / 3600))
	if hour == s.lastHour {
		return
	}
	s.lastHour = hour
	pct := 0
	if s.total > 0 {
		pct = int(math.Round(float64(covered) / float64(s.total) * 100))
	}
	s.data = append(s.data, CoveragePoint{Hour: hour, Coverage: pct})
}

func (s *series) points() []CoveragePoint {
	if len(s.data) == 0 || s.data[0].Hour != 0 {
		return append([]CoveragePoint{{Hour: 0, Coverage: 0}}, s.data...)
	}
	return s.data
}
