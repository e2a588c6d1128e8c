package coverage

import (
	"io"
	"log/slog"
	"math"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/regions"
	"github.com/SizovOleg/eo-services/internal/transform"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func equatorRequest() Request {
	return Request{
		Params:     DefaultParams(),
		Region:     geo.BoxRegion("equator", -1, -1, 1, 1),
		Satellites: 1,
		Days:       1,
		Topology:   constellation.Single,
		Planes:     1,
	}
}

func TestRunEquatorScenario(t *testing.T) {
	sim := NewSimulator(testLogger())
	res, ok := sim.Run(equatorRequest(), cancel.New())
	if !ok || res == nil {
		t.Fatal("run was cancelled")
	}
	if res.TotalCells == 0 {
		t.Fatal("equator box produced no grid cells")
	}
	if res.CoveredCells < 1 {
		t.Errorf("CoveredCells = %d, want at least 1", res.CoveredCells)
	}
	if len(res.CoverageData) < 2 {
		t.Fatalf("CoverageData has %d points, want a series", len(res.CoverageData))
	}
	if res.CoverageData[0] != (CoveragePoint{Hour: 0, Coverage: 0}) {
		t.Errorf("first series point = %+v, want {0 0}", res.CoverageData[0])
	}
	if res.TimeStep != 30 {
		t.Errorf("TimeStep = %v, want 30 for a small region", res.TimeStep)
	}
	if want := float64(res.CoveredCells) / float64(res.TotalCells) * 100; res.FinalCoverage != want {
		t.Errorf("FinalCoverage = %v, want %v", res.FinalCoverage, want)
	}
	if res.Satellites != 1 || res.Topology != constellation.Single || res.Planes != 1 {
		t.Errorf("configuration echoed as %d sats %s/%d", res.Satellites, res.Topology, res.Planes)
	}
	if len(res.HourOfDay) != 24 {
		t.Errorf("HourOfDay len = %d, want 24", len(res.HourOfDay))
	}
	if res.Passes != nil || res.PeriodStats != nil {
		t.Error("no target given, expected no passes and no stats")
	}
}

func TestRunSeriesMonotonic(t *testing.T) {
	req := equatorRequest()
	req.Satellites = 3
	req.Topology = constellation.Multi
	req.Days = 2
	res, ok := NewSimulator(testLogger()).Run(req, cancel.Never)
	if !ok {
		t.Fatal("run was cancelled")
	}
	for i := 1; i < len(res.CoverageData); i++ {
		prev, cur := res.CoverageData[i-1], res.CoverageData[i]
		if cur.Hour <= prev.Hour {
			t.Errorf("series hours not increasing: %d then %d", prev.Hour, cur.Hour)
		}
		if cur.Coverage < prev.Coverage {
			t.Errorf("coverage decreased from %d%% to %d%% at hour %d", prev.Coverage, cur.Coverage, cur.Hour)
		}
	}
	last := res.CoverageData[len(res.CoverageData)-1]
	if float64(last.Coverage) > math.Round(res.FinalCoverage) {
		t.Errorf("series ends at %d%%, above final coverage %.2f%%", last.Coverage, res.FinalCoverage)
	}
	covered := 0
	for _, c := range res.Grid {
		if c.Covered {
			covered++
		}
	}
	if covered != res.CoveredCells {
		t.Errorf("grid has %d covered cells, result reports %d", covered, res.CoveredCells)
	}
}

func TestRunDeterministic(t *testing.T) {
	req := equatorRequest()
	req.Satellites = 2
	req.Topology = constellation.Walker
	req.Planes = 2
	req.Target = &Target{Lat: 0.2, Lon: 0.3}

	sim := NewSimulator(testLogger())
	a, okA := sim.Run(req, nil)
	b, okB := sim.Run(req, nil)
	if !okA || !okB {
		t.Fatal("run was cancelled")
	}
	if a.FinalCoverage != b.FinalCoverage {
		t.Errorf("FinalCoverage differs: %v vs %v", a.FinalCoverage, b.FinalCoverage)
	}
	if !reflect.DeepEqual(a.Passes, b.Passes) {
		t.Error("Passes differ between identical runs")
	}
	if !reflect.DeepEqual(a.CoverageData, b.CoverageData) {
		t.Error("CoverageData differs between identical runs")
	}
}

func TestRunTargetPasses(t *testing.T) {
	req := equatorRequest()
	req.Target = &Target{Lat: 0, Lon: 0}
	res, ok := NewSimulator(testLogger()).Run(req, cancel.Never)
	if !ok {
		t.Fatal("run was cancelled")
	}
	if !scalar.EqualWithinAbs(res.AccessWidth, 100+1000*math.Tan(math.Pi/6), 1e-9) {
		t.Errorf("AccessWidth = %v", res.AccessWidth)
	}
	if len(res.Passes) == 0 {
		t.Fatal("satellite starts over the target, expected at least one pass")
	}
	if res.Passes[0].Start != 0 {
		t.Errorf("first pass starts at %v, want 0", res.Passes[0].Start)
	}
	for i, p := range res.Passes {
		if p.MinDistance > res.AccessWidth/2 {
			t.Errorf("pass %d min distance %v beyond half access width", i, p.MinDistance)
		}
	}
	if len(res.Passes) > 1 {
		if len(res.Intervals) != len(res.Passes)-1 {
			t.Errorf("%d intervals for %d passes", len(res.Intervals), len(res.Passes))
		}
		if res.PeriodStats == nil || res.PeriodStats.Count != len(res.Passes) {
			t.Errorf("PeriodStats = %+v, want count %d", res.PeriodStats, len(res.Passes))
		}
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	tok := cancel.New()
	tok.Cancel()
	res, ok := NewSimulator(testLogger()).Run(equatorRequest(), tok)
	if ok || res != nil {
		t.Errorf("Run = %v, %v; want nil, false", res, ok)
	}
}

// countdown is cancelled after a fixed number of polls.
type countdown struct {
	left  atomic.Int64
	polls atomic.Int64
}

func (c *countdown) Cancelled() bool {
	c.polls.Add(1)
	return c.left.Add(-1) < 0
}

func TestRunCancelledMidway(t *testing.T) {
	req := equatorRequest()
	req.Satellites = 4
	for _, n := range []int64{1, 2, 5, 7, 10} {
		c := &countdown{}
		c.left.Store(n)
		res, ok := NewSimulator(testLogger()).Run(req, c)
		if ok || res != nil {
			t.Errorf("countdown %d: run completed, want cancelled", n)
		}
		if got := c.polls.Load(); got != n+1 {
			t.Errorf("countdown %d: %d polls, want exit on poll %d", n, got, n+1)
		}
	}
}

func TestRunCancelledDuringGridBuild(t *testing.T) {
	// A row this wide never advances in float64, so only the in-row poll ends it.
	req := equatorRequest()
	req.Region = geo.BoxRegion("wide", 0, -1e17, 1, 1e17)
	c := &countdown{}
	c.left.Store(2)

	done := make(chan bool, 1)
	go func() {
		res, ok := NewSimulator(testLogger()).Run(req, c)
		done <- ok || res != nil
	}()
	select {
	case completed := <-done:
		if completed {
			t.Error("run completed, want cancelled")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not observe cancellation while building the grid")
	}
	if got := c.polls.Load(); got != 3 {
		t.Errorf("%d polls, want exit on the first in-row poll (3)", got)
	}
}

func TestRunEmptyRegion(t *testing.T) {
	req := equatorRequest()
	req.Region = nil
	res, ok := NewSimulator(testLogger()).Run(req, cancel.Never)
	if !ok {
		t.Fatal("run was cancelled")
	}
	if res.TotalCells != 0 || res.FinalCoverage != 0 {
		t.Errorf("empty region: %d cells, %v%% coverage; want 0, 0", res.TotalCells, res.FinalCoverage)
	}
	for _, p := range res.CoverageData {
		if p.Coverage != 0 {
			t.Errorf("hour %d coverage %d, want 0", p.Hour, p.Coverage)
		}
	}
	if res.TimeStep != 60 {
		t.Errorf("default box TimeStep = %v, want 60", res.TimeStep)
	}
}

func TestRunSegmentsBreakAtDateLine(t *testing.T) {
	res, ok := NewSimulator(testLogger()).Run(equatorRequest(), cancel.Never)
	if !ok {
		t.Fatal("run was cancelled")
	}
	if len(res.Segments) < 2 {
		t.Fatalf("one day of LEO should cross the date line, got %d segments", len(res.Segments))
	}
	for i, seg := range res.Segments {
		if len(seg.Points) < 2 {
			t.Errorf("segment %d has %d points", i, len(seg.Points))
		}
		for j := 1; j < len(seg.Points); j++ {
			if math.Abs(seg.Points[j][1]-seg.Points[j-1][1]) > 180 {
				t.Errorf("segment %d jumps %v -> %v", i, seg.Points[j-1][1], seg.Points[j][1])
			}
		}
	}
}

func TestRunEpochShiftsLongitude(t *testing.T) {
	req := equatorRequest()
	epoch := time.Date(2025, 2, 14, 4, 19, 40, 0, time.UTC)
	req.Params.Epoch = &epoch
	res, ok := NewSimulator(testLogger()).Run(req, cancel.Never)
	if !ok {
		t.Fatal("run was cancelled")
	}
	want := geo.NormalizeLon(unit.Angle(transform.LongitudeOffset(epoch)).Deg())
	got := res.Segments[0].Points[0]
	if !scalar.EqualWithinAbs(got[0], 0, 1e-9) || !scalar.EqualWithinAbs(got[1], want, 1e-9) {
		t.Errorf("first point = %v, want [0 %v]", got, want)
	}
}

func TestRunCatalogRegion(t *testing.T) {
	region, ok := regions.Lookup("crimea")
	if !ok {
		t.Fatal("crimea missing from catalog")
	}
	req := equatorRequest()
	req.Region = region
	req.Satellites = 2
	req.Topology = constellation.Multi
	req.Target = &Target{Lat: 44.95, Lon: 34.1}
	res, done := NewSimulator(testLogger()).Run(req, cancel.Never)
	if !done {
		t.Fatal("run was cancelled")
	}
	if res.TotalCells == 0 {
		t.Fatal("crimea produced no grid cells")
	}
	for _, c := range res.Grid {
		if !geo.PointInRegion(c.Lat, c.Lon, region) {
			t.Errorf("cell (%v, %v) outside region", c.Lat, c.Lon)
		}
	}
	if res.FinalCoverage < 0 || res.FinalCoverage > 100 {
		t.Errorf("FinalCoverage = %v outside [0, 100]", res.FinalCoverage)
	}
}
