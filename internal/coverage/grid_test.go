package coverage

import (
	"math/rand"
	"testing"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/geo"
)

func TestResolutionAndStep(t *testing.T) {
	tests := []struct {
		span float64
		res  float64
		step float64
	}{
		{100, 2.0, 60},
		{50.1, 2.0, 60},
		{50, 1.0, 45},
		{20.5, 1.0, 45},
		{20, 0.5, 30},
		{10.5, 0.5, 30},
		{10, 0.3, 30},
		{0, 0.3, 30},
	}
	for _, tt := range tests {
		if got := Resolution(tt.span); got != tt.res {
			t.Errorf("Resolution(%v) = %v, want %v", tt.span, got, tt.res)
		}
		if got := TimeStep(tt.span); got != tt.step {
			t.Errorf("TimeStep(%v) = %v, want %v", tt.span, got, tt.step)
		}
	}
}

func TestNewGridInsideRegion(t *testing.T) {
	r := geo.BoxRegion("box", 50, 30, 60, 50)
	g := mustGrid(t, r)
	if g.Len() == 0 {
		t.Fatal("grid is empty")
	}
	if g.Resolution != 1.0 {
		t.Errorf("Resolution = %v, want 1.0 for a 21° span", g.Resolution)
	}
	for _, c := range g.Cells {
		if !geo.PointInRegion(c.Lat, c.Lon, r) {
			t.Errorf("cell (%v, %v) outside region", c.Lat, c.Lon)
		}
		if c.Covered {
			t.Errorf("fresh cell (%v, %v) already covered", c.Lat, c.Lon)
		}
	}
	if g.Covered() != 0 || g.Percent() != 0 {
		t.Errorf("fresh grid covered = %d (%v%%)", g.Covered(), g.Percent())
	}
}

func TestNewGridHighLatitudeStep(t *testing.T) {
	// Rows near the pole use the cos floor, so they are not unbounded.
	g := mustGrid(t, geo.BoxRegion("arctic", 85, 0, 89.9, 20))
	if g.Len() == 0 {
		t.Fatal("grid is empty")
	}
	if g.Len() > 10000 {
		t.Errorf("polar grid has %d cells, longitude step floor not applied", g.Len())
	}
}

func TestGridMarkMonotonic(t *testing.T) {
	g := mustGrid(t, geo.BoxRegion("box", -5, -5, 5, 5))
	rng := rand.New(rand.NewSource(1))
	prev := 0
	wasCovered := make([]bool, g.Len())
	for i := 0; i < 500; i++ {
		lat := rng.Float64()*14 - 7
		lon := rng.Float64()*14 - 7
		n := g.Mark(lat, lon, 60)
		if g.Covered() != prev+n {
			t.Fatalf("step %d: covered %d, want %d+%d", i, g.Covered(), prev, n)
		}
		prev = g.Covered()
		for j, c := range g.Cells {
			if wasCovered[j] && !c.Covered {
				t.Fatalf("step %d: cell %d was uncovered", i, j)
			}
			wasCovered[j] = c.Covered
		}
	}
	count := 0
	for _, c := range g.Cells {
		if c.Covered {
			count++
		}
	}
	if count != g.Covered() {
		t.Errorf("counter %d disagrees with cells %d", g.Covered(), count)
	}
}

func TestGridMarkMatchesBruteForce(t *testing.T) {
	g := mustGrid(t, geo.BoxRegion("box", 40, 20, 44, 30))
	const radius = 75.0
	points := [][2]float64{{42, 25}, {40.2, 21}, {43.9, 29.9}, {39.5, 25}, {45, 20}}
	want := make([]bool, g.Len())
	for _, p := range points {
		for j, c := range g.Cells {
			if geo.GreatCircleDistance(p[0], p[1], c.Lat, c.Lon) <= radius {
				want[j] = true
			}
		}
		g.Mark(p[0], p[1], radius)
	}
	for j, c := range g.Cells {
		if c.Covered != want[j] {
			t.Errorf("cell (%v, %v) covered = %v, want %v", c.Lat, c.Lon, c.Covered, want[j])
		}
	}
}

func TestGridMarkFarSample(t *testing.T) {
	g := mustGrid(t, geo.BoxRegion("box", 0, 0, 2, 2))
	if n := g.Mark(60, 1, 100); n != 0 {
		t.Errorf("far sample covered %d cells", n)
	}
	empty := mustGrid(t, nil)
	if n := empty.Mark(0, 0, 1000); n != 0 || empty.Percent() != 0 {
		t.Errorf("empty grid: covered %d, %v%%", n, empty.Percent())
	}
}

func mustGrid(t *testing.T, r *geo.Region) *Grid {
	t.Helper()
	g, ok := NewGrid(r, cancel.Never)
	if !ok {
		t.Fatal("NewGrid reported cancellation without a set token")
	}
	return g
}

func TestNewGridCancelled(t *testing.T) {
	tok := cancel.New()
	tok.Cancel()
	g, ok := NewGrid(geo.BoxRegion("box", 50, 30, 60, 50), tok)
	if ok || g != nil {
		t.Errorf("NewGrid with a set token = (%v, %v), want (nil, false)", g, ok)
	}
}
