package passes

import (
	"context"
	"runtime"
	"sync"

	"github.com/SizovOleg/eo-services/internal/orbit"
)

// Target is a named ground point in degrees.
type Target struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// TargetPasses holds the passes found over one target.
type TargetPasses struct {
	Target    Target      `json:"target"`
	Passes    []Pass      `json:"passes"`
	Intervals []float64   `json:"intervals"`
	Stats     *Stats      `json:"stats"`
	HourOfDay []HourCount `json:"hour_of_day"`
	Error     string      `json:"error,omitempty"`
}

// Request holds the parameters for a multi-target pass prediction.
type Request struct {
	Targets   []Target
	Tracks    []*orbit.Propagator // satellites, in index order
	Step      float64             // s between samples
	Duration  float64             // s, window length
	HalfWidth float64             // km, access half-width
}

const checkEvery = 1024 // samples between cancellation checks

// Predict computes passes for every target. The constellation is propagated once;
// each target is then scanned in its own goroutine, bounded by a semaphore.
// A cancelled context marks unfinished targets with Error "cancelled".
func Predict(ctx context.Context, req Request) []TargetPasses {
	results := make([]TargetPasses, len(req.Targets))
	points, steps := sampleTracks(ctx, req)
	if points == nil {
		for i, tgt := range req.Targets {
			results[i] = TargetPasses{Target: tgt, Error: "cancelled"}
		}
		return results
	}

	sem := make(chan struct{}, runtime.NumCPU())
	var wg sync.WaitGroup

	for i, tgt := range req.Targets {
		wg.Add(1)
		go func(idx int, tgt Target) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = TargetPasses{Target: tgt, Error: "cancelled"}
				return
			}

			results[idx] = scanTarget(ctx, req, tgt, points, steps)
		}(i, tgt)
	}

	wg.Wait()
	return results
}

// sampleTracks returns sub-satellite points in time-major order: for each step,
// every satellite in index order. This is the stable time sort of per-satellite
// tracks on a shared time grid. It returns nil if ctx is cancelled.
func sampleTracks(ctx context.Context, req Request) ([]orbit.GroundPoint, int) {
	if req.Step <= 0 || len(req.Tracks) == 0 {
		return []orbit.GroundPoint{}, 0
	}
	steps := int(req.Duration/req.Step) + 1
	points := make([]orbit.GroundPoint, 0, steps*len(req.Tracks))
	for k := 0; k < steps; k++ {
		if k%checkEvery == 0 && ctx.Err() != nil {
			return nil, 0
		}
		t := float64(k) * req.Step
		for _, tr := range req.Tracks {
			points = append(points, tr.At(t))
		}
	}
	return points, steps
}

func scanTarget(ctx context.Context, req Request, tgt Target, points []orbit.GroundPoint, steps int) TargetPasses {
	d := NewDetector(tgt.Lat, tgt.Lon, req.HalfWidth)
	n := len(req.Tracks)
	for k := 0; k < steps; k++ {
		if k%checkEvery == 0 && ctx.Err() != nil {
			return TargetPasses{Target: tgt, Passes: d.Close(), Error: "cancelled"}
		}
		t := float64(k) * req.Step
		for s := 0; s < n; s++ {
			p := points[k*n+s]
			d.Observe(t, p.Lat, p.Lon, s)
		}
	}
	ps := d.Close()
	iv := Intervals(ps)
	return TargetPasses{
		Target:    tgt,
		Passes:    ps,
		Intervals: iv,
		Stats:     Summarize(iv, len(ps)),
		HourOfDay: HourOfDay(ps),
	}
}
