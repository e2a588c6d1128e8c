package tle

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/unit"

	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/orbit"
	"github.com/SizovOleg/eo-services/internal/transform"
)

// Seed is the result of turning an element set into simulation parameters.
type Seed struct {
	Entry  Entry           `json:"entry"`
	Params coverage.Params `json:"params"`

	// SGP4Point is the SGP4 sub-satellite point at epoch; ModelPoint is where
	// the analytic propagator puts the seeded orbit at t=0. Drift is their
	// great-circle separation in km.
	SGP4Point  transform.GeodeticPoint `json:"sgp4_point"`
	ModelPoint orbit.GroundPoint       `json:"model_point"`
	Drift      float64                 `json:"drift_km"`
}

// FromEntry propagates the element set to its own epoch with SGP4, converts the
// osculating state to classical elements and overlays them on base. Sensor
// fields of base are kept; the epoch is truncated to whole seconds.
func FromEntry(e Entry, base coverage.Params) (*Seed, error) {
	if _, err := ParseLines(e.Name, e.Line1, e.Line2); err != nil {
		return nil, err
	}

	// go-satellite calls log.Fatal on unparseable lines, so lines are validated first.
	sat := satellite.TLEToSat(e.Line1, e.Line2, satellite.GravityWGS84)
	if sat.Error != 0 {
		return nil, fmt.Errorf("sgp4 init failed for NORAD %d: code=%d %s", e.NORADID, sat.Error, sat.ErrorStr)
	}

	epoch := e.Epoch.UTC().Truncate(time.Second)
	pos, vel := satellite.Propagate(sat, epoch.Year(), int(epoch.Month()), epoch.Day(), epoch.Hour(), epoch.Minute(), epoch.Second())
	r := [3]float64{pos.X, pos.Y, pos.Z}
	v := [3]float64{vel.X, vel.Y, vel.Z}
	for _, c := range append(r[:], v[:]...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("sgp4 propagation failed for NORAD %d: output is NaN/Inf", e.NORADID)
		}
	}

	pv := transform.Vector{X: pos.X, Y: pos.Y, Z: pos.Z}
	if rn := pv.Norm(); rn <= orbit.EarthRadiusKm {
		return nil, fmt.Errorf("NORAD %d: sgp4 position %.1f km from the geocentre is below the surface", e.NORADID, rn)
	}

	el := orbit.ElementsFromState(r, v)
	if err := el.Validate(); err != nil {
		return nil, fmt.Errorf("NORAD %d: %w", e.NORADID, err)
	}

	p := base
	p.Altitude = el.SemiMajorAxis - orbit.EarthRadiusKm
	p.Eccentricity = el.Eccentricity
	p.Inclination = unit.Angle(el.Inclination).Deg()
	p.RAAN = unit.Angle(el.RAAN).Deg()
	p.ArgPerigee = unit.Angle(el.ArgPerigee).Deg()
	p.MeanAnomaly = unit.Angle(el.MeanAnomaly).Deg()
	p.Epoch = &epoch

	sgp4Point := transform.SubPoint(pv, epoch)
	model := orbit.NewPropagator(el).WithLongitudeOffset(transform.LongitudeOffset(epoch)).At(0)

	return &Seed{
		Entry:      e,
		Params:     p,
		SGP4Point:  sgp4Point,
		ModelPoint: model,
		Drift:      geo.GreatCircleDistance(sgp4Point.LatDeg, sgp4Point.LonDeg, model.Lat, model.Lon),
	}, nil
}
