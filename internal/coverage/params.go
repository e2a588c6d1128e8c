package coverage

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/unit"

	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/orbit"
	"github.com/SizovOleg/eo-services/internal/transform"
)

// ErrInvalidParams is returned by Validate for requests the engine cannot run.
var ErrInvalidParams = errors.New("invalid simulation parameters")

// Caller-convention limits applied by Request.Clamped.
const (
	MinSatellites  = 1
	MaxSatellites  = 12
	MinDays        = 1
	MaxDays        = 30
	MaxOffNadirDeg = 45
)

// Params describes the baseline satellite: orbit shape and sensor geometry.
// Angles are in degrees, distances in km.
type Params struct {
	Altitude     float64 `json:"altitude"`
	SwathWidth   float64 `json:"swath_width"`
	OffNadir     float64 `json:"off_nadir"`
	Eccentricity float64 `json:"eccentricity"`
	Inclination  float64 `json:"inclination"`
	RAAN         float64 `json:"raan"`
	ArgPerigee   float64 `json:"arg_perigee"`
	MeanAnomaly  float64 `json:"mean_anomaly"`

	// Epoch, when set, makes RAAN inertial at that instant: sub-satellite
	// longitudes are shifted by -GMST(epoch). Nil keeps RAAN Earth-fixed at t=0.
	Epoch *time.Time `json:"epoch,omitempty"`
}

// DefaultParams returns a 500 km sun-synchronous imager with a 100 km swath.
func DefaultParams() Params {
	return Params{
		Altitude:     500,
		SwathWidth:   100,
		OffNadir:     30,
		Eccentricity: 0.001,
		Inclination:  97.4,
	}
}

// SemiMajorAxis returns Earth radius plus altitude, in km.
func (p Params) SemiMajorAxis() float64 {
	return orbit.EarthRadiusKm + p.Altitude
}

// AccessWidth is the swath widened by off-nadir pointing on both sides:
// swath + 2·altitude·tan(offNadir).
func (p Params) AccessWidth() float64 {
	return p.SwathWidth + 2*p.Altitude*math.Tan(unit.AngleFromDeg(p.OffNadir).Rad())
}

// Elements returns the baseline orbital elements shifted by a constellation slot.
func (p Params) Elements(slot constellation.Slot) orbit.Elements {
	return orbit.ElementsFromDegrees(
		p.SemiMajorAxis(),
		p.Eccentricity,
		p.Inclination,
		p.RAAN+slot.RAANOffset,
		p.ArgPerigee,
		p.MeanAnomaly+slot.MeanAnomalyOffset,
	)
}

// Kinematics returns the rates shared by every satellite of the constellation.
func (p Params) Kinematics() orbit.Kinematics {
	return orbit.ComputeKinematics(p.SemiMajorAxis(), p.Eccentricity, unit.AngleFromDeg(p.Inclination).Rad())
}

// LongitudeOffset is -GMST(Epoch) in radians, or 0 without an epoch.
func (p Params) LongitudeOffset() float64 {
	if p.Epoch == nil {
		return 0
	}
	return transform.LongitudeOffset(*p.Epoch)
}

// Validate checks the physical ranges the propagator and sweep rely on.
func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"altitude", p.Altitude}, {"swath_width", p.SwathWidth}, {"off_nadir", p.OffNadir},
		{"eccentricity", p.Eccentricity}, {"inclination", p.Inclination}, {"raan", p.RAAN},
		{"arg_perigee", p.ArgPerigee}, {"mean_anomaly", p.MeanAnomaly},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidParams, f.name)
		}
	}
	if p.Altitude <= 0 {
		return fmt.Errorf("%w: altitude %.1f km must be positive", ErrInvalidParams, p.Altitude)
	}
	if p.SwathWidth <= 0 {
		return fmt.Errorf("%w: swath width %.1f km must be positive", ErrInvalidParams, p.SwathWidth)
	}
	if p.OffNadir < 0 || p.OffNadir >= 90 {
		return fmt.Errorf("%w: off-nadir angle %.1f° outside [0, 90)", ErrInvalidParams, p.OffNadir)
	}
	if err := orbit.ElementsFromDegrees(p.SemiMajorAxis(), p.Eccentricity, p.Inclination, 0, 0, 0).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// Target is a point of interest for pass detection, in degrees.
type Target struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Request is one simulation run.
type Request struct {
	Params     Params                 `json:"params"`
	Region     *geo.Region            `json:"-"`
	Satellites int                    `json:"satellites"`
	Days       int                    `json:"days"`
	Topology   constellation.Topology `json:"topology"`
	Planes     int                    `json:"planes"`
	Target     *Target                `json:"target,omitempty"`
}

// Duration returns the simulated window in seconds.
func (r Request) Duration() float64 {
	return float64(r.Days) * 86400
}

// Validate checks the request before it is handed to the engine.
func (r Request) Validate() error {
	if err := r.Params.Validate(); err != nil {
		return err
	}
	if r.Satellites < 1 {
		return fmt.Errorf("%w: satellite count %d must be at least 1", ErrInvalidParams, r.Satellites)
	}
	if r.Days < 1 {
		return fmt.Errorf("%w: duration %d days must be at least 1", ErrInvalidParams, r.Days)
	}
	if _, err := constellation.ParseTopology(string(r.Topology)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if err := r.Region.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if t := r.Target; t != nil && (math.Abs(t.Lat) > 90 || math.IsNaN(t.Lat) || math.IsNaN(t.Lon)) {
		return fmt.Errorf("%w: target latitude %.3f outside [-90, 90]", ErrInvalidParams, t.Lat)
	}
	return nil
}

// Clamped applies the interactive caller's conventions: satellites in [1, 12],
// days in [1, 30], planes in [1, satellites] and off-nadir in [0, 45]°. The
// engine never clamps on its own.
func (r Request) Clamped() Request {
	r.Satellites = min(max(r.Satellites, MinSatellites), MaxSatellites)
	r.Days = min(max(r.Days, MinDays), MaxDays)
	r.Planes = min(max(r.Planes, 1), r.Satellites)
	r.Params.OffNadir = math.Min(math.Max(r.Params.OffNadir, 0), MaxOffNadirDeg)
	return r
}

// Propagators returns one propagator per constellation slot, in satellite order.
func (r Request) Propagators() []*orbit.Propagator {
	kin := r.Params.Kinematics()
	off := r.Params.LongitudeOffset()
	slots := constellation.Generate(r.Satellites, r.Topology, r.Planes)
	props := make([]*orbit.Propagator, len(slots))
	for i, slot := range slots {
		props[i] = orbit.NewPropagatorWithKinematics(r.Params.Elements(slot), kin).WithLongitudeOffset(off)
	}
	return props
}
