// Package orbit implements the analytic ground-track propagator: two-body Keplerian
// motion with first-order J2 secular drift of the ascending node and argument of
// perigee, mapped onto an Earth rotating at a constant rate.
//
// Kepler's equation is solved with a fixed eight-step fixed-point iteration and no
// convergence test. The cost per call is therefore constant and the precision is
// that of the iteration for near-circular to moderately elliptical orbits; it is a
// known approximation, not an adaptive solver.
package orbit

import (
	"errors"
	"fmt"
	"math"

	"github.com/soniakeys/unit"

	"github.com/SizovOleg/eo-services/internal/geo"
)

// Physical constants of the propagator.
const (
	MuEarth           = 398600.4418  // km³/s²
	J2                = 1.08263e-3   // Earth oblateness coefficient
	EarthRadiusKm     = 6378.137     // km
	EarthRotationRate = 7.2921159e-5 // rad/s

	// KeplerIterations is the fixed iteration count of the Kepler solve.
	KeplerIterations = 8
)

// ErrInvalidElements is returned by Validate for elements outside the supported range.
var ErrInvalidElements = errors.New("invalid orbital elements")

// Elements are classical orbital elements at epoch.
type Elements struct {
	SemiMajorAxis float64 // km
	Eccentricity  float64 // [0, 1)
	Inclination   float64 // rad
	RAAN          float64 // rad
	ArgPerigee    float64 // rad
	MeanAnomaly   float64 // rad, at epoch
}

// ElementsFromDegrees builds Elements from a semi-major axis in km and angles in degrees.
func ElementsFromDegrees(a, e, incDeg, raanDeg, argpDeg, maDeg float64) Elements {
	return Elements{
		SemiMajorAxis: a,
		Eccentricity:  e,
		Inclination:   unit.AngleFromDeg(incDeg).Rad(),
		RAAN:          unit.AngleFromDeg(raanDeg).Rad(),
		ArgPerigee:    unit.AngleFromDeg(argpDeg).Rad(),
		MeanAnomaly:   unit.AngleFromDeg(maDeg).Rad(),
	}
}

// Validate checks e ∈ [0,1) and a greater than the Earth radius.
func (el Elements) Validate() error {
	if math.IsNaN(el.Eccentricity) || el.Eccentricity < 0 || el.Eccentricity >= 1 {
		return fmt.Errorf("%w: eccentricity %v outside [0, 1)", ErrInvalidElements, el.Eccentricity)
	}
	if math.IsNaN(el.SemiMajorAxis) || el.SemiMajorAxis <= EarthRadiusKm {
		return fmt.Errorf("%w: semi-major axis %.3f km not above Earth radius", ErrInvalidElements, el.SemiMajorAxis)
	}
	return nil
}

// Kinematics are the rates derived once from (a, e, i) and held constant for a run.
type Kinematics struct {
	MeanMotion     float64 `json:"mean_motion"`      // rad/s
	Period         float64 `json:"period"`           // s
	RAANRate       float64 `json:"raan_rate"`        // rad/s
	ArgPerigeeRate float64 `json:"arg_perigee_rate"` // rad/s
}

// ComputeKinematics returns mean motion, period and J2 secular rates for a
// semi-major axis in km, an eccentricity and an inclination in radians.
func ComputeKinematics(a, e, inc float64) Kinematics {
	n := math.Sqrt(MuEarth / (a * a * a))
	p := a * (1 - e*e)
	k := n * J2 * math.Pow(EarthRadiusKm/p, 2)
	cosI := math.Cos(inc)
	return Kinematics{
		MeanMotion:     n,
		Period:         2 * math.Pi / n,
		RAANRate:       -1.5 * k * cosI,
		ArgPerigeeRate: 0.75 * k * (5*cosI*cosI - 1),
	}
}

// EccentricAnomaly solves E = M + e·sin(E) with KeplerIterations fixed-point steps
// starting from E = M. For e = 0 the result is exactly M.
func EccentricAnomaly(m, e float64) float64 {
	E := m
	for j := 0; j < KeplerIterations; j++ {
		E = m + e*math.Sin(E)
	}
	return E
}

// TrueAnomaly converts an eccentric anomaly with the half-angle formula.
func TrueAnomaly(E, e float64) float64 {
	return 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(E/2), math.Sqrt(1-e)*math.Cos(E/2))
}

// GroundPoint is a sub-satellite point in degrees; Lon lies in (-180, 180].
type GroundPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Propagator maps elapsed time to the sub-satellite point of one satellite.
// It holds no mutable state and is safe for concurrent use.
type Propagator struct {
	el        Elements
	kin       Kinematics
	lonOffset float64 // rad, added to the Earth-fixed longitude
}

// NewPropagator derives kinematics from el and returns a propagator for it.
func NewPropagator(el Elements) *Propagator {
	return &Propagator{el: el, kin: ComputeKinematics(el.SemiMajorAxis, el.Eccentricity, el.Inclination)}
}

// NewPropagatorWithKinematics reuses kinematics already computed for the same (a, e, i).
func NewPropagatorWithKinematics(el Elements, kin Kinematics) *Propagator {
	return &Propagator{el: el, kin: kin}
}

// WithLongitudeOffset returns a copy whose longitudes are shifted by off radians.
// Used to align an inertial RAAN with the Greenwich meridian at a given epoch.
func (p *Propagator) WithLongitudeOffset(off float64) *Propagator {
	cp := *p
	cp.lonOffset = off
	return &cp
}

// Elements returns the elements at epoch.
func (p *Propagator) Elements() Elements { return p.el }

// Kinematics returns the derived rates.
func (p *Propagator) Kinematics() Kinematics { return p.kin }

// At returns the sub-satellite point t seconds after epoch.
func (p *Propagator) At(t float64) GroundPoint {
	el, k := p.el, p.kin
	raan := el.RAAN + k.RAANRate*t
	argp := el.ArgPerigee + k.ArgPerigeeRate*t
	m := el.MeanAnomaly + k.MeanMotion*t

	E := EccentricAnomaly(m, el.Eccentricity)
	nu := TrueAnomaly(E, el.Eccentricity)
	u := argp + nu

	sinI, cosI := math.Sincos(el.Inclination)
	sinU, cosU := math.Sincos(u)
	lat := math.Asin(sinI * sinU)
	lon := raan + math.Atan2(cosI*sinU, cosU) - EarthRotationRate*t + p.lonOffset

	return GroundPoint{
		Lat: unit.Angle(lat).Deg(),
		Lon: geo.NormalizeLon(unit.Angle(lon).Deg()),
	}
}
