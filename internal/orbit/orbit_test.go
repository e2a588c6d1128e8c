package orbit

import (
	"math"
	"testing"

	"github.com/soniakeys/unit"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestKinematicsPeriod(t *testing.T) {
	prev := 0.0
	for alt := 200.0; alt <= 36000; alt += 700 {
		a := EarthRadiusKm + alt
		k := ComputeKinematics(a, 0.001, unit.AngleFromDeg(97.4).Rad())

		wantN := math.Sqrt(MuEarth / (a * a * a))
		if !scalar.EqualWithinRel(k.MeanMotion, wantN, 1e-12) {
			t.Errorf("a=%.0f: n = %v, want %v", a, k.MeanMotion, wantN)
		}
		if !scalar.EqualWithinRel(k.Period, 2*math.Pi/k.MeanMotion, 1e-12) {
			t.Errorf("a=%.0f: T = %v, want 2π/n = %v", a, k.Period, 2*math.Pi/k.MeanMotion)
		}
		if k.Period <= prev {
			t.Errorf("a=%.0f: period %v not greater than previous %v", a, k.Period, prev)
		}
		prev = k.Period
	}
}

func TestKinematicsLEOPeriod(t *testing.T) {
	// 500 km circular orbit: about 94.6 minutes.
	k := ComputeKinematics(EarthRadiusKm+500, 0, 0)
	if minutes := k.Period / 60; minutes < 94 || minutes > 95.2 {
		t.Errorf("500 km period = %.2f min, expected ~94.6", minutes)
	}
}

func TestSunSynchronousDrift(t *testing.T) {
	k := ComputeKinematics(EarthRadiusKm+500, 0.001, unit.AngleFromDeg(97.4).Rad())
	degPerDay := unit.Angle(k.RAANRate).Deg() * 86400
	// Sun-synchronous precession is +0.9856°/day.
	if math.Abs(degPerDay-0.9856) > 0.02 {
		t.Errorf("RAAN drift = %.4f°/day, want ~0.9856", degPerDay)
	}
}

func TestJ2RatesSign(t *testing.T) {
	a := EarthRadiusKm + 700
	prograde := ComputeKinematics(a, 0, unit.AngleFromDeg(45).Rad())
	if prograde.RAANRate >= 0 {
		t.Errorf("prograde RAAN rate = %v, want negative", prograde.RAANRate)
	}
	polar := ComputeKinematics(a, 0, math.Pi/2)
	if math.Abs(polar.RAANRate) > 1e-20 {
		t.Errorf("polar RAAN rate = %v, want 0", polar.RAANRate)
	}
	// Critical inclination 63.43° freezes the argument of perigee.
	critical := ComputeKinematics(a, 0.01, math.Acos(math.Sqrt(0.2)))
	if math.Abs(critical.ArgPerigeeRate) > 1e-18 {
		t.Errorf("critical inclination ω rate = %v, want ~0", critical.ArgPerigeeRate)
	}
}

func TestEccentricAnomalyCircular(t *testing.T) {
	for _, m := range []float64{0, 0.1, 1, math.Pi / 2, math.Pi, 4, 2 * math.Pi, 100} {
		if got := EccentricAnomaly(m, 0); got != m {
			t.Errorf("EccentricAnomaly(%v, 0) = %v, want exactly %v", m, got, m)
		}
		if got := TrueAnomaly(m, 0); angleDiff(got, m) > 1e-12 {
			t.Errorf("TrueAnomaly(%v, 0) = %v, want %v", m, got, m)
		}
	}
}

func TestEccentricAnomalyResidual(t *testing.T) {
	tests := []struct {
		e   float64
		tol float64
	}{
		{0.001, 1e-13},
		{0.01, 1e-13},
		{0.1, 1e-7},
	}
	for _, tt := range tests {
		for m := 0.0; m < 2*math.Pi; m += 0.37 {
			E := EccentricAnomaly(m, tt.e)
			if res := math.Abs(E - tt.e*math.Sin(E) - m); res > tt.tol {
				t.Errorf("e=%v M=%.2f: Kepler residual %.3g exceeds %.1g", tt.e, m, res, tt.tol)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		el      Elements
		wantErr bool
	}{
		{"leo", Elements{SemiMajorAxis: 6878, Eccentricity: 0.001}, false},
		{"circular", Elements{SemiMajorAxis: 7000}, false},
		{"hyperbolic", Elements{SemiMajorAxis: 7000, Eccentricity: 1}, true},
		{"negative e", Elements{SemiMajorAxis: 7000, Eccentricity: -0.1}, true},
		{"underground", Elements{SemiMajorAxis: 6000}, true},
		{"nan", Elements{SemiMajorAxis: math.NaN()}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.el.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPropagatorEpochPoint(t *testing.T) {
	p := NewPropagator(ElementsFromDegrees(EarthRadiusKm+500, 0.001, 97.4, 0, 0, 0))
	gp := p.At(0)
	if !scalar.EqualWithinAbs(gp.Lat, 0, 1e-12) || !scalar.EqualWithinAbs(gp.Lon, 0, 1e-12) {
		t.Errorf("epoch point = %+v, want (0, 0)", gp)
	}
}

func TestPropagatorQuarterOrbitLatitude(t *testing.T) {
	// Circular orbit, satellite 90° past the node: latitude equals inclination.
	p := NewPropagator(ElementsFromDegrees(EarthRadiusKm+600, 0, 51.6, 30, 0, 90))
	gp := p.At(0)
	if !scalar.EqualWithinAbs(gp.Lat, 51.6, 1e-9) {
		t.Errorf("latitude = %v, want 51.6", gp.Lat)
	}
	// RAAN 30° plus 90° in-plane at 51.6° inclination gives longitude 30+90 = 120°.
	if !scalar.EqualWithinAbs(gp.Lon, 120, 1e-9) {
		t.Errorf("longitude = %v, want 120", gp.Lon)
	}
}

func TestPropagatorBounds(t *testing.T) {
	const inc = 51.6
	p := NewPropagator(ElementsFromDegrees(EarthRadiusKm+420, 0.0005, inc, 100, 30, 10))
	for ts := 0.0; ts <= 86400; ts += 37 {
		gp := p.At(ts)
		if math.Abs(gp.Lat) > inc+1e-9 {
			t.Fatalf("t=%v: |lat| %v exceeds inclination", ts, gp.Lat)
		}
		if gp.Lon <= -180 || gp.Lon > 180 {
			t.Fatalf("t=%v: lon %v outside (-180, 180]", ts, gp.Lon)
		}
	}
}

func TestPropagatorDeterministic(t *testing.T) {
	el := ElementsFromDegrees(EarthRadiusKm+500, 0.02, 97.4, 12, 34, 56)
	a, b := NewPropagator(el), NewPropagator(el)
	for ts := 0.0; ts < 20000; ts += 613 {
		if a.At(ts) != b.At(ts) {
			t.Fatalf("t=%v: propagators disagree", ts)
		}
	}
}

func TestPropagatorEarthRotation(t *testing.T) {
	// Equatorial circular orbit: longitude advances by the in-plane and drift
	// rates minus Earth rotation.
	p := NewPropagator(ElementsFromDegrees(EarthRadiusKm+35786, 0, 0, 0, 0, 0))
	gp := p.At(3600)
	k := p.Kinematics()
	want := unit.Angle((k.MeanMotion + k.RAANRate + k.ArgPerigeeRate - EarthRotationRate) * 3600).Deg()
	if !scalar.EqualWithinAbs(gp.Lon, want, 1e-6) {
		t.Errorf("equatorial lon after 1h = %v, want %v", gp.Lon, want)
	}
}

func TestLongitudeOffset(t *testing.T) {
	p := NewPropagator(ElementsFromDegrees(EarthRadiusKm+500, 0, 97.4, 0, 0, 0))
	shifted := p.WithLongitudeOffset(unit.AngleFromDeg(-45).Rad())
	if got := shifted.At(0).Lon; !scalar.EqualWithinAbs(got, -45, 1e-9) {
		t.Errorf("shifted lon = %v, want -45", got)
	}
	if p.At(0).Lon != 0 {
		t.Error("WithLongitudeOffset must not modify the receiver")
	}
}

// angleDiff returns the absolute angular separation in [0, π].
func angleDiff(a, b float64) float64 {
	return math.Abs(wrap2Pi(a-b+math.Pi) - math.Pi)
}

// stateFromElements is the textbook perifocal-to-inertial conversion.
func stateFromElements(el Elements) (r, v [3]float64) {
	e := el.Eccentricity
	E := el.MeanAnomaly
	for i := 0; i < 50; i++ {
		E -= (E - e*math.Sin(E) - el.MeanAnomaly) / (1 - e*math.Cos(E))
	}
	nu := TrueAnomaly(E, e)
	p := el.SemiMajorAxis * (1 - e*e)
	sinNu, cosNu := math.Sincos(nu)
	rp := p / (1 + e*cosNu)
	xp, yp := rp*cosNu, rp*sinNu
	vk := math.Sqrt(MuEarth / p)
	vxp, vyp := -vk*sinNu, vk*(e+cosNu)

	sO, cO := math.Sincos(el.RAAN)
	sw, cw := math.Sincos(el.ArgPerigee)
	si, ci := math.Sincos(el.Inclination)
	m := [3][2]float64{
		{cO*cw - sO*sw*ci, -cO*sw - sO*cw*ci},
		{sO*cw + cO*sw*ci, -sO*sw + cO*cw*ci},
		{sw * si, cw * si},
	}
	for i := 0; i < 3; i++ {
		r[i] = m[i][0]*xp + m[i][1]*yp
		v[i] = m[i][0]*vxp + m[i][1]*vyp
	}
	return r, v
}

func TestElementsFromStateRoundTrip(t *testing.T) {
	tests := []Elements{
		ElementsFromDegrees(7000, 0.01, 51.6, 100, 30, 10),
		ElementsFromDegrees(EarthRadiusKm+500, 0.001, 97.4, 250, 90, 200),
		ElementsFromDegrees(26600, 0.7, 63.4, 300, 270, 5),
		ElementsFromDegrees(42164, 0.2, 5, 10, 20, 350),
	}
	for _, want := range tests {
		r, v := stateFromElements(want)
		got := ElementsFromState(r, v)
		if !scalar.EqualWithinRel(got.SemiMajorAxis, want.SemiMajorAxis, 1e-9) {
			t.Errorf("a = %v, want %v", got.SemiMajorAxis, want.SemiMajorAxis)
		}
		if !scalar.EqualWithinAbs(got.Eccentricity, want.Eccentricity, 1e-9) {
			t.Errorf("e = %v, want %v", got.Eccentricity, want.Eccentricity)
		}
		for _, c := range []struct {
			name      string
			got, want float64
		}{
			{"i", got.Inclination, want.Inclination},
			{"raan", got.RAAN, want.RAAN},
			{"argp", got.ArgPerigee, want.ArgPerigee},
			{"M", got.MeanAnomaly, want.MeanAnomaly},
		} {
			if d := angleDiff(c.got, c.want); d > 1e-7 {
				t.Errorf("%s = %v, want %v (diff %.3g rad)", c.name, c.got, c.want, d)
			}
		}
	}
}

func TestElementsFromStateCircular(t *testing.T) {
	want := ElementsFromDegrees(7000, 0, 45, 60, 0, 30)
	r, v := stateFromElements(want)
	got := ElementsFromState(r, v)
	if got.Eccentricity > 1e-9 {
		t.Fatalf("e = %v, want ~0", got.Eccentricity)
	}
	// Argument of latitude is preserved for circular orbits.
	u := got.ArgPerigee + got.MeanAnomaly
	if d := angleDiff(u, want.MeanAnomaly); d > 1e-7 {
		t.Errorf("argument of latitude = %v, want %v", u, want.MeanAnomaly)
	}
}

func TestSummarize(t *testing.T) {
	a := EarthRadiusKm + 500
	info := ComputeKinematics(a, 0.001, unit.AngleFromDeg(97.4).Rad()).Summarize(a)
	if info.SemiMajorAxis != a {
		t.Errorf("SemiMajorAxis = %v, want %v", info.SemiMajorAxis, a)
	}
	if !scalar.EqualWithinAbs(info.PeriodMinutes*60, info.PeriodSeconds, 1e-9) {
		t.Errorf("period %v min vs %v s", info.PeriodMinutes, info.PeriodSeconds)
	}
	if info.RevsPerDay < 15 || info.RevsPerDay > 15.5 {
		t.Errorf("revs/day = %v, expected ~15.2", info.RevsPerDay)
	}
	if !info.SunSynchronous {
		t.Errorf("97.4° at 500 km should be sun-synchronous (drift %.4f°/day)", info.RAANRate)
	}

	iss := ComputeKinematics(EarthRadiusKm+420, 0, unit.AngleFromDeg(51.6).Rad()).Summarize(EarthRadiusKm + 420)
	if iss.SunSynchronous || iss.RAANRate >= 0 {
		t.Errorf("ISS-like orbit: drift %.3f°/day, sun-synchronous %v", iss.RAANRate, iss.SunSynchronous)
	}
}
