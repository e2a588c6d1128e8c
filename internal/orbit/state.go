package orbit

import "math"

const (
	circularEps   = 1e-9
	equatorialEps = 1e-9
)

// ElementsFromState converts an inertial position (km) and velocity (km/s) into
// osculating classical elements. Circular orbits measure the anomaly from the
// ascending node and equatorial orbits measure it from the x axis.
func ElementsFromState(r, v [3]float64) Elements {
	rn := norm(r)
	vn := norm(v)
	h := cross(r, v)
	hn := norm(h)
	node := [3]float64{-h[1], h[0], 0}
	nn := norm(node)
	rv := dot(r, v)

	var ev [3]float64
	for i := range ev {
		ev[i] = ((vn*vn-MuEarth/rn)*r[i] - rv*v[i]) / MuEarth
	}
	e := norm(ev)
	a := -MuEarth / (2 * (vn*vn/2 - MuEarth/rn))
	inc := math.Acos(clamp(h[2] / hn))

	var raan, argp, nu float64
	equatorial := nn < equatorialEps*hn
	circular := e < circularEps

	if !equatorial {
		raan = math.Acos(clamp(node[0] / nn))
		if node[1] < 0 {
			raan = 2*math.Pi - raan
		}
	}

	switch {
	case circular && equatorial:
		nu = math.Atan2(r[1], r[0])
	case circular:
		nu = math.Acos(clamp(dot(node, r) / (nn * rn)))
		if r[2] < 0 {
			nu = 2*math.Pi - nu
		}
	case equatorial:
		argp = math.Atan2(ev[1], ev[0])
		if h[2] < 0 {
			argp = 2*math.Pi - argp
		}
		nu = trueAnomalyFrom(ev, e, r, rn, rv)
	default:
		argp = math.Acos(clamp(dot(node, ev) / (nn * e)))
		if ev[2] < 0 {
			argp = 2*math.Pi - argp
		}
		nu = trueAnomalyFrom(ev, e, r, rn, rv)
	}

	E := math.Atan2(math.Sqrt(1-e*e)*math.Sin(nu), e+math.Cos(nu))
	m := E - e*math.Sin(E)

	return Elements{
		SemiMajorAxis: a,
		Eccentricity:  e,
		Inclination:   inc,
		RAAN:          wrap2Pi(raan),
		ArgPerigee:    wrap2Pi(argp),
		MeanAnomaly:   wrap2Pi(m),
	}
}

func trueAnomalyFrom(ev [3]float64, e float64, r [3]float64, rn, rv float64) float64 {
	nu := math.Acos(clamp(dot(ev, r) / (e * rn)))
	if rv < 0 {
		nu = 2*math.Pi - nu
	}
	return nu
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func norm(a [3]float64) float64 {
	return math.Sqrt(dot(a, a))
}

func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

func wrap2Pi(x float64) float64 {
	x = math.Mod(x, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}
	return x
}
