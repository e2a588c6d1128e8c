package orbit

import (
	"math"

	"github.com/soniakeys/unit"
)

const secondsPerDay = 86400

// Info summarizes an orbit's kinematics in display units.
type Info struct {
	SemiMajorAxis  float64 `json:"semi_major_axis_km"`
	PeriodSeconds  float64 `json:"period_s"`
	PeriodMinutes  float64 `json:"period_min"`
	MeanMotion     float64 `json:"mean_motion_rad_s"`
	RevsPerDay     float64 `json:"revs_per_day"`
	RAANRate       float64 `json:"raan_rate_deg_day"`
	ArgPerigeeRate float64 `json:"arg_perigee_rate_deg_day"`
	SunSynchronous bool    `json:"sun_synchronous"`
}

// sunSyncRate is the nodal precession that tracks the mean Sun, in °/day.
const sunSyncRate = 360 / 365.2422

// Summarize reports period, mean motion and J2 drift rates for the semi-major
// axis a in km.
func (k Kinematics) Summarize(a float64) Info {
	raanDay := unit.Angle(k.RAANRate).Deg() * secondsPerDay
	return Info{
		SemiMajorAxis:  a,
		PeriodSeconds:  k.Period,
		PeriodMinutes:  k.Period / 60,
		MeanMotion:     k.MeanMotion,
		RevsPerDay:     secondsPerDay / k.Period,
		RAANRate:       raanDay,
		ArgPerigeeRate: unit.Angle(k.ArgPerigeeRate).Deg() * secondsPerDay,
		SunSynchronous: math.Abs(raanDay-sunSyncRate) < 0.05,
	}
}
