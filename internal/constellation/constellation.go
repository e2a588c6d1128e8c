// Package constellation expands a satellite count and topology into per-satellite
// RAAN and mean-anomaly offsets relative to a baseline orbit.
package constellation

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Topology selects how satellites are distributed over orbital planes.
type Topology string

const (
	Single Topology = "single" // one plane, spread in mean anomaly
	Multi  Topology = "multi"  // one satellite per plane, spread in RAAN
	Walker Topology = "walker" // Walker-Delta over a given number of planes
)

// Topologies lists the supported topologies in candidate order.
var Topologies = []Topology{Single, Multi, Walker}

// ParseTopology accepts a topology name, case-insensitive.
func ParseTopology(s string) (Topology, error) {
	t := Topology(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(Topologies, t) {
		return t, nil
	}
	return "", fmt.Errorf("unknown topology %q (want single, multi or walker)", s)
}

// Slot is the offset of one satellite from the baseline elements, in degrees.
type Slot struct {
	RAANOffset        float64 `json:"raan_offset"`
	MeanAnomalyOffset float64 `json:"mean_anomaly_offset"`
	Plane             int     `json:"plane"`
}

// Generate returns n slots for the topology. planes is used by Walker only and is
// limited to [1, n]. An unknown topology or n < 1 yields no slots.
func Generate(n int, topo Topology, planes int) []Slot {
	if n < 1 {
		return nil
	}
	switch topo {
	case Single:
		slots := make([]Slot, n)
		for s := range slots {
			slots[s] = Slot{MeanAnomalyOffset: 360 / float64(n) * float64(s)}
		}
		return slots
	case Multi:
		slots := make([]Slot, n)
		for s := range slots {
			slots[s] = Slot{RAANOffset: 360 / float64(n) * float64(s), Plane: s}
		}
		return slots
	case Walker:
		return walker(n, planes)
	}
	return nil
}

// walker fills planes in order with ceil(n/P) satellites each; the last plane may
// be short. The inter-plane phase step is 360/n per plane.
func walker(n, planes int) []Slot {
	p := min(max(planes, 1), n)
	perPlane := (n + p - 1) / p
	slots := make([]Slot, 0, n)
	for plane := 0; plane < p && len(slots) < n; plane++ {
		for s := 0; s < perPlane && len(slots) < n; s++ {
			slots = append(slots, Slot{
				RAANOffset:        360 / float64(p) * float64(plane),
				MeanAnomalyOffset: math.Mod(360/float64(perPlane)*float64(s)+360/float64(n)*float64(plane), 360),
				Plane:             plane,
			})
		}
	}
	return slots
}

// PlaneCount returns the number of distinct planes Generate uses for the topology.
func PlaneCount(n int, topo Topology, planes int) int {
	switch {
	case n < 1:
		return 0
	case topo == Single:
		return 1
	case topo == Multi:
		return n
	case topo == Walker:
		return min(max(planes, 1), n)
	}
	return 0
}
