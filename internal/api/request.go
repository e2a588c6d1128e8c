package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/optimize"
	"github.com/SizovOleg/eo-services/internal/regions"
)

// Run modes.
const (
	modeManual = "manual"
	modeAuto   = "auto"
)

var errBadRequest = errors.New("bad request")

// runRequest is the wire form of a simulation request. Omitted fields take the
// interactive defaults.
type runRequest struct {
	Region     string           `json:"region"`
	Polygons   []geo.Ring       `json:"polygons,omitempty"`
	Params     *coverage.Params `json:"params"`
	Satellites int              `json:"satellites"`
	Days       int              `json:"days"`
	Topology   string           `json:"topology"`
	Planes     int              `json:"planes"`
	Target     *coverage.Target `json:"target,omitempty"`
	City       string           `json:"city,omitempty"`
	Mode       string           `json:"mode"`
	Criterion  string           `json:"criterion"`
	Clamp      bool             `json:"clamp,omitempty"`
}

func defaultRunRequest() runRequest {
	p := coverage.DefaultParams()
	return runRequest{
		Region:     regions.DefaultKey,
		Params:     &p,
		Satellites: 3,
		Days:       3,
		Topology:   string(constellation.Walker),
		Planes:     3,
		Mode:       modeManual,
		Criterion:  string(optimize.Coverage),
	}
}

// UnmarshalJSON decodes over the defaults, so partial bodies (including partial
// params) are completed field by field.
func (rr *runRequest) UnmarshalJSON(b []byte) error {
	type plain runRequest
	p := plain(defaultRunRequest())
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return err
	}
	*rr = runRequest(p)
	return nil
}

// toRequest resolves the region and target and validates the result.
func (rr runRequest) toRequest() (coverage.Request, error) {
	var region *geo.Region
	if len(rr.Polygons) > 0 {
		region = &geo.Region{Key: "custom", Name: "custom", Polygons: rr.Polygons}
	} else {
		r, ok := regions.Lookup(rr.Region)
		if !ok {
			return coverage.Request{}, fmt.Errorf("%w: unknown region %q", errBadRequest, rr.Region)
		}
		region = r
	}

	params := coverage.DefaultParams()
	if rr.Params != nil {
		params = *rr.Params
	}
	topo, err := constellation.ParseTopology(rr.Topology)
	if err != nil {
		return coverage.Request{}, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	req := coverage.Request{
		Params:     params,
		Region:     region,
		Satellites: rr.Satellites,
		Days:       rr.Days,
		Topology:   topo,
		Planes:     rr.Planes,
		Target:     rr.Target,
	}
	if rr.City != "" {
		c, ok := regions.CityByName(rr.City)
		if !ok {
			return coverage.Request{}, fmt.Errorf("%w: unknown city %q", errBadRequest, rr.City)
		}
		req.Target = &coverage.Target{Lat: c.Lat, Lon: c.Lon}
	}
	if rr.Clamp {
		req = req.Clamped()
	}
	if req.Satellites > coverage.MaxSatellites || req.Days > coverage.MaxDays {
		return coverage.Request{}, fmt.Errorf("%w: at most %d satellites over %d days",
			errBadRequest, coverage.MaxSatellites, coverage.MaxDays)
	}
	if err := req.Validate(); err != nil {
		return coverage.Request{}, err
	}
	return req, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(q url.Values, name string, def float64) (float64, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a number", errBadRequest, name, s)
	}
	return v, nil
}

// queryInt parses an optional integer query parameter.
func queryInt(q url.Values, name string, def int) (int, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", errBadRequest, name, s)
	}
	return v, nil
}

// paramsFromQuery overlays orbit and sensor query parameters on the defaults.
func paramsFromQuery(q url.Values) (coverage.Params, error) {
	p := coverage.DefaultParams()
	fields := []struct {
		name string
		dst  *float64
	}{
		{"altitude", &p.Altitude},
		{"swath_width", &p.SwathWidth},
		{"off_nadir", &p.OffNadir},
		{"eccentricity", &p.Eccentricity},
		{"inclination", &p.Inclination},
		{"raan", &p.RAAN},
		{"arg_perigee", &p.ArgPerigee},
		{"mean_anomaly", &p.MeanAnomaly},
	}
	for _, f := range fields {
		v, err := queryFloat(q, f.name, *f.dst)
		if err != nil {
			return coverage.Params{}, err
		}
		*f.dst = v
	}
	return p, nil
}
