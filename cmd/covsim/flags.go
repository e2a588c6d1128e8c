package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/regions"
	"github.com/SizovOleg/eo-services/internal/tle"
)

// runFlags are the request flags shared by simulate, optimize and sweep.
type runFlags struct {
	params     coverage.Params
	region     string
	city       string
	lat, lon   float64
	satellites int
	days       int
	topology   string
	planes     int
	tleFile    string
	clamp      bool
	asJSON     bool
	timeout    time.Duration
}

func addRunFlags(cmd *cobra.Command, f *runFlags) {
	f.params = coverage.DefaultParams()
	fs := cmd.Flags()
	fs.Float64Var(&f.params.Altitude, "altitude", f.params.Altitude, "orbit altitude, km")
	fs.Float64Var(&f.params.SwathWidth, "swath", f.params.SwathWidth, "sensor swath width, km")
	fs.Float64Var(&f.params.OffNadir, "off-nadir", f.params.OffNadir, "maximum off-nadir angle, degrees")
	fs.Float64Var(&f.params.Eccentricity, "eccentricity", f.params.Eccentricity, "orbit eccentricity")
	fs.Float64Var(&f.params.Inclination, "inclination", f.params.Inclination, "inclination, degrees")
	fs.Float64Var(&f.params.RAAN, "raan", 0, "right ascension of the ascending node, degrees")
	fs.Float64Var(&f.params.ArgPerigee, "arg-perigee", 0, "argument of perigee, degrees")
	fs.Float64Var(&f.params.MeanAnomaly, "mean-anomaly", 0, "mean anomaly at epoch, degrees")
	fs.StringVar(&f.region, "region", regions.DefaultKey, "region key (see covsim regions)")
	fs.StringVar(&f.city, "city", "", "city preset used as the pass target")
	fs.Float64Var(&f.lat, "lat", math.NaN(), "target latitude, degrees")
	fs.Float64Var(&f.lon, "lon", math.NaN(), "target longitude, degrees")
	fs.IntVar(&f.satellites, "satellites", 3, "number of satellites")
	fs.IntVar(&f.days, "days", 3, "simulated days")
	fs.StringVar(&f.topology, "topology", string(constellation.Walker), "single, multi or walker")
	fs.IntVar(&f.planes, "planes", 3, "orbital planes (walker)")
	fs.StringVar(&f.tleFile, "tle", "", "seed orbit parameters from the first element set in this file")
	fs.BoolVar(&f.clamp, "clamp", false, "clamp counts to the interactive limits instead of rejecting them")
	fs.BoolVar(&f.asJSON, "json", false, "print the full result as JSON")
	fs.DurationVar(&f.timeout, "timeout", 0, "cancel the run after this long (0 = no limit)")
}

// request builds and validates the simulation request described by the flags.
func (f *runFlags) request() (coverage.Request, error) {
	region, ok := regions.Lookup(f.region)
	if !ok {
		return coverage.Request{}, fmt.Errorf("unknown region %q", f.region)
	}
	topo, err := constellation.ParseTopology(f.topology)
	if err != nil {
		return coverage.Request{}, err
	}

	params := f.params
	if f.tleFile != "" {
		if params, err = seedFromFile(f.tleFile, params); err != nil {
			return coverage.Request{}, err
		}
	}

	req := coverage.Request{
		Params:     params,
		Region:     region,
		Satellites: f.satellites,
		Days:       f.days,
		Topology:   topo,
		Planes:     f.planes,
	}
	switch {
	case f.city != "":
		c, ok := regions.CityByName(f.city)
		if !ok {
			return coverage.Request{}, fmt.Errorf("unknown city %q", f.city)
		}
		req.Target = &coverage.Target{Lat: c.Lat, Lon: c.Lon}
	case !math.IsNaN(f.lat) && !math.IsNaN(f.lon):
		req.Target = &coverage.Target{Lat: f.lat, Lon: geo.NormalizeLon(f.lon)}
	}
	if f.clamp {
		req = req.Clamped()
	}
	if err := req.Validate(); err != nil {
		return coverage.Request{}, err
	}
	return req, nil
}

// runContext is cancelled by SIGINT/SIGTERM and, if set, the timeout.
func (f *runFlags) runContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if f.timeout <= 0 {
		return ctx, stop
	}
	tctx, cancel := context.WithTimeout(ctx, f.timeout)
	return tctx, func() {
		cancel()
		stop()
	}
}

// seedFromFile replaces the orbit of base with the first element set in path.
func seedFromFile(path string, base coverage.Params) (coverage.Params, error) {
	fh, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("opening TLE file: %w", err)
	}
	defer fh.Close()

	entries, err := tle.Parse(fh, newLogger(os.Stderr))
	if err != nil {
		return base, err
	}
	if len(entries) == 0 {
		return base, fmt.Errorf("%w: no element sets in %s", tle.ErrMalformed, path)
	}
	seed, err := tle.FromEntry(entries[0], base)
	if err != nil {
		return base, err
	}
	return seed.Params, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
