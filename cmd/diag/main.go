// Command diag prints orbit kinematics and a pass table over the city presets.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/passes"
	"github.com/SizovOleg/eo-services/internal/regions"
	"github.com/SizovOleg/eo-services/internal/tle"
)

func main() {
	var (
		tlePath    string
		city       string
		satellites int
		planes     int
		days       int
		topology   string
		step       float64
		maxShown   int
	)
	p := coverage.DefaultParams()

	cmd := &cobra.Command{
		Use:          "diag",
		Short:        "Print orbit kinematics and passes over the city presets",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

			if tlePath != "" {
				fh, err := os.Open(tlePath)
				if err != nil {
					return err
				}
				entries, err := tle.Parse(fh, logger)
				fh.Close()
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					return fmt.Errorf("no element sets in %s", tlePath)
				}
				seed, err := tle.FromEntry(entries[0], p)
				if err != nil {
					return err
				}
				p = seed.Params
				fmt.Printf("Seeded from %s (NORAD %d) epoch %s, SGP4/model drift %.1f km\n",
					seed.Entry.Name, seed.Entry.NORADID, seed.Entry.Epoch.Format(time.RFC3339), seed.Drift)
			}

			if step <= 0 {
				return fmt.Errorf("step must be positive, got %v", step)
			}
			topo, err := constellation.ParseTopology(topology)
			if err != nil {
				return err
			}
			req := coverage.Request{Params: p, Satellites: satellites, Days: days, Topology: topo, Planes: planes}
			if err := req.Validate(); err != nil {
				return err
			}

			info := p.Kinematics().Summarize(p.SemiMajorAxis())
			fmt.Printf("Orbit: a=%.1f km T=%.2f min n=%.3f rev/day node drift=%.4f°/day perigee drift=%.4f°/day\n",
				info.SemiMajorAxis, info.PeriodMinutes, info.RevsPerDay, info.RAANRate, info.ArgPerigeeRate)
			fmt.Printf("Constellation: %d satellites, %s, %d planes, access width %.1f km\n",
				satellites, topo, constellation.PlaneCount(satellites, topo, planes), p.AccessWidth())

			var targets []passes.Target
			for _, c := range regions.Cities() {
				if city == "" || c.Name == city {
					targets = append(targets, passes.Target{Name: c.Name, Lat: c.Lat, Lon: c.Lon})
				}
			}
			if len(targets) == 0 {
				return fmt.Errorf("unknown city %q", city)
			}

			start := time.Now()
			results := passes.Predict(context.Background(), passes.Request{
				Targets:   targets,
				Tracks:    req.Propagators(),
				Step:      step,
				Duration:  req.Duration(),
				HalfWidth: p.AccessWidth() / 2,
			})

			totalPasses := 0
			for _, tp := range results {
				if tp.Error != "" {
					fmt.Printf("  %s: ERROR %s\n", tp.Target.Name, tp.Error)
					continue
				}
				fmt.Printf("  %s (%.2f, %.2f): %d passes", tp.Target.Name, tp.Target.Lat, tp.Target.Lon, len(tp.Passes))
				if st := tp.Stats; st != nil {
					fmt.Printf(", revisit min %.2f h mean %.2f h max %.2f h", st.Min, st.Mean, st.Max)
				}
				fmt.Println()
				totalPasses += len(tp.Passes)
				for j, ps := range tp.Passes {
					if j == maxShown {
						fmt.Printf("    ... %d more\n", len(tp.Passes)-maxShown)
						break
					}
					fmt.Printf("    pass %d: sat=%d start=%.2fh dur=%.0fs minDist=%.1fkm\n",
						j, ps.Satellite, ps.Start/3600, ps.Duration(), ps.MinDistance)
				}
			}
			fmt.Printf("\nTotal passes found: %d in %s\n", totalPasses, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&tlePath, "tle", "", "seed the orbit from the first element set in this file")
	fs.StringVar(&city, "city", "", "only this city preset (default: all)")
	fs.IntVar(&satellites, "satellites", 3, "number of satellites")
	fs.IntVar(&planes, "planes", 3, "orbital planes (walker)")
	fs.IntVar(&days, "days", 3, "prediction window in days")
	fs.StringVar(&topology, "topology", string(constellation.Walker), "single, multi or walker")
	fs.Float64Var(&step, "step", 30, "sampling step, s")
	fs.IntVar(&maxShown, "show", 10, "passes listed per city")
	fs.Float64Var(&p.Altitude, "altitude", p.Altitude, "orbit altitude, km")
	fs.Float64Var(&p.Inclination, "inclination", p.Inclination, "inclination, degrees")
	fs.Float64Var(&p.SwathWidth, "swath", p.SwathWidth, "swath width, km")
	fs.Float64Var(&p.OffNadir, "off-nadir", p.OffNadir, "off-nadir angle, degrees")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
