package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/regions"
	"github.com/SizovOleg/eo-services/internal/tle"
)

func newRegionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List the region catalog and city presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tNAME\tLAT\tLON\tGRID DEG")
			for _, r := range regions.All() {
				b := geo.BoundingBox(r)
				fmt.Fprintf(tw, "%s\t%s\t%.1f..%.1f\t%.1f..%.1f\t%.1f\n",
					r.Key, r.Name, b.MinLat, b.MaxLat, b.MinLon, b.MaxLon, coverage.Resolution(b.Span()))
			}
			fmt.Fprintln(tw)
			fmt.Fprintln(tw, "CITY\tLAT\tLON")
			for _, c := range regions.Cities() {
				fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", c.Name, c.Lat, c.Lon)
			}
			return tw.Flush()
		},
	}
}

func newOrbitCmd() *cobra.Command {
	p := coverage.DefaultParams()
	cmd := &cobra.Command{
		Use:   "orbit",
		Short: "Print period, mean motion and J2 drift for an orbit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := p.Validate(); err != nil {
				return err
			}
			info := p.Kinematics().Summarize(p.SemiMajorAxis())
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "semi-major axis\t%.1f km\n", info.SemiMajorAxis)
			fmt.Fprintf(tw, "period\t%.2f min\n", info.PeriodMinutes)
			fmt.Fprintf(tw, "mean motion\t%.6e rad/s\n", info.MeanMotion)
			fmt.Fprintf(tw, "revolutions\t%.3f per day\n", info.RevsPerDay)
			fmt.Fprintf(tw, "node drift\t%.4f °/day\n", info.RAANRate)
			fmt.Fprintf(tw, "perigee drift\t%.4f °/day\n", info.ArgPerigeeRate)
			fmt.Fprintf(tw, "sun-synchronous\t%t\n", info.SunSynchronous)
			fmt.Fprintf(tw, "access width\t%.1f km\n", p.AccessWidth())
			return tw.Flush()
		},
	}
	fs := cmd.Flags()
	fs.Float64Var(&p.Altitude, "altitude", p.Altitude, "orbit altitude, km")
	fs.Float64Var(&p.Eccentricity, "eccentricity", p.Eccentricity, "orbit eccentricity")
	fs.Float64Var(&p.Inclination, "inclination", p.Inclination, "inclination, degrees")
	fs.Float64Var(&p.SwathWidth, "swath", p.SwathWidth, "sensor swath width, km")
	fs.Float64Var(&p.OffNadir, "off-nadir", p.OffNadir, "maximum off-nadir angle, degrees")
	return cmd
}

func newSeedCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "seed FILE",
		Short: "Convert element sets into simulation parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer fh.Close()

			logger := newLogger(os.Stderr)
			entries, err := tle.Parse(fh, logger)
			if err != nil {
				return err
			}

			var seeds []*tle.Seed
			for _, e := range entries {
				s, err := tle.FromEntry(e, coverage.DefaultParams())
				if err != nil {
					logger.Warn("element set skipped", "norad_id", e.NORADID, "error", err)
					continue
				}
				seeds = append(seeds, s)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), seeds)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NORAD\tNAME\tEPOCH\tALT KM\tECC\tINC\tRAAN\tDRIFT KM")
			for _, s := range seeds {
				p := s.Params
				fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.5f\t%.3f\t%.3f\t%.1f\n",
					s.Entry.NORADID, s.Entry.Name, p.Epoch.Format("2006-01-02T15:04:05Z"),
					p.Altitude, p.Eccentricity, p.Inclination, p.RAAN, s.Drift)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print seeds as JSON")
	return cmd
}
