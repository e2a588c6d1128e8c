package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/optimize"
	"github.com/SizovOleg/eo-services/internal/sweep"
)

var errCancelled = errors.New("run cancelled")

func newSimulateCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate coverage for one constellation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			ctx, stop := f.runContext()
			defer stop()

			sim := coverage.NewSimulator(newLogger(os.Stderr))
			res, ok := sim.Run(req, cancel.FromContext(ctx))
			if !ok {
				return errCancelled
			}
			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			return printSummary(cmd.OutOrStdout(), res)
		},
	}
	addRunFlags(cmd, &f)
	return cmd
}

func newOptimizeCmd() *cobra.Command {
	var (
		f         runFlags
		criterion string
		rank      bool
	)
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Search constellation topologies for the best coverage or revisit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			crit, err := optimize.ParseCriterion(criterion)
			if err != nil {
				return err
			}
			ctx, stop := f.runContext()
			defer stop()

			logger := newLogger(os.Stderr)
			opt := optimize.New(coverage.NewSimulator(logger), logger)
			out := cmd.OutOrStdout()

			if !rank {
				res, ok := opt.FindOptimal(req, crit, cancel.FromContext(ctx))
				if !ok {
					return errCancelled
				}
				if f.asJSON {
					return writeJSON(out, res)
				}
				return printSummary(out, res)
			}

			ranked, ok := opt.Rank(req, crit, cancel.FromContext(ctx))
			if !ok {
				return errCancelled
			}
			if f.asJSON {
				return writeJSON(out, rankingRows(ranked))
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tCANDIDATE\tCOVERAGE %\tPASSES\tMEAN REVISIT H")
			for i, r := range ranked {
				fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%s\n", i+1, r.Candidate, r.Result.FinalCoverage, len(r.Result.Passes), meanRevisit(r.Result))
			}
			return tw.Flush()
		},
	}
	addRunFlags(cmd, &f)
	cmd.Flags().StringVar(&criterion, "criterion", string(optimize.Coverage), "coverage or revisit")
	cmd.Flags().BoolVar(&rank, "rank", false, "print every candidate, best first")
	return cmd
}

func newSweepCmd() *cobra.Command {
	var (
		f                runFlags
		minSats, maxSats int
		workers          int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Simulate a range of constellation sizes in parallel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minSats < 1 || maxSats < minSats {
				return fmt.Errorf("invalid satellite range %d..%d", minSats, maxSats)
			}
			base, err := f.request()
			if err != nil {
				return err
			}
			reqs := make([]coverage.Request, 0, maxSats-minSats+1)
			for n := minSats; n <= maxSats; n++ {
				r := base
				r.Satellites = n
				if f.clamp {
					r = r.Clamped()
				}
				reqs = append(reqs, r)
			}

			ctx, stop := f.runContext()
			defer stop()
			logger := newLogger(os.Stderr)
			pool := sweep.NewWorkerPool(workers, coverage.NewSimulator(logger), logger)
			outcomes := pool.Run(ctx, reqs)

			if f.asJSON {
				return writeJSON(cmd.OutOrStdout(), outcomes)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SATELLITES\tCOVERAGE %\tPASSES\tMEAN REVISIT H\tSTATUS")
			for _, o := range outcomes {
				n := reqs[o.Index].Satellites
				switch {
				case o.Error != "":
					fmt.Fprintf(tw, "%d\t-\t-\t-\t%s\n", n, o.Error)
				case o.Cancelled:
					fmt.Fprintf(tw, "%d\t-\t-\t-\tcancelled\n", n)
				default:
					fmt.Fprintf(tw, "%d\t%.2f\t%d\t%s\tok\n", n, o.Result.FinalCoverage, len(o.Result.Passes), meanRevisit(o.Result))
				}
			}
			return tw.Flush()
		},
	}
	addRunFlags(cmd, &f)
	cmd.Flags().IntVar(&minSats, "min", 1, "smallest constellation")
	cmd.Flags().IntVar(&maxSats, "max", 6, "largest constellation")
	cmd.Flags().IntVar(&workers, "workers", 0, "parallel simulations (0 = GOMAXPROCS)")
	return cmd
}

// rankingRow is the JSON form of a ranked candidate; Score is null when the
// candidate has no revisit statistics.
type rankingRow struct {
	Candidate string           `json:"candidate"`
	Score     *float64         `json:"score"`
	Result    *coverage.Result `json:"result"`
}

func rankingRows(ranked []optimize.Ranked) []rankingRow {
	rows := make([]rankingRow, len(ranked))
	for i, r := range ranked {
		rows[i] = rankingRow{Candidate: r.Candidate.String(), Result: r.Result}
		if !math.IsInf(r.Score, 0) {
			score := r.Score
			rows[i].Score = &score
		}
	}
	return rows
}

func meanRevisit(res *coverage.Result) string {
	if res.PeriodStats == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", res.PeriodStats.Mean)
}

// printSummary writes the headline figures of a result.
func printSummary(w io.Writer, res *coverage.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "topology\t%s (%d planes)\n", res.Topology, res.Planes)
	fmt.Fprintf(tw, "satellites\t%d\n", res.Satellites)
	fmt.Fprintf(tw, "period\t%.2f min\n", res.Period/60)
	fmt.Fprintf(tw, "access width\t%.1f km\n", res.AccessWidth)
	fmt.Fprintf(tw, "time step\t%.0f s\n", res.TimeStep)
	fmt.Fprintf(tw, "coverage\t%.2f %% (%d/%d cells)\n", res.FinalCoverage, res.CoveredCells, res.TotalCells)
	fmt.Fprintf(tw, "passes\t%d\n", len(res.Passes))
	if st := res.PeriodStats; st != nil {
		fmt.Fprintf(tw, "revisit\tmin %.2f h  mean %.2f h  max %.2f h\n", st.Min, st.Mean, st.Max)
	}
	return tw.Flush()
}
