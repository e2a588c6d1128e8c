// Package optimize searches a small set of constellation topologies for the one
// that maximizes coverage or minimizes mean revisit time.
package optimize

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/metrics"
)

// Criterion selects the score to optimize.
type Criterion string

const (
	Coverage Criterion = "coverage" // maximize final coverage percent
	Revisit  Criterion = "revisit"  // minimize mean revisit interval
)

// ParseCriterion accepts a criterion name, case-insensitive.
func ParseCriterion(s string) (Criterion, error) {
	c := Criterion(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Coverage, Revisit:
		return c, nil
	}
	return "", fmt.Errorf("unknown criterion %q (want coverage or revisit)", s)
}

// Candidate is one topology to try.
type Candidate struct {
	Topology constellation.Topology `json:"topology"`
	Planes   int                    `json:"planes"`
}

func (c Candidate) String() string {
	if c.Topology == constellation.Walker {
		return fmt.Sprintf("walker_%d", c.Planes)
	}
	return string(c.Topology)
}

// Candidates returns single and multi, then one Walker candidate per plane count
// from 2 to min(n, 4) when n >= 2. Non-Walker candidates carry n planes.
func Candidates(n int) []Candidate {
	out := []Candidate{
		{Topology: constellation.Single, Planes: n},
		{Topology: constellation.Multi, Planes: n},
	}
	if n >= 2 {
		for p := 2; p <= min(n, 4); p++ {
			out = append(out, Candidate{Topology: constellation.Walker, Planes: p})
		}
	}
	return out
}

// Score returns the result's value under the criterion. A revisit score without
// interval statistics is +Inf.
func Score(res *coverage.Result, c Criterion) float64 {
	if c == Revisit {
		if res.PeriodStats == nil {
			return math.Inf(1)
		}
		return res.PeriodStats.Mean
	}
	return res.FinalCoverage
}

// better reports whether score a strictly beats b.
func better(a, b float64, c Criterion) bool {
	if c == Revisit {
		return a < b
	}
	return a > b
}

// Ranked is one evaluated candidate.
type Ranked struct {
	Candidate Candidate        `json:"candidate"`
	Score     float64          `json:"score"`
	Result    *coverage.Result `json:"-"`
}

// Optimizer evaluates candidates sequentially with one simulator.
type Optimizer struct {
	sim    *coverage.Simulator
	logger *slog.Logger
}

// New returns an optimizer driving sim.
func New(sim *coverage.Simulator, logger *slog.Logger) *Optimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Optimizer{sim: sim, logger: logger}
}

// FindOptimal runs every candidate for req (its Topology and Planes are replaced)
// and returns the best result. Ties keep the earlier candidate.
//
// With the revisit criterion, a candidate without revisit statistics scores
// +Inf. If every candidate scores +Inf, FindOptimal still returns the first
// candidate (single) instead of no result. A strict minimum search seeded
// with +Inf would select nothing here. A nil result therefore only ever means
// the run was cancelled. ok is false if tok was observed cancelled.
func (o *Optimizer) FindOptimal(req coverage.Request, crit Criterion, tok cancel.Checker) (*coverage.Result, bool) {
	ranked, ok := o.evaluate(req, crit, tok, "optimize")
	if !ok || len(ranked) == 0 {
		return nil, ok
	}
	best := ranked[0]
	for _, r := range ranked[1:] {
		if better(r.Score, best.Score, crit) {
			best = r
		}
	}
	o.logger.Info("optimal configuration found",
		"criterion", crit,
		"candidate", best.Candidate.String(),
		"score", best.Score,
		"candidates", len(ranked),
	)
	return best.Result, true
}

// Rank evaluates every candidate and returns them best first. The sort is
// stable, so equal scores keep candidate order.
func (o *Optimizer) Rank(req coverage.Request, crit Criterion, tok cancel.Checker) ([]Ranked, bool) {
	ranked, ok := o.evaluate(req, crit, tok, "rank")
	if !ok {
		return nil, false
	}
	slices.SortStableFunc(ranked, func(a, b Ranked) int {
		switch {
		case better(a.Score, b.Score, crit):
			return -1
		case better(b.Score, a.Score, crit):
			return 1
		}
		return 0
	})
	return ranked, true
}

func (o *Optimizer) evaluate(req coverage.Request, crit Criterion, tok cancel.Checker, mode string) (ranked []Ranked, ok bool) {
	start := time.Now()
	defer func() {
		metrics.RecordSimulation(mode, !ok, time.Since(start))
	}()

	cands := Candidates(req.Satellites)
	ranked = make([]Ranked, 0, len(cands))
	for _, c := range cands {
		if cancel.IsCancelled(tok) {
			o.logger.Debug("optimization cancelled", "candidate", c.String())
			return nil, false
		}
		r := req
		r.Topology = c.Topology
		r.Planes = c.Planes
		res, done := o.sim.Run(r, tok)
		if !done {
			o.logger.Debug("optimization cancelled", "candidate", c.String())
			return nil, false
		}
		score := Score(res, crit)
		o.logger.Debug("candidate evaluated", "candidate", c.String(), "criterion", crit, "score", score)
		ranked = append(ranked, Ranked{Candidate: c, Score: score, Result: res})
	}
	return ranked, true
}
