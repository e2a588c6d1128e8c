package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/SizovOleg/eo-services/internal/cache"
	"github.com/SizovOleg/eo-services/internal/cancel"
	"github.com/SizovOleg/eo-services/internal/constellation"
	"github.com/SizovOleg/eo-services/internal/coverage"
	"github.com/SizovOleg/eo-services/internal/geo"
	"github.com/SizovOleg/eo-services/internal/httputil"
	"github.com/SizovOleg/eo-services/internal/jobs"
	"github.com/SizovOleg/eo-services/internal/optimize"
	"github.com/SizovOleg/eo-services/internal/orbit"
	"github.com/SizovOleg/eo-services/internal/passes"
	"github.com/SizovOleg/eo-services/internal/regions"
	"github.com/SizovOleg/eo-services/internal/sweep"
	"github.com/SizovOleg/eo-services/internal/tle"
)

// decodeJSON reads a size-limited JSON body into v.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", errBadRequest, err)
	}
	return nil
}

// writeRequestError maps decode and validation errors to 400.
func writeRequestError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBadRequest) || errors.Is(err, coverage.ErrInvalidParams) ||
		errors.Is(err, tle.ErrMalformed) || errors.Is(err, orbit.ErrInvalidElements) {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteError(w, http.StatusInternalServerError, err.Error())
}

// runContext bounds a synchronous run by the request context and RunTimeout.
func (s *Server) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.cfg.RunTimeout)
}

// writeCancelled reports a run that observed its cancellation checker.
func (s *Server) writeCancelled(w http.ResponseWriter, r *http.Request) {
	if r.Context().Err() != nil {
		s.logger.Debug("client went away during run", "path", r.URL.Path)
		return
	}
	httputil.WriteError(w, http.StatusServiceUnavailable,
		fmt.Sprintf("run cancelled after %s timeout", s.cfg.RunTimeout))
}

func (s *Server) cacheKey(kind string, req coverage.Request, crit optimize.Criterion) (cache.Key, bool) {
	if s.deps.Cache == nil {
		return "", false
	}
	if kind == modeAuto {
		// The optimizer replaces topology and planes.
		req.Topology, req.Planes = "", 0
	}
	k, err := cache.KeyFor(kind, req.Region, req, crit)
	if err != nil {
		s.logger.Warn("cache key failed", "error", err)
		return "", false
	}
	return k, true
}

func (s *Server) cached(kind string, req coverage.Request, crit optimize.Criterion) (*coverage.Result, bool) {
	k, ok := s.cacheKey(kind, req, crit)
	if !ok {
		return nil, false
	}
	return s.deps.Cache.Get(k)
}

func (s *Server) store(kind string, req coverage.Request, crit optimize.Criterion, res *coverage.Result) {
	if k, ok := s.cacheKey(kind, req, crit); ok {
		s.deps.Cache.Put(k, res)
	}
}

// decodeRun reads and resolves a simulation request body.
func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (runRequest, coverage.Request, error) {
	rr := defaultRunRequest()
	if err := s.decodeJSON(w, r, &rr); err != nil {
		return rr, coverage.Request{}, err
	}
	req, err := rr.toRequest()
	return rr, req, err
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	_, req, err := s.decodeRun(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if res, ok := s.cached(modeManual, req, ""); ok {
		w.Header().Set("X-Cache", "hit")
		httputil.WriteJSON(w, http.StatusOK, res)
		return
	}

	ctx, cancelRun := s.runContext(r)
	defer cancelRun()
	res, ok := s.deps.Simulator.Run(req, cancel.FromContext(ctx))
	if !ok {
		s.writeCancelled(w, r)
		return
	}
	s.store(modeManual, req, "", res)
	httputil.WriteJSON(w, http.StatusOK, res)
}

// rankedEntry is one candidate of an optimize ranking. Score is null when the
// candidate produced no revisit statistics.
type rankedEntry struct {
	Candidate string   `json:"candidate"`
	Topology  string   `json:"topology"`
	Planes    int      `json:"planes"`
	Score     *float64 `json:"score"`
}

type optimizeResponse struct {
	Criterion optimize.Criterion `json:"criterion"`
	Result    *coverage.Result   `json:"result"`
	Ranking   []rankedEntry      `json:"ranking,omitempty"`
}

func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	rr, req, err := s.decodeRun(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	crit, err := optimize.ParseCriterion(rr.Criterion)
	if err != nil {
		writeRequestError(w, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}
	withRanking := r.URL.Query().Get("rank") == "true"

	if !withRanking {
		if res, ok := s.cached(modeAuto, req, crit); ok {
			w.Header().Set("X-Cache", "hit")
			httputil.WriteJSON(w, http.StatusOK, optimizeResponse{Criterion: crit, Result: res})
			return
		}
	}

	ctx, cancelRun := s.runContext(r)
	defer cancelRun()
	tok := cancel.FromContext(ctx)

	resp := optimizeResponse{Criterion: crit}
	if withRanking {
		ranked, ok := s.deps.Optimizer.Rank(req, crit, tok)
		if !ok {
			s.writeCancelled(w, r)
			return
		}
		for _, rk := range ranked {
			e := rankedEntry{Candidate: rk.Candidate.String(), Topology: string(rk.Candidate.Topology), Planes: rk.Candidate.Planes}
			if !math.IsInf(rk.Score, 0) {
				score := rk.Score
				e.Score = &score
			}
			resp.Ranking = append(resp.Ranking, e)
		}
		if len(ranked) > 0 {
			resp.Result = ranked[0].Result
		}
	} else {
		res, ok := s.deps.Optimizer.FindOptimal(req, crit, tok)
		if !ok {
			s.writeCancelled(w, r)
			return
		}
		resp.Result = res
	}
	s.store(modeAuto, req, crit, resp.Result)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type sweepRequest struct {
	Requests []runRequest `json:"requests"`
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	var body sweepRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	if len(body.Requests) == 0 || len(body.Requests) > s.cfg.MaxSweep {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":     fmt.Sprintf("sweep needs 1 to %d requests, got %d", s.cfg.MaxSweep, len(body.Requests)),
			"max_sweep": s.cfg.MaxSweep,
		})
		return
	}

	reqs := make([]coverage.Request, len(body.Requests))
	for i, rr := range body.Requests {
		req, err := rr.toRequest()
		if err != nil {
			writeRequestError(w, fmt.Errorf("request %d: %w", i, err))
			return
		}
		reqs[i] = req
	}

	ctx, cancelRun := s.runContext(r)
	defer cancelRun()
	out := s.deps.Sweeper.Run(ctx, reqs)
	for i, o := range out {
		if o.Result != nil {
			s.store(modeManual, reqs[i], "", o.Result)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]sweep.Outcome{"outcomes": out})
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	rr, req, err := s.decodeRun(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	var run jobs.RunFunc
	switch rr.Mode {
	case modeManual:
		run = func(tok cancel.Checker) (*coverage.Result, bool) {
			res, ok := s.deps.Simulator.Run(req, tok)
			if ok {
				s.store(modeManual, req, "", res)
			}
			return res, ok
		}
	case modeAuto:
		crit, err := optimize.ParseCriterion(rr.Criterion)
		if err != nil {
			writeRequestError(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
		run = func(tok cancel.Checker) (*coverage.Result, bool) {
			res, ok := s.deps.Optimizer.FindOptimal(req, crit, tok)
			if ok {
				s.store(modeAuto, req, crit, res)
			}
			return res, ok
		}
	default:
		writeRequestError(w, fmt.Errorf("%w: unknown mode %q (want %s or %s)", errBadRequest, rr.Mode, modeManual, modeAuto))
		return
	}

	job, err := s.deps.Jobs.Submit(rr.Mode, run)
	if errors.Is(err, jobs.ErrTooManyJobs) {
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		writeRequestError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string][]jobs.Job{"jobs": s.deps.Jobs.List()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Get(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, job)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Cancel(r.PathValue("id"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, job)
}

type regionSummary struct {
	Key      string     `json:"key"`
	Name     string     `json:"name"`
	Box      geo.Box    `json:"bbox"`
	Polygons []geo.Ring `json:"polygons,omitempty"`
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	full := r.URL.Query().Get("full") == "true"
	all := regions.All()
	out := make([]regionSummary, len(all))
	for i, reg := range all {
		out[i] = regionSummary{Key: reg.Key, Name: reg.Name, Box: geo.BoundingBox(reg)}
		if full {
			out[i].Polygons = reg.Polygons
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"default": regions.DefaultKey,
		"regions": out,
		"cities":  regions.Cities(),
	})
}

func (s *Server) handleOrbit(w http.ResponseWriter, r *http.Request) {
	p, err := paramsFromQuery(r.URL.Query())
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if err := p.Validate(); err != nil {
		writeRequestError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"orbit":        p.Kinematics().Summarize(p.SemiMajorAxis()),
		"access_width": p.AccessWidth(),
	})
}

// maxPassSamples bounds the propagation budget of one passes query.
const maxPassSamples = 2_000_000

func (s *Server) handlePasses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := paramsFromQuery(q)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	req := coverage.Request{Params: p, Topology: constellation.Walker}
	if t := q.Get("topology"); t != "" {
		if req.Topology, err = constellation.ParseTopology(t); err != nil {
			writeRequestError(w, fmt.Errorf("%w: %w", errBadRequest, err))
			return
		}
	}
	if req.Satellites, err = queryInt(q, "satellites", 3); err != nil {
		writeRequestError(w, err)
		return
	}
	if req.Planes, err = queryInt(q, "planes", 3); err != nil {
		writeRequestError(w, err)
		return
	}
	if req.Days, err = queryInt(q, "days", 3); err != nil {
		writeRequestError(w, err)
		return
	}
	step, err := queryFloat(q, "step", 60)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeRequestError(w, err)
		return
	}
	if step < 1 || req.Satellites > coverage.MaxSatellites || req.Days > coverage.MaxDays {
		writeRequestError(w, fmt.Errorf("%w: step must be at least 1 s with at most %d satellites over %d days",
			errBadRequest, coverage.MaxSatellites, coverage.MaxDays))
		return
	}
	if samples := (req.Duration()/step + 1) * float64(req.Satellites); samples > maxPassSamples {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":       fmt.Sprintf("query needs %.0f samples", samples),
			"max_samples": maxPassSamples,
		})
		return
	}

	targets, err := passTargets(q)
	if err != nil {
		writeRequestError(w, err)
		return
	}

	ctx, cancelRun := s.runContext(r)
	defer cancelRun()
	res := passes.Predict(ctx, passes.Request{
		Targets:   targets,
		Tracks:    req.Propagators(),
		Step:      step,
		Duration:  req.Duration(),
		HalfWidth: p.AccessWidth() / 2,
	})
	if ctx.Err() != nil {
		s.writeCancelled(w, r)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"targets": res})
}

// passTargets reads city=<name>[,<name>...], city=all, or lat/lon.
func passTargets(q url.Values) ([]passes.Target, error) {
	vals := q["city"]
	if len(vals) == 0 || vals[0] == "" {
		lat, err := queryFloat(q, "lat", math.NaN())
		if err != nil {
			return nil, err
		}
		lon, err := queryFloat(q, "lon", math.NaN())
		if err != nil {
			return nil, err
		}
		if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 {
			return nil, fmt.Errorf("%w: need city or lat/lon within range", errBadRequest)
		}
		return []passes.Target{{Name: "target", Lat: lat, Lon: geo.NormalizeLon(lon)}}, nil
	}

	if vals[0] == "all" {
		var out []passes.Target
		for _, c := range regions.Cities() {
			out = append(out, passes.Target{Name: c.Name, Lat: c.Lat, Lon: c.Lon})
		}
		return out, nil
	}
	var out []passes.Target
	for _, name := range strings.Split(vals[0], ",") {
		c, ok := regions.CityByName(strings.TrimSpace(name))
		if !ok {
			return nil, fmt.Errorf("%w: unknown city %q", errBadRequest, name)
		}
		out = append(out, passes.Target{Name: c.Name, Lat: c.Lat, Lon: c.Lon})
	}
	return out, nil
}

type seedRequest struct {
	Name   string           `json:"name"`
	Line1  string           `json:"line1"`
	Line2  string           `json:"line2"`
	Params *coverage.Params `json:"params,omitempty"`
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	var body seedRequest
	if err := s.decodeJSON(w, r, &body); err != nil {
		writeRequestError(w, err)
		return
	}
	entry, err := tle.ParseLines(body.Name, body.Line1, body.Line2)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	base := coverage.DefaultParams()
	if body.Params != nil {
		base = *body.Params
	}
	seed, err := tle.FromEntry(entry, base)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.logger.Info("parameters seeded from TLE",
		"norad_id", entry.NORADID,
		"altitude", seed.Params.Altitude,
		"inclination", seed.Params.Inclination,
		"drift_km", seed.Drift,
	)
	httputil.WriteJSON(w, http.StatusOK, seed)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Cache == nil {
		httputil.WriteError(w, http.StatusNotFound, "result cache disabled")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.deps.Cache.Stats())
}
