package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fieldroute/internal/buildinfo"
	"fieldroute/internal/directions"
	"fieldroute/internal/metrics"
	"fieldroute/internal/model"
	"fieldroute/internal/opt"
	"fieldroute/internal/planner"
	"fieldroute/internal/store"
)

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler reports readiness.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// DebugHandler exposes build info and redacted config.
func (s *Server) DebugHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":             s.Cfg.Server.Port,
			"hasDatabaseURL":   s.Cfg.Database.URL != "",
			"hasRedisURL":      s.Cfg.Redis.URL != "",
			"hasDirectionsKey": s.Cfg.Directions.APIKey != "",
			"defaultBudgetMs":  s.Cfg.Optimizer.DefaultBudgetMs,
			"maxBudgetMs":      s.Cfg.Optimizer.MaxBudgetMs,
			"avgSpeedKmh":      s.Cfg.Optimizer.AvgSpeedKmh,
		},
	})
}

// PointSetsHandler handles POST/GET /v1/pointsets.
func (s *Server) PointSetsHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var in model.PointSetIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if err := validatePointSet(&in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid point set", err.Error(), r.URL.Path)
			return
		}
		ps, err := s.Store.CreatePointSet(r.Context(), in)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create point set failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, ps)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListPointSets(r.Context(), cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List point sets failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// PointSetByIDHandler handles /v1/pointsets/{id} and /v1/pointsets/{id}/export.
func (s *Server) PointSetByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/pointsets/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 1 && parts[1] == "export" {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ps, err := s.Store.GetPointSet(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Point set", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="points.csv"`)
		if err := WritePointsCSV(w, ps.Points); err != nil {
			writeProblem(w, http.StatusInternalServerError, "Export failed", err.Error(), r.URL.Path)
		}
		return
	}
	switch r.Method {
	case http.MethodGet:
		ps, err := s.Store.GetPointSet(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Point set", err)
			return
		}
		writeJSON(w, http.StatusOK, ps)
	case http.MethodDelete:
		if err := s.Store.DeletePointSet(r.Context(), id); err != nil {
			s.storeProblem(w, r, "Point set", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// ImportHandler handles POST /v1/pointsets/import with a CSV body of
// name,longitude,latitude rows.
func (s *Server) ImportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	pts, err := ParsePointsCSV(r.Body)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error(), r.URL.Path)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "imported"
	}
	ps, err := s.Store.CreatePointSet(r.Context(), model.PointSetIn{Name: name, Points: pts})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create point set failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusCreated, ps)
}

// OptimizeHandler handles POST /v1/optimize.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}

	points := req.Points
	if len(points) == 0 && req.PointSetID != "" {
		ps, err := s.Store.GetPointSet(r.Context(), req.PointSetID)
		if err != nil {
			s.storeProblem(w, r, "Point set", err)
			return
		}
		points = ps.Points
	}

	// Memoization: identical ordered coordinates reuse the stored plan.
	if fp := planner.Fingerprint(points); len(points) >= 2 {
		if cached, err := s.Store.FindPlanByFingerprint(r.Context(), fp); err == nil {
			cached.Cached = true
			metrics.OptimizeRuns.WithLabelValues("cached").Inc()
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	plan, err := s.runPlan(r, points, req)
	if err != nil {
		if errors.Is(err, opt.ErrInvalidInput) {
			metrics.OptimizeRuns.WithLabelValues("error").Inc()
			writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
			return
		}
		metrics.OptimizeRuns.WithLabelValues("error").Inc()
		writeProblem(w, http.StatusInternalServerError, "Optimization failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// runPlan executes a planning run, persists the plan and publishes the
// completion event.
func (s *Server) runPlan(r *http.Request, points []model.Waypoint, req model.OptimizeRequest) (model.Plan, error) {
	opts := s.plannerOptions(req.TimeBudgetMs)
	plan, met, err := planner.Plan(r.Context(), points, opts)
	if err != nil {
		return model.Plan{}, err
	}
	plan.PointSetID = req.PointSetID

	if req.IncludePath {
		path := s.resolvePath(r, plan, req.Profile)
		if path.Real {
			plan.Stats = planner.StatsFromPath(plan.Stats, path.DistanceM, path.DurationS)
		}
	}

	plan, err = s.Store.SavePlan(r.Context(), plan)
	if err != nil {
		return model.Plan{}, err
	}
	opt.RecordMetrics(plan.ID, met)
	metrics.OptimizeDuration.Observe(met.Elapsed.Seconds())
	metrics.TourCostUnits.Observe(float64(plan.TotalCostUnits))
	if plan.Converged {
		metrics.OptimizeRuns.WithLabelValues("converged").Inc()
	} else {
		metrics.OptimizeRuns.WithLabelValues("budget_exhausted").Inc()
	}

	s.Broker.Publish(plan.ID, PlanEvent{Type: "plan.completed", Data: map[string]any{
		"planId":    plan.ID,
		"cost":      plan.TotalCostUnits,
		"converged": plan.Converged,
		"ts":        time.Now().UTC().Format(time.RFC3339),
	}})
	return plan, nil
}

func (s *Server) resolvePath(r *http.Request, plan model.Plan, profile string) directions.Path {
	if profile == "" {
		profile = s.Cfg.Directions.Profile
	}
	path := directions.Resolve(r.Context(), s.Directions, plan.Points, plan.Tour, profile)
	if path.Real {
		metrics.DirectionsRequests.WithLabelValues("ok").Inc()
	} else if s.Directions != nil {
		metrics.DirectionsRequests.WithLabelValues("fallback").Inc()
	}
	return path
}

// PlansIndexHandler handles GET /v1/plans.
func (s *Server) PlansIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListPlans(r.Context(), cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List plans failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id} plus the /path, /metrics
// and /events/stream sub-resources.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/plans/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]

	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.planEventsSSE(w, r, id)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if len(parts) > 1 && parts[1] == "path" {
		plan, err := s.Store.GetPlan(r.Context(), id)
		if err != nil {
			s.storeProblem(w, r, "Plan", err)
			return
		}
		path := s.resolvePath(r, plan, r.URL.Query().Get("profile"))
		w.Header().Set("Content-Type", "application/geo+json")
		_ = json.NewEncoder(w).Encode(directions.ToFeatureCollection(path, plan.Points, plan.Tour))
		return
	}
	if len(parts) > 1 && parts[1] == "metrics" {
		m, ok := opt.GetMetrics(id)
		if !ok {
			writeProblem(w, http.StatusNotFound, "Metrics not found", "no solver metrics recorded for plan", r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"constructionCost": m.ConstructionCost,
			"finalCost":        m.FinalCost,
			"passes":           m.Passes,
			"improvements":     m.Improvements,
			"elapsedMs":        m.Elapsed.Milliseconds(),
		})
		return
	}
	plan, err := s.Store.GetPlan(r.Context(), id)
	if err != nil {
		s.storeProblem(w, r, "Plan", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// planEventsSSE streams plan events over Server-Sent Events.
func (s *Server) planEventsSSE(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"planId\":%q,\"ts\":%q}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"planId\":%q,\"ts\":%q}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func (s *Server) storeProblem(w http.ResponseWriter, r *http.Request, what string, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, what+" not found", err.Error(), r.URL.Path)
		return
	}
	writeProblem(w, http.StatusInternalServerError, what+" lookup failed", err.Error(), r.URL.Path)
}
