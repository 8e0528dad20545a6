package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fieldroute/internal/config"
	"fieldroute/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(config.Defaults())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return s
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func testPoints() []model.Waypoint {
	return []model.Waypoint{
		{Name: "Depot", Lat: 0, Lng: 0},
		{Name: "North", Lat: 10, Lng: 0},
		{Name: "NorthEast", Lat: 10, Lng: 10},
		{Name: "East", Lat: 0, Lng: 10},
	}
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.DebugHandler(rr, httptest.NewRequest(http.MethodGet, "/debugz", nil))
	if rr.Code != 200 {
		t.Fatalf("debug: got %d", rr.Code)
	}
}

func TestPointSetCRUD(t *testing.T) {
	s := newTestServer(t)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pointsets",
		jsonBody(t, model.PointSetIn{Name: "corners", Points: testPoints()}))
	req.Header.Set("Content-Type", "application/json")
	s.PointSetsHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d: %s", rr.Code, rr.Body.String())
	}
	var ps model.PointSet
	if err := json.Unmarshal(rr.Body.Bytes(), &ps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ps.ID == "" || len(ps.Points) != 4 {
		t.Fatalf("unexpected point set: %+v", ps)
	}

	rr = httptest.NewRecorder()
	s.PointSetsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pointsets?limit=5", nil))
	if rr.Code != 200 {
		t.Fatalf("list: got %d", rr.Code)
	}
	var idx struct {
		Items []model.PointSet `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil || len(idx.Items) != 1 {
		t.Fatalf("list decode: %v items=%d", err, len(idx.Items))
	}

	rr = httptest.NewRecorder()
	s.PointSetByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pointsets/"+ps.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("get: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.PointSetByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pointsets/"+ps.ID+"/export", nil))
	if rr.Code != 200 {
		t.Fatalf("export: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("export content type: %q", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), "name,longitude,latitude\n") {
		t.Fatalf("export header: %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	s.PointSetByIDHandler(rr, httptest.NewRequest(http.MethodDelete, "/v1/pointsets/"+ps.ID, nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.PointSetByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/pointsets/"+ps.ID, nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: got %d", rr.Code)
	}
}

func TestPointSetValidation(t *testing.T) {
	s := newTestServer(t)
	cases := []model.PointSetIn{
		{Name: "", Points: testPoints()},
		{Name: "empty"},
	}
	for i, in := range cases {
		rr := httptest.NewRecorder()
		s.PointSetsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/pointsets", jsonBody(t, in)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: got %d", i, rr.Code)
		}
	}
}

func TestImportCSV(t *testing.T) {
	s := newTestServer(t)
	body := "name,longitude,latitude\nDepot,0,0\nFarm,0.02,0.01\nSilo,0.05,-0.01\n"
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/pointsets/import?name=fields", strings.NewReader(body))
	s.ImportHandler(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("import: got %d: %s", rr.Code, rr.Body.String())
	}
	var ps model.PointSet
	if err := json.Unmarshal(rr.Body.Bytes(), &ps); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ps.Name != "fields" || len(ps.Points) != 3 {
		t.Fatalf("unexpected point set: %+v", ps)
	}
	if ps.Points[1].Name != "Farm" || ps.Points[1].Lng != 0.02 || ps.Points[1].Lat != 0.01 {
		t.Fatalf("bad row: %+v", ps.Points[1])
	}

	rr = httptest.NewRecorder()
	s.ImportHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/pointsets/import",
		strings.NewReader("id,x,y\n1,2,3\n")))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad header: got %d", rr.Code)
	}
}

func TestOptimizeInlinePoints(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize",
		jsonBody(t, model.OptimizeRequest{Points: testPoints(), TimeBudgetMs: 2000}))
	req.Header.Set("Content-Type", "application/json")
	s.OptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize: got %d: %s", rr.Code, rr.Body.String())
	}
	var plan model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plan.ID == "" {
		t.Fatalf("plan has no id")
	}
	if len(plan.Tour) != 5 || plan.Tour[0] != 0 || plan.Tour[4] != 0 {
		t.Fatalf("bad tour: %v", plan.Tour)
	}
	if !plan.Converged {
		t.Fatalf("expected convergence on 4 points")
	}
	if plan.TotalCostUnits <= 0 {
		t.Fatalf("cost: %d", plan.TotalCostUnits)
	}
	if plan.Cached {
		t.Fatalf("first run must not be cached")
	}
	if plan.Stats.Source != "estimate" {
		t.Fatalf("stats source: %q", plan.Stats.Source)
	}

	// Same ordered coordinates hit the memoized plan.
	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/optimize",
		jsonBody(t, model.OptimizeRequest{Points: testPoints(), TimeBudgetMs: 2000}))
	s.OptimizeHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("optimize cached: got %d", rr.Code)
	}
	var cached model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &cached); err != nil {
		t.Fatalf("decode cached: %v", err)
	}
	if !cached.Cached {
		t.Fatalf("expected cached plan")
	}
	if cached.ID != plan.ID || cached.TotalCostUnits != plan.TotalCostUnits {
		t.Fatalf("cached plan differs: %s vs %s", cached.ID, plan.ID)
	}
}

func TestOptimizeValidation(t *testing.T) {
	s := newTestServer(t)
	cases := []model.OptimizeRequest{
		{},
		{Points: testPoints()[:1]},
		{Points: testPoints(), TimeBudgetMs: -5},
		{Points: testPoints(), PointSetID: "both"},
	}
	for i, in := range cases {
		rr := httptest.NewRecorder()
		s.OptimizeHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize", jsonBody(t, in)))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("case %d: got %d: %s", i, rr.Code, rr.Body.String())
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
			t.Fatalf("case %d: content type %q", i, ct)
		}
		var p Problem
		if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil || p.Status != http.StatusBadRequest {
			t.Fatalf("case %d: problem body: %v %+v", i, err, p)
		}
	}

	rr := httptest.NewRecorder()
	s.OptimizeHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize",
		jsonBody(t, model.OptimizeRequest{PointSetID: "ps_missing"})))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing point set: got %d", rr.Code)
	}
}

func TestOptimizeFromPointSet(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.PointSetsHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/pointsets",
		jsonBody(t, model.PointSetIn{Name: "corners", Points: testPoints()})))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d", rr.Code)
	}
	var ps model.PointSet
	_ = json.Unmarshal(rr.Body.Bytes(), &ps)

	rr = httptest.NewRecorder()
	s.OptimizeHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize",
		jsonBody(t, model.OptimizeRequest{PointSetID: ps.ID})))
	if rr.Code != 200 {
		t.Fatalf("optimize: got %d: %s", rr.Code, rr.Body.String())
	}
	var plan model.Plan
	if err := json.Unmarshal(rr.Body.Bytes(), &plan); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if plan.PointSetID != ps.ID {
		t.Fatalf("pointSetId: %q", plan.PointSetID)
	}
}

func TestPlanGetPathMetrics(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.OptimizeHandler(rr, httptest.NewRequest(http.MethodPost, "/v1/optimize",
		jsonBody(t, model.OptimizeRequest{Points: testPoints()})))
	if rr.Code != 200 {
		t.Fatalf("optimize: got %d", rr.Code)
	}
	var plan model.Plan
	_ = json.Unmarshal(rr.Body.Bytes(), &plan)

	rr = httptest.NewRecorder()
	s.PlansIndexHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
	if rr.Code != 200 {
		t.Fatalf("plans list: got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID, nil))
	if rr.Code != 200 {
		t.Fatalf("plan get: got %d", rr.Code)
	}

	// No directions client configured: path falls back to straight lines.
	rr = httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID+"/path", nil))
	if rr.Code != 200 {
		t.Fatalf("plan path: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Fatalf("path content type: %q", ct)
	}
	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fc); err != nil {
		t.Fatalf("path decode: %v", err)
	}
	if fc.Type != "FeatureCollection" || len(fc.Features) != len(plan.Tour)+1 {
		t.Fatalf("feature collection: type=%q features=%d", fc.Type, len(fc.Features))
	}
	if kind, ok := fc.Features[0].Properties["kind"].(string); !ok || kind != "path" {
		t.Fatalf("first feature kind: %v", fc.Features[0].Properties["kind"])
	}

	rr = httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/"+plan.ID+"/metrics", nil))
	if rr.Code != 200 {
		t.Fatalf("plan metrics: got %d: %s", rr.Code, rr.Body.String())
	}
	var pm struct {
		FinalCost int64 `json:"finalCost"`
		Passes    int   `json:"passes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &pm); err != nil {
		t.Fatalf("metrics decode: %v", err)
	}
	if pm.FinalCost != plan.TotalCostUnits {
		t.Fatalf("finalCost %d != plan cost %d", pm.FinalCost, plan.TotalCostUnits)
	}

	rr = httptest.NewRecorder()
	s.PlanByIDHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/plans/pl_missing", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing plan: got %d", rr.Code)
	}
}

func TestPlanEventsSSE(t *testing.T) {
	s := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/v1/plans/pl_1/events/stream", nil).WithContext(ctx)
	rr := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.PlanByIDHandler(rr, req)
		close(done)
	}()

	// Let the handler subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	s.Broker.Publish("pl_1", PlanEvent{Type: "plan.completed", Data: map[string]any{"planId": "pl_1"}})
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("SSE handler did not exit on context cancel")
	}

	body := rr.Body.String()
	if !strings.Contains(body, "event: heartbeat") {
		t.Fatalf("no heartbeat in stream: %q", body)
	}
	if !strings.Contains(body, "event: plan.completed") {
		t.Fatalf("no plan.completed in stream: %q", body)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: %q", ct)
	}
}

func TestBudgetClamp(t *testing.T) {
	cfg := config.Defaults()
	cfg.Optimizer.DefaultBudgetMs = 1000
	cfg.Optimizer.MaxBudgetMs = 5000
	s, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if got := s.budget(0); got != time.Second {
		t.Fatalf("default budget: %v", got)
	}
	if got := s.budget(200); got != 200*time.Millisecond {
		t.Fatalf("explicit budget: %v", got)
	}
	if got := s.budget(60000); got != 5*time.Second {
		t.Fatalf("clamped budget: %v", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := RateLimitMiddleware(1, 1, next)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
	if rr.Code != 200 {
		t.Fatalf("first request: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rr.Code)
	}

	// Disabled limiter passes everything through.
	h = RateLimitMiddleware(0, 0, next)
	for i := 0; i < 10; i++ {
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/plans", nil))
		if rr.Code != 200 {
			t.Fatalf("unlimited request %d: got %d", i, rr.Code)
		}
	}
}
