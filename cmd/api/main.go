package main

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldroute/internal/api"
	"fieldroute/internal/config"
	"fieldroute/internal/metrics"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Point sets
	mux.HandleFunc("/v1/pointsets", srv.PointSetsHandler)
	mux.HandleFunc("/v1/pointsets/import", srv.ImportHandler)
	mux.HandleFunc("/v1/pointsets/", srv.PointSetByIDHandler) // includes /export

	// Optimization
	mux.HandleFunc("/v1/optimize", srv.OptimizeHandler)
	mux.HandleFunc("/v1/optimize/ws", srv.OptimizeWSHandler)

	// Plans
	mux.HandleFunc("/v1/plans", srv.PlansIndexHandler)
	mux.HandleFunc("/v1/plans/", srv.PlanByIDHandler) // includes /path, /metrics, /events/stream

	// Health and introspection
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/debugz", srv.DebugHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	addr := ":" + cfg.Server.Port
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           api.RateLimitMiddleware(cfg.Server.RateRPS, cfg.Server.RateBurst, api.LogMiddleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
