package api

import (
	"context"
	"strings"
	"time"

	"fieldroute/internal/config"
	"fieldroute/internal/directions"
	"fieldroute/internal/planner"
	"fieldroute/internal/store"
)

type Server struct {
	Store      store.Store
	Broker     EventBroker
	Directions directions.Client
	Cfg        config.Config
}

// NewServer wires the server from cfg. With no database URL it uses the
// in-memory store; with no Redis URL the in-memory broker; with no
// directions API key path requests fall back to straight lines.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.Database.URL) == "" {
		s = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		s = pg
	}

	var broker EventBroker
	if cfg.Redis.URL != "" {
		if rb, err := NewRedisBroker(cfg.Redis.URL); err == nil {
			broker = rb
		} else {
			broker = NewBroker()
		}
	} else {
		broker = NewBroker()
	}

	var dc directions.Client
	if cfg.Directions.APIKey != "" {
		dc = directions.NewORSClient(cfg.Directions.BaseURL, cfg.Directions.APIKey)
	}

	return &Server{Store: s, Broker: broker, Directions: dc, Cfg: cfg}, nil
}

// budget clamps a requested time budget in ms to the configured bounds.
func (s *Server) budget(requestedMs int) time.Duration {
	ms := requestedMs
	if ms == 0 {
		ms = s.Cfg.Optimizer.DefaultBudgetMs
	}
	if max := s.Cfg.Optimizer.MaxBudgetMs; max > 0 && ms > max {
		ms = max
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Server) plannerOptions(budgetMs int) planner.Options {
	return planner.Options{
		Budget:      s.budget(budgetMs),
		AvgSpeedKmh: s.Cfg.Optimizer.AvgSpeedKmh,
	}
}
