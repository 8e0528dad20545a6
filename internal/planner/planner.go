// Package planner wires the distance model and the tour optimizer into
// the contract consumed by the HTTP surface: ordered waypoints in, a
// Plan with visiting order, cost and statistics out. It performs no
// algorithmic work of its own.
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"fieldroute/internal/model"
	"fieldroute/internal/opt"
)

// AvgSpeedKmh is the fallback average speed used to estimate travel time
// when no real road path is available. A crude placeholder inherited
// from the reference behavior; real figures come from the directions
// collaborator when configured.
const AvgSpeedKmh = 60.0

// DefaultBudget bounds the improvement phase when the request does not
// specify one.
const DefaultBudget = 30 * time.Second

// Options tunes a single planning run.
type Options struct {
	// Budget for the solver's improvement phase. Must be positive;
	// defaults to DefaultBudget when zero.
	Budget time.Duration
	// Cost overrides the default scaled-euclidean strategy.
	Cost opt.CostFunc
	// AvgSpeedKmh overrides the fallback speed estimate.
	AvgSpeedKmh float64
	// OnImprovement observes accepted solver moves (used by the progress
	// websocket).
	OnImprovement func(opt.Improvement)
}

// Plan computes a visiting order over points. Index 0 is the depot; the
// returned tour starts and ends there. At least two points are required:
// a depot and one destination. The solver metrics are returned alongside
// so the caller can record them once the plan has an ID.
func Plan(ctx context.Context, points []model.Waypoint, o Options) (model.Plan, opt.Metrics, error) {
	if len(points) < 2 {
		return model.Plan{}, opt.Metrics{}, fmt.Errorf("%w: need at least 2 points, got %d", opt.ErrInvalidInput, len(points))
	}
	if o.Budget < 0 {
		return model.Plan{}, opt.Metrics{}, fmt.Errorf("%w: time budget must be positive", opt.ErrInvalidInput)
	}
	if o.Budget == 0 {
		o.Budget = DefaultBudget
	}
	if err := ctx.Err(); err != nil {
		return model.Plan{}, opt.Metrics{}, err
	}

	m, err := opt.BuildCostMatrix(points, o.Cost)
	if err != nil {
		return model.Plan{}, opt.Metrics{}, err
	}
	res, met, err := opt.SolveWithOptions(m, 0, opt.Options{
		Budget:        o.Budget,
		OnImprovement: o.OnImprovement,
	})
	if err != nil {
		return model.Plan{}, opt.Metrics{}, err
	}

	names := make([]string, len(res.Tour))
	for i, idx := range res.Tour {
		names[i] = points[idx].Name
	}

	plan := model.Plan{
		Fingerprint:    Fingerprint(points),
		Points:         points,
		Tour:           res.Tour,
		StopNames:      names,
		TotalCostUnits: res.Cost,
		Converged:      res.Converged,
		BudgetMs:       int(o.Budget / time.Millisecond),
		Stats:          estimateStats(points, res.Cost, o.AvgSpeedKmh),
	}
	return plan, met, nil
}

// estimateStats derives report figures from the solver objective alone.
// Cost units are scaled degrees treated as approximate meters, matching
// the reference behavior, so km = cost / Scale.
func estimateStats(points []model.Waypoint, cost int64, speedKmh float64) model.PlanStats {
	if speedKmh <= 0 {
		speedKmh = AvgSpeedKmh
	}
	km := float64(cost) / opt.Scale
	hours := km / speedKmh
	return model.PlanStats{
		NumPoints:       len(points),
		NumStops:        len(points) + 1,
		DistanceKm:      km,
		DurationHours:   hours,
		DurationMinutes: hours * 60,
		Source:          "estimate",
	}
}

// StatsFromPath replaces the estimate with figures reported by the
// directions service for the real road path.
func StatsFromPath(s model.PlanStats, distanceM, durationS float64) model.PlanStats {
	s.DistanceKm = distanceM / 1000
	s.DurationHours = durationS / 3600
	s.DurationMinutes = durationS / 60
	s.Source = "directions"
	return s
}

// Fingerprint hashes the ordered coordinate list. Two requests with the
// same points in the same order share a fingerprint, which the store
// uses to serve memoized plans.
func Fingerprint(points []model.Waypoint) string {
	h := sha256.New()
	var buf [8]byte
	for _, p := range points {
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Lng))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.Lat))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
