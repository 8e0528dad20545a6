package store

import (
	"context"
	"errors"

	"fieldroute/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Point sets
	CreatePointSet(ctx context.Context, in model.PointSetIn) (model.PointSet, error)
	GetPointSet(ctx context.Context, id string) (model.PointSet, error)
	ListPointSets(ctx context.Context, cursor string, limit int) ([]model.PointSet, string, error)
	DeletePointSet(ctx context.Context, id string) error

	// Plans
	SavePlan(ctx context.Context, p model.Plan) (model.Plan, error)
	GetPlan(ctx context.Context, id string) (model.Plan, error)
	ListPlans(ctx context.Context, cursor string, limit int) ([]model.Plan, string, error)
	// FindPlanByFingerprint serves the memoization path: an identical
	// ordered coordinate list reuses the stored plan.
	FindPlanByFingerprint(ctx context.Context, fingerprint string) (model.Plan, error)
}

var ErrNotFound = errors.New("not found")
