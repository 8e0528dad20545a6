package model

// Core domain types shared across the API, planner and stores.

// Waypoint is a named geographic point. Position in a waypoint slice is
// significant: index 0 is the depot.
type Waypoint struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

// PointSet is a stored, named collection of waypoints.
type PointSet struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Points    []Waypoint `json:"points"`
	CreatedAt string     `json:"createdAt"`
}

type PointSetIn struct {
	Name   string     `json:"name"`
	Points []Waypoint `json:"points"`
}

// OptimizeRequest drives POST /v1/optimize. Exactly one of Points or
// PointSetID must be supplied.
type OptimizeRequest struct {
	Points       []Waypoint `json:"points,omitempty"`
	PointSetID   string     `json:"pointSetId,omitempty"`
	TimeBudgetMs int        `json:"timeBudgetMs,omitempty"`
	IncludePath  bool       `json:"includePath,omitempty"`
	Profile      string     `json:"profile,omitempty"`
}

// Plan is the persisted outcome of one optimization run.
type Plan struct {
	ID          string     `json:"id"`
	PointSetID  string     `json:"pointSetId,omitempty"`
	Fingerprint string     `json:"fingerprint"`
	Points      []Waypoint `json:"points"`
	// Tour holds original point indices; first and last entries are the
	// depot index 0, every other index appears exactly once.
	Tour      []int    `json:"tour"`
	StopNames []string `json:"stopNames"`
	// TotalCostUnits is the solver objective in scaled cost units.
	TotalCostUnits int64     `json:"totalCostUnits"`
	Converged      bool      `json:"converged"`
	BudgetMs       int       `json:"budgetMs"`
	Stats          PlanStats `json:"stats"`
	CreatedAt      string    `json:"createdAt"`
	Cached         bool      `json:"cached,omitempty"`
}

// PlanStats summarizes a plan for reporting. Source records whether the
// figures come from a real road path or the straight-line estimate.
type PlanStats struct {
	NumPoints       int     `json:"numPoints"`
	NumStops        int     `json:"numStops"`
	DistanceKm      float64 `json:"distanceKm"`
	DurationHours   float64 `json:"durationHours"`
	DurationMinutes float64 `json:"durationMinutes"`
	Source          string  `json:"source"` // "estimate" or "directions"
}
