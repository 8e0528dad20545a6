package opt

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidInput reports a malformed problem: no points, a depot index
// outside the matrix, a ragged or negative matrix, or non-finite
// coordinates at matrix build time.
var ErrInvalidInput = errors.New("invalid input")

// ErrNoSolution is reserved for solver backends that can report
// infeasibility. The built-in construction heuristic always succeeds for
// N >= 1, so the default pipeline never returns it.
var ErrNoSolution = errors.New("no solution found")

// Result is the outcome of one optimization run. Tour is a closed walk:
// Tour[0] == Tour[len-1] == depot, every other node appears exactly once.
// Converged reports 2-opt local optimality; false means the time budget
// ran out first.
type Result struct {
	Tour      []int
	Cost      int64
	Converged bool
}

// Metrics captures how the run went, for the admin surface and tests.
type Metrics struct {
	ConstructionCost int64
	FinalCost        int64
	Passes           int
	Improvements     int
	Elapsed          time.Duration
}

// Improvement is delivered to the progress callback after each accepted
// 2-opt move. It carries aggregates only; the working tour is never
// exposed mid-search.
type Improvement struct {
	Pass int   `json:"pass"`
	Cost int64 `json:"cost"`
}

// Options tunes SolveWithOptions.
type Options struct {
	// Budget bounds the improvement phase. Zero or negative means the
	// deadline has already passed: construction only, Converged=false.
	Budget time.Duration
	// OnImprovement, if set, observes each accepted 2-opt move.
	OnImprovement func(Improvement)
}

// Solve finds a low-cost closed tour over m starting and ending at depot.
// The search runs cheapest-insertion construction followed by
// best-improvement-per-pass 2-opt until convergence or the budget
// expires. Deterministic for a fixed matrix and depot.
func Solve(m CostMatrix, depot int, budget time.Duration) (Result, Metrics, error) {
	return SolveWithOptions(m, depot, Options{Budget: budget})
}

// SolveWithOptions is Solve with a progress callback.
func SolveWithOptions(m CostMatrix, depot int, opts Options) (Result, Metrics, error) {
	start := time.Now()
	n := len(m)
	if n == 0 {
		return Result{}, Metrics{}, fmt.Errorf("%w: no points to route", ErrInvalidInput)
	}
	if depot < 0 || depot >= n {
		return Result{}, Metrics{}, fmt.Errorf("%w: depot index %d out of range [0,%d)", ErrInvalidInput, depot, n)
	}
	for i, row := range m {
		if len(row) != n {
			return Result{}, Metrics{}, fmt.Errorf("%w: matrix row %d has %d entries, want %d", ErrInvalidInput, i, len(row), n)
		}
		for j, c := range row {
			if c < 0 {
				return Result{}, Metrics{}, fmt.Errorf("%w: negative cost at [%d][%d]", ErrInvalidInput, i, j)
			}
		}
	}
	if n == 1 {
		r := Result{Tour: []int{depot, depot}, Cost: 0, Converged: true}
		return r, Metrics{Elapsed: time.Since(start)}, nil
	}

	deadline := start.Add(opts.Budget)

	tour := construct(m, depot)
	consCost := tourCost(m, tour)

	passes, improvements, converged := improve(m, tour, deadline, opts.OnImprovement)

	res := Result{Tour: tour, Cost: tourCost(m, tour), Converged: converged}
	met := Metrics{
		ConstructionCost: consCost,
		FinalCost:        res.Cost,
		Passes:           passes,
		Improvements:     improvements,
		Elapsed:          time.Since(start),
	}
	return res, met, nil
}

// tourCost sums arc costs over the closed walk.
func tourCost(m CostMatrix, tour []int) int64 {
	var total int64
	for i := 0; i < len(tour)-1; i++ {
		total += m[tour[i]][tour[i+1]]
	}
	return total
}
