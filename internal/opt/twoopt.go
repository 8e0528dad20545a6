package opt

import "time"

// improve runs best-improvement-per-pass 2-opt on tour in place. Each
// pass scans the full edge-pair neighborhood, then applies the single
// best strictly-improving exchange. The deadline is checked only at the
// start of a pass, so a pass that began in time always completes and the
// tour is never left mid-move.
//
// Returns the number of passes scanned, moves applied, and whether the
// loop reached a pass with no improving move (2-opt local optimum).
func improve(m CostMatrix, tour []int, deadline time.Time, onImprovement func(Improvement)) (passes, improvements int, converged bool) {
	n := len(tour) - 1
	if n < 3 {
		// Two nodes form a single out-and-back cycle; nothing to exchange.
		return 0, 0, true
	}
	for {
		if !time.Now().Before(deadline) {
			return passes, improvements, false
		}
		passes++
		bestI, bestK := -1, -1
		var bestDelta int64
		for i := 1; i < n-1; i++ {
			a, b := tour[i-1], tour[i]
			for k := i + 1; k < n; k++ {
				c, d := tour[k], tour[k+1]
				// Replace edges (a,b),(c,d) with (a,c),(b,d), reversing b..c.
				delta := m[a][c] + m[b][d] - m[a][b] - m[c][d]
				if delta < bestDelta {
					bestDelta = delta
					bestI, bestK = i, k
				}
			}
		}
		if bestI < 0 {
			return passes, improvements, true
		}
		reverse(tour, bestI, bestK)
		improvements++
		if onImprovement != nil {
			onImprovement(Improvement{Pass: passes, Cost: tourCost(m, tour)})
		}
	}
}

func reverse(tour []int, i, k int) {
	for ; i < k; i, k = i+1, k-1 {
		tour[i], tour[k] = tour[k], tour[i]
	}
}
