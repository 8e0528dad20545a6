package opt

import "math"

// construct builds a feasible closed tour by cheapest insertion: at each
// step, insert the unvisited node whose cheapest insertion position has
// the lowest marginal cost cost[prev][new] + cost[new][next] - cost[prev][next].
// Ties resolve to the lowest node index, then the lowest position, so the
// result is fully determined by the matrix and depot. O(N^3) worst case,
// fine at the point counts this service handles.
func construct(m CostMatrix, depot int) []int {
	n := len(m)
	tour := make([]int, 2, n+1)
	tour[0], tour[1] = depot, depot
	inTour := make([]bool, n)
	inTour[depot] = true

	for len(tour) < n+1 {
		bestNode, bestPos := -1, -1
		var bestDelta int64 = math.MaxInt64
		for node := 0; node < n; node++ {
			if inTour[node] {
				continue
			}
			for pos := 0; pos < len(tour)-1; pos++ {
				prev, next := tour[pos], tour[pos+1]
				delta := m[prev][node] + m[node][next] - m[prev][next]
				if delta < bestDelta {
					bestDelta = delta
					bestNode = node
					bestPos = pos
				}
			}
		}
		// insert bestNode between tour[bestPos] and tour[bestPos+1]
		tour = append(tour, 0)
		copy(tour[bestPos+2:], tour[bestPos+1:])
		tour[bestPos+1] = bestNode
		inTour[bestNode] = true
	}
	return tour
}
