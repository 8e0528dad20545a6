package opt

import (
	"fmt"
	"math"

	"fieldroute/internal/model"
)

// Scale converts planar-degree distances into integer cost units. One
// degree of separation becomes 1000 units, which keeps enough precision
// for the solver's integer arithmetic.
const Scale = 1000

// CostMatrix is an N×N table of non-negative travel costs in cost units.
// For the built-in strategies cost[i][j] == cost[j][i] and cost[i][i] == 0.
type CostMatrix [][]int64

// CostFunc computes the directed travel cost between two waypoints. Any
// function producing non-negative costs may be plugged into
// BuildCostMatrix; the solver only sees the resulting matrix.
type CostFunc func(a, b model.Waypoint) int64

// Euclidean is the default cost strategy: straight-line distance in plane
// degrees, scaled to integer units.
func Euclidean(a, b model.Waypoint) int64 {
	return int64(math.Round(math.Hypot(a.Lng-b.Lng, a.Lat-b.Lat) * Scale))
}

// HaversineMeters costs arcs by great-circle distance in whole meters.
// Kept as an alternative strategy for callers that want geographic rather
// than planar costs.
func HaversineMeters(a, b model.Waypoint) int64 {
	return int64(math.Round(haversine(a.Lat, a.Lng, b.Lat, b.Lng)))
}

// BuildCostMatrix evaluates fn for every ordered pair of points. A nil fn
// defaults to Euclidean. Non-finite coordinates are a caller contract
// violation and fail fast with ErrInvalidInput.
func BuildCostMatrix(points []model.Waypoint, fn CostFunc) (CostMatrix, error) {
	if fn == nil {
		fn = Euclidean
	}
	for i, p := range points {
		if !finite(p.Lat) || !finite(p.Lng) {
			return nil, fmt.Errorf("%w: non-finite coordinate at point %d (%q)", ErrInvalidInput, i, p.Name)
		}
	}
	n := len(points)
	m := make(CostMatrix, n)
	for i := range m {
		m[i] = make([]int64, n)
		for j := range m[i] {
			if i == j {
				continue
			}
			m[i][j] = fn(points[i], points[j])
		}
	}
	return m, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// haversine returns the great-circle distance in meters.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}
