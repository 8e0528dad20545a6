// Package directions resolves a real road path for an ordered tour via
// an OpenRouteService-compatible API, falling back to straight lines
// between consecutive stops when the service is unavailable. The planner
// contract never depends on this package succeeding.
package directions

import (
	"context"

	"github.com/paulmach/orb"

	"fieldroute/internal/model"
)

// Path is a resolved travel path between consecutive tour stops.
type Path struct {
	Geometry orb.LineString
	// DistanceM and DurationS are the service-reported totals; zero for
	// the straight-line fallback, where only an estimate exists.
	DistanceM float64
	DurationS float64
	// Real is true when the geometry came from a routing service.
	Real bool
}

// Client fetches a road path through coords (lon/lat order) for the
// given travel profile.
type Client interface {
	Directions(ctx context.Context, coords []orb.Point, profile string) (Path, error)
}

// TourCoords projects the tour's visiting order onto lon/lat points.
func TourCoords(points []model.Waypoint, tour []int) []orb.Point {
	coords := make([]orb.Point, len(tour))
	for i, idx := range tour {
		coords[i] = orb.Point{points[idx].Lng, points[idx].Lat}
	}
	return coords
}

// StraightLine builds the fallback path: straight segments between
// consecutive tour stops in the given order.
func StraightLine(points []model.Waypoint, tour []int) Path {
	return Path{Geometry: orb.LineString(TourCoords(points, tour))}
}

// Resolve fetches the real path for a tour through c, or returns the
// straight-line fallback if c is nil or the fetch fails. It never
// returns an error: a missing road path must not fail the plan.
func Resolve(ctx context.Context, c Client, points []model.Waypoint, tour []int, profile string) Path {
	if c == nil {
		return StraightLine(points, tour)
	}
	p, err := c.Directions(ctx, TourCoords(points, tour), profile)
	if err != nil || len(p.Geometry) == 0 {
		return StraightLine(points, tour)
	}
	return p
}
