package directions

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldroute/internal/model"
)

// ToFeatureCollection renders a path plus its tour markers as GeoJSON
// for map clients: one LineString feature for the path and one Point
// feature per stop, numbered in visiting order.
func ToFeatureCollection(p Path, points []model.Waypoint, tour []int) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := geojson.NewFeature(p.Geometry)
	line.Properties["kind"] = "path"
	line.Properties["real"] = p.Real
	if p.Real {
		line.Properties["summary"] = map[string]any{
			"distance": p.DistanceM,
			"duration": p.DurationS,
		}
	}
	fc.Append(line)

	for i, idx := range tour {
		marker := geojson.NewFeature(orb.Point{points[idx].Lng, points[idx].Lat})
		marker.Properties["kind"] = "stop"
		marker.Properties["seq"] = i + 1
		marker.Properties["name"] = points[idx].Name
		switch i {
		case 0:
			marker.Properties["role"] = "start"
		case len(tour) - 1:
			marker.Properties["role"] = "end"
		default:
			marker.Properties["role"] = "stop"
		}
		fc.Append(marker)
	}
	return fc
}
