package api

import (
	"errors"
	"math"

	"fieldroute/internal/model"
)

func validatePointSet(in *model.PointSetIn) error {
	if in.Name == "" {
		return errors.New("name is required")
	}
	if len(in.Points) == 0 {
		return errors.New("points must not be empty")
	}
	return validatePoints(in.Points)
}

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if len(req.Points) == 0 && req.PointSetID == "" {
		return errors.New("either points or pointSetId is required")
	}
	if len(req.Points) > 0 && req.PointSetID != "" {
		return errors.New("points and pointSetId are mutually exclusive")
	}
	if req.TimeBudgetMs < 0 {
		return errors.New("timeBudgetMs must not be negative")
	}
	if len(req.Points) == 1 {
		return errors.New("at least 2 points are required")
	}
	if len(req.Points) > 0 {
		return validatePoints(req.Points)
	}
	return nil
}

func validatePoints(pts []model.Waypoint) error {
	for _, p := range pts {
		if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) {
			return errors.New("coordinates must be finite")
		}
	}
	return nil
}
