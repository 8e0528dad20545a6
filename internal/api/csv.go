package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fieldroute/internal/model"
)

// ParsePointsCSV reads waypoints from CSV with a
// name,longitude,latitude header row.
func ParsePointsCSV(r io.Reader) ([]model.Waypoint, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("missing header row: %w", err)
	}
	if len(header) < 3 ||
		strings.TrimSpace(strings.ToLower(header[0])) != "name" ||
		strings.TrimSpace(strings.ToLower(header[1])) != "longitude" ||
		strings.TrimSpace(strings.ToLower(header[2])) != "latitude" {
		return nil, fmt.Errorf("header must be name,longitude,latitude")
	}
	var pts []model.Waypoint
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(rec))
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad longitude %q", line, rec[1])
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad latitude %q", line, rec[2])
		}
		pts = append(pts, model.Waypoint{Name: strings.TrimSpace(rec[0]), Lng: lng, Lat: lat})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no data rows")
	}
	return pts, nil
}

// WritePointsCSV writes waypoints as name,longitude,latitude rows.
func WritePointsCSV(w io.Writer, pts []model.Waypoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"name", "longitude", "latitude"}); err != nil {
		return err
	}
	for _, p := range pts {
		rec := []string{
			p.Name,
			strconv.FormatFloat(p.Lng, 'f', -1, 64),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
