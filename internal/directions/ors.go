package directions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"fieldroute/internal/buildinfo"
)

// DefaultProfile matches the reference vehicle profile.
const DefaultProfile = "driving-car"

const defaultBaseURL = "https://api.openrouteservice.org"

// ORSClient talks to an OpenRouteService-compatible directions API.
type ORSClient struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// NewORSClient builds a client. baseURL may be empty for the public API.
func NewORSClient(baseURL, apiKey string) *ORSClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &ORSClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Directions requests the GeoJSON route through coords and extracts the
// line geometry plus the summary distance/duration.
func (c *ORSClient) Directions(ctx context.Context, coords []orb.Point, profile string) (Path, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	body, err := json.Marshal(map[string]any{"coordinates": coords})
	if err != nil {
		return Path{}, err
	}
	url := fmt.Sprintf("%s/v2/directions/%s/geojson", c.BaseURL, profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Path{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Path{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Path{}, fmt.Errorf("directions: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Path{}, err
	}
	return parseDirections(data)
}

func parseDirections(data []byte) (Path, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return Path{}, err
	}
	if len(fc.Features) == 0 {
		return Path{}, fmt.Errorf("directions: empty feature collection")
	}
	f := fc.Features[0]
	line, ok := f.Geometry.(orb.LineString)
	if !ok {
		return Path{}, fmt.Errorf("directions: unexpected geometry %T", f.Geometry)
	}
	p := Path{Geometry: line, Real: true}
	if summary, ok := f.Properties["summary"].(map[string]any); ok {
		if d, ok := summary["distance"].(float64); ok {
			p.DistanceM = d
		}
		if d, ok := summary["duration"].(float64); ok {
			p.DurationS = d
		}
	}
	return p, nil
}
