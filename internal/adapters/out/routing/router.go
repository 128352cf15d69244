package routing

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
)

// HTTPRouter fetches detailed route geometry from the routing service.
type HTTPRouter struct {
	http    httpClient
	baseURL string
}

// NewHTTPRouter creates a router client.
func NewHTTPRouter(cfg Config) *HTTPRouter {
	return &HTTPRouter{http: newHTTPClient(cfg), baseURL: cfg.RouterURL}
}

type waypointPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type routeRequest struct {
	Waypoints []waypointPayload `json:"waypoints"`
}

type routeLegPayload struct {
	Polyline  string  `json:"polyline"`
	DistanceM float64 `json:"distanceM"`
	DurationS float64 `json:"durationS"`
}

type routeResponse struct {
	Legs []routeLegPayload `json:"legs"`
}

// Legs computes one leg per consecutive waypoint pair.
func (r *HTTPRouter) Legs(ctx context.Context, waypoints []kernel.GeoPoint) ([]ports.RouteLeg, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("route needs at least 2 waypoints, got %d", len(waypoints))
	}

	req := routeRequest{Waypoints: make([]waypointPayload, 0, len(waypoints))}
	for _, w := range waypoints {
		req.Waypoints = append(req.Waypoints, waypointPayload{Lat: w.Lat(), Lon: w.Lon()})
	}

	var resp routeResponse
	if err := r.http.do(ctx, http.MethodPost, r.baseURL+"/route", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Legs) != len(waypoints)-1 {
		return nil, fmt.Errorf("routing service returned %d legs for %d waypoints",
			len(resp.Legs), len(waypoints))
	}

	legs := make([]ports.RouteLeg, 0, len(resp.Legs))
	for _, leg := range resp.Legs {
		legs = append(legs, ports.RouteLeg{
			Polyline:  leg.Polyline,
			DistanceM: leg.DistanceM,
			Duration:  time.Duration(leg.DurationS * float64(time.Second)),
		})
	}
	return legs, nil
}
