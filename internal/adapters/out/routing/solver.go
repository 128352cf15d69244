package routing

import (
	"context"
	"net/http"
	"time"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/ports"
)

// HTTPSolver submits vehicle-routing problems to the optimization service.
// The solver is a black box: its failures propagate to the caller, which
// decides whether estimation may stand in.
type HTTPSolver struct {
	http    httpClient
	baseURL string
}

// NewHTTPSolver creates a solver client.
func NewHTTPSolver(cfg Config) *HTTPSolver {
	return &HTTPSolver{http: newHTTPClient(cfg), baseURL: cfg.SolverURL}
}

type solverStopPayload struct {
	ID           string  `json:"id"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	DemandKg     float64 `json:"demandKg"`
	ServiceTimeS float64 `json:"serviceTimeS"`
	PinFirst     bool    `json:"pinFirst,omitempty"`
}

type solveRequest struct {
	Start      *waypointPayload    `json:"start,omitempty"`
	Stops      []solverStopPayload `json:"stops"`
	CapacityKg float64             `json:"capacityKg"`
}

type solveResponse struct {
	Sequence       []string `json:"sequence"`
	TotalDistanceM float64  `json:"totalDistanceM"`
	TotalDurationS float64  `json:"totalDurationS"`
}

// Solve returns the optimized stop sequence for one vehicle.
func (s *HTTPSolver) Solve(
	ctx context.Context,
	start *kernel.GeoPoint,
	stops []ports.SolverStop,
	vehicleCapacityKg float64,
) (*ports.SolverResult, error) {
	req := solveRequest{
		Stops:      make([]solverStopPayload, 0, len(stops)),
		CapacityKg: vehicleCapacityKg,
	}
	if start != nil {
		req.Start = &waypointPayload{Lat: start.Lat(), Lon: start.Lon()}
	}
	for _, stop := range stops {
		req.Stops = append(req.Stops, solverStopPayload{
			ID:           stop.StopID.String(),
			Lat:          stop.Location.Lat(),
			Lon:          stop.Location.Lon(),
			DemandKg:     stop.DemandKg,
			ServiceTimeS: stop.ServiceTime.Seconds(),
			PinFirst:     stop.PinFirst,
		})
	}

	var resp solveResponse
	if err := s.http.do(ctx, http.MethodPost, s.baseURL+"/solve", req, &resp); err != nil {
		return nil, err
	}

	sequence := make([]kernel.UUID, 0, len(resp.Sequence))
	for _, raw := range resp.Sequence {
		id, err := kernel.UUIDFromString(raw)
		if err != nil {
			return nil, err
		}
		sequence = append(sequence, id)
	}

	return &ports.SolverResult{
		Sequence:       sequence,
		TotalDistanceM: resp.TotalDistanceM,
		TotalDuration:  time.Duration(resp.TotalDurationS * float64(time.Second)),
	}, nil
}
