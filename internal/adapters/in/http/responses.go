package http

import (
	"time"

	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

type orderResponse struct {
	ID               string  `json:"id"`
	ClientID         string  `json:"clientId"`
	Status           string  `json:"status"`
	Priority         string  `json:"priority"`
	DispatchMode     string  `json:"dispatchMode"`
	DriverID         *string `json:"driverId,omitempty"`
	OfferedDriverID  *string `json:"offeredDriverId,omitempty"`
	HasPendingEdits  bool    `json:"hasPendingEdits"`
	DispatchAttempts int     `json:"dispatchAttempts"`

	Steps   []stepResponse   `json:"steps"`
	Stops   []stopResponse   `json:"stops"`
	Actions []actionResponse `json:"actions"`
	Items   []itemResponse   `json:"items"`

	Route   *routeResponse         `json:"route,omitempty"`
	History []historyEntryResponse `json:"history"`

	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Price           float64 `json:"price"`
}

type stepResponse struct {
	ID             string          `json:"id"`
	OrderIndex     int             `json:"orderIndex"`
	Label          string          `json:"label"`
	Status         string          `json:"status"`
	PathTrace      []pointPayload  `json:"pathTrace,omitempty"`
	PendingChange  bool            `json:"pendingChange,omitempty"`
	DeleteRequired bool            `json:"deleteRequired,omitempty"`
}

type stopResponse struct {
	ID             string       `json:"id"`
	StepID         string       `json:"stepId"`
	Address        string       `json:"address"`
	Location       pointPayload `json:"location"`
	Sequence       int          `json:"sequence"`
	Status         string       `json:"status"`
	ArrivedAt      *time.Time   `json:"arrivedAt,omitempty"`
	PendingChange  bool         `json:"pendingChange,omitempty"`
	DeleteRequired bool         `json:"deleteRequired,omitempty"`
}

type actionResponse struct {
	ID             string          `json:"id"`
	StopID         string          `json:"stopId"`
	ItemID         *string         `json:"itemId,omitempty"`
	Kind           string          `json:"kind"`
	Quantity       int             `json:"quantity"`
	ServiceTimeS   float64         `json:"serviceTimeS"`
	Status         string          `json:"status"`
	FreezeReason   string          `json:"freezeReason,omitempty"`
	Proofs         []proofResponse `json:"proofs,omitempty"`
	PendingChange  bool            `json:"pendingChange,omitempty"`
	DeleteRequired bool            `json:"deleteRequired,omitempty"`
}

type proofResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Reference string `json:"reference,omitempty"`
}

type itemResponse struct {
	ID             string  `json:"id"`
	Label          string  `json:"label"`
	WeightKg       float64 `json:"weightKg"`
	PendingChange  bool    `json:"pendingChange,omitempty"`
	DeleteRequired bool    `json:"deleteRequired,omitempty"`
}

type routeResponse struct {
	FrozenSegments []frozenSegmentResponse `json:"frozenSegments"`
	Legs           []routeLegResponse      `json:"legs"`
	Remaining      []string                `json:"remaining"`
	Visited        []string                `json:"visited"`
}

type frozenSegmentResponse struct {
	StepID string         `json:"stepId"`
	Trace  []pointPayload `json:"trace"`
}

type routeLegResponse struct {
	FromStopID *string `json:"fromStopId,omitempty"`
	ToStopID   string  `json:"toStopId"`
	Polyline   string  `json:"polyline"`
	DistanceM  float64 `json:"distanceM"`
	DurationS  float64 `json:"durationS"`
	Estimated  bool    `json:"estimated,omitempty"`
}

type historyEntryResponse struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

type missionResponse struct {
	ID              string    `json:"id"`
	ClientID        string    `json:"clientId"`
	DriverID        *string   `json:"driverId,omitempty"`
	Status          string    `json:"status"`
	Priority        string    `json:"priority"`
	DistanceMeters  float64   `json:"distanceMeters"`
	DurationSeconds float64   `json:"durationSeconds"`
	Price           float64   `json:"price"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func proofKindString(kind order.ProofKind) string {
	if kind == order.ProofPhoto {
		return "Photo"
	}
	return "Code"
}

func optionalIDString(id *kernel.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func pointsToPayload(points []kernel.GeoPoint) []pointPayload {
	if len(points) == 0 {
		return nil
	}
	out := make([]pointPayload, 0, len(points))
	for _, p := range points {
		out = append(out, pointPayload{Lat: p.Lat(), Lon: p.Lon()})
	}
	return out
}

func idStrings(ids []kernel.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func toOrderResponse(src *queries.GetOrderQueryResponse) orderResponse {
	response := orderResponse{
		ID:               src.ID.String(),
		ClientID:         src.ClientID.String(),
		Status:           src.Status.String(),
		Priority:         src.Priority.String(),
		DispatchMode:     src.DispatchMode.String(),
		DriverID:         optionalIDString(src.DriverID),
		OfferedDriverID:  optionalIDString(src.OfferedDriverID),
		HasPendingEdits:  src.HasPendingEdits,
		DispatchAttempts: src.DispatchAttempts,
		DistanceMeters:   src.DistanceMeters,
		DurationSeconds:  src.DurationSeconds,
		Price:            src.Price,
		Steps:            []stepResponse{},
		Stops:            []stopResponse{},
		Actions:          []actionResponse{},
		Items:            []itemResponse{},
		History:          []historyEntryResponse{},
	}

	for _, step := range src.Graph.Steps {
		response.Steps = append(response.Steps, stepResponse{
			ID:             step.ID.String(),
			OrderIndex:     step.OrderIndex,
			Label:          step.Label,
			Status:         step.Status.String(),
			PathTrace:      pointsToPayload(step.PathTrace),
			PendingChange:  step.IsPendingChange,
			DeleteRequired: step.DeleteRequired,
		})
	}
	for _, stop := range src.Graph.Stops {
		response.Stops = append(response.Stops, stopResponse{
			ID:             stop.ID.String(),
			StepID:         stop.StepID.String(),
			Address:        stop.Address,
			Location:       pointPayload{Lat: stop.Location.Lat(), Lon: stop.Location.Lon()},
			Sequence:       stop.Sequence,
			Status:         stop.Status.String(),
			ArrivedAt:      stop.ArrivedAt,
			PendingChange:  stop.IsPendingChange,
			DeleteRequired: stop.DeleteRequired,
		})
	}
	for _, action := range src.Graph.Actions {
		entry := actionResponse{
			ID:             action.ID.String(),
			StopID:         action.StopID.String(),
			ItemID:         optionalIDString(action.ItemID),
			Kind:           action.Kind.String(),
			Quantity:       action.Quantity,
			ServiceTimeS:   action.ServiceTime.Seconds(),
			Status:         action.Status.String(),
			FreezeReason:   action.FreezeReason,
			PendingChange:  action.IsPendingChange,
			DeleteRequired: action.DeleteRequired,
		}
		for _, proof := range action.Proofs {
			// Expected values never leave the server; the driver submits
			// blind and the aggregate compares.
			entry.Proofs = append(entry.Proofs, proofResponse{
				ID:        proof.ID.String(),
				Kind:      proofKindString(proof.Kind),
				Reference: proof.Reference,
			})
		}
		response.Actions = append(response.Actions, entry)
	}
	for _, item := range src.Graph.Items {
		response.Items = append(response.Items, itemResponse{
			ID:             item.ID.String(),
			Label:          item.Label,
			WeightKg:       item.WeightKg,
			PendingChange:  item.IsPendingChange,
			DeleteRequired: item.DeleteRequired,
		})
	}

	for _, entry := range src.History {
		response.History = append(response.History, historyEntryResponse{
			Status: entry.Status.String(),
			At:     entry.At,
			Note:   entry.Note,
		})
	}

	if src.Route != nil {
		route := routeResponse{
			FrozenSegments: []frozenSegmentResponse{},
			Legs:           []routeLegResponse{},
			Remaining:      idStrings(src.Route.Remaining),
			Visited:        idStrings(src.Route.Visited),
		}
		for _, segment := range src.Route.FrozenSegments {
			route.FrozenSegments = append(route.FrozenSegments, frozenSegmentResponse{
				StepID: segment.StepID.String(),
				Trace:  pointsToPayload(segment.Trace),
			})
		}
		for _, leg := range src.Route.Legs {
			route.Legs = append(route.Legs, routeLegResponse{
				FromStopID: optionalIDString(leg.FromStopID),
				ToStopID:   leg.ToStopID.String(),
				Polyline:   leg.Polyline,
				DistanceM:  leg.DistanceM,
				DurationS:  leg.Duration,
				Estimated:  leg.Estimated,
			})
		}
		response.Route = &route
	}

	return response
}
