package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"orderflow/internal/core/application/usecases/commands"
	"orderflow/internal/core/application/usecases/queries"
	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/core/domain/services"
	"orderflow/internal/pkg/errs"
)

// Handlers bundles the use cases the server dispatches to.
type Handlers struct {
	CreateOrder    commands.CreateOrderCommandHandler
	SubmitOrder    commands.SubmitOrderCommandHandler
	CancelOrder    commands.CancelOrderCommandHandler
	UpsertStep     commands.UpsertStepCommandHandler
	UpsertStop     commands.UpsertStopCommandHandler
	UpsertAction   commands.UpsertActionCommandHandler
	UpsertItem     commands.UpsertItemCommandHandler
	RemoveNode     commands.RemoveNodeCommandHandler
	PushChanges    commands.PushChangesCommandHandler
	RevertChanges  commands.RevertChangesCommandHandler
	AcceptMission  commands.AcceptMissionCommandHandler
	RefuseMission  commands.RefuseMissionCommandHandler
	ArriveAtStop   commands.ArriveAtStopCommandHandler
	CompleteAction commands.CompleteActionCommandHandler
	FreezeAction   commands.FreezeActionCommandHandler
	CompleteOrder  commands.CompleteOrderCommandHandler
	RecordTrace    commands.RecordTraceCommandHandler

	GetOrder     queries.GetOrderQueryHandler
	ListMissions queries.ListMissionsQueryHandler
}

// Server translates HTTP requests into commands and queries. It owns no
// business logic: binding, id parsing and status mapping only.
type Server struct {
	handlers Handlers
}

// NewServer creates an HTTP server over the given handlers.
func NewServer(handlers Handlers) *Server {
	return &Server{handlers: handlers}
}

// RegisterRoutes attaches all API routes to the echo instance.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api/v1")

	api.POST("/orders", s.CreateOrder)
	api.GET("/orders/:orderID", s.GetOrder)
	api.POST("/orders/:orderID/submit", s.SubmitOrder)
	api.POST("/orders/:orderID/cancel", s.CancelOrder)
	api.POST("/orders/:orderID/push", s.PushChanges)
	api.POST("/orders/:orderID/revert", s.RevertChanges)
	api.POST("/orders/:orderID/force-complete", s.ForceCompleteOrder)

	api.PUT("/orders/:orderID/steps/:stepID", s.UpsertStep)
	api.PUT("/orders/:orderID/stops/:stopID", s.UpsertStop)
	api.PUT("/orders/:orderID/actions/:actionID", s.UpsertAction)
	api.PUT("/orders/:orderID/items/:itemID", s.UpsertItem)
	api.DELETE("/orders/:orderID/nodes/:kind/:nodeID", s.RemoveNode)

	api.POST("/orders/:orderID/accept", s.AcceptMission)
	api.POST("/orders/:orderID/refuse", s.RefuseMission)
	api.POST("/orders/:orderID/arrive", s.ArriveAtStop)
	api.POST("/orders/:orderID/actions/:actionID/complete", s.CompleteAction)
	api.POST("/orders/:orderID/actions/:actionID/freeze", s.FreezeAction)
	api.POST("/orders/:orderID/actions/:actionID/unfreeze", s.UnfreezeAction)
	api.POST("/orders/:orderID/trace", s.RecordTrace)

	api.GET("/missions", s.ListMissions)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// respondError maps domain error classes to HTTP statuses.
func respondError(ctx echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrObjectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrBusinessRule):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrExternalService):
		status = http.StatusBadGateway
	case errors.Is(err, errs.ErrValueIsRequired),
		errors.Is(err, errs.ErrValueIsInvalid),
		errors.Is(err, errs.ErrValidation),
		errors.Is(err, queries.ErrMissionFilterIsInvalid),
		errors.Is(err, commands.ErrNodeKindIsInvalid):
		status = http.StatusBadRequest
	}

	return ctx.JSON(status, errorResponse{Code: status, Message: err.Error()})
}

func badRequest(ctx echo.Context, message string) error {
	return ctx.JSON(http.StatusBadRequest, errorResponse{
		Code:    http.StatusBadRequest,
		Message: message,
	})
}

func pathUUID(ctx echo.Context, name string) (kernel.UUID, error) {
	return kernel.UUIDFromString(ctx.Param(name))
}

type pointPayload struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (p pointPayload) toDomain() (kernel.GeoPoint, error) {
	return kernel.NewGeoPoint(p.Lat, p.Lon)
}

func parseDispatchMode(raw string) (order.DispatchMode, error) {
	switch raw {
	case "Global", "":
		return order.DispatchGlobal, nil
	case "Target":
		return order.DispatchTarget, nil
	case "Internal":
		return order.DispatchInternal, nil
	default:
		return 0, errs.NewValueIsInvalidError("mode")
	}
}

func parsePriority(raw string) (order.Priority, error) {
	switch raw {
	case "Normal", "":
		return order.PriorityNormal, nil
	case "High":
		return order.PriorityHigh, nil
	default:
		return 0, errs.NewValueIsInvalidError("priority")
	}
}

func parseActionKind(raw string) (order.ActionKind, error) {
	switch raw {
	case "Pickup":
		return order.ActionPickup, nil
	case "Delivery":
		return order.ActionDelivery, nil
	case "Service":
		return order.ActionService, nil
	default:
		return 0, errs.NewValueIsInvalidError("kind")
	}
}

func parseProofKind(raw string) (order.ProofKind, error) {
	switch raw {
	case "Code":
		return order.ProofCode, nil
	case "Photo":
		return order.ProofPhoto, nil
	default:
		return 0, errs.NewValueIsInvalidError("proof kind")
	}
}

func optionalUUID(raw string) (*kernel.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	id, err := kernel.UUIDFromString(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// CreateOrder handles POST /api/v1/orders.
func (s *Server) CreateOrder(ctx echo.Context) error {
	var body struct {
		ClientID  string `json:"clientId"`
		Mode      string `json:"mode"`
		TargetID  string `json:"targetId"`
		CompanyID string `json:"companyId"`
		Priority  string `json:"priority"`
	}
	if err := ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	clientID, err := kernel.UUIDFromString(body.ClientID)
	if err != nil {
		return respondError(ctx, err)
	}
	mode, err := parseDispatchMode(body.Mode)
	if err != nil {
		return respondError(ctx, err)
	}
	priority, err := parsePriority(body.Priority)
	if err != nil {
		return respondError(ctx, err)
	}
	targetID, err := optionalUUID(body.TargetID)
	if err != nil {
		return respondError(ctx, err)
	}
	companyID, err := optionalUUID(body.CompanyID)
	if err != nil {
		return respondError(ctx, err)
	}

	orderID := kernel.NewUUID()
	cmd, err := commands.NewCreateOrderCommand(orderID, clientID, mode, targetID, companyID, priority)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.CreateOrder.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, map[string]string{"id": orderID.String()})
}

// SubmitOrder handles POST /api/v1/orders/:orderID/submit.
func (s *Server) SubmitOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewSubmitOrderCommand(orderID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.SubmitOrder.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// CancelOrder handles POST /api/v1/orders/:orderID/cancel.
func (s *Server) CancelOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewCancelOrderCommand(orderID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.CancelOrder.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UpsertStep handles PUT /api/v1/orders/:orderID/steps/:stepID.
func (s *Server) UpsertStep(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	stepID, err := pathUUID(ctx, "stepID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Label      string `json:"label"`
		OrderIndex int    `json:"orderIndex"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	cmd, err := commands.NewUpsertStepCommand(orderID, stepID, body.Label, body.OrderIndex)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.UpsertStep.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UpsertStop handles PUT /api/v1/orders/:orderID/stops/:stopID.
func (s *Server) UpsertStop(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	stopID, err := pathUUID(ctx, "stopID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		StepID   string        `json:"stepId"`
		Address  string        `json:"address"`
		Location *pointPayload `json:"location"`
		Sequence int           `json:"sequence"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	stepID, err := kernel.UUIDFromString(body.StepID)
	if err != nil {
		return respondError(ctx, err)
	}
	var location *kernel.GeoPoint
	if body.Location != nil {
		point, pointErr := body.Location.toDomain()
		if pointErr != nil {
			return respondError(ctx, pointErr)
		}
		location = &point
	}

	cmd, err := commands.NewUpsertStopCommand(orderID, stopID, stepID, body.Address, location, body.Sequence)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.UpsertStop.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UpsertAction handles PUT /api/v1/orders/:orderID/actions/:actionID.
func (s *Server) UpsertAction(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	actionID, err := pathUUID(ctx, "actionID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		StopID       string  `json:"stopId"`
		ItemID       string  `json:"itemId"`
		Kind         string  `json:"kind"`
		Quantity     int     `json:"quantity"`
		ServiceTimeS float64 `json:"serviceTimeS"`
		Proofs       []struct {
			ID            string `json:"id"`
			Kind          string `json:"kind"`
			ExpectedValue string `json:"expectedValue"`
			CompareValue  bool   `json:"compareValue"`
			Reference     string `json:"reference"`
		} `json:"proofs"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	stopID, err := kernel.UUIDFromString(body.StopID)
	if err != nil {
		return respondError(ctx, err)
	}
	itemID, err := optionalUUID(body.ItemID)
	if err != nil {
		return respondError(ctx, err)
	}
	kind, err := parseActionKind(body.Kind)
	if err != nil {
		return respondError(ctx, err)
	}

	proofs := make([]commands.ProofSpec, 0, len(body.Proofs))
	for _, proof := range body.Proofs {
		proofID, proofErr := kernel.UUIDFromString(proof.ID)
		if proofErr != nil {
			return respondError(ctx, proofErr)
		}
		proofKind, proofErr := parseProofKind(proof.Kind)
		if proofErr != nil {
			return respondError(ctx, proofErr)
		}
		proofs = append(proofs, commands.ProofSpec{
			ProofID:       proofID,
			Kind:          proofKind,
			ExpectedValue: proof.ExpectedValue,
			CompareValue:  proof.CompareValue,
			Reference:     proof.Reference,
		})
	}

	serviceTime := time.Duration(body.ServiceTimeS * float64(time.Second))
	cmd, err := commands.NewUpsertActionCommand(orderID, actionID, stopID, itemID, kind,
		body.Quantity, serviceTime, proofs)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.UpsertAction.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UpsertItem handles PUT /api/v1/orders/:orderID/items/:itemID.
func (s *Server) UpsertItem(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	itemID, err := pathUUID(ctx, "itemID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Label    string  `json:"label"`
		WeightKg float64 `json:"weightKg"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	cmd, err := commands.NewUpsertItemCommand(orderID, itemID, body.Label, body.WeightKg)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.UpsertItem.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RemoveNode handles DELETE /api/v1/orders/:orderID/nodes/:kind/:nodeID.
func (s *Server) RemoveNode(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	nodeID, err := pathUUID(ctx, "nodeID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewRemoveNodeCommand(orderID, commands.NodeKind(ctx.Param("kind")), nodeID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.RemoveNode.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PushChanges handles POST /api/v1/orders/:orderID/push.
func (s *Server) PushChanges(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewPushChangesCommand(orderID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.PushChanges.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RevertChanges handles POST /api/v1/orders/:orderID/revert.
func (s *Server) RevertChanges(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewRevertChangesCommand(orderID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.RevertChanges.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ForceCompleteOrder handles POST /api/v1/orders/:orderID/force-complete.
func (s *Server) ForceCompleteOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewCompleteOrderCommand(orderID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.CompleteOrder.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// AcceptMission handles POST /api/v1/orders/:orderID/accept.
func (s *Server) AcceptMission(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		DriverID string       `json:"driverId"`
		Position pointPayload `json:"position"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	driverID, err := kernel.UUIDFromString(body.DriverID)
	if err != nil {
		return respondError(ctx, err)
	}
	position, err := body.Position.toDomain()
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewAcceptMissionCommand(orderID, driverID, position)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.AcceptMission.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RefuseMission handles POST /api/v1/orders/:orderID/refuse.
func (s *Server) RefuseMission(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		DriverID string `json:"driverId"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	driverID, err := kernel.UUIDFromString(body.DriverID)
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewRefuseMissionCommand(orderID, driverID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.RefuseMission.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// ArriveAtStop handles POST /api/v1/orders/:orderID/arrive.
func (s *Server) ArriveAtStop(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		StopID   string        `json:"stopId"`
		Position *pointPayload `json:"position"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	stopID, err := kernel.UUIDFromString(body.StopID)
	if err != nil {
		return respondError(ctx, err)
	}
	var position *kernel.GeoPoint
	if body.Position != nil {
		point, pointErr := body.Position.toDomain()
		if pointErr != nil {
			return respondError(ctx, pointErr)
		}
		position = &point
	}

	cmd, err := commands.NewArriveAtStopCommand(orderID, stopID, position)
	if err != nil {
		return respondError(ctx, err)
	}
	result, err := s.handlers.ArriveAtStop.Handle(ctx.Request().Context(), cmd)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]string{
		"stopId":   result.StopID.String(),
		"advisory": result.Advisory,
	})
}

// CompleteAction handles POST /api/v1/orders/:orderID/actions/:actionID/complete.
func (s *Server) CompleteAction(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	actionID, err := pathUUID(ctx, "actionID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Codes map[string]string `json:"codes"`
		Files map[string]string `json:"files"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	cmd, err := commands.NewCompleteActionCommand(orderID, actionID, body.Codes, body.Files)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.CompleteAction.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// FreezeAction handles POST /api/v1/orders/:orderID/actions/:actionID/freeze.
func (s *Server) FreezeAction(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	actionID, err := pathUUID(ctx, "actionID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	cmd, err := commands.NewFreezeActionCommand(orderID, actionID, body.Reason)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.FreezeAction.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// UnfreezeAction handles POST /api/v1/orders/:orderID/actions/:actionID/unfreeze.
func (s *Server) UnfreezeAction(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}
	actionID, err := pathUUID(ctx, "actionID")
	if err != nil {
		return respondError(ctx, err)
	}

	cmd, err := commands.NewUnfreezeActionCommand(orderID, actionID)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.FreezeAction.HandleUnfreeze(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// RecordTrace handles POST /api/v1/orders/:orderID/trace.
func (s *Server) RecordTrace(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	var body struct {
		StepID string         `json:"stepId"`
		Points []pointPayload `json:"points"`
	}
	if err = ctx.Bind(&body); err != nil {
		return badRequest(ctx, "invalid request body")
	}

	stepID, err := kernel.UUIDFromString(body.StepID)
	if err != nil {
		return respondError(ctx, err)
	}
	points := make([]kernel.GeoPoint, 0, len(body.Points))
	for _, raw := range body.Points {
		point, pointErr := raw.toDomain()
		if pointErr != nil {
			return respondError(ctx, pointErr)
		}
		points = append(points, point)
	}

	cmd, err := commands.NewRecordTraceCommand(orderID, stepID, points)
	if err != nil {
		return respondError(ctx, err)
	}
	if err = s.handlers.RecordTrace.Handle(ctx.Request().Context(), cmd); err != nil {
		return respondError(ctx, err)
	}
	return ctx.NoContent(http.StatusNoContent)
}

// GetOrder handles GET /api/v1/orders/:orderID.
//
// Query params: view=client|driver (default client), route=true to attach
// the live route partition.
func (s *Server) GetOrder(ctx echo.Context) error {
	orderID, err := pathUUID(ctx, "orderID")
	if err != nil {
		return respondError(ctx, err)
	}

	view := services.ViewClient
	switch ctx.QueryParam("view") {
	case "", "client":
	case "driver":
		view = services.ViewDriver
	default:
		return badRequest(ctx, "view must be client or driver")
	}
	includeRoute := ctx.QueryParam("route") == "true"

	query, err := queries.NewGetOrderQuery(orderID, view, includeRoute)
	if err != nil {
		return respondError(ctx, err)
	}
	response, err := s.handlers.GetOrder.Handle(ctx.Request().Context(), query)
	if err != nil {
		return respondError(ctx, err)
	}

	return ctx.JSON(http.StatusOK, toOrderResponse(response))
}

// ListMissions handles GET /api/v1/missions.
//
// Query params: filter=pending|active|history (required), optional
// driverId and clientId narrowing.
func (s *Server) ListMissions(ctx echo.Context) error {
	driverID, err := optionalUUID(ctx.QueryParam("driverId"))
	if err != nil {
		return respondError(ctx, err)
	}
	clientID, err := optionalUUID(ctx.QueryParam("clientId"))
	if err != nil {
		return respondError(ctx, err)
	}

	query, err := queries.NewListMissionsQuery(
		queries.MissionFilter(ctx.QueryParam("filter")), driverID, clientID)
	if err != nil {
		return respondError(ctx, err)
	}
	missions, err := s.handlers.ListMissions.Handle(ctx.Request().Context(), query)
	if err != nil {
		return respondError(ctx, err)
	}

	response := make([]missionResponse, 0, len(missions))
	for _, mission := range missions {
		entry := missionResponse{
			ID:              mission.ID.String(),
			ClientID:        mission.ClientID.String(),
			Status:          mission.Status.String(),
			Priority:        mission.Priority.String(),
			DistanceMeters:  mission.DistanceMeters,
			DurationSeconds: mission.DurationSeconds,
			Price:           mission.Price,
			UpdatedAt:       mission.UpdatedAt,
		}
		if mission.DriverID != nil {
			id := mission.DriverID.String()
			entry.DriverID = &id
		}
		response = append(response, entry)
	}

	return ctx.JSON(http.StatusOK, response)
}
