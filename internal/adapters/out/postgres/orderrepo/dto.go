// Package orderrepo provides data transfer objects and mapping functions for
// order persistence. The aggregate spans several tables: the order row itself
// plus its structural graph (steps, stops, actions, items), with route
// geometry and history serialized as jsonb on the order row.
package orderrepo

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// OrderDTO represents the database structure for persisting order aggregates.
// Child graph rows are mapped through GORM associations; route legs, frozen
// segments, execution partition and history travel as jsonb documents since
// they are read and written only as whole values.
type OrderDTO struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ClientID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	CompanyID        *uuid.UUID `gorm:"type:uuid"`
	DispatchMode     int        `gorm:"type:int;not null"`
	TargetID         *uuid.UUID `gorm:"type:uuid"`
	Priority         int        `gorm:"type:int;not null"`
	Status           int        `gorm:"type:int;not null;index"`
	DriverID         *uuid.UUID `gorm:"type:uuid;index"`
	OfferedDriverID  *uuid.UUID `gorm:"type:uuid"`
	OfferExpiresAt   *time.Time
	DispatchAttempts int  `gorm:"type:int;not null"`
	PendingChanges   bool `gorm:"not null"`

	MissionStartLat *float64
	MissionStartLon *float64

	DistanceM float64
	DurationS float64
	Price     float64

	RouteExec      []byte `gorm:"type:jsonb"`
	RouteLegs      []byte `gorm:"type:jsonb"`
	FrozenSegments []byte `gorm:"type:jsonb"`
	History        []byte `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Steps   []StepDTO   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Stops   []StopDTO   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Actions []ActionDTO `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Items   []ItemDTO   `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the database table name for order entities.
func (OrderDTO) TableName() string {
	return "orders"
}

// ShadowDTO carries the canonical/shadow bookkeeping shared by every graph
// row.
type ShadowDTO struct {
	IsPendingChange bool       `gorm:"not null"`
	OriginalID      *uuid.UUID `gorm:"type:uuid"`
	DeleteRequired  bool       `gorm:"not null"`
	RevisedAt       time.Time
}

// StepDTO represents one step row of the order graph.
type StepDTO struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID    uuid.UUID `gorm:"type:uuid;not null;index"`
	OrderIndex int       `gorm:"type:int;not null"`
	Label      string    `gorm:"type:varchar(255)"`
	Status     int       `gorm:"type:int;not null"`
	PathTrace  []byte    `gorm:"type:jsonb"`
	Shadow     ShadowDTO `gorm:"embedded;embeddedPrefix:shadow_"`
}

// TableName specifies the database table name for step rows.
func (StepDTO) TableName() string {
	return "order_steps"
}

// StopDTO represents one stop row of the order graph.
type StopDTO struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID   uuid.UUID `gorm:"type:uuid;not null;index"`
	StepID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Address   string    `gorm:"type:varchar(512)"`
	Lat       float64
	Lon       float64
	Sequence  int `gorm:"type:int;not null"`
	Status    int `gorm:"type:int;not null"`
	ArrivedAt *time.Time
	Shadow    ShadowDTO `gorm:"embedded;embeddedPrefix:shadow_"`
}

// TableName specifies the database table name for stop rows.
func (StopDTO) TableName() string {
	return "order_stops"
}

// ActionDTO represents one action row of the order graph. Proof
// declarations are serialized inline: they are immutable once declared and
// never queried independently.
type ActionDTO struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrderID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	StopID        uuid.UUID  `gorm:"type:uuid;not null;index"`
	ItemID        *uuid.UUID `gorm:"type:uuid"`
	Kind          int        `gorm:"type:int;not null"`
	Quantity      int        `gorm:"type:int;not null"`
	ServiceTimeNs int64      `gorm:"type:bigint;not null"`
	Status        int        `gorm:"type:int;not null"`
	FreezeReason  string     `gorm:"type:varchar(512)"`
	Proofs        []byte     `gorm:"type:jsonb"`
	Shadow        ShadowDTO  `gorm:"embedded;embeddedPrefix:shadow_"`
}

// TableName specifies the database table name for action rows.
func (ActionDTO) TableName() string {
	return "order_actions"
}

// ItemDTO represents one transit item row of the order graph.
type ItemDTO struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID  uuid.UUID `gorm:"type:uuid;not null;index"`
	Label    string    `gorm:"type:varchar(255)"`
	WeightKg float64
	Shadow   ShadowDTO `gorm:"embedded;embeddedPrefix:shadow_"`
}

// TableName specifies the database table name for transit item rows.
func (ItemDTO) TableName() string {
	return "order_items"
}

// jsonb document shapes. UUIDs and geo points are flattened here because
// the kernel value objects keep their fields private.

type geoPointJSON struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type routeExecJSON struct {
	Planned          []string `json:"planned"`
	Visited          []string `json:"visited"`
	Remaining        []string `json:"remaining"`
	NextStopOverride *string  `json:"nextStopOverride,omitempty"`
}

type routeLegJSON struct {
	FromStopID *string `json:"fromStopId,omitempty"`
	ToStopID   string  `json:"toStopId"`
	Polyline   string  `json:"polyline"`
	DistanceM  float64 `json:"distanceM"`
	Duration   float64 `json:"duration"`
	Estimated  bool    `json:"estimated,omitempty"`
}

type frozenSegmentJSON struct {
	StepID string         `json:"stepId"`
	Trace  []geoPointJSON `json:"trace"`
}

type historyEntryJSON struct {
	Status int       `json:"status"`
	At     time.Time `json:"at"`
	Note   string    `json:"note,omitempty"`
}

type proofJSON struct {
	ID            string `json:"id"`
	Kind          int    `json:"kind"`
	ExpectedValue string `json:"expectedValue,omitempty"`
	CompareValue  bool   `json:"compareValue,omitempty"`
	Reference     string `json:"reference,omitempty"`
}

func optionalUUID(id *kernel.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	raw := id.Bytes()
	return &raw
}

func optionalDomainUUID(id *uuid.UUID) (*kernel.UUID, error) {
	if id == nil {
		return nil, nil
	}
	domainID, err := kernel.UUIDFromBytes((*id)[:])
	if err != nil {
		return nil, err
	}
	return &domainID, nil
}

func uuidStrings(ids []kernel.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func uuidsFromStrings(raw []string) ([]kernel.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]kernel.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := kernel.UUIDFromString(s)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func pointsToJSON(points []kernel.GeoPoint) []geoPointJSON {
	out := make([]geoPointJSON, 0, len(points))
	for _, p := range points {
		out = append(out, geoPointJSON{Lat: p.Lat(), Lon: p.Lon()})
	}
	return out
}

func pointsFromJSON(raw []geoPointJSON) ([]kernel.GeoPoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([]kernel.GeoPoint, 0, len(raw))
	for _, p := range raw {
		point, err := kernel.NewGeoPoint(p.Lat, p.Lon)
		if err != nil {
			return nil, err
		}
		out = append(out, point)
	}
	return out, nil
}

// fromDomain converts an order domain aggregate to its database
// representation.
func fromDomain(aggregate *order.Order) (OrderDTO, error) {
	orderID := aggregate.ID().Bytes()
	distanceM, durationS, price := aggregate.Totals()

	dto := OrderDTO{
		ID:               orderID,
		ClientID:         aggregate.ClientID().Bytes(),
		CompanyID:        optionalUUID(aggregate.CompanyID()),
		DispatchMode:     int(aggregate.DispatchMode()),
		TargetID:         optionalUUID(aggregate.TargetID()),
		Priority:         int(aggregate.Priority()),
		Status:           int(aggregate.Status()),
		DriverID:         optionalUUID(aggregate.DriverID()),
		OfferedDriverID:  optionalUUID(aggregate.OfferedDriverID()),
		OfferExpiresAt:   aggregate.OfferExpiresAt(),
		DispatchAttempts: aggregate.DispatchAttempts(),
		PendingChanges:   aggregate.HasPendingChanges(),
		DistanceM:        distanceM,
		DurationS:        durationS,
		Price:            price,
	}

	if start := aggregate.MissionStart(); start != nil {
		lat, lon := start.Lat(), start.Lon()
		dto.MissionStartLat = &lat
		dto.MissionStartLon = &lon
	}

	var err error
	if dto.RouteExec, err = marshalRouteExec(aggregate.RouteExecution()); err != nil {
		return OrderDTO{}, err
	}
	if dto.RouteLegs, err = marshalRouteLegs(aggregate.RouteLegs()); err != nil {
		return OrderDTO{}, err
	}
	if dto.FrozenSegments, err = marshalFrozenSegments(aggregate.FrozenSegments()); err != nil {
		return OrderDTO{}, err
	}
	if dto.History, err = marshalHistory(aggregate.History()); err != nil {
		return OrderDTO{}, err
	}

	g := aggregate.Graph()
	for _, step := range g.Steps {
		row, rowErr := stepFromDomain(orderID, step)
		if rowErr != nil {
			return OrderDTO{}, rowErr
		}
		dto.Steps = append(dto.Steps, row)
	}
	for _, stop := range g.Stops {
		dto.Stops = append(dto.Stops, stopFromDomain(orderID, stop))
	}
	for _, action := range g.Actions {
		row, rowErr := actionFromDomain(orderID, action)
		if rowErr != nil {
			return OrderDTO{}, rowErr
		}
		dto.Actions = append(dto.Actions, row)
	}
	for _, item := range g.Items {
		dto.Items = append(dto.Items, itemFromDomain(orderID, item))
	}

	return dto, nil
}

func shadowFromDomain(m order.ShadowMeta) ShadowDTO {
	return ShadowDTO{
		IsPendingChange: m.IsPendingChange,
		OriginalID:      optionalUUID(m.OriginalID),
		DeleteRequired:  m.DeleteRequired,
		RevisedAt:       m.RevisedAt,
	}
}

func shadowToDomain(dto ShadowDTO) (order.ShadowMeta, error) {
	originalID, err := optionalDomainUUID(dto.OriginalID)
	if err != nil {
		return order.ShadowMeta{}, err
	}
	return order.ShadowMeta{
		IsPendingChange: dto.IsPendingChange,
		OriginalID:      originalID,
		DeleteRequired:  dto.DeleteRequired,
		RevisedAt:       dto.RevisedAt,
	}, nil
}

func stepFromDomain(orderID uuid.UUID, step *order.Step) (StepDTO, error) {
	trace, err := json.Marshal(pointsToJSON(step.PathTrace))
	if err != nil {
		return StepDTO{}, err
	}
	return StepDTO{
		ID:         step.ID.Bytes(),
		OrderID:    orderID,
		OrderIndex: step.OrderIndex,
		Label:      step.Label,
		Status:     int(step.Status),
		PathTrace:  trace,
		Shadow:     shadowFromDomain(step.ShadowMeta),
	}, nil
}

func stepToDomain(dto StepDTO) (*order.Step, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	shadow, err := shadowToDomain(dto.Shadow)
	if err != nil {
		return nil, err
	}

	var traceDoc []geoPointJSON
	if len(dto.PathTrace) > 0 {
		if err = json.Unmarshal(dto.PathTrace, &traceDoc); err != nil {
			return nil, err
		}
	}
	trace, err := pointsFromJSON(traceDoc)
	if err != nil {
		return nil, err
	}

	return &order.Step{
		ID:         id,
		OrderIndex: dto.OrderIndex,
		Label:      dto.Label,
		Status:     order.StepStatus(dto.Status),
		PathTrace:  trace,
		ShadowMeta: shadow,
	}, nil
}

func stopFromDomain(orderID uuid.UUID, stop *order.Stop) StopDTO {
	return StopDTO{
		ID:        stop.ID.Bytes(),
		OrderID:   orderID,
		StepID:    stop.StepID.Bytes(),
		Address:   stop.Address,
		Lat:       stop.Location.Lat(),
		Lon:       stop.Location.Lon(),
		Sequence:  stop.Sequence,
		Status:    int(stop.Status),
		ArrivedAt: stop.ArrivedAt,
		Shadow:    shadowFromDomain(stop.ShadowMeta),
	}
}

func stopToDomain(dto StopDTO) (*order.Stop, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	stepID, err := kernel.UUIDFromBytes(dto.StepID[:])
	if err != nil {
		return nil, err
	}
	location, err := kernel.NewGeoPoint(dto.Lat, dto.Lon)
	if err != nil {
		return nil, err
	}
	shadow, err := shadowToDomain(dto.Shadow)
	if err != nil {
		return nil, err
	}

	return &order.Stop{
		ID:         id,
		StepID:     stepID,
		Address:    dto.Address,
		Location:   location,
		Sequence:   dto.Sequence,
		Status:     order.StopStatus(dto.Status),
		ArrivedAt:  dto.ArrivedAt,
		ShadowMeta: shadow,
	}, nil
}

func actionFromDomain(orderID uuid.UUID, action *order.Action) (ActionDTO, error) {
	proofsDoc := make([]proofJSON, 0, len(action.Proofs))
	for _, p := range action.Proofs {
		proofsDoc = append(proofsDoc, proofJSON{
			ID:            p.ID.String(),
			Kind:          int(p.Kind),
			ExpectedValue: p.ExpectedValue,
			CompareValue:  p.CompareValue,
			Reference:     p.Reference,
		})
	}
	proofs, err := json.Marshal(proofsDoc)
	if err != nil {
		return ActionDTO{}, err
	}

	return ActionDTO{
		ID:            action.ID.Bytes(),
		OrderID:       orderID,
		StopID:        action.StopID.Bytes(),
		ItemID:        optionalUUID(action.ItemID),
		Kind:          int(action.Kind),
		Quantity:      action.Quantity,
		ServiceTimeNs: int64(action.ServiceTime),
		Status:        int(action.Status),
		FreezeReason:  action.FreezeReason,
		Proofs:        proofs,
		Shadow:        shadowFromDomain(action.ShadowMeta),
	}, nil
}

func actionToDomain(dto ActionDTO) (*order.Action, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	stopID, err := kernel.UUIDFromBytes(dto.StopID[:])
	if err != nil {
		return nil, err
	}
	itemID, err := optionalDomainUUID(dto.ItemID)
	if err != nil {
		return nil, err
	}
	shadow, err := shadowToDomain(dto.Shadow)
	if err != nil {
		return nil, err
	}

	var proofsDoc []proofJSON
	if len(dto.Proofs) > 0 {
		if err = json.Unmarshal(dto.Proofs, &proofsDoc); err != nil {
			return nil, err
		}
	}
	var proofs []order.ActionProof
	for _, p := range proofsDoc {
		proofID, idErr := kernel.UUIDFromString(p.ID)
		if idErr != nil {
			return nil, idErr
		}
		proofs = append(proofs, order.ActionProof{
			ID:            proofID,
			Kind:          order.ProofKind(p.Kind),
			ExpectedValue: p.ExpectedValue,
			CompareValue:  p.CompareValue,
			Reference:     p.Reference,
		})
	}

	return &order.Action{
		ID:           id,
		StopID:       stopID,
		ItemID:       itemID,
		Kind:         order.ActionKind(dto.Kind),
		Quantity:     dto.Quantity,
		ServiceTime:  time.Duration(dto.ServiceTimeNs),
		Status:       order.ActionStatus(dto.Status),
		FreezeReason: dto.FreezeReason,
		Proofs:       proofs,
		ShadowMeta:   shadow,
	}, nil
}

func itemFromDomain(orderID uuid.UUID, item *order.TransitItem) ItemDTO {
	return ItemDTO{
		ID:       item.ID.Bytes(),
		OrderID:  orderID,
		Label:    item.Label,
		WeightKg: item.WeightKg,
		Shadow:   shadowFromDomain(item.ShadowMeta),
	}
}

func itemToDomain(dto ItemDTO) (*order.TransitItem, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	shadow, err := shadowToDomain(dto.Shadow)
	if err != nil {
		return nil, err
	}
	return &order.TransitItem{
		ID:         id,
		Label:      dto.Label,
		WeightKg:   dto.WeightKg,
		ShadowMeta: shadow,
	}, nil
}

func marshalRouteExec(exec *order.RouteExecution) ([]byte, error) {
	doc := routeExecJSON{
		Planned:   uuidStrings(exec.Planned),
		Visited:   uuidStrings(exec.Visited),
		Remaining: uuidStrings(exec.Remaining),
	}
	if exec.NextStopOverride != nil {
		s := exec.NextStopOverride.String()
		doc.NextStopOverride = &s
	}
	return json.Marshal(doc)
}

func unmarshalRouteExec(raw []byte) (order.RouteExecution, error) {
	var exec order.RouteExecution
	if len(raw) == 0 {
		return exec, nil
	}
	var doc routeExecJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return exec, err
	}

	var err error
	if exec.Planned, err = uuidsFromStrings(doc.Planned); err != nil {
		return order.RouteExecution{}, err
	}
	if exec.Visited, err = uuidsFromStrings(doc.Visited); err != nil {
		return order.RouteExecution{}, err
	}
	if exec.Remaining, err = uuidsFromStrings(doc.Remaining); err != nil {
		return order.RouteExecution{}, err
	}
	if doc.NextStopOverride != nil {
		override, idErr := kernel.UUIDFromString(*doc.NextStopOverride)
		if idErr != nil {
			return order.RouteExecution{}, idErr
		}
		exec.NextStopOverride = &override
	}
	return exec, nil
}

func marshalRouteLegs(legs []order.RouteLeg) ([]byte, error) {
	doc := make([]routeLegJSON, 0, len(legs))
	for _, leg := range legs {
		row := routeLegJSON{
			ToStopID:  leg.ToStopID.String(),
			Polyline:  leg.Polyline,
			DistanceM: leg.DistanceM,
			Duration:  leg.Duration,
			Estimated: leg.Estimated,
		}
		if leg.FromStopID != nil {
			s := leg.FromStopID.String()
			row.FromStopID = &s
		}
		doc = append(doc, row)
	}
	return json.Marshal(doc)
}

func unmarshalRouteLegs(raw []byte) ([]order.RouteLeg, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc []routeLegJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var legs []order.RouteLeg
	for _, row := range doc {
		toStopID, err := kernel.UUIDFromString(row.ToStopID)
		if err != nil {
			return nil, err
		}
		leg := order.RouteLeg{
			ToStopID:  toStopID,
			Polyline:  row.Polyline,
			DistanceM: row.DistanceM,
			Duration:  row.Duration,
			Estimated: row.Estimated,
		}
		if row.FromStopID != nil {
			fromStopID, idErr := kernel.UUIDFromString(*row.FromStopID)
			if idErr != nil {
				return nil, idErr
			}
			leg.FromStopID = &fromStopID
		}
		legs = append(legs, leg)
	}
	return legs, nil
}

func marshalFrozenSegments(segments []order.FrozenSegment) ([]byte, error) {
	doc := make([]frozenSegmentJSON, 0, len(segments))
	for _, seg := range segments {
		doc = append(doc, frozenSegmentJSON{
			StepID: seg.StepID.String(),
			Trace:  pointsToJSON(seg.Trace),
		})
	}
	return json.Marshal(doc)
}

func unmarshalFrozenSegments(raw []byte) ([]order.FrozenSegment, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc []frozenSegmentJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var segments []order.FrozenSegment
	for _, row := range doc {
		stepID, err := kernel.UUIDFromString(row.StepID)
		if err != nil {
			return nil, err
		}
		trace, err := pointsFromJSON(row.Trace)
		if err != nil {
			return nil, err
		}
		segments = append(segments, order.FrozenSegment{StepID: stepID, Trace: trace})
	}
	return segments, nil
}

func marshalHistory(history []order.HistoryEntry) ([]byte, error) {
	doc := make([]historyEntryJSON, 0, len(history))
	for _, entry := range history {
		doc = append(doc, historyEntryJSON{
			Status: int(entry.Status),
			At:     entry.At,
			Note:   entry.Note,
		})
	}
	return json.Marshal(doc)
}

func unmarshalHistory(raw []byte) ([]order.HistoryEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc []historyEntryJSON
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}

	var history []order.HistoryEntry
	for _, row := range doc {
		history = append(history, order.HistoryEntry{
			Status: order.Status(row.Status),
			At:     row.At,
			Note:   row.Note,
		})
	}
	return history, nil
}

// toDomain converts database rows back to an order domain aggregate.
func toDomain(dto OrderDTO) (*order.Order, error) {
	id, err := kernel.UUIDFromBytes(dto.ID[:])
	if err != nil {
		return nil, err
	}
	clientID, err := kernel.UUIDFromBytes(dto.ClientID[:])
	if err != nil {
		return nil, err
	}
	companyID, err := optionalDomainUUID(dto.CompanyID)
	if err != nil {
		return nil, err
	}
	targetID, err := optionalDomainUUID(dto.TargetID)
	if err != nil {
		return nil, err
	}
	driverID, err := optionalDomainUUID(dto.DriverID)
	if err != nil {
		return nil, err
	}
	offeredDriverID, err := optionalDomainUUID(dto.OfferedDriverID)
	if err != nil {
		return nil, err
	}

	var missionStart *kernel.GeoPoint
	if dto.MissionStartLat != nil && dto.MissionStartLon != nil {
		point, pointErr := kernel.NewGeoPoint(*dto.MissionStartLat, *dto.MissionStartLon)
		if pointErr != nil {
			return nil, pointErr
		}
		missionStart = &point
	}

	routeExec, err := unmarshalRouteExec(dto.RouteExec)
	if err != nil {
		return nil, err
	}
	routeLegs, err := unmarshalRouteLegs(dto.RouteLegs)
	if err != nil {
		return nil, err
	}
	frozenSegments, err := unmarshalFrozenSegments(dto.FrozenSegments)
	if err != nil {
		return nil, err
	}
	history, err := unmarshalHistory(dto.History)
	if err != nil {
		return nil, err
	}

	graph := order.NewGraph()
	for _, row := range dto.Steps {
		step, rowErr := stepToDomain(row)
		if rowErr != nil {
			return nil, rowErr
		}
		graph.Steps = append(graph.Steps, step)
	}
	for _, row := range dto.Stops {
		stop, rowErr := stopToDomain(row)
		if rowErr != nil {
			return nil, rowErr
		}
		graph.Stops = append(graph.Stops, stop)
	}
	for _, row := range dto.Actions {
		action, rowErr := actionToDomain(row)
		if rowErr != nil {
			return nil, rowErr
		}
		graph.Actions = append(graph.Actions, action)
	}
	for _, row := range dto.Items {
		item, rowErr := itemToDomain(row)
		if rowErr != nil {
			return nil, rowErr
		}
		graph.Items = append(graph.Items, item)
	}

	return order.RestoreOrder(
		id,
		clientID,
		companyID,
		order.DispatchMode(dto.DispatchMode),
		targetID,
		order.Priority(dto.Priority),
		order.Status(dto.Status),
		driverID,
		offeredDriverID,
		dto.OfferExpiresAt,
		dto.DispatchAttempts,
		dto.PendingChanges,
		graph,
		routeExec,
		routeLegs,
		frozenSegments,
		missionStart,
		dto.DistanceM,
		dto.DurationS,
		dto.Price,
		history,
	)
}
