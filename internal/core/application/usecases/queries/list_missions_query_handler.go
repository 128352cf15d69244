package queries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
)

// ListMissionsQueryHandler serves the mission list straight from the
// database. This is a projection, not an aggregate load: no graph rows
// are touched and no view resolution happens.
type ListMissionsQueryHandler struct {
	db *gorm.DB
}

// NewListMissionsQueryHandler creates a handler for mission listings.
func NewListMissionsQueryHandler(db *gorm.DB) ListMissionsQueryHandler {
	return ListMissionsQueryHandler{db: db}
}

// Handle executes the listing, newest activity first.
func (h ListMissionsQueryHandler) Handle(
	ctx context.Context,
	query ListMissionsQuery,
) ([]ListMissionsQueryResponse, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	sql := `
		SELECT
			id,
			client_id,
			driver_id,
			status,
			priority,
			distance_m,
			duration_s,
			price,
			updated_at
		FROM orders
		WHERE status IN ?`
	args := []any{query.statuses()}

	if query.driverID != nil {
		sql += ` AND driver_id = ?`
		args = append(args, query.driverID.String())
	}
	if query.clientID != nil {
		sql += ` AND client_id = ?`
		args = append(args, query.clientID.String())
	}
	sql += ` ORDER BY updated_at DESC`

	rows, err := h.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missions := make([]ListMissionsQueryResponse, 0)
	for rows.Next() {
		var (
			id        uuid.UUID
			clientID  uuid.UUID
			driverID  uuid.NullUUID
			status    int
			priority  int
			distanceM float64
			durationS float64
			price     float64
			updatedAt time.Time
		)

		if err = rows.Scan(&id, &clientID, &driverID, &status, &priority,
			&distanceM, &durationS, &price, &updatedAt); err != nil {
			return nil, err
		}

		resp := ListMissionsQueryResponse{
			Status:          order.Status(status),
			Priority:        order.Priority(priority),
			DistanceMeters:  distanceM,
			DurationSeconds: durationS,
			Price:           price,
			UpdatedAt:       updatedAt,
		}
		if resp.ID, err = kernel.UUIDFromBytes(id[:]); err != nil {
			return nil, err
		}
		if resp.ClientID, err = kernel.UUIDFromBytes(clientID[:]); err != nil {
			return nil, err
		}
		if driverID.Valid {
			dID, idErr := kernel.UUIDFromBytes(driverID.UUID[:])
			if idErr != nil {
				return nil, idErr
			}
			resp.DriverID = &dID
		}
		missions = append(missions, resp)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return missions, nil
}
