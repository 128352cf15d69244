package orderrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderflow/internal/core/domain/model/kernel"
	"orderflow/internal/core/domain/model/order"
	"orderflow/internal/pkg/errs"
)

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GORM order repository.
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Add saves a new order aggregate with its graph rows.
func (r *GormOrderRepository) Add(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, err := fromDomain(aggregate)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&dto).Error
}

// Update saves an existing order aggregate. Graph rows are upserted through
// the associations; rows deleted from the aggregate (merged shadows,
// removed structure) are pruned afterwards by id set difference.
func (r *GormOrderRepository) Update(ctx context.Context, aggregate *order.Order) error {
	if err := aggregate.Validate(); err != nil {
		return err
	}

	dto, err := fromDomain(aggregate)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Session(&gorm.Session{FullSaveAssociations: true}).
		Save(&dto)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.NewObjectNotFoundError("order", aggregate.ID().String())
	}

	return r.pruneRemovedRows(ctx, dto)
}

// pruneRemovedRows deletes child rows that are no longer part of the
// aggregate. FullSaveAssociations upserts what exists but never deletes.
func (r *GormOrderRepository) pruneRemovedRows(ctx context.Context, dto OrderDTO) error {
	kept := func(n int, id func(int) any) []any {
		ids := make([]any, 0, n)
		for i := 0; i < n; i++ {
			ids = append(ids, id(i))
		}
		return ids
	}

	prune := func(model any, ids []any) error {
		q := r.db.WithContext(ctx).Where("order_id = ?", dto.ID)
		if len(ids) > 0 {
			q = q.Where("id NOT IN ?", ids)
		}
		return q.Delete(model).Error
	}

	if err := prune(&StepDTO{}, kept(len(dto.Steps), func(i int) any { return dto.Steps[i].ID })); err != nil {
		return err
	}
	if err := prune(&StopDTO{}, kept(len(dto.Stops), func(i int) any { return dto.Stops[i].ID })); err != nil {
		return err
	}
	if err := prune(&ActionDTO{}, kept(len(dto.Actions), func(i int) any { return dto.Actions[i].ID })); err != nil {
		return err
	}
	return prune(&ItemDTO{}, kept(len(dto.Items), func(i int) any { return dto.Items[i].ID }))
}

func withGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("order_index, shadow_revised_at") }).
		Preload("Stops", func(db *gorm.DB) *gorm.DB { return db.Order("sequence, shadow_revised_at") }).
		Preload("Actions").
		Preload("Items")
}

// Get retrieves an order aggregate by ID.
func (r *GormOrderRepository) Get(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	if err := withGraph(r.db.WithContext(ctx)).First(&dto, "id = ?", id.Bytes()).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetForUpdate retrieves an order while holding FOR UPDATE on its row,
// serializing concurrent mutations of the same aggregate. Graph rows are
// not locked individually: every write path goes through the order row.
func (r *GormOrderRepository) GetForUpdate(ctx context.Context, id kernel.UUID) (*order.Order, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}

	var dto OrderDTO
	err := withGraph(r.db.WithContext(ctx)).
		Clauses(clause.Locking{Strength: "UPDATE", Table: clause.Table{Name: "orders"}}).
		First(&dto, "id = ?", id.Bytes()).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.NewObjectNotFoundError("order", id.String())
		}
		return nil, err
	}

	return toDomain(dto)
}

// GetAllDispatchable retrieves pending orders with no live offer, oldest
// first. An expired offer does not block: expiry is passive and the next
// dispatch round simply supersedes it.
func (r *GormOrderRepository) GetAllDispatchable(ctx context.Context) ([]*order.Order, error) {
	var dtos []OrderDTO
	err := withGraph(r.db.WithContext(ctx)).
		Where("status = ?", int(order.StatusPending)).
		Where("offered_driver_id IS NULL OR offer_expires_at <= ?", time.Now()).
		Order("created_at").
		Find(&dtos).Error
	if err != nil {
		return nil, err
	}

	orders := make([]*order.Order, 0, len(dtos))
	for _, dto := range dtos {
		o, convErr := toDomain(dto)
		if convErr != nil {
			return nil, convErr
		}
		orders = append(orders, o)
	}

	return orders, nil
}
