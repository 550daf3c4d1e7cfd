package persistence

import (
	"context"
	"errors"

	"github.com/sellerhub/invoicing/internal/domain/order"
	"github.com/sellerhub/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindWithItems loads an order together with its line items. An absent order
// or an order without items yields (nil, nil, nil): the upstream pipeline
// has not finished loading, which is not an error.
func (r *GormOrderRepository) FindWithItems(ctx context.Context, shopID, orderID string) (*order.Order, []order.OrderItem, error) {
	var model models.OrderModel
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("shop_id = ? AND order_id = ?", shopID, orderID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil
		}
		return nil, nil, err
	}

	if len(model.Items) == 0 {
		return nil, nil, nil
	}

	items := make([]order.OrderItem, 0, len(model.Items))
	for i := range model.Items {
		items = append(items, model.Items[i].ToDomain())
	}

	return model.ToDomain(), items, nil
}

// Ensure GormOrderRepository implements order.Repository
var _ order.Repository = (*GormOrderRepository)(nil)
