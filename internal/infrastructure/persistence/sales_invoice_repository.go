package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/sellerhub/invoicing/internal/domain/shared"
	"github.com/sellerhub/invoicing/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSalesInvoiceRepository implements invoice.SalesInvoiceRepository using GORM
type GormSalesInvoiceRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormSalesInvoiceRepository creates a new GormSalesInvoiceRepository
func NewGormSalesInvoiceRepository(db *gorm.DB, logger *zap.Logger) *GormSalesInvoiceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormSalesInvoiceRepository{db: db, logger: logger}
}

// Create inserts a new invoice row. ON CONFLICT on the
// (order_id, shop_id, package_id) unique index does nothing; the conflict is
// reported as (nil, nil) so a racing duplicate trigger degrades to a skip
// instead of an error.
func (r *GormSalesInvoiceRepository) Create(ctx context.Context, inv *invoice.SalesInvoice) (*invoice.SalesInvoice, error) {
	model, err := models.FromDomain(inv)
	if err != nil {
		return nil, err
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "shop_id"}, {Name: "package_id"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return nil, result.Error
	}

	if result.RowsAffected == 0 {
		r.logger.Info("invoice already exists for package, skipping insert",
			zap.String("order_id", inv.OrderID),
			zap.String("shop_id", inv.ShopID),
			zap.String("package_id", inv.PackageID))
		return nil, nil
	}

	return model.ToDomain()
}

// FindByID finds an invoice by its ID
func (r *GormSalesInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoice.SalesInvoice, error) {
	var model models.SalesInvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindOne finds the invoice for one package of an order
func (r *GormSalesInvoiceRepository) FindOne(ctx context.Context, orderID, shopID, packageID string) (*invoice.SalesInvoice, error) {
	var model models.SalesInvoiceModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND shop_id = ? AND package_id = ?", orderID, shopID, packageID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByOrder returns all invoices of an order, newest first
func (r *GormSalesInvoiceRepository) FindByOrder(ctx context.Context, orderID, shopID string) ([]invoice.SalesInvoice, error) {
	var rows []models.SalesInvoiceModel
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND shop_id = ?", orderID, shopID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	invoices := make([]invoice.SalesInvoice, 0, len(rows))
	for i := range rows {
		inv, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *inv)
	}
	return invoices, nil
}

// Update persists the mutable fields of an existing invoice. The column list
// is explicit: sequence_number and the financial breakdown are never written
// after creation.
func (r *GormSalesInvoiceRepository) Update(ctx context.Context, inv *invoice.SalesInvoice) error {
	model, err := models.FromDomain(inv)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(&models.SalesInvoiceModel{}).
		Where("id = ?", inv.ID).
		Select("file_path", "status", "generated_at", "billing_address", "shipping_address", "updated_at").
		Updates(map[string]any{
			"file_path":        model.FilePath,
			"status":           model.Status,
			"generated_at":     model.GeneratedAt,
			"billing_address":  model.BillingAddress,
			"shipping_address": model.ShippingAddress,
			"updated_at":       model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormSalesInvoiceRepository implements invoice.SalesInvoiceRepository
var _ invoice.SalesInvoiceRepository = (*GormSalesInvoiceRepository)(nil)
