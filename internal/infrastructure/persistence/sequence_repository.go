package persistence

import (
	"context"
	"fmt"

	"github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/sellerhub/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SalesInvoiceSequence is the counter name backing invoice sequence numbers.
const SalesInvoiceSequence = "b2b_sales_invoice_number"

// GormSequenceRepository allocates invoice sequence numbers with a single
// atomic UPDATE ... RETURNING against the counter row. Never read-then-write:
// the database is the only serialization point.
type GormSequenceRepository struct {
	db   *gorm.DB
	name string
}

// NewGormSequenceRepository creates an allocator for the given counter name.
func NewGormSequenceRepository(db *gorm.DB, name string) *GormSequenceRepository {
	if name == "" {
		name = SalesInvoiceSequence
	}
	return &GormSequenceRepository{db: db, name: name}
}

// Next atomically increments the counter and returns the new value.
func (r *GormSequenceRepository) Next(ctx context.Context) (int64, error) {
	value, err := r.increment(ctx)
	if err == nil {
		return value, nil
	}
	if err != gorm.ErrRecordNotFound {
		return 0, err
	}

	// First allocation ever: seed the counter row. A racing seeder is
	// harmless, the insert does nothing on conflict.
	if seedErr := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).
		Create(&models.InvoiceSequenceModel{Name: r.name, Value: 0}).Error; seedErr != nil {
		return 0, fmt.Errorf("failed to seed sequence counter: %w", seedErr)
	}

	return r.increment(ctx)
}

func (r *GormSequenceRepository) increment(ctx context.Context) (int64, error) {
	var value int64
	err := r.db.WithContext(ctx).
		Raw("UPDATE invoice_sequences SET value = value + 1, updated_at = now() WHERE name = ? RETURNING value", r.name).
		Scan(&value).Error
	if err != nil {
		return 0, err
	}
	if value == 0 {
		// No row matched; Scan leaves the zero value in place.
		return 0, gorm.ErrRecordNotFound
	}
	return value, nil
}

// Ensure GormSequenceRepository implements invoice.SequenceAllocator
var _ invoice.SequenceAllocator = (*GormSequenceRepository)(nil)
