package invoice

import (
	"context"

	"github.com/google/uuid"
)

// SalesInvoiceRepository defines persistence operations for the invoice
// ledger.
type SalesInvoiceRepository interface {
	// Create inserts a new invoice row. A unique-constraint clash on
	// (order_id, shop_id, package_id) is benign: the method returns
	// (nil, nil) without error, enforcing at-most-one invoice per package.
	Create(ctx context.Context, inv *SalesInvoice) (*SalesInvoice, error)

	// FindByID returns the invoice with the given id, or shared.ErrNotFound.
	FindByID(ctx context.Context, id uuid.UUID) (*SalesInvoice, error)

	// FindOne returns the invoice for one package of an order, or
	// shared.ErrNotFound.
	FindOne(ctx context.Context, orderID, shopID, packageID string) (*SalesInvoice, error)

	// FindByOrder returns all invoices of an order, newest first.
	FindByOrder(ctx context.Context, orderID, shopID string) ([]SalesInvoice, error)

	// Update persists the mutable fields of an existing invoice.
	// SequenceNumber and the financial breakdown are never written.
	Update(ctx context.Context, inv *SalesInvoice) error
}

// SequenceAllocator issues globally unique, monotonically increasing invoice
// sequence numbers. Implementations must be a single atomic
// read-modify-write at the storage layer, safe under arbitrary concurrency.
type SequenceAllocator interface {
	Next(ctx context.Context) (int64, error)
}
