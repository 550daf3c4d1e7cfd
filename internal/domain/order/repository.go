package order

import "context"

// Repository provides read access to the order store maintained by the
// external order-ingestion pipeline.
type Repository interface {
	// FindWithItems loads an order together with its line items. When the
	// order or its items are absent it returns (nil, nil, nil): the data is
	// not ready yet, not an error.
	FindWithItems(ctx context.Context, shopID, orderID string) (*Order, []OrderItem, error)
}
