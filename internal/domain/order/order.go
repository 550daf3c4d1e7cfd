// Package order holds the read model of a marketplace order as loaded by the
// external order-ingestion pipeline. The invoice pipeline treats orders as
// read-only input, except for the unmask fields edited through the invoice
// update endpoint.
package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a marketplace order identified by (ShopID, OrderID).
type Order struct {
	ShopID  string
	OrderID string

	Status     string
	PackagesID string // comma-separated package identifiers, may be empty

	// Recipient address. Billing and shipping are both derived from these
	// fields; no separate billing source exists upstream.
	RecipientName     string
	RecipientPhone    string
	AddressLine       string
	District          string
	City              string
	Province          string
	PostalCode        string
	Country           string

	// Payment totals, decimal strings upstream.
	SubTotal    decimal.Decimal
	ShippingFee decimal.Decimal
	TotalAmount decimal.Decimal

	// Optional unmasked PII, populated via supplementary edits.
	UnmaskedName    string
	UnmaskedAddress string
	TaxID           string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a single line of an order, identified by
// (ShopID, OrderID, LineItemID).
type OrderItem struct {
	ShopID     string
	OrderID    string
	LineItemID string

	ProductID   string
	ProductName string
	SKU         string
	SKUName     string

	OriginalPrice    decimal.Decimal
	PlatformDiscount decimal.Decimal
	SellerDiscount   decimal.Decimal

	PackageID      string
	TrackingNumber string

	// Quantity is derived by aggregation; physical rows always carry 1.
	Quantity int
}

// PackageIDs returns the package identifiers declared on the order. An order
// without package metadata maps to the single synthetic DefaultPackageID;
// this intentionally conflates "single package order" with "missing package
// data", matching upstream behavior.
func (o *Order) PackageIDs() []string {
	raw := strings.TrimSpace(o.PackagesID)
	if raw == "" {
		return []string{DefaultPackageID}
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	if len(ids) == 0 {
		return []string{DefaultPackageID}
	}
	return ids
}

// DefaultPackageID is the synthetic package used when an order carries no
// package metadata.
const DefaultPackageID = "default"
