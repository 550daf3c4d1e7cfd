// Package invoice contains the sales invoice aggregate and the pure
// transformation from an aggregated order to printable invoice packages.
package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/sellerhub/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a sales invoice record.
type Status string

const (
	StatusGenerated Status = "GENERATED"
	StatusReprinted Status = "REPRINTED"
)

// Address is the denormalized address snapshot stored with each invoice so
// reprints do not depend on upstream mutable order state.
type Address struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line       string `json:"line"`
	District   string `json:"district"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	TaxID      string `json:"tax_id,omitempty"`
}

// LineItem is the invoice snapshot of one aggregated order line.
type LineItem struct {
	ProductID        string          `json:"product_id"`
	ProductName      string          `json:"product_name"`
	SKU              string          `json:"sku"`
	SKUName          string          `json:"sku_name,omitempty"`
	Quantity         int             `json:"quantity"`
	OriginalPrice    decimal.Decimal `json:"original_price"`
	PlatformDiscount decimal.Decimal `json:"platform_discount"`
	SellerDiscount   decimal.Decimal `json:"seller_discount"`
	TotalActualPrice decimal.Decimal `json:"total_actual_price"`
}

// AccountDetails holds the static company and bank details printed on every
// invoice.
type AccountDetails struct {
	CompanyName    string `json:"company_name"`
	CompanyAddress string `json:"company_address"`
	TaxID          string `json:"tax_id"`
	BankName       string `json:"bank_name"`
	BankAccount    string `json:"bank_account"`
}

// TaxDetails is the VAT breakdown snapshot stored with the invoice.
type TaxDetails struct {
	VatRate      decimal.Decimal `json:"vat_rate"`
	VatableSales decimal.Decimal `json:"vatable_sales"`
	VatAmount    decimal.Decimal `json:"vat_amount"`
}

// SalesInvoice is one generated invoice for one package of an order. The
// storage layer enforces uniqueness on (OrderID, ShopID, PackageID); at most
// one invoice row may ever exist per package of an order.
type SalesInvoice struct {
	ID uuid.UUID

	OrderID   string
	ShopID    string
	PackageID string

	// SequenceNumber is assigned once from the global counter and never
	// changes, including on reprints.
	SequenceNumber int64

	// FilePath is the object-store URL of the rendered PDF. Reprints
	// replace it with the reprint object's URL.
	FilePath string

	Status Status

	AmountDue     decimal.Decimal
	VatableSales  decimal.Decimal
	VatAmount     decimal.Decimal
	SubtotalNet   decimal.Decimal
	TotalDiscount decimal.Decimal

	BillingAddress  Address
	ShippingAddress Address
	LineItems       []LineItem
	AccountDetails  AccountDetails
	TaxDetails      TaxDetails

	GeneratedAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewSalesInvoice builds an invoice record from a transformed package and an
// allocated sequence number.
func NewSalesInvoice(orderID, shopID string, pkg *InvoicePackage, sequenceNumber int64, account AccountDetails) (*SalesInvoice, error) {
	if orderID == "" || shopID == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Order ID and shop ID are required")
	}
	if pkg == nil || len(pkg.Items) == 0 {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Invoice package must contain at least one item")
	}
	if sequenceNumber <= 0 {
		return nil, shared.NewDomainError("INVALID_INVOICE", "Sequence number must be positive")
	}

	now := time.Now()
	return &SalesInvoice{
		ID:              uuid.New(),
		OrderID:         orderID,
		ShopID:          shopID,
		PackageID:       pkg.PackageID,
		SequenceNumber:  sequenceNumber,
		Status:          StatusGenerated,
		AmountDue:       pkg.AmountDue,
		VatableSales:    pkg.VatableSales,
		VatAmount:       pkg.VatAmount,
		SubtotalNet:     pkg.SubtotalNet,
		TotalDiscount:   pkg.TotalDiscount,
		BillingAddress:  pkg.BillingAddress,
		ShippingAddress: pkg.ShippingAddress,
		LineItems:       pkg.Items,
		AccountDetails:  account,
		TaxDetails:      pkg.TaxDetails,
		GeneratedAt:     now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// UpdatePatch is the explicit set of fields a post-creation update may touch.
// SequenceNumber and the financial breakdown are intentionally absent;
// they are immutable once the invoice exists.
type UpdatePatch struct {
	FilePath        *string
	Status          *Status
	GeneratedAt     *time.Time
	BillingAddress  *Address
	ShippingAddress *Address
}

// ApplyPatch merges a patch into the invoice. Nil fields are left untouched.
func (inv *SalesInvoice) ApplyPatch(p UpdatePatch) {
	if p.FilePath != nil {
		inv.FilePath = *p.FilePath
	}
	if p.Status != nil {
		inv.Status = *p.Status
	}
	if p.GeneratedAt != nil {
		inv.GeneratedAt = *p.GeneratedAt
	}
	if p.BillingAddress != nil {
		inv.BillingAddress = *p.BillingAddress
	}
	if p.ShippingAddress != nil {
		inv.ShippingAddress = *p.ShippingAddress
	}
	inv.UpdatedAt = time.Now()
}

// MarkReprinted records a completed reprint: only the file location and the
// generation timestamp move.
func (inv *SalesInvoice) MarkReprinted(filePath string, at time.Time) {
	inv.FilePath = filePath
	inv.GeneratedAt = at
	inv.Status = StatusReprinted
	inv.UpdatedAt = time.Now()
}
