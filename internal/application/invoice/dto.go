package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	domaininvoice "github.com/sellerhub/invoicing/internal/domain/invoice"
)

// GenerateRequest identifies the order to run the pipeline for
type GenerateRequest struct {
	ShopID  string `json:"shop_id" binding:"required"`
	OrderID string `json:"order_id" binding:"required"`
}

// Package outcome states reported in a run summary
const (
	PackageCreated = "created"
	PackageSkipped = "skipped_existing"
	PackageFailed  = "failed"
)

// PackageResult is the outcome for one package of a pipeline run
type PackageResult struct {
	PackageID      string `json:"package_id"`
	Status         string `json:"status"`
	InvoiceID      string `json:"invoice_id,omitempty"`
	SequenceNumber int64  `json:"sequence_number,omitempty"`
	FilePath       string `json:"file_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

// RunSummary reports the per-package outcomes of one pipeline run
type RunSummary struct {
	ShopID   string          `json:"shop_id"`
	OrderID  string          `json:"order_id"`
	NotReady bool            `json:"not_ready,omitempty"`
	Packages []PackageResult `json:"packages"`
}

// Cacheable reports whether the run may be absorbed from the dedup result
// cache. A summary carrying failed packages must not be cached: the next
// trigger re-runs the pipeline, and the per-package ledger pre-checks skip
// the packages that already succeeded.
func (s *RunSummary) Cacheable() bool {
	for _, p := range s.Packages {
		if p.Status == PackageFailed {
			return false
		}
	}
	return true
}

// GenerateResult wraps the run summary with dedup gate outcome flags
type GenerateResult struct {
	Summary      *RunSummary `json:"summary,omitempty"`
	FromCache    bool        `json:"from_cache"`
	WasDuplicate bool        `json:"was_duplicate"`
}

// UpdateInvoiceRequest carries a partial invoice edit. Only the addressed
// fields are merged; sequence number and financial fields never change.
type UpdateInvoiceRequest struct {
	FilePath        *string         `json:"file_path"`
	Status          *string         `json:"status"`
	GeneratedAt     *time.Time      `json:"generated_at"`
	BillingAddress  *AddressPayload `json:"billing_address"`
	ShippingAddress *AddressPayload `json:"shipping_address"`
}

// AddressPayload mirrors the invoice address snapshot on the wire
type AddressPayload struct {
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

// InvoiceResponse is the API representation of a sales invoice
type InvoiceResponse struct {
	ID             string                     `json:"id"`
	OrderID        string                     `json:"order_id"`
	ShopID         string                     `json:"shop_id"`
	PackageID      string                     `json:"package_id"`
	SequenceNumber int64                      `json:"sequence_number"`
	FilePath       string                     `json:"file_path"`
	Status         string                     `json:"status"`
	AmountDue      decimal.Decimal            `json:"amount_due"`
	VatableSales   decimal.Decimal            `json:"vatable_sales"`
	VatAmount      decimal.Decimal            `json:"vat_amount"`
	SubtotalNet    decimal.Decimal            `json:"subtotal_net"`
	TotalDiscount  decimal.Decimal            `json:"total_discount"`
	BillingAddress domaininvoice.Address      `json:"billing_address"`
	ShippingAddr   domaininvoice.Address      `json:"shipping_address"`
	LineItems      []domaininvoice.LineItem   `json:"line_items"`
	TaxDetails     domaininvoice.TaxDetails   `json:"tax_details"`
	GeneratedAt    time.Time                  `json:"generated_at"`
	CreatedAt      time.Time                  `json:"created_at"`
	UpdatedAt      time.Time                  `json:"updated_at"`
}

func toAddress(p *AddressPayload) *domaininvoice.Address {
	if p == nil {
		return nil
	}
	return &domaininvoice.Address{
		Name:       p.Name,
		Phone:      p.Phone,
		Line:       p.Line,
		District:   p.District,
		City:       p.City,
		Province:   p.Province,
		PostalCode: p.PostalCode,
		Country:    p.Country,
		TaxID:      p.TaxID,
	}
}

func toInvoiceResponse(inv *domaininvoice.SalesInvoice) *InvoiceResponse {
	return &InvoiceResponse{
		ID:             inv.ID.String(),
		OrderID:        inv.OrderID,
		ShopID:         inv.ShopID,
		PackageID:      inv.PackageID,
		SequenceNumber: inv.SequenceNumber,
		FilePath:       inv.FilePath,
		Status:         string(inv.Status),
		AmountDue:      inv.AmountDue,
		VatableSales:   inv.VatableSales,
		VatAmount:      inv.VatAmount,
		SubtotalNet:    inv.SubtotalNet,
		TotalDiscount:  inv.TotalDiscount,
		BillingAddress: inv.BillingAddress,
		ShippingAddr:   inv.ShippingAddress,
		LineItems:      inv.LineItems,
		TaxDetails:     inv.TaxDetails,
		GeneratedAt:    inv.GeneratedAt,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}
