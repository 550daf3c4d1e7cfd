package rendering

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/sellerhub/invoicing/internal/domain/invoice"
)

//go:embed templates/sales_invoice_a4.html
var invoiceTemplate string

// InvoiceDocument is the view model bound to the invoice template. It is a
// flat projection of a SalesInvoice so the template never reaches into
// domain types directly.
type InvoiceDocument struct {
	SequenceNumber int64
	OrderID        string
	PackageID      string
	Reprint        bool

	Company invoice.AccountDetails

	BillTo invoice.Address
	ShipTo invoice.Address

	Items []invoice.LineItem

	SubtotalNet   interface{}
	TotalDiscount interface{}
	VatRate       interface{}
	VatableSales  interface{}
	VatAmount     interface{}
	AmountDue     interface{}

	GeneratedAt time.Time
}

// NewInvoiceDocument projects a sales invoice into its printable view model
func NewInvoiceDocument(inv *invoice.SalesInvoice, reprint bool) *InvoiceDocument {
	return &InvoiceDocument{
		SequenceNumber: inv.SequenceNumber,
		OrderID:        inv.OrderID,
		PackageID:      inv.PackageID,
		Reprint:        reprint,
		Company:        inv.AccountDetails,
		BillTo:         inv.BillingAddress,
		ShipTo:         inv.ShippingAddress,
		Items:          inv.LineItems,
		SubtotalNet:    inv.SubtotalNet,
		TotalDiscount:  inv.TotalDiscount,
		VatRate:        inv.TaxDetails.VatRate,
		VatableSales:   inv.VatableSales,
		VatAmount:      inv.VatAmount,
		AmountDue:      inv.AmountDue,
		GeneratedAt:    inv.GeneratedAt,
	}
}

// InvoiceRenderer turns a sales invoice into PDF bytes: template execution
// followed by a headless-Chrome print.
type InvoiceRenderer struct {
	engine *TemplateEngine
	pdf    PDFRenderer
}

// NewInvoiceRenderer wires the template engine to a PDF backend
func NewInvoiceRenderer(engine *TemplateEngine, pdf PDFRenderer) *InvoiceRenderer {
	return &InvoiceRenderer{engine: engine, pdf: pdf}
}

// RenderInvoice produces the final PDF for one invoice
func (r *InvoiceRenderer) RenderInvoice(ctx context.Context, inv *invoice.SalesInvoice, reprint bool) ([]byte, error) {
	if inv == nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "invoice is nil", nil)
	}

	html, err := r.engine.Render(NewInvoiceDocument(inv, reprint))
	if err != nil {
		return nil, err
	}

	result, err := r.pdf.Render(ctx, &RenderRequest{
		HTML:  html,
		Title: fmt.Sprintf("Sales Invoice %s", formatInvoiceNo(inv.SequenceNumber)),
	})
	if err != nil {
		return nil, err
	}

	return result.PDFData, nil
}

// Close releases the underlying PDF backend
func (r *InvoiceRenderer) Close() error {
	return r.pdf.Close()
}
