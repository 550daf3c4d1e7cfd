package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/shopspring/decimal"
)

// SalesInvoiceModel is the persistence model of the invoice ledger. The
// unique index on (order_id, shop_id, package_id) is the enforcement point
// of at-most-one invoice per package; application-level checks only reduce
// wasted work.
type SalesInvoiceModel struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OrderID   string `gorm:"type:varchar(64);not null;uniqueIndex:idx_invoice_order_shop_package,priority:1"`
	ShopID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_invoice_order_shop_package,priority:2"`
	PackageID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_invoice_order_shop_package,priority:3"`

	SequenceNumber int64  `gorm:"not null;uniqueIndex"`
	FilePath       string `gorm:"type:text"`
	Status         string `gorm:"type:varchar(20);not null;default:GENERATED"`

	AmountDue     decimal.Decimal `gorm:"type:numeric(18,2)"`
	VatableSales  decimal.Decimal `gorm:"type:numeric(18,2)"`
	VatAmount     decimal.Decimal `gorm:"type:numeric(18,2)"`
	SubtotalNet   decimal.Decimal `gorm:"type:numeric(18,2)"`
	TotalDiscount decimal.Decimal `gorm:"type:numeric(18,2)"`

	BillingAddress  []byte `gorm:"type:jsonb"`
	ShippingAddress []byte `gorm:"type:jsonb"`
	LineItems       []byte `gorm:"type:jsonb"`
	AccountDetails  []byte `gorm:"type:jsonb"`
	TaxDetails      []byte `gorm:"type:jsonb"`

	GeneratedAt time.Time `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;default:now()"`
	UpdatedAt   time.Time `gorm:"not null;default:now()"`
}

// TableName returns the table name for GORM
func (SalesInvoiceModel) TableName() string {
	return "sales_invoices"
}

// FromDomain converts a domain SalesInvoice into its persistence model.
func FromDomain(inv *invoice.SalesInvoice) (*SalesInvoiceModel, error) {
	billing, err := json.Marshal(inv.BillingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode billing address: %w", err)
	}
	shipping, err := json.Marshal(inv.ShippingAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to encode shipping address: %w", err)
	}
	lineItems, err := json.Marshal(inv.LineItems)
	if err != nil {
		return nil, fmt.Errorf("failed to encode line items: %w", err)
	}
	account, err := json.Marshal(inv.AccountDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account details: %w", err)
	}
	tax, err := json.Marshal(inv.TaxDetails)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tax details: %w", err)
	}

	return &SalesInvoiceModel{
		ID:              inv.ID,
		OrderID:         inv.OrderID,
		ShopID:          inv.ShopID,
		PackageID:       inv.PackageID,
		SequenceNumber:  inv.SequenceNumber,
		FilePath:        inv.FilePath,
		Status:          string(inv.Status),
		AmountDue:       inv.AmountDue,
		VatableSales:    inv.VatableSales,
		VatAmount:       inv.VatAmount,
		SubtotalNet:     inv.SubtotalNet,
		TotalDiscount:   inv.TotalDiscount,
		BillingAddress:  billing,
		ShippingAddress: shipping,
		LineItems:       lineItems,
		AccountDetails:  account,
		TaxDetails:      tax,
		GeneratedAt:     inv.GeneratedAt,
		CreatedAt:       inv.CreatedAt,
		UpdatedAt:       inv.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model to a domain SalesInvoice
func (m *SalesInvoiceModel) ToDomain() (*invoice.SalesInvoice, error) {
	inv := &invoice.SalesInvoice{
		ID:             m.ID,
		OrderID:        m.OrderID,
		ShopID:         m.ShopID,
		PackageID:      m.PackageID,
		SequenceNumber: m.SequenceNumber,
		FilePath:       m.FilePath,
		Status:         invoice.Status(m.Status),
		AmountDue:      m.AmountDue,
		VatableSales:   m.VatableSales,
		VatAmount:      m.VatAmount,
		SubtotalNet:    m.SubtotalNet,
		TotalDiscount:  m.TotalDiscount,
		GeneratedAt:    m.GeneratedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}

	if len(m.BillingAddress) > 0 {
		if err := json.Unmarshal(m.BillingAddress, &inv.BillingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode billing address: %w", err)
		}
	}
	if len(m.ShippingAddress) > 0 {
		if err := json.Unmarshal(m.ShippingAddress, &inv.ShippingAddress); err != nil {
			return nil, fmt.Errorf("failed to decode shipping address: %w", err)
		}
	}
	if len(m.LineItems) > 0 {
		if err := json.Unmarshal(m.LineItems, &inv.LineItems); err != nil {
			return nil, fmt.Errorf("failed to decode line items: %w", err)
		}
	}
	if len(m.AccountDetails) > 0 {
		if err := json.Unmarshal(m.AccountDetails, &inv.AccountDetails); err != nil {
			return nil, fmt.Errorf("failed to decode account details: %w", err)
		}
	}
	if len(m.TaxDetails) > 0 {
		if err := json.Unmarshal(m.TaxDetails, &inv.TaxDetails); err != nil {
			return nil, fmt.Errorf("failed to decode tax details: %w", err)
		}
	}

	return inv, nil
}
