// Package models contains the persistence models and their converters to and
// from domain types.
package models

import (
	"time"

	"github.com/sellerhub/invoicing/internal/domain/order"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model of a marketplace order. The table is
// written by the external order-ingestion pipeline; this service reads it.
type OrderModel struct {
	ShopID  string `gorm:"type:varchar(64);primaryKey"`
	OrderID string `gorm:"type:varchar(64);primaryKey"`

	Status     string `gorm:"type:varchar(32)"`
	PackagesID string `gorm:"type:varchar(255)"`

	RecipientName  string `gorm:"type:varchar(255)"`
	RecipientPhone string `gorm:"type:varchar(64)"`
	AddressLine    string `gorm:"type:text"`
	District       string `gorm:"type:varchar(128)"`
	City           string `gorm:"type:varchar(128)"`
	Province       string `gorm:"type:varchar(128)"`
	PostalCode     string `gorm:"type:varchar(32)"`
	Country        string `gorm:"type:varchar(64)"`

	SubTotal    decimal.Decimal `gorm:"type:numeric(18,2)"`
	ShippingFee decimal.Decimal `gorm:"type:numeric(18,2)"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(18,2)"`

	UnmaskedName    string `gorm:"type:varchar(255)"`
	UnmaskedAddress string `gorm:"type:text"`
	TaxID           string `gorm:"type:varchar(64)"`

	Items []OrderItemModel `gorm:"foreignKey:ShopID,OrderID;references:ShopID,OrderID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a domain Order
func (m *OrderModel) ToDomain() *order.Order {
	return &order.Order{
		ShopID:          m.ShopID,
		OrderID:         m.OrderID,
		Status:          m.Status,
		PackagesID:      m.PackagesID,
		RecipientName:   m.RecipientName,
		RecipientPhone:  m.RecipientPhone,
		AddressLine:     m.AddressLine,
		District:        m.District,
		City:            m.City,
		Province:        m.Province,
		PostalCode:      m.PostalCode,
		Country:         m.Country,
		SubTotal:        m.SubTotal,
		ShippingFee:     m.ShippingFee,
		TotalAmount:     m.TotalAmount,
		UnmaskedName:    m.UnmaskedName,
		UnmaskedAddress: m.UnmaskedAddress,
		TaxID:           m.TaxID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// OrderItemModel is the persistence model of one physical order line.
// Multiple rows with the same (shop_id, order_id, product_id) are logically
// one line and are aggregated at read time.
type OrderItemModel struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	ShopID     string `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_item_line,priority:1"`
	OrderID    string `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_item_line,priority:2"`
	LineItemID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_order_item_line,priority:3"`

	ProductID   string `gorm:"type:varchar(64);not null;index"`
	ProductName string `gorm:"type:varchar(512)"`
	SKU         string `gorm:"type:varchar(128)"`
	SKUName     string `gorm:"type:varchar(255)"`

	OriginalPrice    decimal.Decimal `gorm:"type:numeric(18,2)"`
	PlatformDiscount decimal.Decimal `gorm:"type:numeric(18,2)"`
	SellerDiscount   decimal.Decimal `gorm:"type:numeric(18,2)"`

	PackageID      string `gorm:"type:varchar(64)"`
	TrackingNumber string `gorm:"type:varchar(128)"`

	CreatedAt time.Time `gorm:"not null;default:now()"`
	UpdatedAt time.Time `gorm:"not null;default:now()"`
}

// TableName returns the table name for GORM
func (OrderItemModel) TableName() string {
	return "order_items"
}

// ToDomain converts the persistence model to a domain OrderItem
func (m *OrderItemModel) ToDomain() order.OrderItem {
	return order.OrderItem{
		ShopID:           m.ShopID,
		OrderID:          m.OrderID,
		LineItemID:       m.LineItemID,
		ProductID:        m.ProductID,
		ProductName:      m.ProductName,
		SKU:              m.SKU,
		SKUName:          m.SKUName,
		OriginalPrice:    m.OriginalPrice,
		PlatformDiscount: m.PlatformDiscount,
		SellerDiscount:   m.SellerDiscount,
		PackageID:        m.PackageID,
		TrackingNumber:   m.TrackingNumber,
	}
}
