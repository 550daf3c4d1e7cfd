package invoice

import (
	"github.com/sellerhub/invoicing/internal/domain/order"
	"github.com/shopspring/decimal"
)

// DefaultVatRate is the VAT rate applied when none is configured (12%).
var DefaultVatRate = decimal.NewFromFloat(0.12)

// TransformOptions configures the order-to-package transformation.
type TransformOptions struct {
	// VatRate overrides DefaultVatRate when positive.
	VatRate decimal.Decimal
}

// InvoicePackage is a derived, non-persisted grouping of an order's items
// that becomes one independent invoice unit.
type InvoicePackage struct {
	PackageID string

	Items []LineItem

	AmountDue     decimal.Decimal
	VatableSales  decimal.Decimal
	VatAmount     decimal.Decimal
	SubtotalNet   decimal.Decimal
	TotalDiscount decimal.Decimal

	BillingAddress  Address
	ShippingAddress Address
	TaxDetails      TaxDetails
}

// BuildPackages splits an aggregated order into invoice packages and computes
// the per-package financial breakdown. Items are matched to the order's
// package ids; under the synthetic default package, items lacking a package
// id match. Packages with no matched items are dropped, an empty invoice is
// never emitted.
func BuildPackages(ord *order.Order, items []order.OrderItem, opts TransformOptions) []InvoicePackage {
	vatRate := opts.VatRate
	if !vatRate.IsPositive() {
		vatRate = DefaultVatRate
	}

	recipient := recipientAddress(ord)

	packageIDs := ord.PackageIDs()
	packages := make([]InvoicePackage, 0, len(packageIDs))

	for _, packageID := range packageIDs {
		matched := matchItems(items, packageID)
		if len(matched) == 0 {
			continue
		}

		lines := make([]LineItem, 0, len(matched))
		totalDiscount := decimal.Zero
		for _, item := range matched {
			line := buildLineItem(item)
			lines = append(lines, line)

			discount := item.SellerDiscount.Add(item.PlatformDiscount).
				Mul(decimal.NewFromInt(int64(item.Quantity)))
			totalDiscount = totalDiscount.Add(discount)
		}

		// The order subtotal is VAT-inclusive gross; back the net out of it.
		amountDue := ord.SubTotal
		vatableSales := amountDue.Div(decimal.NewFromInt(1).Add(vatRate)).Round(2)
		vatAmount := vatableSales.Mul(vatRate).Round(2)

		packages = append(packages, InvoicePackage{
			PackageID:     packageID,
			Items:         lines,
			AmountDue:     amountDue,
			VatableSales:  vatableSales,
			VatAmount:     vatAmount,
			SubtotalNet:   vatableSales,
			TotalDiscount: totalDiscount.Round(2),
			// Billing mirrors shipping: no separate billing address
			// source exists upstream.
			BillingAddress:  recipient,
			ShippingAddress: recipient,
			TaxDetails: TaxDetails{
				VatRate:      vatRate,
				VatableSales: vatableSales,
				VatAmount:    vatAmount,
			},
		})
	}

	return packages
}

// matchItems selects the order items belonging to a package. The default
// package matches items that carry no package id.
func matchItems(items []order.OrderItem, packageID string) []order.OrderItem {
	matched := make([]order.OrderItem, 0, len(items))
	for _, item := range items {
		if item.PackageID == packageID ||
			(packageID == order.DefaultPackageID && item.PackageID == "") {
			matched = append(matched, item)
		}
	}
	return matched
}

func buildLineItem(item order.OrderItem) LineItem {
	quantity := decimal.NewFromInt(int64(item.Quantity))
	unitNet := item.OriginalPrice.Sub(item.SellerDiscount.Add(item.PlatformDiscount))

	return LineItem{
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		SKU:              item.SKU,
		SKUName:          item.SKUName,
		Quantity:         item.Quantity,
		OriginalPrice:    item.OriginalPrice,
		PlatformDiscount: item.PlatformDiscount,
		SellerDiscount:   item.SellerDiscount,
		TotalActualPrice: unitNet.Mul(quantity).RoundCeil(2),
	}
}

func recipientAddress(ord *order.Order) Address {
	name := ord.RecipientName
	if ord.UnmaskedName != "" {
		name = ord.UnmaskedName
	}
	line := ord.AddressLine
	if ord.UnmaskedAddress != "" {
		line = ord.UnmaskedAddress
	}
	return Address{
		Name:       name,
		Phone:      ord.RecipientPhone,
		Line:       line,
		District:   ord.District,
		City:       ord.City,
		Province:   ord.Province,
		PostalCode: ord.PostalCode,
		Country:    ord.Country,
		TaxID:      ord.TaxID,
	}
}
