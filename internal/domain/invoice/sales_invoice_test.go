package invoice

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPackage() *InvoicePackage {
	return &InvoicePackage{
		PackageID: "P1",
		Items: []LineItem{{
			ProductID:        "A",
			ProductName:      "Product A",
			Quantity:         1,
			OriginalPrice:    decimal.RequireFromString("112.00"),
			TotalActualPrice: decimal.RequireFromString("112.00"),
		}},
		AmountDue:    decimal.RequireFromString("112.00"),
		VatableSales: decimal.RequireFromString("100.00"),
		VatAmount:    decimal.RequireFromString("12.00"),
		SubtotalNet:  decimal.RequireFromString("100.00"),
	}
}

func TestNewSalesInvoice(t *testing.T) {
	t.Run("creates invoice from package", func(t *testing.T) {
		inv, err := NewSalesInvoice("order-1", "shop-1", testPackage(), 42, AccountDetails{CompanyName: "Acme"})

		require.NoError(t, err)
		assert.Equal(t, int64(42), inv.SequenceNumber)
		assert.Equal(t, StatusGenerated, inv.Status)
		assert.Equal(t, "P1", inv.PackageID)
		assert.Equal(t, "Acme", inv.AccountDetails.CompanyName)
		assert.True(t, inv.AmountDue.Equal(decimal.RequireFromString("112.00")))
	})

	t.Run("rejects missing identifiers", func(t *testing.T) {
		_, err := NewSalesInvoice("", "shop-1", testPackage(), 42, AccountDetails{})
		require.Error(t, err)

		_, err = NewSalesInvoice("order-1", "", testPackage(), 42, AccountDetails{})
		require.Error(t, err)
	})

	t.Run("rejects empty package", func(t *testing.T) {
		_, err := NewSalesInvoice("order-1", "shop-1", &InvoicePackage{PackageID: "P1"}, 42, AccountDetails{})
		require.Error(t, err)
	})

	t.Run("rejects non-positive sequence number", func(t *testing.T) {
		_, err := NewSalesInvoice("order-1", "shop-1", testPackage(), 0, AccountDetails{})
		require.Error(t, err)
	})
}

func TestMarkReprinted(t *testing.T) {
	inv, err := NewSalesInvoice("order-1", "shop-1", testPackage(), 42, AccountDetails{})
	require.NoError(t, err)

	seqBefore := inv.SequenceNumber
	amountBefore := inv.AmountDue
	vatBefore := inv.VatAmount

	reprintedAt := time.Now().Add(time.Hour)
	inv.MarkReprinted("https://cdn.example.com/42_reprint.pdf", reprintedAt)

	assert.Equal(t, "https://cdn.example.com/42_reprint.pdf", inv.FilePath)
	assert.Equal(t, StatusReprinted, inv.Status)
	assert.Equal(t, reprintedAt, inv.GeneratedAt)
	// Identity and financials never move on reprint.
	assert.Equal(t, seqBefore, inv.SequenceNumber)
	assert.True(t, amountBefore.Equal(inv.AmountDue))
	assert.True(t, vatBefore.Equal(inv.VatAmount))
}

func TestApplyPatch(t *testing.T) {
	inv, err := NewSalesInvoice("order-1", "shop-1", testPackage(), 42, AccountDetails{})
	require.NoError(t, err)

	t.Run("nil fields leave invoice untouched", func(t *testing.T) {
		before := *inv
		inv.ApplyPatch(UpdatePatch{})
		assert.Equal(t, before.FilePath, inv.FilePath)
		assert.Equal(t, before.Status, inv.Status)
		assert.Equal(t, before.BillingAddress, inv.BillingAddress)
	})

	t.Run("set fields are merged", func(t *testing.T) {
		path := "https://cdn.example.com/42.pdf"
		billing := Address{Name: "Unmasked Name", Line: "Full Street Address"}
		inv.ApplyPatch(UpdatePatch{FilePath: &path, BillingAddress: &billing})

		assert.Equal(t, path, inv.FilePath)
		assert.Equal(t, billing, inv.BillingAddress)
		assert.Equal(t, int64(42), inv.SequenceNumber)
	})
}
