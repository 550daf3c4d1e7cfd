package invoice_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	app "github.com/sellerhub/invoicing/internal/application/invoice"
	domaininvoice "github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/sellerhub/invoicing/internal/domain/order"
	"github.com/sellerhub/invoicing/internal/domain/shared"
	"github.com/sellerhub/invoicing/internal/infrastructure/cache"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) FindWithItems(ctx context.Context, shopID, orderID string) (*order.Order, []order.OrderItem, error) {
	args := m.Called(ctx, shopID, orderID)
	var ord *order.Order
	if args.Get(0) != nil {
		ord = args.Get(0).(*order.Order)
	}
	var items []order.OrderItem
	if args.Get(1) != nil {
		items = args.Get(1).([]order.OrderItem)
	}
	return ord, items, args.Error(2)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) Create(ctx context.Context, inv *domaininvoice.SalesInvoice) (*domaininvoice.SalesInvoice, error) {
	args := m.Called(ctx, inv)
	if fn, ok := args.Get(0).(func(context.Context, *domaininvoice.SalesInvoice) *domaininvoice.SalesInvoice); ok {
		return fn(ctx, inv), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaininvoice.SalesInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domaininvoice.SalesInvoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaininvoice.SalesInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindOne(ctx context.Context, orderID, shopID, packageID string) (*domaininvoice.SalesInvoice, error) {
	args := m.Called(ctx, orderID, shopID, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domaininvoice.SalesInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByOrder(ctx context.Context, orderID, shopID string) ([]domaininvoice.SalesInvoice, error) {
	args := m.Called(ctx, orderID, shopID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domaininvoice.SalesInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, inv *domaininvoice.SalesInvoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

type MockSequenceAllocator struct {
	mock.Mock
}

func (m *MockSequenceAllocator) Next(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderInvoice(ctx context.Context, inv *domaininvoice.SalesInvoice, reprint bool) ([]byte, error) {
	args := m.Called(ctx, inv, reprint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) UploadPDF(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

// =============================================================================
// Fixtures
// =============================================================================

type serviceFixture struct {
	orderRepo   *MockOrderRepository
	invoiceRepo *MockInvoiceRepository
	sequences   *MockSequenceAllocator
	renderer    *MockRenderer
	publisher   *MockPublisher
	store       *cache.MemoryStore
	service     *app.InvoiceService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		orderRepo:   &MockOrderRepository{},
		invoiceRepo: &MockInvoiceRepository{},
		sequences:   &MockSequenceAllocator{},
		renderer:    &MockRenderer{},
		publisher:   &MockPublisher{},
		store:       cache.NewMemoryStore(),
	}
	t.Cleanup(func() { f.store.Close() })

	gate := cache.NewGate(f.store, time.Minute, nil, zap.NewNop())
	f.service = app.NewInvoiceService(
		f.orderRepo, f.invoiceRepo, f.sequences,
		f.renderer, f.publisher, gate,
		app.ServiceConfig{
			Stage:     "test",
			ResultTTL: time.Minute,
			Account:   domaininvoice.AccountDetails{CompanyName: "SellerHub Trading Corp."},
		},
		zap.NewNop(),
	)
	return f
}

func twoPackageOrder() (*order.Order, []order.OrderItem) {
	ord := &order.Order{
		ShopID:        "shop-1",
		OrderID:       "order-1",
		Status:        "AWAITING_SHIPMENT",
		PackagesID:    "P1,P2",
		RecipientName: "Juan dela Cruz",
		SubTotal:      decimal.RequireFromString("112.00"),
	}
	items := []order.OrderItem{
		{ShopID: "shop-1", OrderID: "order-1", LineItemID: "L1", ProductID: "A",
			ProductName: "Product A", OriginalPrice: decimal.RequireFromString("56.00"), PackageID: "P1"},
		{ShopID: "shop-1", OrderID: "order-1", LineItemID: "L2", ProductID: "B",
			ProductName: "Product B", OriginalPrice: decimal.RequireFromString("56.00"), PackageID: "P2"},
	}
	return ord, items
}

// =============================================================================
// GenerateForOrder
// =============================================================================

func TestInvoiceService_GenerateForOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("creates one invoice per package", func(t *testing.T) {
		f := newServiceFixture(t)
		ord, items := twoPackageOrder()

		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Once()
		f.invoiceRepo.On("FindOne", mock.Anything, "order-1", "shop-1", mock.Anything).
			Return(nil, shared.ErrNotFound).Twice()
		f.sequences.On("Next", mock.Anything).Return(int64(101), nil).Once()
		f.sequences.On("Next", mock.Anything).Return(int64(102), nil).Once()
		f.renderer.On("RenderInvoice", mock.Anything, mock.Anything, false).
			Return([]byte("%PDF"), nil).Twice()
		f.publisher.On("UploadPDF", mock.Anything, "test/invoices/tiktok/shop-1/order-1/P1/101.pdf", mock.Anything).
			Return("https://cdn/101.pdf", nil).Once()
		f.publisher.On("UploadPDF", mock.Anything, "test/invoices/tiktok/shop-1/order-1/P2/102.pdf", mock.Anything).
			Return("https://cdn/102.pdf", nil).Once()
		f.invoiceRepo.On("Create", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, inv *domaininvoice.SalesInvoice) *domaininvoice.SalesInvoice { return inv }, nil).Twice()

		result, err := f.service.GenerateForOrder(ctx, app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"})

		require.NoError(t, err)
		require.NotNil(t, result.Summary)
		require.Len(t, result.Summary.Packages, 2)
		assert.Equal(t, app.PackageCreated, result.Summary.Packages[0].Status)
		assert.Equal(t, int64(101), result.Summary.Packages[0].SequenceNumber)
		assert.Equal(t, app.PackageCreated, result.Summary.Packages[1].Status)
		assert.False(t, result.FromCache)
		f.orderRepo.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("re-delivery within TTL is served from cache", func(t *testing.T) {
		f := newServiceFixture(t)
		ord, items := twoPackageOrder()

		// The order repo must only ever be hit once.
		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Once()
		f.invoiceRepo.On("FindOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound)
		f.sequences.On("Next", mock.Anything).Return(int64(1), nil)
		f.renderer.On("RenderInvoice", mock.Anything, mock.Anything, false).Return([]byte("%PDF"), nil)
		f.publisher.On("UploadPDF", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/x.pdf", nil)
		f.invoiceRepo.On("Create", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, inv *domaininvoice.SalesInvoice) *domaininvoice.SalesInvoice { return inv }, nil)

		req := app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"}
		first, err := f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		require.False(t, first.FromCache)

		second, err := f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		assert.True(t, second.FromCache)
		require.NotNil(t, second.Summary)
		assert.Equal(t, first.Summary.Packages, second.Summary.Packages)
		f.orderRepo.AssertExpectations(t)
	})

	t.Run("order not ready exits quietly and caches nothing", func(t *testing.T) {
		f := newServiceFixture(t)

		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").
			Return(nil, nil, nil).Twice()

		req := app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"}
		result, err := f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.Summary.NotReady)

		// A second trigger runs the pipeline again instead of hitting a
		// cached result.
		result, err = f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		assert.True(t, result.Summary.NotReady)
		f.orderRepo.AssertExpectations(t)
	})

	t.Run("existing invoice skips the package", func(t *testing.T) {
		f := newServiceFixture(t)
		ord := &order.Order{ShopID: "shop-1", OrderID: "order-1",
			SubTotal: decimal.RequireFromString("50.00")}
		items := []order.OrderItem{{ShopID: "shop-1", OrderID: "order-1", LineItemID: "L1",
			ProductID: "A", OriginalPrice: decimal.RequireFromString("50.00")}}

		existing := &domaininvoice.SalesInvoice{
			ID: uuid.New(), OrderID: "order-1", ShopID: "shop-1",
			PackageID: order.DefaultPackageID, SequenceNumber: 7,
			FilePath: "https://cdn/7.pdf",
		}

		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Once()
		f.invoiceRepo.On("FindOne", mock.Anything, "order-1", "shop-1", order.DefaultPackageID).
			Return(existing, nil).Once()

		result, err := f.service.GenerateForOrder(ctx, app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"})

		require.NoError(t, err)
		require.Len(t, result.Summary.Packages, 1)
		assert.Equal(t, app.PackageSkipped, result.Summary.Packages[0].Status)
		assert.Equal(t, int64(7), result.Summary.Packages[0].SequenceNumber)
		// The sequence counter must not burn a number for a skip.
		f.sequences.AssertNotCalled(t, "Next", mock.Anything)
	})

	t.Run("package failure does not stop siblings", func(t *testing.T) {
		f := newServiceFixture(t)
		ord, items := twoPackageOrder()

		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Once()
		f.invoiceRepo.On("FindOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound)
		f.sequences.On("Next", mock.Anything).Return(int64(201), nil).Once()
		f.sequences.On("Next", mock.Anything).Return(int64(202), nil).Once()
		// First package fails to render, the second succeeds.
		f.renderer.On("RenderInvoice", mock.Anything, mock.MatchedBy(func(inv *domaininvoice.SalesInvoice) bool {
			return inv.PackageID == "P1"
		}), false).Return(nil, errors.New("chrome crashed")).Once()
		f.renderer.On("RenderInvoice", mock.Anything, mock.MatchedBy(func(inv *domaininvoice.SalesInvoice) bool {
			return inv.PackageID == "P2"
		}), false).Return([]byte("%PDF"), nil).Once()
		f.publisher.On("UploadPDF", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/202.pdf", nil).Once()
		f.invoiceRepo.On("Create", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, inv *domaininvoice.SalesInvoice) *domaininvoice.SalesInvoice { return inv }, nil).Once()

		result, err := f.service.GenerateForOrder(ctx, app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"})

		require.NoError(t, err)
		require.Len(t, result.Summary.Packages, 2)
		assert.Equal(t, app.PackageFailed, result.Summary.Packages[0].Status)
		assert.Contains(t, result.Summary.Packages[0].Error, "PDF rendering failed")
		assert.Equal(t, app.PackageCreated, result.Summary.Packages[1].Status)
	})

	t.Run("run with a failed package is not cached, retry reprocesses", func(t *testing.T) {
		f := newServiceFixture(t)
		ord := &order.Order{ShopID: "shop-1", OrderID: "order-1",
			SubTotal: decimal.RequireFromString("50.00")}
		items := []order.OrderItem{{ShopID: "shop-1", OrderID: "order-1", LineItemID: "L1",
			ProductID: "A", OriginalPrice: decimal.RequireFromString("50.00")}}

		// Both triggers must reach the order repo; the failed summary must
		// not absorb the re-delivery.
		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Twice()
		f.invoiceRepo.On("FindOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound).Twice()
		f.sequences.On("Next", mock.Anything).Return(int64(401), nil).Once()
		f.sequences.On("Next", mock.Anything).Return(int64(402), nil).Once()
		f.renderer.On("RenderInvoice", mock.Anything, mock.Anything, false).
			Return(nil, errors.New("chrome crashed")).Once()
		f.renderer.On("RenderInvoice", mock.Anything, mock.Anything, false).
			Return([]byte("%PDF"), nil).Once()
		f.publisher.On("UploadPDF", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/402.pdf", nil).Once()
		f.invoiceRepo.On("Create", mock.Anything, mock.Anything).
			Return(func(ctx context.Context, inv *domaininvoice.SalesInvoice) *domaininvoice.SalesInvoice { return inv }, nil).Once()

		req := app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"}
		first, err := f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, app.PackageFailed, first.Summary.Packages[0].Status)

		second, err := f.service.GenerateForOrder(ctx, req)
		require.NoError(t, err)
		assert.False(t, second.FromCache)
		assert.Equal(t, app.PackageCreated, second.Summary.Packages[0].Status)
		f.orderRepo.AssertExpectations(t)
		f.renderer.AssertExpectations(t)
	})

	t.Run("insert conflict becomes a skip", func(t *testing.T) {
		f := newServiceFixture(t)
		ord := &order.Order{ShopID: "shop-1", OrderID: "order-1",
			SubTotal: decimal.RequireFromString("50.00")}
		items := []order.OrderItem{{ShopID: "shop-1", OrderID: "order-1", LineItemID: "L1",
			ProductID: "A", OriginalPrice: decimal.RequireFromString("50.00")}}

		f.orderRepo.On("FindWithItems", mock.Anything, "shop-1", "order-1").Return(ord, items, nil).Once()
		f.invoiceRepo.On("FindOne", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, shared.ErrNotFound).Once()
		f.sequences.On("Next", mock.Anything).Return(int64(301), nil).Once()
		f.renderer.On("RenderInvoice", mock.Anything, mock.Anything, false).Return([]byte("%PDF"), nil).Once()
		f.publisher.On("UploadPDF", mock.Anything, mock.Anything, mock.Anything).Return("https://cdn/301.pdf", nil).Once()
		// A racing run won the unique index.
		f.invoiceRepo.On("Create", mock.Anything, mock.Anything).Return(nil, nil).Once()

		result, err := f.service.GenerateForOrder(ctx, app.GenerateRequest{ShopID: "shop-1", OrderID: "order-1"})

		require.NoError(t, err)
		require.Len(t, result.Summary.Packages, 1)
		assert.Equal(t, app.PackageSkipped, result.Summary.Packages[0].Status)
	})

	t.Run("missing identifiers are rejected", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.GenerateForOrder(ctx, app.GenerateRequest{ShopID: "shop-1"})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}

// =============================================================================
// Reprint
// =============================================================================

func TestInvoiceService_Reprint(t *testing.T) {
	ctx := context.Background()

	t.Run("re-renders under the reprint key", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()
		inv := &domaininvoice.SalesInvoice{
			ID: id, OrderID: "order-1", ShopID: "shop-1", PackageID: "P1",
			SequenceNumber: 42, FilePath: "https://cdn/42.pdf",
			Status:    domaininvoice.StatusGenerated,
			AmountDue: decimal.RequireFromString("112.00"),
			LineItems: []domaininvoice.LineItem{{ProductID: "A", Quantity: 1}},
		}

		f.invoiceRepo.On("FindByID", mock.Anything, id).Return(inv, nil).Once()
		f.renderer.On("RenderInvoice", mock.Anything, inv, true).Return([]byte("%PDF"), nil).Once()
		f.publisher.On("UploadPDF", mock.Anything, "test/invoices/tiktok/shop-1/order-1/P1/42_reprint.pdf", mock.Anything).
			Return("https://cdn/42_reprint.pdf", nil).Once()
		f.invoiceRepo.On("Update", mock.Anything, inv).Return(nil).Once()

		resp, err := f.service.Reprint(ctx, id)

		require.NoError(t, err)
		assert.Equal(t, int64(42), resp.SequenceNumber)
		assert.Equal(t, "https://cdn/42_reprint.pdf", resp.FilePath)
		assert.Equal(t, string(domaininvoice.StatusReprinted), resp.Status)
		assert.Equal(t, decimal.RequireFromString("112.00"), resp.AmountDue)
		f.publisher.AssertExpectations(t)
	})

	t.Run("unknown invoice is a 404", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()

		f.invoiceRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound).Once()

		_, err := f.service.Reprint(ctx, id)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

// =============================================================================
// UpdateSalesInvoice
// =============================================================================

func TestInvoiceService_UpdateSalesInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("merges only addressed fields", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()
		inv := &domaininvoice.SalesInvoice{
			ID: id, OrderID: "order-1", ShopID: "shop-1", PackageID: "P1",
			SequenceNumber: 42, FilePath: "https://cdn/42.pdf",
			Status:    domaininvoice.StatusGenerated,
			AmountDue: decimal.RequireFromString("112.00"),
		}

		f.invoiceRepo.On("FindByID", mock.Anything, id).Return(inv, nil).Once()
		f.invoiceRepo.On("Update", mock.Anything, inv).Return(nil).Once()

		resp, err := f.service.UpdateSalesInvoice(ctx, id, app.UpdateInvoiceRequest{
			BillingAddress: &app.AddressPayload{Name: "Juan dela Cruz", TaxID: "123-456-789-000"},
		})

		require.NoError(t, err)
		assert.Equal(t, "Juan dela Cruz", resp.BillingAddress.Name)
		// Identity and financials are untouched.
		assert.Equal(t, int64(42), resp.SequenceNumber)
		assert.Equal(t, "https://cdn/42.pdf", resp.FilePath)
		assert.Equal(t, decimal.RequireFromString("112.00"), resp.AmountDue)
	})

	t.Run("rejects unknown status values", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()
		inv := &domaininvoice.SalesInvoice{ID: id, Status: domaininvoice.StatusGenerated}

		f.invoiceRepo.On("FindByID", mock.Anything, id).Return(inv, nil).Once()

		bad := "VOIDED"
		_, err := f.service.UpdateSalesInvoice(ctx, id, app.UpdateInvoiceRequest{Status: &bad})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})

	t.Run("unknown invoice is a 404", func(t *testing.T) {
		f := newServiceFixture(t)
		id := uuid.New()

		f.invoiceRepo.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound).Once()

		_, err := f.service.UpdateSalesInvoice(ctx, id, app.UpdateInvoiceRequest{})

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "NOT_FOUND", domainErr.Code)
	})
}

// =============================================================================
// Queries
// =============================================================================

func TestInvoiceService_GetSalesInvoices(t *testing.T) {
	ctx := context.Background()

	t.Run("lists ledger rows", func(t *testing.T) {
		f := newServiceFixture(t)
		rows := []domaininvoice.SalesInvoice{
			{ID: uuid.New(), SequenceNumber: 2},
			{ID: uuid.New(), SequenceNumber: 1},
		}

		f.invoiceRepo.On("FindByOrder", mock.Anything, "order-1", "shop-1").Return(rows, nil).Once()

		resp, err := f.service.GetSalesInvoices(ctx, "order-1", "shop-1")

		require.NoError(t, err)
		require.Len(t, resp, 2)
		assert.Equal(t, int64(2), resp[0].SequenceNumber)
	})

	t.Run("requires identifiers", func(t *testing.T) {
		f := newServiceFixture(t)

		_, err := f.service.GetSalesInvoices(ctx, "", "shop-1")

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_INPUT", domainErr.Code)
	})
}

func TestInvoiceService_DedupStatus(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	status, err := f.service.DedupStatus(ctx, "shop-1", "order-1")
	require.NoError(t, err)
	assert.False(t, status.Processing)
}
