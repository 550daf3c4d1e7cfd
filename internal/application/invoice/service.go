// Package invoice orchestrates the invoice generation pipeline: dedup gate,
// order aggregation, package transformation, sequence allocation, PDF
// rendering, object-store upload and ledger persistence.
package invoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domaininvoice "github.com/sellerhub/invoicing/internal/domain/invoice"
	"github.com/sellerhub/invoicing/internal/domain/order"
	"github.com/sellerhub/invoicing/internal/domain/shared"
	"github.com/sellerhub/invoicing/internal/infrastructure/cache"
	"github.com/sellerhub/invoicing/internal/infrastructure/storage"
)

// DocumentRenderer turns a sales invoice into PDF bytes
type DocumentRenderer interface {
	RenderInvoice(ctx context.Context, inv *domaininvoice.SalesInvoice, reprint bool) ([]byte, error)
}

// Publisher stores a rendered PDF and returns its object URL
type Publisher interface {
	UploadPDF(ctx context.Context, key string, data []byte) (string, error)
}

// ServiceConfig carries the business settings of the pipeline
type ServiceConfig struct {
	// Stage prefixes object-store keys (dev, staging, prod)
	Stage string
	// VatRate overrides the default when positive
	VatRate decimal.Decimal
	// Account holds the company and bank details printed on invoices
	Account domaininvoice.AccountDetails
	// ResultTTL is how long a successful run absorbs re-deliveries
	ResultTTL time.Duration
}

// InvoiceService runs the invoice generation pipeline and serves ledger
// reads and updates.
type InvoiceService struct {
	orderRepo   order.Repository
	invoiceRepo domaininvoice.SalesInvoiceRepository
	sequences   domaininvoice.SequenceAllocator
	renderer    DocumentRenderer
	publisher   Publisher
	gate        *cache.Gate
	cfg         ServiceConfig
	logger      *zap.Logger
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	orderRepo order.Repository,
	invoiceRepo domaininvoice.SalesInvoiceRepository,
	sequences domaininvoice.SequenceAllocator,
	renderer DocumentRenderer,
	publisher Publisher,
	gate *cache.Gate,
	cfg ServiceConfig,
	logger *zap.Logger,
) *InvoiceService {
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceService{
		orderRepo:   orderRepo,
		invoiceRepo: invoiceRepo,
		sequences:   sequences,
		renderer:    renderer,
		publisher:   publisher,
		gate:        gate,
		cfg:         cfg,
		logger:      logger,
	}
}

// DedupKey is the gate key guarding one order's pipeline run
func DedupKey(shopID, orderID string) string {
	return fmt.Sprintf("order_processing:%s:%s", shopID, orderID)
}

// GenerateForOrder runs the pipeline behind the deduplication gate. Webhook
// re-deliveries within the result TTL are absorbed from the cache; a
// concurrent duplicate is blocked without waiting.
func (s *InvoiceService) GenerateForOrder(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	if req.ShopID == "" || req.OrderID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shop ID and order ID are required")
	}

	outcome, err := s.gate.ProcessOnce(ctx, DedupKey(req.ShopID, req.OrderID), s.cfg.ResultTTL,
		func(ctx context.Context) (any, error) {
			return s.runPipeline(ctx, req.ShopID, req.OrderID)
		})
	if err != nil {
		if errors.Is(err, shared.ErrOrderNotReady) {
			// Quiet exit: nothing is cached, a later trigger retries
			// once the order finishes loading upstream.
			s.logger.Info("order not ready for invoicing",
				zap.String("shop_id", req.ShopID),
				zap.String("order_id", req.OrderID))
			return &GenerateResult{Summary: &RunSummary{
				ShopID:   req.ShopID,
				OrderID:  req.OrderID,
				NotReady: true,
			}}, nil
		}
		return nil, err
	}

	result := &GenerateResult{
		FromCache:    outcome.FromCache,
		WasDuplicate: outcome.WasDuplicate,
	}
	if len(outcome.Result) > 0 {
		var summary RunSummary
		if err := json.Unmarshal(outcome.Result, &summary); err != nil {
			return nil, fmt.Errorf("failed to decode run summary: %w", err)
		}
		result.Summary = &summary
	}

	return result, nil
}

// runPipeline processes every package of the order. Failures are isolated
// per package: one package failing does not stop its siblings, the error is
// collected into the run summary instead.
func (s *InvoiceService) runPipeline(ctx context.Context, shopID, orderID string) (*RunSummary, error) {
	ord, items, err := s.orderRepo.FindWithItems(ctx, shopID, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s/%s: %w", shopID, orderID, err)
	}
	if ord == nil {
		return nil, shared.ErrOrderNotReady
	}

	aggregated := order.AggregateItems(items)
	packages := domaininvoice.BuildPackages(ord, aggregated, domaininvoice.TransformOptions{
		VatRate: s.cfg.VatRate,
	})

	summary := &RunSummary{
		ShopID:   shopID,
		OrderID:  orderID,
		Packages: make([]PackageResult, 0, len(packages)),
	}

	for i := range packages {
		summary.Packages = append(summary.Packages, s.processPackage(ctx, ord, &packages[i]))
	}

	s.logger.Info("invoice pipeline finished",
		zap.String("shop_id", shopID),
		zap.String("order_id", orderID),
		zap.Int("packages", len(packages)))

	return summary, nil
}

// processPackage takes one package through sequence allocation, rendering,
// upload and persistence.
func (s *InvoiceService) processPackage(ctx context.Context, ord *order.Order, pkg *domaininvoice.InvoicePackage) PackageResult {
	result := PackageResult{PackageID: pkg.PackageID}

	existing, err := s.invoiceRepo.FindOne(ctx, ord.OrderID, ord.ShopID, pkg.PackageID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return s.packageFailed(result, ord, pkg.PackageID, "ledger lookup failed", err)
	}
	if existing != nil {
		s.logger.Info("invoice already exists for package, skipping",
			zap.String("shop_id", ord.ShopID),
			zap.String("order_id", ord.OrderID),
			zap.String("package_id", pkg.PackageID))
		result.Status = PackageSkipped
		result.InvoiceID = existing.ID.String()
		result.SequenceNumber = existing.SequenceNumber
		result.FilePath = existing.FilePath
		return result
	}

	// A sequence number allocated here is burned if a later step fails;
	// gaps are acceptable, reuse is not.
	sequence, err := s.sequences.Next(ctx)
	if err != nil {
		return s.packageFailed(result, ord, pkg.PackageID, "sequence allocation failed", err)
	}

	inv, err := domaininvoice.NewSalesInvoice(ord.OrderID, ord.ShopID, pkg, sequence, s.cfg.Account)
	if err != nil {
		return s.packageFailed(result, ord, pkg.PackageID, "invoice assembly failed", err)
	}

	pdf, err := s.renderer.RenderInvoice(ctx, inv, false)
	if err != nil {
		return s.packageFailed(result, ord, pkg.PackageID, "PDF rendering failed", err)
	}

	key := storage.ObjectKey(s.cfg.Stage, ord.ShopID, ord.OrderID, pkg.PackageID, sequence, false)
	fileURL, err := s.publisher.UploadPDF(ctx, key, pdf)
	if err != nil {
		return s.packageFailed(result, ord, pkg.PackageID, "PDF upload failed", err)
	}
	inv.FilePath = fileURL

	created, err := s.invoiceRepo.Create(ctx, inv)
	if err != nil {
		return s.packageFailed(result, ord, pkg.PackageID, "ledger insert failed", err)
	}
	if created == nil {
		// A racing run won the unique index; treat like the skip above.
		result.Status = PackageSkipped
		return result
	}

	result.Status = PackageCreated
	result.InvoiceID = created.ID.String()
	result.SequenceNumber = created.SequenceNumber
	result.FilePath = created.FilePath
	return result
}

func (s *InvoiceService) packageFailed(result PackageResult, ord *order.Order, packageID, stage string, err error) PackageResult {
	s.logger.Error("package pipeline step failed",
		zap.String("shop_id", ord.ShopID),
		zap.String("order_id", ord.OrderID),
		zap.String("package_id", packageID),
		zap.String("stage", stage),
		zap.Error(err))
	result.Status = PackageFailed
	result.Error = fmt.Sprintf("%s: %v", stage, err)
	return result
}

// Reprint re-renders an invoice from its stored snapshot and uploads the
// result under a reprint key. Sequence number and financials never change;
// only the file location and generation timestamp move.
func (s *InvoiceService) Reprint(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	pdf, err := s.renderer.RenderInvoice(ctx, inv, true)
	if err != nil {
		return nil, fmt.Errorf("failed to render reprint: %w", err)
	}

	key := storage.ObjectKey(s.cfg.Stage, inv.ShopID, inv.OrderID, inv.PackageID, inv.SequenceNumber, true)
	fileURL, err := s.publisher.UploadPDF(ctx, key, pdf)
	if err != nil {
		return nil, fmt.Errorf("failed to upload reprint: %w", err)
	}

	inv.MarkReprinted(fileURL, time.Now())
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to record reprint: %w", err)
	}

	s.logger.Info("invoice reprinted",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int64("sequence_number", inv.SequenceNumber))

	return toInvoiceResponse(inv), nil
}

// UpdateSalesInvoice applies a partial edit to an existing invoice
func (s *InvoiceService) UpdateSalesInvoice(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	patch := domaininvoice.UpdatePatch{
		FilePath:        req.FilePath,
		GeneratedAt:     req.GeneratedAt,
		BillingAddress:  toAddress(req.BillingAddress),
		ShippingAddress: toAddress(req.ShippingAddress),
	}
	if req.Status != nil {
		status := domaininvoice.Status(*req.Status)
		if status != domaininvoice.StatusGenerated && status != domaininvoice.StatusReprinted {
			return nil, shared.NewDomainError("INVALID_INPUT", "Invalid invoice status")
		}
		patch.Status = &status
	}

	inv.ApplyPatch(patch)
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, fmt.Errorf("failed to update invoice: %w", err)
	}

	return toInvoiceResponse(inv), nil
}

// GetSalesInvoice retrieves a single invoice by id
func (s *InvoiceService) GetSalesInvoice(ctx context.Context, id uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Invoice not found")
		}
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}
	return toInvoiceResponse(inv), nil
}

// GetSalesInvoices lists the invoices of an order, newest first
func (s *InvoiceService) GetSalesInvoices(ctx context.Context, orderID, shopID string) ([]*InvoiceResponse, error) {
	if orderID == "" || shopID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shop ID and order ID are required")
	}

	invoices, err := s.invoiceRepo.FindByOrder(ctx, orderID, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	responses := make([]*InvoiceResponse, 0, len(invoices))
	for i := range invoices {
		responses = append(responses, toInvoiceResponse(&invoices[i]))
	}
	return responses, nil
}

// DedupStatus reports the in-progress marker state for an order's gate key
func (s *InvoiceService) DedupStatus(ctx context.Context, shopID, orderID string) (*cache.MarkerStatus, error) {
	if shopID == "" || orderID == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Shop ID and order ID are required")
	}
	return s.gate.Status(ctx, DedupKey(shopID, orderID))
}
