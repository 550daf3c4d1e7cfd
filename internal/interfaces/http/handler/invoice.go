package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	invoiceapp "github.com/sellerhub/invoicing/internal/application/invoice"
	"github.com/sellerhub/invoicing/internal/infrastructure/cache"
)

// InvoiceApplication is the application surface the handler depends on
type InvoiceApplication interface {
	GenerateForOrder(ctx context.Context, req invoiceapp.GenerateRequest) (*invoiceapp.GenerateResult, error)
	Reprint(ctx context.Context, id uuid.UUID) (*invoiceapp.InvoiceResponse, error)
	UpdateSalesInvoice(ctx context.Context, id uuid.UUID, req invoiceapp.UpdateInvoiceRequest) (*invoiceapp.InvoiceResponse, error)
	GetSalesInvoice(ctx context.Context, id uuid.UUID) (*invoiceapp.InvoiceResponse, error)
	GetSalesInvoices(ctx context.Context, orderID, shopID string) ([]*invoiceapp.InvoiceResponse, error)
	DedupStatus(ctx context.Context, shopID, orderID string) (*cache.MarkerStatus, error)
}

// InvoiceHandler handles invoice API endpoints
type InvoiceHandler struct {
	BaseHandler
	service InvoiceApplication
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(service InvoiceApplication) *InvoiceHandler {
	return &InvoiceHandler{service: service}
}

// RegisterRoutes mounts the invoice endpoints on the API group
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := rg.Group("/invoices")
	invoices.POST("/generate", h.Generate)
	invoices.GET("", h.List)
	invoices.GET("/dedup-status", h.DedupStatus)
	invoices.GET("/:id", h.Get)
	invoices.PATCH("/:id", h.Update)
	invoices.POST("/:id/reprint", h.Reprint)
}

// Generate runs the invoice pipeline for an order
// POST /api/v1/invoices/generate
func (h *InvoiceHandler) Generate(c *gin.Context) {
	var req invoiceapp.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "shop_id and order_id are required")
		return
	}

	result, err := h.service.GenerateForOrder(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Summary != nil && result.Summary.NotReady {
		h.Accepted(c, result)
		return
	}
	h.Success(c, result)
}

// Reprint re-renders an existing invoice
// POST /api/v1/invoices/:id/reprint
func (h *InvoiceHandler) Reprint(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid invoice id")
		return
	}

	resp, err := h.service.Reprint(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update applies a partial edit to an invoice
// PATCH /api/v1/invoices/:id
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid invoice id")
		return
	}

	var req invoiceapp.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "invalid request body")
		return
	}

	resp, err := h.service.UpdateSalesInvoice(c.Request.Context(), id, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get retrieves one invoice
// GET /api/v1/invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid invoice id")
		return
	}

	resp, err := h.service.GetSalesInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// List retrieves the invoices of an order, newest first
// GET /api/v1/invoices?shop_id=&order_id=
func (h *InvoiceHandler) List(c *gin.Context) {
	shopID := c.Query("shop_id")
	orderID := c.Query("order_id")
	if shopID == "" || orderID == "" {
		h.BadRequest(c, "shop_id and order_id query parameters are required")
		return
	}

	resp, err := h.service.GetSalesInvoices(c.Request.Context(), orderID, shopID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DedupStatus reports the processing marker state for an order
// GET /api/v1/invoices/dedup-status?shop_id=&order_id=
func (h *InvoiceHandler) DedupStatus(c *gin.Context) {
	shopID := c.Query("shop_id")
	orderID := c.Query("order_id")
	if shopID == "" || orderID == "" {
		h.BadRequest(c, "shop_id and order_id query parameters are required")
		return
	}

	status, err := h.service.DedupStatus(c.Request.Context(), shopID, orderID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, status)
}
