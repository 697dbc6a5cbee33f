package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/response"
)

type PaymentService interface {
	CreateLink(ctx context.Context, userID uuid.UUID, input *entities.CreatePaymentLinkInput) (*entities.PaymentLink, error)
	GetLink(ctx context.Context, slug string) (*entities.PaymentLink, error)
	DisableLink(ctx context.Context, userID, linkID uuid.UUID) (*entities.PaymentLink, error)
	CreateInvoice(ctx context.Context, userID uuid.UUID, input *entities.CreateInvoiceInput) (*entities.Invoice, error)
	GetInvoice(ctx context.Context, number string) (*entities.Invoice, error)
	CancelInvoice(ctx context.Context, userID, invoiceID uuid.UUID) (*entities.Invoice, error)
	Pay(ctx context.Context, userID uuid.UUID, input *entities.PayInput) (*entities.Transaction, error)
}

// PaymentHandler handles payment link and invoice endpoints
type PaymentHandler struct {
	paymentUsecase PaymentService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentUsecase PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentUsecase: paymentUsecase}
}

// CreateLink creates a shareable payment link
// POST /api/v1/payments/links
func (h *PaymentHandler) CreateLink(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreatePaymentLinkInput
	if !bindJSON(c, &input) {
		return
	}

	link, err := h.paymentUsecase.CreateLink(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"paymentLink": link})
}

// GetLink is public so payers can render the checkout page
// GET /api/v1/pay/links/:slug
func (h *PaymentHandler) GetLink(c *gin.Context) {
	link, err := h.paymentUsecase.GetLink(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paymentLink": link})
}

// DisableLink stops a link from accepting payments
// POST /api/v1/payments/links/:id/disable
func (h *PaymentHandler) DisableLink(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	link, err := h.paymentUsecase.DisableLink(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"paymentLink": link})
}

// CreateInvoice issues an invoice
// POST /api/v1/invoices
func (h *PaymentHandler) CreateInvoice(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreateInvoiceInput
	if !bindJSON(c, &input) {
		return
	}

	invoice, err := h.paymentUsecase.CreateInvoice(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"invoice": invoice})
}

// GetInvoice
// GET /api/v1/pay/invoices/:number
func (h *PaymentHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.paymentUsecase.GetInvoice(c.Request.Context(), c.Param("number"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invoice": invoice})
}

// CancelInvoice
// POST /api/v1/invoices/:id/cancel
func (h *PaymentHandler) CancelInvoice(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	invoice, err := h.paymentUsecase.CancelInvoice(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"invoice": invoice})
}

// Pay settles a link or invoice from the caller's wallet
// POST /api/v1/payments
func (h *PaymentHandler) Pay(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.PayInput
	if !bindJSON(c, &input) {
		return
	}
	input.IP = c.ClientIP()

	txn, err := h.paymentUsecase.Pay(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"transaction": txn})
}
