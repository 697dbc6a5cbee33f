package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

const maxWebhookBody = 1 << 20

type webhookService interface {
	Handle(ctx context.Context, provider string, header http.Header, body []byte) (*entities.Transaction, error)
}

// WebhookHandler handles webhook endpoints
type WebhookHandler struct {
	webhookUsecase webhookService
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(webhookUsecase *usecases.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{webhookUsecase: webhookUsecase}
}

// HandleProviderWebhook verifies and applies a payment provider callback. The
// body is read raw because the signature covers the exact bytes.
// POST /api/v1/webhooks/:provider
func (h *WebhookHandler) HandleProviderWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("unreadable body"))
		return
	}

	txn, err := h.webhookUsecase.Handle(c.Request.Context(), c.Param("provider"), c.Request.Header, body)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := gin.H{"received": true}
	if txn != nil {
		out["transactionId"] = txn.ID
		out["status"] = txn.Status
	}
	c.JSON(http.StatusOK, out)
}
