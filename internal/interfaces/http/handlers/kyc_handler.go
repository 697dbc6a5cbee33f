package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type kycService interface {
	Submit(ctx context.Context, userID uuid.UUID, input *entities.SubmitKYCInput) (*entities.KYCRecord, error)
	Get(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error)
}

type KYCHandler struct {
	kyc kycService
}

func NewKYCHandler(kyc *usecases.KYCUsecase) *KYCHandler {
	return &KYCHandler{kyc: kyc}
}

// Submit sends documents for a KYC level
// POST /api/v1/kyc
func (h *KYCHandler) Submit(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.SubmitKYCInput
	if !bindJSON(c, &input) {
		return
	}

	record, err := h.kyc.Submit(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"kyc": record})
}

// Get returns the caller's latest KYC record
// GET /api/v1/kyc
func (h *KYCHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	record, err := h.kyc.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"kyc": record})
}
