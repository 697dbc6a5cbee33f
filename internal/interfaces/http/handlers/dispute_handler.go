package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/interfaces/http/middleware"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type disputeService interface {
	Create(ctx context.Context, userID uuid.UUID, input *entities.CreateDisputeInput) (*entities.Dispute, error)
	Get(ctx context.Context, userID, disputeID uuid.UUID, staff bool) (*entities.Dispute, error)
	List(ctx context.Context, userID uuid.UUID, page, limit int) ([]*entities.Dispute, int64, error)
	AddEvidence(ctx context.Context, userID, disputeID uuid.UUID, staff bool, input *entities.AddEvidenceInput) (*entities.Dispute, error)
}

// DisputeHandler handles customer dispute endpoints. Staff decisions live on
// the admin handler.
type DisputeHandler struct {
	disputes disputeService
}

func NewDisputeHandler(disputes *usecases.DisputeUsecase) *DisputeHandler {
	return &DisputeHandler{disputes: disputes}
}

// Create opens a dispute on a completed transaction
// POST /api/v1/disputes
func (h *DisputeHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreateDisputeInput
	if !bindJSON(c, &input) {
		return
	}

	dispute, err := h.disputes.Create(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"dispute": dispute})
}

// List
// GET /api/v1/disputes
func (h *DisputeHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)

	disputes, total, err := h.disputes.List(c.Request.Context(), userID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, disputes, total, page, limit)
}

// Get
// GET /api/v1/disputes/:id
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	dispute, err := h.disputes.Get(c.Request.Context(), userID, id, middleware.IsStaff(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"dispute": dispute})
}

// AddEvidence appends a note and document references
// POST /api/v1/disputes/:id/evidence
func (h *DisputeHandler) AddEvidence(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var input entities.AddEvidenceInput
	if !bindJSON(c, &input) {
		return
	}

	dispute, err := h.disputes.AddEvidence(c.Request.Context(), userID, id, middleware.IsStaff(c), &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"dispute": dispute})
}
