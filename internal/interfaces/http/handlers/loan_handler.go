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

type loanService interface {
	Get(ctx context.Context, userID, loanID uuid.UUID) (*entities.Loan, []*entities.LoanScheduleEntry, error)
	List(ctx context.Context, userID uuid.UUID) ([]*entities.Loan, error)
	Repay(ctx context.Context, userID, loanID uuid.UUID, input *usecases.RepayInput) (*entities.Transaction, error)
	ConfigureAutoRepayment(ctx context.Context, userID, loanID uuid.UUID, input *entities.AutoRepaymentInput) (*entities.AutoRepayment, error)
	CancelAutoRepayment(ctx context.Context, userID, loanID uuid.UUID) (*entities.AutoRepayment, error)
}

// LoanHandler handles borrower endpoints. Loans are disbursed by staff
// through the admin handler.
type LoanHandler struct {
	loans loanService
}

func NewLoanHandler(loans *usecases.LoanUsecase) *LoanHandler {
	return &LoanHandler{loans: loans}
}

// List
// GET /api/v1/loans
func (h *LoanHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	loans, err := h.loans.List(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"loans": loans})
}

// Get returns a loan with its repayment schedule
// GET /api/v1/loans/:id
func (h *LoanHandler) Get(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	loan, schedule, err := h.loans.Get(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"loan": loan, "schedule": schedule})
}

// Repay pays the oldest unpaid instalments
// POST /api/v1/loans/:id/repay
func (h *LoanHandler) Repay(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var input usecases.RepayInput
	if !bindJSON(c, &input) {
		return
	}
	input.IP = c.ClientIP()
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = c.GetHeader(middleware.IdempotencyHeader)
	}

	txn, err := h.loans.Repay(c.Request.Context(), userID, id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"transaction": txn})
}

// ConfigureAutoRepayment creates or updates the mandate
// PUT /api/v1/loans/:id/auto-repayment
func (h *LoanHandler) ConfigureAutoRepayment(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var input entities.AutoRepaymentInput
	if !bindJSON(c, &input) {
		return
	}

	mandate, err := h.loans.ConfigureAutoRepayment(c.Request.Context(), userID, id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"autoRepayment": mandate})
}

// CancelAutoRepayment
// DELETE /api/v1/loans/:id/auto-repayment
func (h *LoanHandler) CancelAutoRepayment(c *gin.Context) {
	userID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	mandate, err := h.loans.CancelAutoRepayment(c.Request.Context(), userID, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"autoRepayment": mandate})
}
