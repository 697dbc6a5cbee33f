package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type kycReviewService interface {
	Approve(ctx context.Context, recordID, reviewer uuid.UUID) (*entities.KYCRecord, error)
	Reject(ctx context.Context, recordID, reviewer uuid.UUID, reason string) (*entities.KYCRecord, error)
}

type disputeReviewService interface {
	UpdateStatus(ctx context.Context, staffID, disputeID uuid.UUID, input *entities.UpdateDisputeStatusInput) (*entities.Dispute, error)
}

type transactionAdminService interface {
	Reverse(ctx context.Context, transactionID, actorID uuid.UUID, reason string) (*entities.Transaction, error)
	List(ctx context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error)
}

type walletAdminService interface {
	Block(ctx context.Context, walletID, staffID uuid.UUID, reason string) (*entities.Wallet, error)
}

type loanAdminService interface {
	Create(ctx context.Context, staffID uuid.UUID, input *entities.CreateLoanInput) (*entities.Loan, []*entities.LoanScheduleEntry, error)
}

type productAdminService interface {
	CreateProduct(ctx context.Context, input *usecases.ProductInput) (*entities.InvestmentProduct, error)
}

type auditService interface {
	List(ctx context.Context, filter entities.AuditFilter, page, limit int) ([]*entities.AuditLog, int64, error)
}

// AdminHandler handles back-office endpoints. Routes are mounted behind
// RequireStaff.
type AdminHandler struct {
	kyc          kycReviewService
	disputes     disputeReviewService
	transactions transactionAdminService
	wallets      walletAdminService
	loans        loanAdminService
	products     productAdminService
	audit        auditService
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	kyc *usecases.KYCUsecase,
	disputes *usecases.DisputeUsecase,
	transactions *usecases.TransactionUsecase,
	ledger *usecases.LedgerUsecase,
	loans *usecases.LoanUsecase,
	investments *usecases.InvestmentUsecase,
	audit *usecases.AuditUsecase,
) *AdminHandler {
	return &AdminHandler{
		kyc:          kyc,
		disputes:     disputes,
		transactions: transactions,
		wallets:      ledger,
		loans:        loans,
		products:     investments,
		audit:        audit,
	}
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ApproveKYC
// POST /api/v1/admin/kyc/:id/approve
func (h *AdminHandler) ApproveKYC(c *gin.Context) {
	staffID, id, ok := ownedResource(c)
	if !ok {
		return
	}

	record, err := h.kyc.Approve(c.Request.Context(), id, staffID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"kyc": record})
}

// RejectKYC
// POST /api/v1/admin/kyc/:id/reject
func (h *AdminHandler) RejectKYC(c *gin.Context) {
	staffID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	record, err := h.kyc.Reject(c.Request.Context(), id, staffID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"kyc": record})
}

// UpdateDisputeStatus moves a dispute through review
// PATCH /api/v1/admin/disputes/:id
func (h *AdminHandler) UpdateDisputeStatus(c *gin.Context) {
	staffID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var input entities.UpdateDisputeStatusInput
	if !bindJSON(c, &input) {
		return
	}

	dispute, err := h.disputes.UpdateStatus(c.Request.Context(), staffID, id, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"dispute": dispute})
}

// ListTransactions searches every account's transactions
// GET /api/v1/admin/transactions?userId=&walletId=&type=&status=
func (h *AdminHandler) ListTransactions(c *gin.Context) {
	filter := entities.TransactionFilter{
		Type:   entities.TransactionType(c.Query("type")),
		Status: entities.TransactionStatus(c.Query("status")),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid userId"))
			return
		}
		filter.UserID = &id
	}
	if raw := c.Query("walletId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid walletId"))
			return
		}
		filter.WalletID = &id
	}
	page, limit := pageParams(c)

	txns, total, err := h.transactions.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, txns, total, page, limit)
}

// ReverseTransaction posts the compensating entries for a completed transaction
// POST /api/v1/admin/transactions/:id/reverse
func (h *AdminHandler) ReverseTransaction(c *gin.Context) {
	staffID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	txn, err := h.transactions.Reverse(c.Request.Context(), id, staffID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transaction": txn})
}

// BlockWallet
// POST /api/v1/admin/wallets/:id/block
func (h *AdminHandler) BlockWallet(c *gin.Context) {
	staffID, id, ok := ownedResource(c)
	if !ok {
		return
	}
	var req reasonRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.wallets.Block(c.Request.Context(), id, staffID, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// CreateLoan disburses a loan into the borrower's wallet
// POST /api/v1/admin/loans
func (h *AdminHandler) CreateLoan(c *gin.Context) {
	staffID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreateLoanInput
	if !bindJSON(c, &input) {
		return
	}

	loan, schedule, err := h.loans.Create(c.Request.Context(), staffID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"loan": loan, "schedule": schedule})
}

type productRequest struct {
	Name                string `json:"name" binding:"required"`
	Currency            string `json:"currency" binding:"required"`
	InterestRate        string `json:"interestRate" binding:"required"`
	DurationDays        int    `json:"durationDays" binding:"required"`
	MinAmount           string `json:"minAmount"`
	AllowsAutoRenew     bool   `json:"allowsAutoRenew"`
	PayoutFrequencyDays int    `json:"payoutFrequencyDays"`
}

// CreateInvestmentProduct
// POST /api/v1/admin/investments/products
func (h *AdminHandler) CreateInvestmentProduct(c *gin.Context) {
	var req productRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.products.CreateProduct(c.Request.Context(), &usecases.ProductInput{
		Name:                req.Name,
		Currency:            req.Currency,
		InterestRate:        req.InterestRate,
		DurationDays:        req.DurationDays,
		MinAmount:           req.MinAmount,
		AllowsAutoRenew:     req.AllowsAutoRenew,
		PayoutFrequencyDays: req.PayoutFrequencyDays,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"product": product})
}

// ListAuditLogs
// GET /api/v1/admin/audit-logs?category=&resourceType=&resourceId=&userId=
func (h *AdminHandler) ListAuditLogs(c *gin.Context) {
	filter := entities.AuditFilter{
		Category:     entities.AuditCategory(c.Query("category")),
		ResourceType: c.Query("resourceType"),
		ResourceID:   c.Query("resourceId"),
	}
	if raw := c.Query("userId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(c, domainerrors.BadRequest("Invalid userId"))
			return
		}
		filter.UserID = &id
	}
	page, limit := pageParams(c)

	logs, total, err := h.audit.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, logs, total, page, limit)
}
