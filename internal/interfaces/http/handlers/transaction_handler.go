package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"walletcore.backend/internal/domain/entities"
	"walletcore.backend/internal/domain/providers"
	"walletcore.backend/internal/interfaces/http/middleware"
	"walletcore.backend/internal/interfaces/http/response"
	"walletcore.backend/internal/usecases"
)

type transactionService interface {
	Get(ctx context.Context, userID, id uuid.UUID, staff bool) (*entities.Transaction, error)
	Logs(ctx context.Context, userID, id uuid.UUID, staff bool) ([]entities.TransactionLog, error)
	List(ctx context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error)
	VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error)
	VerifyWithdrawal(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error)
	ListBanks(ctx context.Context, currency string) ([]providers.Bank, error)
	ResolveAccount(ctx context.Context, currency, accountNumber, bankCode string) (string, error)
}

// TransactionHandler serves transaction lookups, provider verification and
// bank directory endpoints.
type TransactionHandler struct {
	transactions transactionService
}

func NewTransactionHandler(transactions *usecases.TransactionUsecase) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// List returns the caller's transactions across wallets
// GET /api/v1/transactions
func (h *TransactionHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)
	filter := entities.TransactionFilter{
		UserID: &userID,
		Type:   entities.TransactionType(c.Query("type")),
		Status: entities.TransactionStatus(c.Query("status")),
	}

	txns, total, err := h.transactions.List(c.Request.Context(), filter, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, txns, total, page, limit)
}

// Get returns one transaction
// GET /api/v1/transactions/:id
func (h *TransactionHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	txn, err := h.transactions.Get(c.Request.Context(), userID, id, middleware.IsStaff(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transaction": txn})
}

// Logs returns the state history of a transaction
// GET /api/v1/transactions/:id/logs
func (h *TransactionHandler) Logs(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	logs, err := h.transactions.Logs(c.Request.Context(), userID, id, middleware.IsStaff(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"logs": logs})
}

// VerifyDeposit asks the provider for the outcome of a deposit
// POST /api/v1/transactions/deposits/:reference/verify
func (h *TransactionHandler) VerifyDeposit(c *gin.Context) {
	h.verify(c, h.transactions.VerifyDeposit)
}

// VerifyWithdrawal asks the provider for the outcome of a payout
// POST /api/v1/transactions/withdrawals/:reference/verify
func (h *TransactionHandler) VerifyWithdrawal(c *gin.Context) {
	h.verify(c, h.transactions.VerifyWithdrawal)
}

func (h *TransactionHandler) verify(c *gin.Context, fn func(context.Context, uuid.UUID, string) (*entities.Transaction, error)) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	txn, err := fn(c.Request.Context(), userID, c.Param("reference"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"transaction": txn})
}

// ListBanks returns payout banks for a currency
// GET /api/v1/banks?currency=NGN
func (h *TransactionHandler) ListBanks(c *gin.Context) {
	banks, err := h.transactions.ListBanks(c.Request.Context(), c.DefaultQuery("currency", "NGN"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"banks": banks})
}

// ResolveAccount looks up the holder name of a bank account
// GET /api/v1/banks/resolve?currency=NGN&accountNumber=...&bankCode=...
func (h *TransactionHandler) ResolveAccount(c *gin.Context) {
	name, err := h.transactions.ResolveAccount(c.Request.Context(),
		c.DefaultQuery("currency", "NGN"), c.Query("accountNumber"), c.Query("bankCode"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"accountName": name})
}
