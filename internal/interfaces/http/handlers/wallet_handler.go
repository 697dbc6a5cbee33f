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

type walletService interface {
	CreateWallet(ctx context.Context, userID uuid.UUID, input *entities.CreateWalletInput) (*entities.Wallet, error)
	GetWallet(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error)
	ListWallets(ctx context.Context, userID uuid.UUID) ([]*entities.Wallet, error)
	SetPIN(ctx context.Context, userID, walletID uuid.UUID, input *entities.SetPINInput, ip string) error
	SetSecurity(ctx context.Context, userID, walletID uuid.UUID, input *entities.WalletSecurityInput, ip string) (*entities.Wallet, error)
	Freeze(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error)
	Unfreeze(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error)
	Close(ctx context.Context, userID, walletID uuid.UUID) (*entities.Wallet, error)
}

type walletMovementService interface {
	Transfer(ctx context.Context, userID uuid.UUID, input *entities.TransferInput) (*entities.Transaction, error)
	InitiateDeposit(ctx context.Context, userID uuid.UUID, input *entities.DepositInput) (*entities.DepositResult, error)
	InitiateWithdrawal(ctx context.Context, userID uuid.UUID, input *entities.WithdrawalInput) (*entities.Transaction, error)
	ListWalletTransactions(ctx context.Context, userID, walletID uuid.UUID, page, limit int) ([]*entities.Transaction, int64, error)
}

// WalletHandler handles wallet endpoints
type WalletHandler struct {
	wallets   walletService
	movements walletMovementService
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(ledger *usecases.LedgerUsecase, transactions *usecases.TransactionUsecase) *WalletHandler {
	return &WalletHandler{wallets: ledger, movements: transactions}
}

// ListWallets returns the caller's wallets
// GET /api/v1/wallets
func (h *WalletHandler) ListWallets(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	wallets, err := h.wallets.ListWallets(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallets": wallets})
}

// CreateWallet opens a wallet in a currency
// POST /api/v1/wallets
func (h *WalletHandler) CreateWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var input entities.CreateWalletInput
	if !bindJSON(c, &input) {
		return
	}

	wallet, err := h.wallets.CreateWallet(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"wallet": wallet})
}

// GetWallet returns one wallet
// GET /api/v1/wallets/:id
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}

	wallet, err := h.wallets.GetWallet(c.Request.Context(), userID, walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// ListTransactions pages through a wallet's transactions
// GET /api/v1/wallets/:id/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)

	txns, total, err := h.movements.ListWalletTransactions(c.Request.Context(), userID, walletID, page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, txns, total, page, limit)
}

// Transfer moves funds to another wallet
// POST /api/v1/wallets/:id/transfer
func (h *WalletHandler) Transfer(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	var input entities.TransferInput
	if !bindJSON(c, &input) {
		return
	}
	input.FromWalletID = walletID
	input.IP = c.ClientIP()
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = c.GetHeader(middleware.IdempotencyHeader)
	}

	txn, err := h.movements.Transfer(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"transaction": txn})
}

// Deposit starts a provider-funded deposit
// POST /api/v1/wallets/:id/deposit
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	var input entities.DepositInput
	if !bindJSON(c, &input) {
		return
	}
	input.WalletID = walletID

	res, err := h.movements.InitiateDeposit(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, res)
}

// Withdraw pays out to a bank account or address
// POST /api/v1/wallets/:id/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	var input entities.WithdrawalInput
	if !bindJSON(c, &input) {
		return
	}
	input.WalletID = walletID
	input.IP = c.ClientIP()
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = c.GetHeader(middleware.IdempotencyHeader)
	}

	txn, err := h.movements.InitiateWithdrawal(c.Request.Context(), userID, &input)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusAccepted, gin.H{"transaction": txn})
}

// SetPIN sets or changes the wallet PIN
// POST /api/v1/wallets/:id/pin
func (h *WalletHandler) SetPIN(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	var input entities.SetPINInput
	if !bindJSON(c, &input) {
		return
	}

	if err := h.wallets.SetPIN(c.Request.Context(), userID, walletID, &input, c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "PIN updated"})
}

// UpdateSecurity toggles PIN and biometric requirements
// PATCH /api/v1/wallets/:id/security
func (h *WalletHandler) UpdateSecurity(c *gin.Context) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}
	var input entities.WalletSecurityInput
	if !bindJSON(c, &input) {
		return
	}

	wallet, err := h.wallets.SetSecurity(c.Request.Context(), userID, walletID, &input, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

// Freeze suspends outgoing movements
// POST /api/v1/wallets/:id/freeze
func (h *WalletHandler) Freeze(c *gin.Context) {
	h.changeStatus(c, h.wallets.Freeze)
}

// Unfreeze reactivates a frozen wallet
// POST /api/v1/wallets/:id/unfreeze
func (h *WalletHandler) Unfreeze(c *gin.Context) {
	h.changeStatus(c, h.wallets.Unfreeze)
}

// Close closes an empty wallet
// POST /api/v1/wallets/:id/close
func (h *WalletHandler) Close(c *gin.Context) {
	h.changeStatus(c, h.wallets.Close)
}

func (h *WalletHandler) changeStatus(c *gin.Context, fn func(context.Context, uuid.UUID, uuid.UUID) (*entities.Wallet, error)) {
	userID, walletID, ok := h.ownedWallet(c)
	if !ok {
		return
	}

	wallet, err := fn(c.Request.Context(), userID, walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"wallet": wallet})
}

func (h *WalletHandler) ownedWallet(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	walletID, ok := uuidParam(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, walletID, true
}
