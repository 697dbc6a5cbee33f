package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
	"walletcore.backend/internal/domain/providers"
)

type transactionServiceStub struct {
	transactionService
	getFn     func(ctx context.Context, userID, id uuid.UUID, staff bool) (*entities.Transaction, error)
	listFn    func(ctx context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error)
	verifyFn  func(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error)
	banksFn   func(ctx context.Context, currency string) ([]providers.Bank, error)
	resolveFn func(ctx context.Context, currency, accountNumber, bankCode string) (string, error)
}

func (s transactionServiceStub) Get(ctx context.Context, userID, id uuid.UUID, staff bool) (*entities.Transaction, error) {
	return s.getFn(ctx, userID, id, staff)
}
func (s transactionServiceStub) List(ctx context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error) {
	return s.listFn(ctx, filter, page, limit)
}
func (s transactionServiceStub) VerifyDeposit(ctx context.Context, userID uuid.UUID, reference string) (*entities.Transaction, error) {
	return s.verifyFn(ctx, userID, reference)
}
func (s transactionServiceStub) ListBanks(ctx context.Context, currency string) ([]providers.Bank, error) {
	return s.banksFn(ctx, currency)
}
func (s transactionServiceStub) ResolveAccount(ctx context.Context, currency, accountNumber, bankCode string) (string, error) {
	return s.resolveFn(ctx, currency, accountNumber, bankCode)
}

func TestTransactionHandler_GetPassesStaffFlag(t *testing.T) {
	party := uuid.New()
	txnID := uuid.New()
	h := &TransactionHandler{transactions: transactionServiceStub{
		getFn: func(_ context.Context, userID, id uuid.UUID, staff bool) (*entities.Transaction, error) {
			if userID != party && !staff {
				return nil, domainerrors.ErrNotFound
			}
			return &entities.Transaction{ID: id, Status: entities.TransactionStatusCompleted}, nil
		},
	}}
	path := "/transactions/" + txnID.String()

	rec := do(t, client(party), http.MethodGet, "/transactions/:id", path, nil, h.Get)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, client(uuid.New()), http.MethodGet, "/transactions/:id", path, nil, h.Get)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, staff(uuid.New()), http.MethodGet, "/transactions/:id", path, nil, h.Get)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTransactionHandler_ListScopesToCaller(t *testing.T) {
	userID := uuid.New()
	h := &TransactionHandler{transactions: transactionServiceStub{
		listFn: func(_ context.Context, filter entities.TransactionFilter, page, limit int) ([]*entities.Transaction, int64, error) {
			require.NotNil(t, filter.UserID)
			assert.Equal(t, userID, *filter.UserID)
			assert.Equal(t, entities.TransactionStatusFailed, filter.Status)
			assert.Equal(t, 1, page)
			assert.Equal(t, 20, limit)
			return nil, 0, nil
		},
	}}

	rec := do(t, client(userID), http.MethodGet, "/transactions", "/transactions?status=FAILED", nil, h.List)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode(t, rec)["pagination"].(map[string]interface{})["totalCount"])
}

func TestTransactionHandler_VerifyAndBanks(t *testing.T) {
	userID := uuid.New()
	h := &TransactionHandler{transactions: transactionServiceStub{
		verifyFn: func(_ context.Context, _ uuid.UUID, ref string) (*entities.Transaction, error) {
			if ref == "R1" {
				return &entities.Transaction{ID: uuid.New(), Status: entities.TransactionStatusCompleted}, nil
			}
			return nil, domainerrors.ErrNotFound
		},
		banksFn: func(_ context.Context, currency string) ([]providers.Bank, error) {
			if currency == "GBP" {
				return nil, domainerrors.ErrUnsupportedCurrency
			}
			return []providers.Bank{{Code: "058", Name: "GTBank"}}, nil
		},
		resolveFn: func(_ context.Context, _, account, bank string) (string, error) {
			if account == "" {
				return "", domainerrors.Validation("account number and bank code required", nil)
			}
			return "ADA LOVELACE", nil
		},
	}}

	rec := do(t, client(userID), http.MethodGet, "/deposits/:reference/verify", "/deposits/R1/verify", nil, h.VerifyDeposit)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "COMPLETED")

	rec = do(t, client(userID), http.MethodGet, "/deposits/:reference/verify", "/deposits/R9/verify", nil, h.VerifyDeposit)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/banks", "/banks", nil, h.ListBanks)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "GTBank")

	rec = do(t, client(userID), http.MethodGet, "/banks", "/banks?currency=GBP", nil, h.ListBanks)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/banks/resolve", "/banks/resolve?accountNumber=0123456789&bankCode=058", nil, h.ResolveAccount)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ADA LOVELACE", decode(t, rec)["accountName"])

	rec = do(t, client(userID), http.MethodGet, "/banks/resolve", "/banks/resolve", nil, h.ResolveAccount)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
