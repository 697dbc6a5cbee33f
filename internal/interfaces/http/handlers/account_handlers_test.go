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
	"walletcore.backend/internal/usecases"
)

type disputeServiceStub struct {
	disputeService
	createFn   func(ctx context.Context, userID uuid.UUID, input *entities.CreateDisputeInput) (*entities.Dispute, error)
	evidenceFn func(ctx context.Context, userID, id uuid.UUID, staff bool, input *entities.AddEvidenceInput) (*entities.Dispute, error)
}

func (s disputeServiceStub) Create(ctx context.Context, userID uuid.UUID, input *entities.CreateDisputeInput) (*entities.Dispute, error) {
	return s.createFn(ctx, userID, input)
}
func (s disputeServiceStub) AddEvidence(ctx context.Context, userID, id uuid.UUID, staff bool, input *entities.AddEvidenceInput) (*entities.Dispute, error) {
	return s.evidenceFn(ctx, userID, id, staff, input)
}

type notificationServiceStub struct {
	notificationService
	countFn    func(ctx context.Context, userID uuid.UUID) (int64, error)
	markReadFn func(ctx context.Context, userID, id uuid.UUID) error
	listFn     func(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]*entities.Notification, int64, error)
}

func (s notificationServiceStub) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.countFn(ctx, userID)
}
func (s notificationServiceStub) MarkRead(ctx context.Context, userID, id uuid.UUID) error {
	return s.markReadFn(ctx, userID, id)
}
func (s notificationServiceStub) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, page, limit int) ([]*entities.Notification, int64, error) {
	return s.listFn(ctx, userID, unreadOnly, page, limit)
}

type kycServiceStub struct {
	submitFn func(ctx context.Context, userID uuid.UUID, input *entities.SubmitKYCInput) (*entities.KYCRecord, error)
	getFn    func(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error)
}

func (s kycServiceStub) Submit(ctx context.Context, userID uuid.UUID, input *entities.SubmitKYCInput) (*entities.KYCRecord, error) {
	return s.submitFn(ctx, userID, input)
}
func (s kycServiceStub) Get(ctx context.Context, userID uuid.UUID) (*entities.KYCRecord, error) {
	return s.getFn(ctx, userID)
}

type investmentServiceStub struct {
	investmentService
	openFn func(ctx context.Context, userID uuid.UUID, input *entities.OpenInvestmentInput) (*entities.Investment, error)
	getFn  func(ctx context.Context, userID, id uuid.UUID) (*entities.Investment, []*entities.InvestmentReturn, error)
}

func (s investmentServiceStub) Open(ctx context.Context, userID uuid.UUID, input *entities.OpenInvestmentInput) (*entities.Investment, error) {
	return s.openFn(ctx, userID, input)
}
func (s investmentServiceStub) Get(ctx context.Context, userID, id uuid.UUID) (*entities.Investment, []*entities.InvestmentReturn, error) {
	return s.getFn(ctx, userID, id)
}

type loanServiceStub struct {
	loanService
	repayFn func(ctx context.Context, userID, loanID uuid.UUID, input *usecases.RepayInput) (*entities.Transaction, error)
	autoFn  func(ctx context.Context, userID, loanID uuid.UUID, input *entities.AutoRepaymentInput) (*entities.AutoRepayment, error)
}

func (s loanServiceStub) Repay(ctx context.Context, userID, loanID uuid.UUID, input *usecases.RepayInput) (*entities.Transaction, error) {
	return s.repayFn(ctx, userID, loanID, input)
}
func (s loanServiceStub) ConfigureAutoRepayment(ctx context.Context, userID, loanID uuid.UUID, input *entities.AutoRepaymentInput) (*entities.AutoRepayment, error) {
	return s.autoFn(ctx, userID, loanID, input)
}

func TestDisputeHandler_CreateAndEvidence(t *testing.T) {
	userID := uuid.New()
	txnID := uuid.New()
	var staffFlag bool
	h := &DisputeHandler{disputes: disputeServiceStub{
		createFn: func(_ context.Context, _ uuid.UUID, input *entities.CreateDisputeInput) (*entities.Dispute, error) {
			if input.TransactionID != txnID {
				return nil, domainerrors.Forbidden("dispute window has closed")
			}
			return &entities.Dispute{ID: uuid.New(), TransactionID: txnID, Status: entities.DisputeStatusOpened}, nil
		},
		evidenceFn: func(_ context.Context, _, id uuid.UUID, staff bool, _ *entities.AddEvidenceInput) (*entities.Dispute, error) {
			staffFlag = staff
			return &entities.Dispute{ID: id}, nil
		},
	}}

	rec := do(t, client(userID), http.MethodPost, "/disputes", "/disputes",
		map[string]interface{}{"transactionId": txnID, "reason": "never arrived"}, h.Create)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), string(entities.DisputeStatusOpened))

	rec = do(t, client(userID), http.MethodPost, "/disputes", "/disputes",
		map[string]interface{}{"transactionId": uuid.New(), "reason": "late"}, h.Create)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, client(userID), http.MethodPost, "/disputes", "/disputes",
		map[string]interface{}{"transactionId": txnID}, h.Create)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reason is required")

	path := "/disputes/" + uuid.NewString() + "/evidence"
	rec = do(t, staff(uuid.New()), http.MethodPost, "/disputes/:id/evidence", path, map[string]string{"note": "bank statement"}, h.AddEvidence)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, staffFlag)
}

func TestNotificationHandler_Inbox(t *testing.T) {
	userID := uuid.New()
	var unreadOnly bool
	h := &NotificationHandler{notifications: notificationServiceStub{
		countFn: func(_ context.Context, _ uuid.UUID) (int64, error) { return 3, nil },
		markReadFn: func(_ context.Context, _, _ uuid.UUID) error {
			return domainerrors.ErrNotFound
		},
		listFn: func(_ context.Context, _ uuid.UUID, unread bool, _, _ int) ([]*entities.Notification, int64, error) {
			unreadOnly = unread
			return []*entities.Notification{{ID: uuid.New(), Title: "Money in"}}, 1, nil
		},
	}}

	rec := do(t, client(userID), http.MethodGet, "/notifications/unread-count", "/notifications/unread-count", nil, h.UnreadCount)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, decode(t, rec)["count"])

	rec = do(t, client(userID), http.MethodPost, "/notifications/:id/read", "/notifications/"+uuid.NewString()+"/read", nil, h.MarkRead)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/notifications", "/notifications?unread=true", nil, h.List)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, unreadOnly)
	assert.Contains(t, rec.Body.String(), "Money in")
}

func TestKYCHandler_SubmitAndGet(t *testing.T) {
	userID := uuid.New()
	h := &KYCHandler{kyc: kycServiceStub{
		submitFn: func(_ context.Context, id uuid.UUID, input *entities.SubmitKYCInput) (*entities.KYCRecord, error) {
			if input.Level == entities.KYCLevelT3 {
				return nil, domainerrors.InvalidState("lower tier must be approved first")
			}
			return &entities.KYCRecord{ID: uuid.New(), UserID: id, Level: input.Level, Status: entities.KYCStatusPending}, nil
		},
		getFn: func(_ context.Context, _ uuid.UUID) (*entities.KYCRecord, error) {
			return nil, domainerrors.ErrNotFound
		},
	}}

	rec := do(t, client(userID), http.MethodPost, "/kyc", "/kyc", map[string]interface{}{"level": "T1", "documentRefs": []string{"doc-1"}}, h.Submit)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), string(entities.KYCStatusPending))

	rec = do(t, client(userID), http.MethodPost, "/kyc", "/kyc", map[string]interface{}{"level": "T3"}, h.Submit)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/kyc", "/kyc", nil, h.Get)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvestmentAndLoanHandlers(t *testing.T) {
	userID := uuid.New()
	walletID := uuid.New()
	inv := &InvestmentHandler{investments: investmentServiceStub{
		openFn: func(_ context.Context, _ uuid.UUID, input *entities.OpenInvestmentInput) (*entities.Investment, error) {
			assert.NotEmpty(t, input.IP)
			if input.Amount == "1" {
				return nil, domainerrors.Validation("amount is below the product minimum", map[string]string{"amount": "min"})
			}
			return &entities.Investment{ID: uuid.New(), Status: entities.InvestmentStatusActive}, nil
		},
		getFn: func(_ context.Context, _, id uuid.UUID) (*entities.Investment, []*entities.InvestmentReturn, error) {
			return &entities.Investment{ID: id}, []*entities.InvestmentReturn{{ID: uuid.New()}}, nil
		},
	}}

	body := map[string]interface{}{"productId": uuid.New(), "walletId": walletID, "amount": "5000", "pin": "1234"}
	rec := do(t, client(userID), http.MethodPost, "/investments", "/investments", body, inv.Open)
	assert.Equal(t, http.StatusCreated, rec.Code)

	body["amount"] = "1"
	rec = do(t, client(userID), http.MethodPost, "/investments", "/investments", body, inv.Open)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, client(userID), http.MethodGet, "/investments/:id", "/investments/"+uuid.NewString(), nil, inv.Get)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["returns"], 1)

	var repay *usecases.RepayInput
	loans := &LoanHandler{loans: loanServiceStub{
		repayFn: func(_ context.Context, _, _ uuid.UUID, input *usecases.RepayInput) (*entities.Transaction, error) {
			repay = input
			return &entities.Transaction{ID: uuid.New(), Type: entities.TransactionTypeLoanRepayment}, nil
		},
		autoFn: func(_ context.Context, _, _ uuid.UUID, input *entities.AutoRepaymentInput) (*entities.AutoRepayment, error) {
			return nil, domainerrors.InvalidState("loan is not active")
		},
	}}
	loanPath := "/loans/" + uuid.NewString()

	rec = do(t, client(userID), http.MethodPost, "/loans/:id/repay", loanPath+"/repay",
		map[string]interface{}{"walletId": walletID, "amount": "10000"}, loans.Repay)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, repay)
	assert.NotEmpty(t, repay.IP)
	assert.Equal(t, walletID, repay.WalletID)

	rec = do(t, client(userID), http.MethodPut, "/loans/:id/auto-repayment", loanPath+"/auto-repayment",
		map[string]interface{}{"walletId": walletID}, loans.ConfigureAutoRepayment)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
