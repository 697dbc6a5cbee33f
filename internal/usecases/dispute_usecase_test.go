package usecases_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"walletcore.backend/internal/domain/entities"
	domainerrors "walletcore.backend/internal/domain/errors"
)

func completedTransfer(t *testing.T, h *harness) (*entities.User, *entities.User, *entities.Transaction) {
	t.Helper()
	alice := h.user(entities.UserRoleClient)
	bob := h.user(entities.UserRoleClient)
	from := h.wallet(alice.ID, "NGN", "10000")
	to := h.wallet(bob.ID, "NGN", "")
	txn, err := h.transactions.Transfer(h.ctx, alice.ID, &entities.TransferInput{
		FromWalletID: from.ID,
		ToWalletID:   &to.ID,
		Amount:       "1000",
		PIN:          testPIN,
	})
	require.NoError(t, err)
	return alice, bob, txn
}

func TestDisputeUsecase_Lifecycle(t *testing.T) {
	h := newHarness(t)
	alice, bob, txn := completedTransfer(t, h)
	staff := h.user(entities.UserRoleStaff)
	stranger := h.user(entities.UserRoleClient)

	_, err := h.disputes.Create(h.ctx, stranger.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: "not mine"})
	assert.ErrorIs(t, err, domainerrors.ErrNotFound, "only parties can dispute")

	_, err = h.disputes.Create(h.ctx, alice.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: "x", Amount: "5000"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput, "cannot dispute more than was moved")

	d, err := h.disputes.Create(h.ctx, alice.ID, &entities.CreateDisputeInput{
		TransactionID: txn.ID,
		Type:          entities.DisputeTypeIncorrectAmount,
		Reason:        "  charged twice  ",
		Amount:        "400",
		Evidence:      "bank statement attached",
		EvidenceRefs:  []string{"doc://statement"},
	})
	require.NoError(t, err)
	assert.Equal(t, entities.DisputeStatusOpened, d.Status)
	assert.Equal(t, "charged twice", d.Reason)
	assert.Equal(t, "400.00", d.DisputedAmount.StringFixed(2))
	require.Len(t, d.Evidence, 1)

	_, err = h.disputes.Create(h.ctx, bob.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: "me too"})
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyExists, "one open dispute per transaction")

	_, err = h.disputes.Get(h.ctx, bob.ID, d.ID, false)
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)
	_, err = h.disputes.Get(h.ctx, staff.ID, d.ID, true)
	assert.NoError(t, err)

	d, err = h.disputes.AddEvidence(h.ctx, staff.ID, d.ID, true, &entities.AddEvidenceInput{Note: "merchant contacted"})
	require.NoError(t, err)
	assert.Len(t, d.Evidence, 2)

	d, err = h.disputes.UpdateStatus(h.ctx, staff.ID, d.ID, &entities.UpdateDisputeStatusInput{Status: entities.DisputeStatusInReview})
	require.NoError(t, err)
	assert.False(t, d.ResolvedAt.Valid)

	_, err = h.disputes.UpdateStatus(h.ctx, staff.ID, d.ID, &entities.UpdateDisputeStatusInput{Status: entities.DisputeStatusOpened})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState, "disputes never reopen")

	h.clearDeliveries()
	d, err = h.disputes.UpdateStatus(h.ctx, staff.ID, d.ID, &entities.UpdateDisputeStatusInput{
		Status: entities.DisputeStatusResolved,
		Notes:  "refund issued",
	})
	require.NoError(t, err)
	assert.True(t, d.ResolvedAt.Valid)
	require.NotNil(t, d.ResolvedBy)
	assert.Equal(t, staff.ID, *d.ResolvedBy)
	assert.Equal(t, "refund issued", d.ResolutionNotes.String)
	assert.Len(t, h.publisher.forUser(alice.ID), 1)

	_, err = h.disputes.UpdateStatus(h.ctx, staff.ID, d.ID, &entities.UpdateDisputeStatusInput{Status: entities.DisputeStatusClosed})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)
	_, err = h.disputes.AddEvidence(h.ctx, alice.ID, d.ID, false, &entities.AddEvidenceInput{Note: "late"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidState)

	// a decided dispute frees the transaction for a new one
	again, err := h.disputes.Create(h.ctx, bob.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: "still wrong"})
	require.NoError(t, err)
	assert.Equal(t, "1000.00", again.DisputedAmount.StringFixed(2))

	list, total, err := h.disputes.List(h.ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, list, 1)
}

func TestDisputeUsecase_Validation(t *testing.T) {
	h := newHarness(t)
	alice, _, txn := completedTransfer(t, h)

	_, err := h.disputes.Create(h.ctx, alice.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Type: "fraudish", Reason: "x"})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	_, err = h.disputes.Create(h.ctx, alice.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: " "})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)

	d, err := h.disputes.Create(h.ctx, alice.ID, &entities.CreateDisputeInput{TransactionID: txn.ID, Reason: "unknown"})
	require.NoError(t, err)
	assert.Equal(t, entities.DisputeTypeOther, d.Type)

	_, err = h.disputes.AddEvidence(h.ctx, alice.ID, d.ID, false, &entities.AddEvidenceInput{})
	assert.ErrorIs(t, err, domainerrors.ErrInvalidInput)
}
