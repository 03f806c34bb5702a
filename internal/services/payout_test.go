package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

type fakeWithdrawer struct {
	requests []WithdrawalRequest
	resp     *WithdrawalResponse
	err      error
}

func (w *fakeWithdrawer) CreateWithdrawal(_ context.Context, req WithdrawalRequest) (*WithdrawalResponse, error) {
	w.requests = append(w.requests, req)
	return w.resp, w.err
}

func fundedOrg(t *testing.T, f *fixture) *models.Organization {
	t.Helper()
	org := f.createOrg(t, "Water", "1")
	d := f.pledge(t, org, "a", "100")
	_, err := f.donations.CompleteDonation(context.Background(), d.ID.Hex(), txHash("a"))
	require.NoError(t, err)
	return org
}

func TestPayoutService_RequestPayout(t *testing.T) {
	f := newFixture(t)
	org := fundedOrg(t, f)
	w := &fakeWithdrawer{resp: &WithdrawalResponse{ID: "wd_1", Status: "PENDING"}}
	payouts := NewPayoutService(f.store, w, f.publisher, "hook-token", logger.Discard())
	ctx := context.Background()

	p, err := payouts.RequestPayout(ctx, org.ID.Hex(), "60.5", "bank-account-1234")
	require.NoError(t, err)
	assert.Equal(t, "wd_1", p.ProviderID)
	assert.Equal(t, models.PayoutPending, p.Status)
	assert.Equal(t, "60.50", p.Amount)
	require.Len(t, w.requests, 1)
	assert.Equal(t, int64(6050), w.requests[0].Amount.Cents)
	assert.Equal(t, p.ReferenceID, w.requests[0].Reference)

	_, err = payouts.RequestPayout(ctx, org.ID.Hex(), "40", "bank-account-1234")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	_, err = payouts.RequestPayout(ctx, org.ID.Hex(), "39.50", "bank-account-1234")
	assert.NoError(t, err)
}

func TestPayoutService_ProviderFailureFreesBalance(t *testing.T) {
	f := newFixture(t)
	org := fundedOrg(t, f)
	w := &fakeWithdrawer{err: errors.New("coinflow down")}
	payouts := NewPayoutService(f.store, w, f.publisher, "hook-token", logger.Discard())
	ctx := context.Background()

	_, err := payouts.RequestPayout(ctx, org.ID.Hex(), "100", "bank")
	require.Error(t, err)

	list, err := payouts.ListPayouts(ctx, org.ID.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PayoutFailed, list[0].Status)

	w.err = nil
	w.resp = &WithdrawalResponse{ID: "wd_2", Status: "processing"}
	_, err = payouts.RequestPayout(ctx, org.ID.Hex(), "100", "bank")
	assert.NoError(t, err)
}

func TestPayoutService_Webhook(t *testing.T) {
	f := newFixture(t)
	org := fundedOrg(t, f)
	w := &fakeWithdrawer{resp: &WithdrawalResponse{ID: "wd_1", Status: "pending"}}
	payouts := NewPayoutService(f.store, w, f.publisher, "hook-token", logger.Discard())
	ctx := context.Background()

	_, err := payouts.RequestPayout(ctx, org.ID.Hex(), "10", "bank")
	require.NoError(t, err)

	payload := WebhookPayload{Event: "withdraw.updated"}
	payload.Data.ID = "wd_1"
	payload.Data.Status = "COMPLETED"

	assert.ErrorIs(t, payouts.HandleWebhook(ctx, "wrong", payload), ErrInvalidToken)
	require.NoError(t, payouts.HandleWebhook(ctx, "hook-token", payload))

	list, err := payouts.ListPayouts(ctx, org.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PayoutCompleted, list[0].Status)
	assert.Contains(t, f.publisher.types(), "payout.completed")

	ignored := WebhookPayload{Event: "invoice.paid"}
	assert.NoError(t, payouts.HandleWebhook(ctx, "hook-token", ignored))

	unknown := WebhookPayload{Event: "withdraw.updated"}
	unknown.Data.ID = "wd_404"
	assert.ErrorIs(t, payouts.HandleWebhook(ctx, "hook-token", unknown), ErrPayoutNotFound)
}

func TestPayoutService_WebhookKeepsFinalStatus(t *testing.T) {
	f := newFixture(t)
	org := fundedOrg(t, f)
	w := &fakeWithdrawer{resp: &WithdrawalResponse{ID: "wd_1", Status: "pending"}}
	payouts := NewPayoutService(f.store, w, f.publisher, "hook-token", logger.Discard())
	ctx := context.Background()

	_, err := payouts.RequestPayout(ctx, org.ID.Hex(), "100", "bank")
	require.NoError(t, err)

	hook := func(status string) {
		payload := WebhookPayload{Event: "withdraw.updated"}
		payload.Data.ID = "wd_1"
		payload.Data.Status = status
		require.NoError(t, payouts.HandleWebhook(ctx, "hook-token", payload))
	}
	hook("COMPLETED")
	hook("FAILED")
	hook("IN_TRANSIT")

	list, err := payouts.ListPayouts(ctx, org.ID.Hex())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.PayoutCompleted, list[0].Status)
	assert.NotContains(t, f.publisher.types(), "payout.failed")

	w.resp = &WithdrawalResponse{ID: "wd_2", Status: "pending"}
	_, err = payouts.RequestPayout(ctx, org.ID.Hex(), "100", "bank")
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestPayoutService_FailedPayoutStaysFailed(t *testing.T) {
	f := newFixture(t)
	org := fundedOrg(t, f)
	w := &fakeWithdrawer{resp: &WithdrawalResponse{ID: "wd_1", Status: "processing"}}
	payouts := NewPayoutService(f.store, w, f.publisher, "hook-token", logger.Discard())
	ctx := context.Background()

	p, err := payouts.RequestPayout(ctx, org.ID.Hex(), "100", "bank")
	require.NoError(t, err)

	payload := WebhookPayload{Event: "withdraw.updated"}
	payload.Data.ID = "wd_1"
	payload.Data.Status = "rejected"
	require.NoError(t, payouts.HandleWebhook(ctx, "hook-token", payload))

	_, err = payouts.transition(ctx, p.ID, "", models.PayoutCompleted)
	assert.ErrorIs(t, err, ErrPayoutFinal)

	list, err := payouts.ListPayouts(ctx, org.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.PayoutFailed, list[0].Status)
}
