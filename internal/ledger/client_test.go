package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/events"
	"github.com/markjakearzadon/globalfund-gobackend/internal/handlers"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

func newLedgerServer(t *testing.T) *Client {
	t.Helper()
	st := store.NewMemoryStore()
	log := logger.Discard()
	orgs := services.NewOrganizationService(st, st, log)
	router := handlers.NewRouter(handlers.Services{
		Organizations: orgs,
		Donations:     services.NewDonationService(st, orgs, events.Nop{}, log),
		Stats:         services.NewStatsService(st, log),
		Users:         services.NewUserService(st, "secret", time.Hour, log),
		Payouts:       services.NewPayoutService(st, nil, events.Nop{}, "", log),
	}, nil, log)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", 5*time.Second, log)
}

func TestClient_DonationRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newLedgerServer(t)

	org, err := c.CreateOrganization(ctx, &models.Organization{
		Name:          "Global Water Initiative",
		Category:      models.CategoryWater,
		Goal:          "50000",
		WalletAddress: "0x" + strings.Repeat("b", 40),
	})
	require.NoError(t, err)

	featured := true
	org.Featured = featured
	updated, err := c.UpdateOrganization(ctx, org.ID.Hex(), org)
	require.NoError(t, err)
	assert.True(t, updated.Featured)

	list, err := c.ListOrganizations(ctx, OrganizationQuery{Featured: &featured, Search: "water"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Count)

	d, err := c.CreateDonation(ctx, models.CreateDonationRequest{
		OrganizationID: org.ID.Hex(),
		DonorWallet:    "0x" + strings.Repeat("a", 40),
		Amount:         json.Number("0.01"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DonationPending, d.Status)

	hash := "0x" + strings.Repeat("1", 64)
	done, err := c.CompleteDonation(ctx, d.ID.Hex(), hash)
	require.NoError(t, err)
	assert.Equal(t, models.DonationCompleted, done.Status)

	again, err := c.CompleteDonation(ctx, d.ID.Hex(), hash)
	require.NoError(t, err)
	assert.Equal(t, done.CompletedAt.Unix(), again.CompletedAt.Unix())

	donations, err := c.ListDonations(ctx, DonationQuery{OrganizationID: org.ID.Hex(), Status: models.DonationCompleted})
	require.NoError(t, err)
	assert.Equal(t, int64(1), donations.Count)

	got, err := c.GetOrganization(ctx, org.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "0.01", got.Raised)
	assert.Equal(t, 1, got.Donors)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.01", stats.TotalAmount.String())

	health, err := c.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
}

func TestClient_Validation(t *testing.T) {
	ctx := context.Background()
	c := newLedgerServer(t)

	w, err := c.ValidateWallet(ctx, "0x"+strings.Repeat("A", 40))
	require.NoError(t, err)
	assert.True(t, w.Valid)
	assert.Equal(t, "0x"+strings.Repeat("a", 40), w.Formatted)

	tx, err := c.ValidateTransaction(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, tx.Valid)
}

func TestClient_APIErrors(t *testing.T) {
	ctx := context.Background()
	c := newLedgerServer(t)

	_, err := c.GetDonation(ctx, "0123456789abcdef01234567")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))

	_, err = c.CompleteDonation(ctx, "", "")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "donation_id and transaction_hash are required", apiErr.Error())
}

func TestClient_ErrorFallbackMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second, logger.Discard())
	_, err := c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, "API Error: 502", err.Error())
}

func TestClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second, logger.Discard())
	_, err := c.Stats(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
	assert.Contains(t, err.Error(), "ledger request failed")
}
