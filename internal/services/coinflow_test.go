package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
)

func newTestCoinflow(url string) *CoinflowClient {
	c := NewCoinflowClient(config.CoinflowConfig{
		BaseURL:    url,
		APIKey:     "cf-key",
		MerchantID: "merchant-1",
		Blockchain: "base",
		Timeout:    5 * time.Second,
	}, logger.Discard())
	c.backoff = time.Millisecond
	return c
}

func TestCoinflowClient_CreateWithdrawal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "cf-key", r.Header.Get("Authorization"))
		assert.Equal(t, "base", r.Header.Get("x-coinflow-auth-blockchain"))

		var req WithdrawalRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "merchant-1", req.MerchantID)
		assert.Equal(t, int64(1234), req.Amount.Cents)
		assert.Equal(t, "standard", req.Speed)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(WithdrawalResponse{ID: "wd_1", Status: "pending"})
	}))
	defer server.Close()

	resp, err := newTestCoinflow(server.URL).CreateWithdrawal(context.Background(), WithdrawalRequest{
		Reference:   "ref",
		Amount:      WithdrawalAmount{Cents: 1234},
		Destination: "acct-5678",
	})
	require.NoError(t, err)
	assert.Equal(t, "wd_1", resp.ID)
}

func TestCoinflowClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(WithdrawalResponse{ID: "wd_3", Status: "pending"})
	}))
	defer server.Close()

	resp, err := newTestCoinflow(server.URL).CreateWithdrawal(context.Background(), WithdrawalRequest{})
	require.NoError(t, err)
	assert.Equal(t, "wd_3", resp.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCoinflowClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad destination", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := newTestCoinflow(server.URL).CreateWithdrawal(context.Background(), WithdrawalRequest{})
	assert.ErrorContains(t, err, "bad destination")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestMaskSensitiveFields(t *testing.T) {
	masked := maskSensitiveFields([]byte(`{"destination":"acct-123456789"}`))
	assert.JSONEq(t, `{"destination":"****6789"}`, string(masked))
}
