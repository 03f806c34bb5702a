package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
)

// Withdrawer hands a cash-out to the off-ramp provider.
type Withdrawer interface {
	CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResponse, error)
}

type WithdrawalAmount struct {
	Cents int64 `json:"cents"`
}

type WithdrawalRequest struct {
	Reference   string           `json:"reference"`
	MerchantID  string           `json:"merchantId"`
	Blockchain  string           `json:"blockchain"`
	Amount      WithdrawalAmount `json:"amount"`
	Destination string           `json:"destination"`
	Speed       string           `json:"speed"`
}

type WithdrawalResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CoinflowClient calls Coinflow's withdrawal API.
type CoinflowClient struct {
	baseURL    string
	apiKey     string
	merchantID string
	blockchain string
	client     *http.Client
	log        *logrus.Entry
	backoff    time.Duration
}

var _ Withdrawer = (*CoinflowClient)(nil)

func NewCoinflowClient(cfg config.CoinflowConfig, log *logrus.Logger) *CoinflowClient {
	return &CoinflowClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		merchantID: cfg.MerchantID,
		blockchain: cfg.Blockchain,
		client:     &http.Client{Timeout: cfg.Timeout},
		log:        log.WithField("component", "coinflow"),
		backoff:    time.Second,
	}
}

// CreateWithdrawal submits the withdrawal, retrying transport failures and
// 5xx responses up to three times.
func (c *CoinflowClient) CreateWithdrawal(ctx context.Context, req WithdrawalRequest) (*WithdrawalResponse, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("coinflow api key not configured")
	}
	req.MerchantID = c.merchantID
	req.Blockchain = c.blockchain
	if req.Speed == "" {
		req.Speed = "standard"
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal withdrawal request: %w", err)
	}
	c.log.WithField("body", string(maskSensitiveFields(body))).Debug("coinflow withdrawal request")

	const attempts = 3
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		out, retry, err := c.post(ctx, "/api/merchant/withdraws/payout", body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		c.log.WithError(err).WithField("attempt", attempt).Warn("coinflow withdrawal failed")
		if !retry || attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return nil, fmt.Errorf("withdrawal failed: %w", lastErr)
}

func (c *CoinflowClient) post(ctx context.Context, path string, body []byte) (*WithdrawalResponse, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("x-coinflow-auth-blockchain", c.blockchain)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode >= 500, fmt.Errorf("coinflow error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out WithdrawalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, false, fmt.Errorf("failed to decode withdrawal response: %w", err)
	}
	if out.ID == "" {
		return nil, false, fmt.Errorf("withdrawal response missing id")
	}
	return &out, false, nil
}

func maskSensitiveFields(body []byte) []byte {
	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		return body
	}
	if dest, ok := req["destination"].(string); ok && len(dest) > 4 {
		req["destination"] = "****" + dest[len(dest)-4:]
	}
	masked, _ := json.Marshal(req)
	return masked
}
