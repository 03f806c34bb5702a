package wallet

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
)

// MoonPay builds signed buy-widget URLs.
type MoonPay struct {
	apiKey       string
	secretKey    string
	baseURL      string
	currencyCode string
}

func NewMoonPay(cfg config.MoonPayConfig) *MoonPay {
	return &MoonPay{
		apiKey:       cfg.APIKey,
		secretKey:    cfg.SecretKey,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		currencyCode: cfg.CurrencyCode,
	}
}

// FundingURL returns the widget URL that buys the token into req.Address.
func (m *MoonPay) FundingURL(req FundingRequest) (string, error) {
	if m.apiKey == "" {
		return "", fmt.Errorf("moonpay api key not configured")
	}
	address, err := chain.FormatAddress(req.Address)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("apiKey", m.apiKey)
	params.Set("currencyCode", m.currencyCode)
	params.Set("walletAddress", address)
	if req.Amount != "" {
		if _, err := chain.ParsePositiveAmount(req.Amount, 2); err != nil {
			return "", fmt.Errorf("invalid funding amount %q: %w", req.Amount, err)
		}
		params.Set("baseCurrencyAmount", req.Amount)
	}
	query := params.Encode()

	if m.secretKey == "" {
		return m.baseURL + "?" + query, nil
	}
	return m.baseURL + "?" + query + "&signature=" + url.QueryEscape(m.sign(query)), nil
}

func (m *MoonPay) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(m.secretKey))
	mac.Write([]byte("?" + query))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
