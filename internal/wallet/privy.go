package wallet

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
)

const privyIssuer = "privy.io"

// Funder produces a provider-hosted on-ramp URL.
type Funder interface {
	FundingURL(req FundingRequest) (string, error)
}

// LoginPrompt runs an interactive login and returns a fresh access token.
type LoginPrompt func(ctx context.Context) (string, error)

// Privy adapts Privy embedded and smart wallets.
type Privy struct {
	appID     string
	appSecret string
	apiURL    string
	chainID   int64
	key       *ecdsa.PublicKey
	session   *Session
	funder    Funder
	prompt    LoginPrompt
	client    *http.Client
	log       *logrus.Entry
	now       func() time.Time
}

var _ Provider = (*Privy)(nil)

func NewPrivy(cfg config.PrivyConfig, chainID int64, session *Session, funder Funder, prompt LoginPrompt, log *logrus.Logger) (*Privy, error) {
	var key *ecdsa.PublicKey
	if cfg.VerificationKey != "" {
		k, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.VerificationKey))
		if err != nil {
			return nil, fmt.Errorf("invalid privy verification key: %w", err)
		}
		key = k
	}
	p := &Privy{
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		apiURL:    strings.TrimRight(cfg.APIURL, "/"),
		chainID:   chainID,
		key:       key,
		session:   session,
		funder:    funder,
		prompt:    prompt,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.WithField("component", "privy"),
		now:       time.Now,
	}
	if cfg.AccessToken != "" {
		if err := p.Authenticate(cfg.AccessToken); err != nil {
			p.log.WithError(err).Warn("configured access token rejected")
		}
	}
	return p, nil
}

// Authenticate verifies a Privy access token and starts the session.
func (p *Privy) Authenticate(accessToken string) error {
	if p.key == nil {
		return fmt.Errorf("privy verification key not configured")
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(accessToken, claims, func(*jwt.Token) (interface{}, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(privyIssuer),
		jwt.WithAudience(p.appID),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return fmt.Errorf("invalid access token: %w", err)
	}
	if claims.Subject == "" {
		return fmt.Errorf("invalid access token: missing subject")
	}
	p.session.Init(accessToken, claims.Subject, claims.ExpiresAt.Time)
	p.log.WithField("user_id", claims.Subject).Info("wallet session started")
	return nil
}

func (p *Privy) Authenticated(context.Context) bool {
	return p.session.Active(p.now())
}

func (p *Privy) Login(ctx context.Context) error {
	if p.prompt == nil {
		return ErrLoginUnavailable
	}
	token, err := p.prompt(ctx)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return p.Authenticate(token)
}

// Logout ends the session.
func (p *Privy) Logout() {
	p.session.Teardown()
}

type linkedAccount struct {
	Type             string `json:"type"`
	ID               string `json:"id"`
	Address          string `json:"address"`
	ChainType        string `json:"chain_type"`
	WalletClientType string `json:"wallet_client_type"`
}

type privyUser struct {
	ID             string          `json:"id"`
	LinkedAccounts []linkedAccount `json:"linked_accounts"`
}

// Accounts loads the user's embedded and smart wallets. Smart wallets send
// through the embedded signer's wallet id.
func (p *Privy) Accounts(ctx context.Context) ([]Account, error) {
	if !p.Authenticated(ctx) {
		return nil, ErrNotAuthenticated
	}
	var user privyUser
	if err := p.call(ctx, http.MethodGet, "/api/v1/users/"+url.PathEscape(p.session.UserID()), nil, &user); err != nil {
		return nil, fmt.Errorf("failed to load linked accounts: %w", err)
	}

	var signerID string
	var accounts []Account
	for _, la := range user.LinkedAccounts {
		if la.Type == "wallet" && la.WalletClientType == "privy" && la.ChainType == "ethereum" {
			signerID = la.ID
			accounts = append(accounts, &privyAccount{privy: p, address: la.Address, walletID: la.ID, connector: Embedded})
		}
	}
	for _, la := range user.LinkedAccounts {
		if la.Type == "smart_wallet" && signerID != "" {
			accounts = append(accounts, &privyAccount{privy: p, address: la.Address, walletID: signerID, connector: SmartWallet})
		}
	}
	return accounts, nil
}

func (p *Privy) Fund(_ context.Context, req FundingRequest) (*FundingSession, error) {
	if p.funder == nil {
		return nil, ErrNoFunder
	}
	if req.ChainID == 0 {
		req.ChainID = p.chainID
	}
	u, err := p.funder.FundingURL(req)
	if err != nil {
		return nil, err
	}
	return &FundingSession{Provider: "moonpay", URL: u}, nil
}

type rpcRequest struct {
	Method    string      `json:"method"`
	CAIP2     string      `json:"caip2,omitempty"`
	ChainType string      `json:"chain_type"`
	Sponsor   bool        `json:"sponsor,omitempty"`
	Params    interface{} `json:"params"`
}

type rpcTransaction struct {
	From string `json:"from,omitempty"`
	To   string `json:"to"`
	Data string `json:"data"`
}

type rpcResponse struct {
	Method string `json:"method"`
	Data   struct {
		Hash      string `json:"hash"`
		Signature string `json:"signature"`
	} `json:"data"`
}

func (p *Privy) rpc(ctx context.Context, walletID string, req rpcRequest) (*rpcResponse, error) {
	var out rpcResponse
	if err := p.call(ctx, http.MethodPost, "/v1/wallets/"+url.PathEscape(walletID)+"/rpc", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// call sends an app-authenticated request. Provider error messages are
// returned unchanged so callers can classify them.
func (p *Privy) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.apiURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(p.appID, p.appSecret)
	req.Header.Set("privy-app-id", p.appID)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &e)
		msg := e.Error
		if msg == "" {
			msg = e.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("privy error: status %d", resp.StatusCode)
		}
		return errors.New(msg)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type privyAccount struct {
	privy     *Privy
	address   string
	walletID  string
	connector ConnectorType
}

func (a *privyAccount) Address() string { return a.address }

func (a *privyAccount) ConnectorType() ConnectorType { return a.connector }

func (a *privyAccount) SendTransaction(ctx context.Context, tx Transaction) (string, error) {
	chainID := tx.ChainID
	if chainID == 0 {
		chainID = a.privy.chainID
	}
	from := tx.From
	if from == "" {
		from = a.address
	}
	resp, err := a.privy.rpc(ctx, a.walletID, rpcRequest{
		Method:    "eth_sendTransaction",
		CAIP2:     chain.CAIP2(chainID),
		ChainType: "ethereum",
		Sponsor:   a.connector == SmartWallet,
		Params: map[string]interface{}{
			"transaction": rpcTransaction{
				From: from,
				To:   tx.To,
				Data: "0x" + hex.EncodeToString(tx.Data),
			},
		},
	})
	if err != nil {
		return "", err
	}
	if !chain.IsTxHash(resp.Data.Hash) {
		return "", fmt.Errorf("provider returned malformed transaction hash %q", resp.Data.Hash)
	}
	return resp.Data.Hash, nil
}

func (a *privyAccount) SignMessage(ctx context.Context, message string) (string, error) {
	resp, err := a.privy.rpc(ctx, a.walletID, rpcRequest{
		Method:    "personal_sign",
		ChainType: "ethereum",
		Params:    map[string]string{"message": message, "encoding": "utf-8"},
	})
	if err != nil {
		return "", err
	}
	return resp.Data.Signature, nil
}
