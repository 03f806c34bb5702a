package wallet

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
)

// =============================================================================
// Resolution
// =============================================================================

type staticAccount struct {
	address   string
	connector ConnectorType
}

func (a staticAccount) Address() string { return a.address }

func (a staticAccount) ConnectorType() ConnectorType { return a.connector }

func (a staticAccount) SendTransaction(context.Context, Transaction) (string, error) {
	return "", nil
}

func (a staticAccount) SignMessage(context.Context, string) (string, error) { return "", nil }

func TestResolve(t *testing.T) {
	embedded := staticAccount{address: "0xe", connector: Embedded}
	smart := staticAccount{address: "0x5", connector: SmartWallet}

	assert.Equal(t, smart, Resolve([]Account{embedded, smart}))
	assert.Equal(t, embedded, Resolve([]Account{embedded}))
	assert.Nil(t, Resolve(nil))
	assert.Nil(t, Resolve([]Account{staticAccount{connector: SmartWallet}}))

	assert.True(t, Sponsored(smart))
	assert.False(t, Sponsored(embedded))
	assert.False(t, Sponsored(nil))
}

func TestSession(t *testing.T) {
	s := NewSession()
	now := time.Now()
	assert.False(t, s.Active(now))

	s.Init("token", "did:privy:1", now.Add(time.Minute))
	assert.True(t, s.Active(now))
	assert.False(t, s.Active(now.Add(2*time.Minute)))
	assert.Equal(t, "did:privy:1", s.UserID())

	s.Teardown()
	assert.False(t, s.Active(now))
	assert.Empty(t, s.AccessToken())
}

// =============================================================================
// MoonPay
// =============================================================================

func TestMoonPay_FundingURL(t *testing.T) {
	m := NewMoonPay(config.MoonPayConfig{
		APIKey:       "pk_test",
		SecretKey:    "sk_test",
		BaseURL:      "https://buy.moonpay.com/",
		CurrencyCode: "usdc_base",
	})
	addr := "0x" + strings.Repeat("A", 40)

	raw, err := m.FundingURL(FundingRequest{Address: addr, Amount: "25"})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "buy.moonpay.com", u.Host)

	q := u.Query()
	assert.Equal(t, "pk_test", q.Get("apiKey"))
	assert.Equal(t, "usdc_base", q.Get("currencyCode"))
	assert.Equal(t, strings.ToLower(addr), q.Get("walletAddress"))
	assert.Equal(t, "25", q.Get("baseCurrencyAmount"))

	signed := u.RawQuery[:strings.Index(u.RawQuery, "&signature=")]
	mac := hmac.New(sha256.New, []byte("sk_test"))
	mac.Write([]byte("?" + signed))
	assert.Equal(t, base64.StdEncoding.EncodeToString(mac.Sum(nil)), q.Get("signature"))

	_, err = m.FundingURL(FundingRequest{Address: "nope"})
	assert.Error(t, err)
	_, err = m.FundingURL(FundingRequest{Address: addr, Amount: "-1"})
	assert.Error(t, err)
}

// =============================================================================
// Privy
// =============================================================================

type privyFixture struct {
	key     *ecdsa.PrivateKey
	privy   *Privy
	server  *httptest.Server
	lastRPC map[string]interface{}
	rpcErr  string
}

const testAppID = "app-123"

func newPrivyFixture(t *testing.T, prompt LoginPrompt) *privyFixture {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	f := &privyFixture{key: key}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)

	p, err := NewPrivy(config.PrivyConfig{
		AppID:           testAppID,
		AppSecret:       "secret",
		VerificationKey: string(pemKey),
		APIURL:          f.server.URL,
	}, 8453, NewSession(), NewMoonPay(config.MoonPayConfig{
		APIKey: "pk", BaseURL: "https://buy.moonpay.com", CurrencyCode: "usdc_base",
	}), prompt, logger.Discard())
	require.NoError(t, err)
	f.privy = p
	return f
}

func (f *privyFixture) serve(w http.ResponseWriter, r *http.Request) {
	user, pass, ok := r.BasicAuth()
	if !ok || user != testAppID || pass != "secret" || r.Header.Get("privy-app-id") != testAppID {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/v1/users/did:privy:donor":
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "did:privy:donor",
			"linked_accounts": []map[string]string{
				{"type": "email", "address": "donor@example.org"},
				{"type": "wallet", "id": "wallet-1", "address": "0x" + strings.Repeat("e", 40), "chain_type": "ethereum", "wallet_client_type": "privy"},
				{"type": "smart_wallet", "address": "0x" + strings.Repeat("5", 40)},
			},
		})
	case r.URL.Path == "/v1/wallets/wallet-1/rpc":
		f.lastRPC = map[string]interface{}{}
		json.NewDecoder(r.Body).Decode(&f.lastRPC)
		if f.rpcErr != "" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": f.rpcErr})
			return
		}
		if f.lastRPC["method"] == "personal_sign" {
			json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]string{"signature": "0xsig"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]string{"hash": "0x" + strings.Repeat("9", 64)}})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *privyFixture) token(t *testing.T, audience string, exp time.Time) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.RegisteredClaims{
		Issuer:    privyIssuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   "did:privy:donor",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString(f.key)
	require.NoError(t, err)
	return signed
}

func TestPrivy_Authenticate(t *testing.T) {
	f := newPrivyFixture(t, nil)
	ctx := context.Background()
	assert.False(t, f.privy.Authenticated(ctx))

	assert.Error(t, f.privy.Authenticate(f.token(t, "other-app", time.Now().Add(time.Hour))))
	assert.Error(t, f.privy.Authenticate(f.token(t, testAppID, time.Now().Add(-time.Hour))))
	assert.Error(t, f.privy.Authenticate("garbage"))
	assert.False(t, f.privy.Authenticated(ctx))

	require.NoError(t, f.privy.Authenticate(f.token(t, testAppID, time.Now().Add(time.Hour))))
	assert.True(t, f.privy.Authenticated(ctx))

	f.privy.Logout()
	assert.False(t, f.privy.Authenticated(ctx))
}

func TestPrivy_LoginUsesPrompt(t *testing.T) {
	var f *privyFixture
	f = newPrivyFixture(t, func(context.Context) (string, error) {
		return f.token(t, testAppID, time.Now().Add(time.Hour)), nil
	})
	require.NoError(t, f.privy.Login(context.Background()))
	assert.True(t, f.privy.Authenticated(context.Background()))

	noPrompt := newPrivyFixture(t, nil)
	assert.ErrorIs(t, noPrompt.privy.Login(context.Background()), ErrLoginUnavailable)
}

func TestPrivy_AccountsAndSend(t *testing.T) {
	f := newPrivyFixture(t, nil)
	ctx := context.Background()

	_, err := f.privy.Accounts(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, f.privy.Authenticate(f.token(t, testAppID, time.Now().Add(time.Hour))))
	accounts, err := f.privy.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)

	acct := Resolve(accounts)
	require.NotNil(t, acct)
	assert.Equal(t, SmartWallet, acct.ConnectorType())
	assert.Equal(t, "0x"+strings.Repeat("5", 40), acct.Address())

	hash, err := acct.SendTransaction(ctx, Transaction{To: "0xtoken", Data: []byte{0xa9, 0x05, 0x9c, 0xbb}})
	require.NoError(t, err)
	assert.Equal(t, "0x"+strings.Repeat("9", 64), hash)
	assert.Equal(t, "eth_sendTransaction", f.lastRPC["method"])
	assert.Equal(t, "eip155:8453", f.lastRPC["caip2"])
	assert.Equal(t, true, f.lastRPC["sponsor"])
	tx := f.lastRPC["params"].(map[string]interface{})["transaction"].(map[string]interface{})
	assert.Equal(t, "0xa9059cbb", tx["data"])

	sig, err := acct.SignMessage(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, "0xsig", sig)

	f.rpcErr = "insufficient funds for transfer"
	_, err = accounts[0].SendTransaction(ctx, Transaction{To: "0xtoken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient funds")
	_, sponsored := f.lastRPC["sponsor"]
	assert.False(t, sponsored)
}

func TestPrivy_Fund(t *testing.T) {
	f := newPrivyFixture(t, nil)
	session, err := f.privy.Fund(context.Background(), FundingRequest{Address: "0x" + strings.Repeat("5", 40)})
	require.NoError(t, err)
	assert.Equal(t, "moonpay", session.Provider)
	assert.Contains(t, session.URL, "walletAddress=0x5555")
}
