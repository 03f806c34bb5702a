// Package wallet adapts hosted wallet providers to the capabilities the
// donation flow needs: an address, transaction sending, message signing and
// an on-ramp.
package wallet

import (
	"context"
	"errors"
)

type ConnectorType string

const (
	Embedded    ConnectorType = "embedded"
	SmartWallet ConnectorType = "smart_wallet"
)

var (
	ErrNotAuthenticated = errors.New("wallet session is not authenticated")
	ErrLoginUnavailable = errors.New("no login flow configured")
	ErrNoFunder         = errors.New("no funding provider configured")
)

// Transaction is an unsigned call submitted through a hosted wallet.
type Transaction struct {
	From    string
	To      string
	Data    []byte
	ChainID int64
}

// Account is one connected wallet. Keys never leave the provider.
type Account interface {
	Address() string
	ConnectorType() ConnectorType
	SendTransaction(ctx context.Context, tx Transaction) (string, error)
	SignMessage(ctx context.Context, message string) (string, error)
}

type FundingRequest struct {
	Address string
	// Amount is an optional fiat amount to prefill.
	Amount  string
	ChainID int64
}

// FundingSession points the donor at the provider-hosted on-ramp.
type FundingSession struct {
	Provider string
	URL      string
}

type Provider interface {
	Authenticated(ctx context.Context) bool
	// Login starts the provider's authentication flow.
	Login(ctx context.Context) error
	Accounts(ctx context.Context) ([]Account, error)
	Fund(ctx context.Context, req FundingRequest) (*FundingSession, error)
}

// Resolve picks the account to donate from: a smart wallet when present,
// otherwise an embedded wallet. It returns nil when neither exists.
func Resolve(accounts []Account) Account {
	var embedded Account
	for _, a := range accounts {
		if a == nil || a.Address() == "" {
			continue
		}
		switch a.ConnectorType() {
		case SmartWallet:
			return a
		case Embedded:
			if embedded == nil {
				embedded = a
			}
		}
	}
	return embedded
}

// Sponsored reports whether transactions from a are gas-sponsored.
func Sponsored(a Account) bool {
	return a != nil && a.ConnectorType() == SmartWallet
}
