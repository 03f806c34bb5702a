package donation

import (
	"errors"
	"strings"
)

// Kind classifies orchestration failures for the presentation layer.
type Kind string

const (
	KindAuthPending              Kind = "auth_pending"
	KindWalletNotReady           Kind = "wallet_not_ready"
	KindWalletNotFound           Kind = "wallet_not_found"
	KindMisconfiguredDestination Kind = "misconfigured_destination"
	KindInvalidAmount            Kind = "invalid_amount"
	KindInsufficientFunds        Kind = "insufficient_funds"
	KindUserCancelled            Kind = "user_cancelled"
	KindTransferFailed           Kind = "transfer_failed"
	KindFundingFailed            Kind = "funding_failed"
	KindLedger                   Kind = "ledger"
	KindBusy                     Kind = "busy"
	KindInvalidStep              Kind = "invalid_step"
	KindHashMismatch             Kind = "hash_mismatch"
)

// Error is returned by every orchestrator operation. Message is safe to show
// to the donor.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by kind, so errors.Is(err, ErrBusy) holds for any
// busy error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrAuthPending              = &Error{Kind: KindAuthPending}
	ErrWalletNotReady           = &Error{Kind: KindWalletNotReady}
	ErrWalletNotFound           = &Error{Kind: KindWalletNotFound}
	ErrMisconfiguredDestination = &Error{Kind: KindMisconfiguredDestination}
	ErrInvalidAmount            = &Error{Kind: KindInvalidAmount}
	ErrInsufficientFunds        = &Error{Kind: KindInsufficientFunds}
	ErrUserCancelled            = &Error{Kind: KindUserCancelled}
	ErrTransferFailed           = &Error{Kind: KindTransferFailed}
	ErrFundingFailed            = &Error{Kind: KindFundingFailed}
	ErrLedger                   = &Error{Kind: KindLedger}
	ErrBusy                     = &Error{Kind: KindBusy}
	ErrInvalidStep              = &Error{Kind: KindInvalidStep}
	ErrHashMismatch             = &Error{Kind: KindHashMismatch}
)

// KindOf returns the kind of an orchestrator error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Retryable reports whether the donor can retry the same action without
// re-authenticating or fixing configuration.
func Retryable(kind Kind) bool {
	switch kind {
	case KindWalletNotFound, KindMisconfiguredDestination:
		return false
	}
	return true
}

func classifyTransferError(op string, err error) *Error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient funds"):
		return &Error{Kind: KindInsufficientFunds, Op: op, Message: "Insufficient funds. Please fund your wallet first.", Err: err}
	case strings.Contains(msg, "user rejected"):
		return &Error{Kind: KindUserCancelled, Op: op, Message: "Transaction cancelled by user.", Err: err}
	default:
		return &Error{Kind: KindTransferFailed, Op: op, Message: "Error: " + err.Error(), Err: err}
	}
}
