package services

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")

	ErrOrganizationNotFound = errors.New("organization not found")
	ErrDuplicateWallet      = errors.New("organization with this wallet address already exists")

	ErrDonationNotFound         = errors.New("donation not found")
	ErrInvalidTransactionHash   = errors.New("invalid transaction hash")
	ErrDonationAlreadyCompleted = errors.New("donation already completed with a different transaction hash")
	ErrDonationFailed           = errors.New("donation has failed and cannot be completed")
	ErrTransactionInUse         = errors.New("transaction hash already recorded for another donation")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidToken       = errors.New("invalid token")
	ErrForbidden          = errors.New("forbidden")

	ErrPayoutNotFound      = errors.New("payout not found")
	ErrInsufficientBalance = errors.New("payout exceeds available balance")
	ErrPayoutFinal         = errors.New("payout already completed or failed")
)
