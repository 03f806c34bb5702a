// Package donation drives one donor's contribution from funding through the
// on-chain transfer to ledger confirmation.
package donation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/wallet"
)

type Step string

const (
	StepFund     Step = "fund"
	StepTransfer Step = "transfer"
	StepComplete Step = "complete"
)

// placeholder written by unconfigured deployments in place of an address
const unsetAddress = "undefined"

// Ledger is the part of the ledger API the orchestrator writes through.
type Ledger interface {
	CreateDonation(ctx context.Context, req models.CreateDonationRequest) (*models.Donation, error)
	GetDonation(ctx context.Context, id string) (*models.Donation, error)
	CompleteDonation(ctx context.Context, donationID, txHash string) (*models.Donation, error)
}

// Token describes the ERC-20 being donated.
type Token struct {
	Address  string
	Symbol   string
	Decimals int32
	ChainID  int64
}

// Intent is what the donor committed to in the transfer step.
type Intent struct {
	OrganizationID string
	Amount         string
	Destination    string
	DonorName      string
	DonorEmail     string
	Message        string
	AmountUSD      string
}

// StatusFunc receives display-only progress messages.
type StatusFunc func(status string)

type Snapshot struct {
	AttemptID  string `json:"attempt_id"`
	Step       Step   `json:"step"`
	Processing bool   `json:"processing"`
	Status     string `json:"status"`
	ErrorKind  Kind   `json:"error_kind,omitempty"`
	DonationID string `json:"donation_id,omitempty"`
	TxHash     string `json:"transaction_hash,omitempty"`
	Gasless    bool   `json:"gasless"`
	FundingURL string `json:"funding_url,omitempty"`
}

// Orchestrator holds the ephemeral state of a single donation attempt. At
// most one action runs at a time; a concurrent call fails with ErrBusy.
type Orchestrator struct {
	provider  wallet.Provider
	ledger    Ledger
	token     Token
	onStatus  StatusFunc
	log       *logrus.Entry
	attemptID string

	mu         sync.Mutex
	step       Step
	processing bool
	status     string
	errKind    Kind
	pending    *models.Donation
	pendingKey string
	txHash     string
	gasless    bool
	confirmed  *models.Donation
	fundingURL string
}

func New(provider wallet.Provider, ledger Ledger, token Token, onStatus StatusFunc, log *logrus.Logger) *Orchestrator {
	attemptID := uuid.NewString()
	return &Orchestrator{
		provider:  provider,
		ledger:    ledger,
		token:     token,
		onStatus:  onStatus,
		log:       log.WithField("attempt_id", attemptID),
		attemptID: attemptID,
		step:      StepFund,
	}
}

// RequestFunding opens the on-ramp for the donor's wallet and advances to the
// transfer step without waiting for the purchase to settle. An
// unauthenticated donor is sent through login and must call again.
func (o *Orchestrator) RequestFunding(ctx context.Context, fiatAmount string) (*wallet.FundingSession, error) {
	const op = "request_funding"
	if err := o.begin(op, StepFund, StepTransfer); err != nil {
		return nil, err
	}
	defer o.end()

	if !o.provider.Authenticated(ctx) {
		o.setStatus("Connecting wallet...")
		var loginErr error
		if err := o.provider.Login(ctx); err != nil {
			o.log.WithError(err).Warn("login did not complete")
			loginErr = err
		}
		return nil, o.fail(&Error{
			Kind:    KindAuthPending,
			Op:      op,
			Message: "Connecting wallet... Try again once you are signed in.",
			Err:     loginErr,
		})
	}

	acct, err := o.resolve(ctx)
	if err != nil || acct == nil {
		return nil, o.fail(&Error{
			Kind:    KindWalletNotReady,
			Op:      op,
			Message: "Please wait while we set up your wallet...",
			Err:     err,
		})
	}

	o.setStatus("Opening MoonPay payment window...")
	session, err := o.provider.Fund(ctx, wallet.FundingRequest{
		Address: acct.Address(),
		Amount:  fiatAmount,
		ChainID: o.token.ChainID,
	})
	if err != nil {
		return nil, o.fail(&Error{Kind: KindFundingFailed, Op: op, Message: "Error: " + err.Error(), Err: err})
	}

	o.mu.Lock()
	o.step = StepTransfer
	o.errKind = ""
	o.fundingURL = session.URL
	o.mu.Unlock()
	o.log.WithField("address", acct.Address()).Info("funding window opened")
	o.setStatus("Complete your purchase in the MoonPay window. Once complete, we'll transfer your donation!")
	return session, nil
}

// MarkFunded skips the on-ramp for donors who already hold enough tokens.
func (o *Orchestrator) MarkFunded() error {
	if err := o.begin("mark_funded", StepFund, StepTransfer); err != nil {
		return err
	}
	defer o.end()

	o.mu.Lock()
	o.step = StepTransfer
	o.mu.Unlock()
	return nil
}

// SubmitTransfer records a pending donation and sends the token transfer from
// the donor's wallet. On failure the attempt stays in the transfer step.
func (o *Orchestrator) SubmitTransfer(ctx context.Context, intent Intent) (string, error) {
	const op = "submit_transfer"
	if err := o.begin(op, StepTransfer); err != nil {
		return "", err
	}
	defer o.end()

	amount, err := chain.ParsePositiveAmount(intent.Amount, o.token.Decimals)
	if err != nil {
		return "", o.fail(&Error{Kind: KindInvalidAmount, Op: op, Message: "Invalid donation amount", Err: err})
	}
	if intent.AmountUSD != "" {
		if _, err := chain.ParseAmount(intent.AmountUSD); err != nil {
			return "", o.fail(&Error{Kind: KindInvalidAmount, Op: op, Message: "Invalid USD amount", Err: err})
		}
	}

	destination := strings.TrimSpace(intent.Destination)
	if destination == "" || destination == unsetAddress || !chain.IsAddress(destination) {
		return "", o.fail(&Error{
			Kind:    KindMisconfiguredDestination,
			Op:      op,
			Message: "Platform wallet address is not configured",
		})
	}

	acct, err := o.resolve(ctx)
	if err != nil || acct == nil {
		return "", o.fail(&Error{
			Kind:    KindWalletNotFound,
			Op:      op,
			Message: "Wallet not found. Please ensure you are logged in.",
			Err:     err,
		})
	}

	o.setStatus("Preparing your donation transfer...")
	pending, err := o.ensurePending(ctx, intent, amount.String(), acct.Address())
	if err != nil {
		return "", o.fail(&Error{Kind: KindLedger, Op: op, Message: err.Error(), Err: err})
	}

	minor, err := chain.ToMinorUnits(amount.String(), o.token.Decimals)
	if err != nil {
		return "", o.fail(&Error{Kind: KindInvalidAmount, Op: op, Message: "Invalid donation amount", Err: err})
	}
	data, err := chain.EncodeTransfer(destination, minor)
	if err != nil {
		return "", o.fail(&Error{Kind: KindMisconfiguredDestination, Op: op, Message: "Platform wallet address is not configured", Err: err})
	}

	gasless := wallet.Sponsored(acct)
	o.mu.Lock()
	o.gasless = gasless
	o.mu.Unlock()
	mode := "(Small gas fee required)"
	if gasless {
		mode = "(Gas-free!)"
	}
	o.setStatus(fmt.Sprintf("Transferring %s %s... %s", amount.String(), o.token.Symbol, mode))

	o.log.WithFields(logrus.Fields{
		"donation_id": pending.ID.Hex(),
		"from":        acct.Address(),
		"to":          destination,
		"amount":      amount.String(),
		"connector":   acct.ConnectorType(),
	}).Info("submitting donation transfer")

	hash, err := acct.SendTransaction(ctx, wallet.Transaction{
		From:    acct.Address(),
		To:      o.token.Address,
		Data:    data,
		ChainID: o.token.ChainID,
	})
	if err != nil {
		o.log.WithError(err).Warn("transfer failed")
		return "", o.fail(classifyTransferError(op, err))
	}

	o.mu.Lock()
	o.step = StepComplete
	o.txHash = hash
	o.errKind = ""
	o.mu.Unlock()
	o.log.WithField("tx_hash", hash).Info("transfer submitted")
	o.setStatus("Donation sent! Confirming with the ledger...")
	return hash, nil
}

// Confirm asks the ledger to complete the pending donation with the submitted
// transaction hash. Once the ledger accepts, further calls return the cached
// record without contacting it again.
func (o *Orchestrator) Confirm(ctx context.Context, txHash string) (*models.Donation, error) {
	const op = "confirm"
	if err := o.begin(op, StepComplete); err != nil {
		return nil, err
	}
	defer o.end()

	o.mu.Lock()
	submitted, pending, confirmed := o.txHash, o.pending, o.confirmed
	o.mu.Unlock()

	if txHash == "" {
		txHash = submitted
	}
	if !strings.EqualFold(txHash, submitted) {
		return nil, o.fail(&Error{
			Kind:    KindHashMismatch,
			Op:      op,
			Message: "Transaction hash does not match the submitted transfer",
		})
	}
	if confirmed != nil {
		return confirmed, nil
	}

	d, err := o.ledger.CompleteDonation(ctx, pending.ID.Hex(), txHash)
	if err != nil {
		o.log.WithError(err).Warn("ledger completion failed")
		return nil, o.fail(&Error{Kind: KindLedger, Op: op, Message: err.Error(), Err: err})
	}

	o.mu.Lock()
	o.confirmed = d
	o.errKind = ""
	o.mu.Unlock()
	o.log.WithField("donation_id", d.ID.Hex()).Info("donation confirmed")
	o.setStatus("Donation complete! Thank you for your generosity! 🎉")
	return d, nil
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Snapshot{
		AttemptID:  o.attemptID,
		Step:       o.step,
		Processing: o.processing,
		Status:     o.status,
		ErrorKind:  o.errKind,
		TxHash:     o.txHash,
		Gasless:    o.gasless,
		FundingURL: o.fundingURL,
	}
	if o.pending != nil {
		s.DonationID = o.pending.ID.Hex()
	}
	return s
}

// begin claims the attempt for one action.
func (o *Orchestrator) begin(op string, allowed ...Step) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.processing {
		return &Error{Kind: KindBusy, Op: op, Message: "Another action is still in progress"}
	}
	for _, s := range allowed {
		if o.step == s {
			o.processing = true
			return nil
		}
	}
	return &Error{Kind: KindInvalidStep, Op: op, Message: fmt.Sprintf("Cannot %s during the %s step", strings.ReplaceAll(op, "_", " "), o.step)}
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.processing = false
	o.mu.Unlock()
}

func (o *Orchestrator) fail(err *Error) error {
	o.mu.Lock()
	o.errKind = err.Kind
	o.mu.Unlock()
	o.setStatus(err.Message)
	return err
}

func (o *Orchestrator) setStatus(status string) {
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
	if o.onStatus != nil {
		o.onStatus(status)
	}
}

func (o *Orchestrator) resolve(ctx context.Context) (wallet.Account, error) {
	if !o.provider.Authenticated(ctx) {
		return nil, wallet.ErrNotAuthenticated
	}
	accounts, err := o.provider.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	return wallet.Resolve(accounts), nil
}

// ensurePending creates the ledger record for this attempt, reusing it on
// retries of the same intent while the ledger still holds it as pending.
func (o *Orchestrator) ensurePending(ctx context.Context, intent Intent, amount, donor string) (*models.Donation, error) {
	key := strings.Join([]string{intent.OrganizationID, amount, strings.ToLower(donor)}, "|")
	o.mu.Lock()
	pending, pendingKey := o.pending, o.pendingKey
	o.mu.Unlock()
	if pending != nil && pendingKey == key {
		current, err := o.ledger.GetDonation(ctx, pending.ID.Hex())
		if err != nil {
			return nil, err
		}
		if current.Status == models.DonationPending {
			return current, nil
		}
		o.log.WithFields(logrus.Fields{
			"previous_donation_id": pending.ID.Hex(),
			"status":               current.Status,
		}).Info("pending donation no longer open, creating a new one")
	}

	req := models.CreateDonationRequest{
		OrganizationID: intent.OrganizationID,
		DonorName:      intent.DonorName,
		DonorEmail:     intent.DonorEmail,
		DonorWallet:    donor,
		Amount:         json.Number(amount),
		Message:        intent.Message,
	}
	if intent.AmountUSD != "" {
		req.AmountUSD = json.Number(intent.AmountUSD)
	}
	d, err := o.ledger.CreateDonation(ctx, req)
	if err != nil {
		return nil, err
	}
	if pending != nil && pendingKey != key {
		o.log.WithField("previous_donation_id", pending.ID.Hex()).Info("intent changed, replacing pending donation")
	}
	o.mu.Lock()
	o.pending = d
	o.pendingKey = key
	o.mu.Unlock()
	return d, nil
}
