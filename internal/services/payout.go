package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/events"
	"github.com/markjakearzadon/globalfund-gobackend/internal/metrics"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

// WebhookPayload is the body the off-ramp provider posts on status changes.
type WebhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"data"`
}

type PayoutService struct {
	store        store.Store
	provider     Withdrawer
	publisher    events.Publisher
	webhookToken string
	log          *logrus.Entry
	now          func() time.Time

	// serializes balance checks so concurrent requests cannot overdraw
	mu sync.Mutex
}

func NewPayoutService(st store.Store, provider Withdrawer, publisher events.Publisher, webhookToken string, log *logrus.Logger) *PayoutService {
	return &PayoutService{
		store:        st,
		provider:     provider,
		publisher:    publisher,
		webhookToken: webhookToken,
		log:          log.WithField("service", "payout"),
		now:          time.Now,
	}
}

// RequestPayout cashes out part of an organization's raised funds. The amount
// is in USD and may not exceed raised minus payouts that have not failed.
func (s *PayoutService) RequestPayout(ctx context.Context, orgID, amount, destination string) (*models.Payout, error) {
	objID, err := parseID(orgID, "organization")
	if err != nil {
		return nil, err
	}
	value, err := chain.ParsePositiveAmount(amount, 2)
	if err != nil {
		return nil, fmt.Errorf("%w: amount must be positive with at most 2 decimal places", ErrInvalidInput)
	}
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	available, err := s.available(ctx, objID)
	if err != nil {
		return nil, err
	}
	if value.GreaterThan(available) {
		s.log.WithFields(logrus.Fields{"organization_id": orgID, "amount": value.String(), "available": available.String()}).
			Warn("payout exceeds available balance")
		return nil, ErrInsufficientBalance
	}

	now := s.now()
	payout := &models.Payout{
		ID:             primitive.NewObjectID(),
		ReferenceID:    uuid.NewString(),
		OrganizationID: objID,
		Amount:         value.StringFixed(2),
		Destination:    destination,
		Status:         models.PayoutPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreatePayout(ctx, payout); err != nil {
		s.log.WithError(err).WithField("organization_id", orgID).Error("failed to save payout")
		return nil, fmt.Errorf("failed to save payout: %w", err)
	}

	resp, err := s.provider.CreateWithdrawal(ctx, WithdrawalRequest{
		Reference:   payout.ReferenceID,
		Amount:      WithdrawalAmount{Cents: value.Shift(2).IntPart()},
		Destination: destination,
	})
	if err != nil {
		s.log.WithError(err).WithField("payout_id", payout.ID.Hex()).Error("withdrawal request failed")
		if _, uerr := s.transition(ctx, payout.ID, "", models.PayoutFailed); uerr != nil {
			s.log.WithError(uerr).Error("failed to mark payout failed")
		}
		return nil, fmt.Errorf("withdrawal request failed: %w", err)
	}
	return s.transition(ctx, payout.ID, resp.ID, normalizePayoutStatus(resp.Status))
}

func (s *PayoutService) ListPayouts(ctx context.Context, orgID string) ([]models.Payout, error) {
	objID, err := parseID(orgID, "organization")
	if err != nil {
		return nil, err
	}
	payouts, err := s.store.ListPayouts(ctx, objID)
	if err != nil {
		s.log.WithError(err).WithField("organization_id", orgID).Error("failed to list payouts")
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	return payouts, nil
}

// HandleWebhook applies a provider status update. Unknown event types are
// acknowledged and ignored.
func (s *PayoutService) HandleWebhook(ctx context.Context, token string, payload WebhookPayload) error {
	if s.webhookToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.webhookToken)) != 1 {
		return ErrInvalidToken
	}
	if !strings.HasPrefix(payload.Event, "withdraw") && !strings.HasPrefix(payload.Event, "payout") {
		s.log.WithField("event", payload.Event).Info("unhandled webhook event type")
		return nil
	}
	if payload.Data.ID == "" {
		return fmt.Errorf("%w: webhook data missing id", ErrInvalidInput)
	}

	payout, err := s.store.GetPayoutByProviderID(ctx, payload.Data.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPayoutNotFound
		}
		return fmt.Errorf("failed to fetch payout: %w", err)
	}
	status := normalizePayoutStatus(payload.Data.Status)
	if payout.Status == status {
		return nil
	}
	entry := s.log.WithFields(logrus.Fields{"payout_id": payout.ID.Hex(), "status": payout.Status, "received": status})
	if models.PayoutFinal(payout.Status) {
		entry.Warn("ignoring webhook for final payout")
		return nil
	}
	_, err = s.transition(ctx, payout.ID, "", status)
	if errors.Is(err, ErrPayoutFinal) {
		entry.Warn("payout became final before webhook was applied")
		return nil
	}
	return err
}

func (s *PayoutService) transition(ctx context.Context, id primitive.ObjectID, providerID, status string) (*models.Payout, error) {
	payout, err := s.store.UpdatePayout(ctx, id, providerID, status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrPayoutNotFound
		case errors.Is(err, store.ErrStateConflict):
			return nil, ErrPayoutFinal
		}
		return nil, fmt.Errorf("failed to update payout: %w", err)
	}
	s.log.WithFields(logrus.Fields{"payout_id": id.Hex(), "status": status}).Info("payout status updated")
	metrics.RecordPayout(status)
	if err := s.publisher.Publish(ctx, events.ForPayout(*payout)); err != nil {
		s.log.WithError(err).Warn("failed to publish payout event")
	}
	return payout, nil
}

func (s *PayoutService) available(ctx context.Context, orgID primitive.ObjectID) (decimal.Decimal, error) {
	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return decimal.Zero, ErrOrganizationNotFound
		}
		return decimal.Zero, fmt.Errorf("failed to fetch organization: %w", err)
	}
	raised, err := decimal.NewFromString(org.Raised)
	if err != nil {
		raised = decimal.Zero
	}
	payouts, err := s.store.ListPayouts(ctx, orgID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list payouts: %w", err)
	}
	for _, p := range payouts {
		if p.Status == models.PayoutFailed {
			continue
		}
		if amount, err := decimal.NewFromString(p.Amount); err == nil {
			raised = raised.Sub(amount)
		}
	}
	return raised, nil
}

func normalizePayoutStatus(status string) string {
	switch strings.ToLower(status) {
	case "pending", "created":
		return models.PayoutPending
	case "completed", "succeeded", "success", "paid":
		return models.PayoutCompleted
	case "failed", "rejected", "cancelled", "canceled":
		return models.PayoutFailed
	default:
		return models.PayoutProcessing
	}
}
