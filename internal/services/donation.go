package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/events"
	"github.com/markjakearzadon/globalfund-gobackend/internal/metrics"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

// DonationService owns the donation lifecycle: pending on creation,
// completed once a transaction hash is recorded, failed when stale.
type DonationService struct {
	donations store.DonationStore
	orgs      store.OrganizationStore
	stats     *OrganizationService
	publisher events.Publisher
	log       *logrus.Entry
	now       func() time.Time
}

func NewDonationService(st store.Store, orgService *OrganizationService, publisher events.Publisher, log *logrus.Logger) *DonationService {
	return &DonationService{
		donations: st,
		orgs:      st,
		stats:     orgService,
		publisher: publisher,
		log:       log.WithField("service", "donation"),
		now:       time.Now,
	}
}

func (s *DonationService) CreateDonation(ctx context.Context, req models.CreateDonationRequest) (*models.Donation, error) {
	orgID, err := parseID(req.OrganizationID, "organization")
	if err != nil {
		return nil, err
	}
	wallet, err := chain.FormatAddress(req.DonorWallet)
	if err != nil {
		return nil, fmt.Errorf("%w: donor_wallet %q is not a valid address", ErrInvalidInput, req.DonorWallet)
	}
	amount, err := chain.ParsePositiveAmount(req.Amount.String(), chain.TokenDecimals)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	amountUSD := ""
	if req.AmountUSD != "" {
		usd, err := chain.ParseAmount(req.AmountUSD.String())
		if err != nil || usd.IsNegative() || !usd.Equal(usd.Truncate(2)) {
			return nil, fmt.Errorf("%w: amount_usd must be a non-negative amount with at most 2 decimal places", ErrInvalidInput)
		}
		amountUSD = usd.StringFixed(2)
	}

	org, err := s.orgs.GetOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		s.log.WithError(err).WithField("organization_id", req.OrganizationID).Error("failed to fetch organization")
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}

	d := &models.Donation{
		ID:               primitive.NewObjectID(),
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		DonorName:        strings.TrimSpace(req.DonorName),
		DonorEmail:       strings.TrimSpace(req.DonorEmail),
		DonorWallet:      wallet,
		Amount:           amount.String(),
		AmountUSD:        amountUSD,
		Status:           models.DonationPending,
		Message:          strings.TrimSpace(req.Message),
		CreatedAt:        s.now(),
	}
	if err := s.donations.CreateDonation(ctx, d); err != nil {
		s.log.WithError(err).WithField("organization_id", org.ID.Hex()).Error("failed to save donation")
		return nil, fmt.Errorf("failed to save donation: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"donation_id":     d.ID.Hex(),
		"organization_id": org.ID.Hex(),
		"amount":          d.Amount,
	}).Info("donation created")
	metrics.RecordDonation(models.DonationPending)
	s.publish(ctx, events.ForDonation(events.DonationCreated, *d))
	return d, nil
}

func (s *DonationService) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	objID, err := parseID(id, "donation")
	if err != nil {
		return nil, err
	}
	d, err := s.donations.GetDonation(ctx, objID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrDonationNotFound
		}
		s.log.WithError(err).WithField("donation_id", id).Error("failed to fetch donation")
		return nil, fmt.Errorf("failed to fetch donation: %w", err)
	}
	return d, nil
}

func (s *DonationService) ListDonations(ctx context.Context, filter store.DonationFilter) ([]models.Donation, int64, error) {
	if filter.Status != "" && !models.DonationStatuses[filter.Status] {
		return nil, 0, fmt.Errorf("%w: invalid status filter, must be pending, processing, completed or failed", ErrInvalidInput)
	}
	donations, count, err := s.donations.ListDonations(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("failed to list donations")
		return nil, 0, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, count, nil
}

// CompleteDonation records the on-chain transaction for a donation. Repeating
// the call with the same hash returns the completed donation unchanged.
func (s *DonationService) CompleteDonation(ctx context.Context, id, txHash string) (*models.Donation, error) {
	if strings.TrimSpace(id) == "" || strings.TrimSpace(txHash) == "" {
		return nil, fmt.Errorf("%w: donation_id and transaction_hash are required", ErrInvalidInput)
	}
	hash, err := chain.FormatTxHash(txHash)
	if err != nil {
		return nil, ErrInvalidTransactionHash
	}
	current, err := s.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if done, err := settled(current, hash); done || err != nil {
		return current, err
	}

	log := s.log.WithFields(logrus.Fields{"donation_id": id, "transaction_hash": hash})
	d, err := s.donations.CompleteDonation(ctx, current.ID, hash, s.now())
	switch {
	case errors.Is(err, store.ErrDuplicate):
		log.Warn("transaction hash already recorded")
		return nil, ErrTransactionInUse
	case errors.Is(err, store.ErrStateConflict):
		// Lost a race with another completion; re-read and apply the same rules.
		latest, gerr := s.GetDonation(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		if done, serr := settled(latest, hash); done || serr != nil {
			return latest, serr
		}
		return nil, fmt.Errorf("donation %s changed state concurrently", id)
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrDonationNotFound
	case err != nil:
		log.WithError(err).Error("failed to complete donation")
		return nil, fmt.Errorf("failed to complete donation: %w", err)
	}

	log.Info("donation completed")
	metrics.RecordDonation(models.DonationCompleted)
	if err := s.stats.RecomputeStats(ctx, d.OrganizationID); err != nil {
		// The completion stands; stats are recomputed on the next completion.
		log.WithError(err).Error("failed to recompute organization stats")
	}
	s.publish(ctx, events.ForDonation(events.DonationCompleted, *d))
	return d, nil
}

// settled reports whether d is already in a terminal state, and the error to
// return for it, if any.
func settled(d *models.Donation, hash string) (bool, error) {
	switch d.Status {
	case models.DonationCompleted:
		if d.TransactionHash == hash {
			return true, nil
		}
		return true, ErrDonationAlreadyCompleted
	case models.DonationFailed:
		return true, ErrDonationFailed
	}
	return false, nil
}

// ExpireStale fails pending donations older than ttl.
func (s *DonationService) ExpireStale(ctx context.Context, ttl time.Duration) (int, error) {
	failed, err := s.donations.FailStaleDonations(ctx, s.now().Add(-ttl))
	if err != nil {
		s.log.WithError(err).Error("failed to expire stale donations")
		return 0, fmt.Errorf("failed to expire stale donations: %w", err)
	}
	if len(failed) == 0 {
		return 0, nil
	}

	evs := make([]events.Event, 0, len(failed))
	for _, d := range failed {
		metrics.RecordDonation(models.DonationFailed)
		evs = append(evs, events.ForDonation(events.DonationFailed, d))
	}
	s.publish(ctx, evs...)
	s.log.WithField("count", len(failed)).Info("expired stale pending donations")
	return len(failed), nil
}

// RunSweeper calls ExpireStale every interval until ctx is cancelled.
func (s *DonationService) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.ExpireStale(ctx, ttl)
		}
	}
}

func (s *DonationService) publish(ctx context.Context, evs ...events.Event) {
	if err := s.publisher.Publish(ctx, evs...); err != nil {
		s.log.WithError(err).WithField("count", len(evs)).Warn("failed to publish donation events")
	}
}
