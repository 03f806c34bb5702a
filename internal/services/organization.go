package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/chain"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

type OrganizationService struct {
	orgs      store.OrganizationStore
	donations store.DonationStore
	log       *logrus.Entry
	now       func() time.Time
}

func NewOrganizationService(orgs store.OrganizationStore, donations store.DonationStore, log *logrus.Logger) *OrganizationService {
	return &OrganizationService{
		orgs:      orgs,
		donations: donations,
		log:       log.WithField("service", "organization"),
		now:       time.Now,
	}
}

func (s *OrganizationService) CreateOrganization(ctx context.Context, org *models.Organization) (*models.Organization, error) {
	if err := normalizeOrganization(org); err != nil {
		s.log.WithError(err).Warn("rejected organization")
		return nil, err
	}
	now := s.now()
	org.ID = primitive.NewObjectID()
	org.Raised = "0"
	org.Donors = 0
	org.Updates = nil
	org.CreatedAt = now
	org.UpdatedAt = now

	if err := s.orgs.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateWallet
		}
		s.log.WithError(err).WithField("name", org.Name).Error("failed to create organization")
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	s.log.WithField("organization_id", org.ID.Hex()).Info("organization created")
	org.Decorate(now)
	return org, nil
}

// UpdateOrganization replaces the editable fields of an organization.
// Raised, donors and updates are preserved.
func (s *OrganizationService) UpdateOrganization(ctx context.Context, id string, org *models.Organization) (*models.Organization, error) {
	objID, err := parseID(id, "organization")
	if err != nil {
		return nil, err
	}
	if err := normalizeOrganization(org); err != nil {
		return nil, err
	}
	org.ID = objID
	org.UpdatedAt = s.now()

	if err := s.orgs.UpdateOrganization(ctx, org); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrOrganizationNotFound
		case errors.Is(err, store.ErrDuplicate):
			return nil, ErrDuplicateWallet
		}
		s.log.WithError(err).WithField("organization_id", id).Error("failed to update organization")
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	org.Decorate(s.now())
	return org, nil
}

func (s *OrganizationService) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	objID, err := parseID(id, "organization")
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.GetOrganization(ctx, objID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		s.log.WithError(err).WithField("organization_id", id).Error("failed to fetch organization")
		return nil, fmt.Errorf("failed to fetch organization: %w", err)
	}
	org.Decorate(s.now())
	return org, nil
}

func (s *OrganizationService) ListOrganizations(ctx context.Context, filter store.OrganizationFilter) ([]models.Organization, int64, error) {
	if filter.Category != "" && !models.Categories[filter.Category] {
		return nil, 0, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, filter.Category)
	}
	orgs, count, err := s.orgs.ListOrganizations(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("failed to list organizations")
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	now := s.now()
	for i := range orgs {
		orgs[i].Decorate(now)
	}
	return orgs, count, nil
}

// AddUpdate publishes a news post on an organization's page.
func (s *OrganizationService) AddUpdate(ctx context.Context, id, title, content string) (*models.OrganizationUpdate, error) {
	objID, err := parseID(id, "organization")
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if title == "" || content == "" {
		return nil, fmt.Errorf("%w: title and content cannot be empty", ErrInvalidInput)
	}

	now := s.now()
	update := models.OrganizationUpdate{
		ID:        primitive.NewObjectID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
	}
	if err := s.orgs.AddOrganizationUpdate(ctx, objID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrOrganizationNotFound
		}
		s.log.WithError(err).WithField("organization_id", id).Error("failed to add update")
		return nil, fmt.Errorf("failed to add update: %w", err)
	}
	update.Date = models.RelativeDate(now, now)
	return &update, nil
}

// RecomputeStats sets raised to the sum of completed donation amounts and
// donors to the number of distinct donor wallets.
func (s *OrganizationService) RecomputeStats(ctx context.Context, orgID primitive.ObjectID) error {
	completed, err := s.donations.CompletedDonations(ctx, &orgID)
	if err != nil {
		return fmt.Errorf("failed to load completed donations: %w", err)
	}
	raised, donors := sumDonations(completed)
	if err := s.orgs.UpdateOrganizationStats(ctx, orgID, raised.String(), len(donors)); err != nil {
		s.log.WithError(err).WithField("organization_id", orgID.Hex()).Error("failed to update organization stats")
		return fmt.Errorf("failed to update organization stats: %w", err)
	}
	return nil
}

// sumDonations totals amounts exactly and collects distinct donor wallets.
// Unparsable amounts are skipped; they cannot be written through the service.
func sumDonations(donations []models.Donation) (decimal.Decimal, map[string]struct{}) {
	total := decimal.Zero
	wallets := make(map[string]struct{})
	for _, d := range donations {
		if amount, err := decimal.NewFromString(d.Amount); err == nil {
			total = total.Add(amount)
		}
		wallets[strings.ToLower(d.DonorWallet)] = struct{}{}
	}
	return total, wallets
}

func normalizeOrganization(org *models.Organization) error {
	org.Name = strings.TrimSpace(org.Name)
	if org.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if org.Category == "" {
		org.Category = models.CategoryOther
	}
	if !models.Categories[org.Category] {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidInput, org.Category)
	}
	wallet, err := chain.FormatAddress(org.WalletAddress)
	if err != nil {
		return fmt.Errorf("%w: wallet_address %q is not a valid address", ErrInvalidInput, org.WalletAddress)
	}
	org.WalletAddress = wallet

	goal, err := chain.ParseAmount(org.Goal)
	if err != nil || !goal.IsPositive() {
		return fmt.Errorf("%w: goal must be a positive amount", ErrInvalidInput)
	}
	org.Goal = goal.String()

	if org.Image == "" {
		org.Image = models.DefaultOrganizationImage
	}
	sort.SliceStable(org.Impact, func(i, j int) bool {
		return org.Impact[i].Order < org.Impact[j].Order
	})
	return nil
}

func parseID(id, what string) (primitive.ObjectID, error) {
	objID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: invalid %s id %q", ErrInvalidInput, what, id)
	}
	return objID, nil
}
