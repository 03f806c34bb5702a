// Package store persists the ledger's organizations, donations, payouts and
// dashboard accounts.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrDuplicate     = errors.New("duplicate key")
	ErrStateConflict = errors.New("state conflict")
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Number int
	Size   int
}

// Normalize clamps the page to valid bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

func (p Page) offset() int {
	return (p.Number - 1) * p.Size
}

type OrganizationFilter struct {
	Category string
	Featured *bool
	Verified *bool
	Search   string
	Page     Page
}

type DonationFilter struct {
	OrganizationID *primitive.ObjectID
	DonorWallet    string
	Status         string
	Page           Page
}

type OrganizationStore interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	UpdateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id primitive.ObjectID) (*models.Organization, error)
	ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]models.Organization, int64, error)
	CountOrganizations(ctx context.Context) (int64, error)
	UpdateOrganizationStats(ctx context.Context, id primitive.ObjectID, raised string, donors int) error
	AddOrganizationUpdate(ctx context.Context, id primitive.ObjectID, update models.OrganizationUpdate) error
	GetOrganizationByWallet(ctx context.Context, wallet string) (*models.Organization, error)
}

type DonationStore interface {
	CreateDonation(ctx context.Context, d *models.Donation) error
	GetDonation(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	ListDonations(ctx context.Context, filter DonationFilter) ([]models.Donation, int64, error)
	// CompleteDonation moves a pending or processing donation to completed.
	// It returns ErrStateConflict when the donation is in any other state and
	// ErrDuplicate when txHash already belongs to another donation.
	CompleteDonation(ctx context.Context, id primitive.ObjectID, txHash string, at time.Time) (*models.Donation, error)
	// CompletedDonations lists completed donations, for one organization when
	// orgID is non-nil.
	CompletedDonations(ctx context.Context, orgID *primitive.ObjectID) ([]models.Donation, error)
	// FailStaleDonations marks pending donations created before cutoff as
	// failed and returns them.
	FailStaleDonations(ctx context.Context, cutoff time.Time) ([]models.Donation, error)
}

type PayoutStore interface {
	CreatePayout(ctx context.Context, p *models.Payout) error
	GetPayoutByProviderID(ctx context.Context, providerID string) (*models.Payout, error)
	// UpdatePayout sets the status of a payout that is not yet completed or
	// failed. A final payout yields ErrStateConflict.
	UpdatePayout(ctx context.Context, id primitive.ObjectID, providerID, status string) (*models.Payout, error)
	ListPayouts(ctx context.Context, orgID primitive.ObjectID) ([]models.Payout, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Store is the full ledger persistence surface.
type Store interface {
	OrganizationStore
	DonationStore
	PayoutStore
	UserStore
	Ping(ctx context.Context) error
}
