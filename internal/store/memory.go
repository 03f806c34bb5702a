package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

// MemoryStore is an in-process Store used for local development and tests.
// It enforces the same uniqueness rules as the MongoDB indexes.
type MemoryStore struct {
	mu            sync.RWMutex
	organizations map[primitive.ObjectID]models.Organization
	donations     map[primitive.ObjectID]models.Donation
	payouts       map[primitive.ObjectID]models.Payout
	users         map[primitive.ObjectID]models.User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		organizations: make(map[primitive.ObjectID]models.Organization),
		donations:     make(map[primitive.ObjectID]models.Donation),
		payouts:       make(map[primitive.ObjectID]models.Payout),
		users:         make(map[primitive.ObjectID]models.User),
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Organizations

func (m *MemoryStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.organizations {
		if existing.WalletAddress == org.WalletAddress {
			return ErrDuplicate
		}
	}
	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	m.organizations[org.ID] = cloneOrganization(*org)
	return nil
}

func (m *MemoryStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.organizations[org.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range m.organizations {
		if id != org.ID && existing.WalletAddress == org.WalletAddress {
			return ErrDuplicate
		}
	}
	next := cloneOrganization(*org)
	next.Raised = current.Raised
	next.Donors = current.Donors
	next.Updates = current.Updates
	next.CreatedAt = current.CreatedAt
	m.organizations[org.ID] = next
	*org = cloneOrganization(next)
	return nil
}

func (m *MemoryStore) GetOrganization(ctx context.Context, id primitive.ObjectID) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	org, ok := m.organizations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneOrganization(org)
	return &out, nil
}

func (m *MemoryStore) GetOrganizationByWallet(ctx context.Context, wallet string) (*models.Organization, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, org := range m.organizations {
		if org.WalletAddress == wallet {
			out := cloneOrganization(org)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]models.Organization, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(filter.Search)
	var matched []models.Organization
	for _, org := range m.organizations {
		if filter.Category != "" && org.Category != filter.Category {
			continue
		}
		if filter.Featured != nil && org.Featured != *filter.Featured {
			continue
		}
		if filter.Verified != nil && org.Verified != *filter.Verified {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(org.Name), search) &&
			!strings.Contains(strings.ToLower(org.Description), search) {
			continue
		}
		matched = append(matched, cloneOrganization(org))
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Featured != matched[j].Featured {
			return matched[i].Featured
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (m *MemoryStore) CountOrganizations(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.organizations)), nil
}

func (m *MemoryStore) UpdateOrganizationStats(ctx context.Context, id primitive.ObjectID, raised string, donors int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	org, ok := m.organizations[id]
	if !ok {
		return ErrNotFound
	}
	org.Raised = raised
	org.Donors = donors
	org.UpdatedAt = time.Now()
	m.organizations[id] = org
	return nil
}

func (m *MemoryStore) AddOrganizationUpdate(ctx context.Context, id primitive.ObjectID, update models.OrganizationUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	org, ok := m.organizations[id]
	if !ok {
		return ErrNotFound
	}
	org.Updates = append([]models.OrganizationUpdate{update}, org.Updates...)
	m.organizations[id] = org
	return nil
}

// Donations

func (m *MemoryStore) CreateDonation(ctx context.Context, d *models.Donation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d.TransactionHash != "" && m.hashTaken(d.TransactionHash, primitive.NilObjectID) {
		return ErrDuplicate
	}
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	m.donations[d.ID] = *d
	return nil
}

func (m *MemoryStore) GetDonation(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.donations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (m *MemoryStore) ListDonations(ctx context.Context, filter DonationFilter) ([]models.Donation, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wallet := strings.ToLower(filter.DonorWallet)
	var matched []models.Donation
	for _, d := range m.donations {
		if filter.OrganizationID != nil && d.OrganizationID != *filter.OrganizationID {
			continue
		}
		if wallet != "" && strings.ToLower(d.DonorWallet) != wallet {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Page), int64(len(matched)), nil
}

func (m *MemoryStore) CompleteDonation(ctx context.Context, id primitive.ObjectID, txHash string, at time.Time) (*models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.donations[id]
	if !ok {
		return nil, ErrNotFound
	}
	if d.Status != models.DonationPending && d.Status != models.DonationProcessing {
		return nil, ErrStateConflict
	}
	if m.hashTaken(txHash, id) {
		return nil, ErrDuplicate
	}
	d.Status = models.DonationCompleted
	d.TransactionHash = txHash
	d.CompletedAt = &at
	m.donations[id] = d
	return &d, nil
}

func (m *MemoryStore) CompletedDonations(ctx context.Context, orgID *primitive.ObjectID) ([]models.Donation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Donation
	for _, d := range m.donations {
		if d.Status != models.DonationCompleted {
			continue
		}
		if orgID != nil && d.OrganizationID != *orgID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemoryStore) FailStaleDonations(ctx context.Context, cutoff time.Time) ([]models.Donation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var failed []models.Donation
	for id, d := range m.donations {
		if d.Status == models.DonationPending && d.CreatedAt.Before(cutoff) {
			d.Status = models.DonationFailed
			m.donations[id] = d
			failed = append(failed, d)
		}
	}
	return failed, nil
}

func (m *MemoryStore) hashTaken(hash string, except primitive.ObjectID) bool {
	for id, d := range m.donations {
		if id != except && d.TransactionHash == hash {
			return true
		}
	}
	return false
}

// Payouts

func (m *MemoryStore) CreatePayout(ctx context.Context, p *models.Payout) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.payouts[p.ID] = *p
	return nil
}

func (m *MemoryStore) GetPayoutByProviderID(ctx context.Context, providerID string) (*models.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.payouts {
		if p.ProviderID != "" && p.ProviderID == providerID {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) UpdatePayout(ctx context.Context, id primitive.ObjectID, providerID, status string) (*models.Payout, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.payouts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if models.PayoutFinal(p.Status) {
		return nil, ErrStateConflict
	}
	if providerID != "" {
		p.ProviderID = providerID
	}
	p.Status = status
	p.UpdatedAt = time.Now()
	m.payouts[id] = p
	return &p, nil
}

func (m *MemoryStore) ListPayouts(ctx context.Context, orgID primitive.ObjectID) ([]models.Payout, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Payout
	for _, p := range m.payouts {
		if p.OrganizationID == orgID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Users

func (m *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = *u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func cloneOrganization(org models.Organization) models.Organization {
	org.Impact = append([]models.OrganizationImpact(nil), org.Impact...)
	org.Updates = append([]models.OrganizationUpdate(nil), org.Updates...)
	return org
}

func paginate[T any](items []T, page Page) []T {
	page = page.Normalize()
	start := page.offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
