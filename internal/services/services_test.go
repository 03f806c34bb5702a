package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/globalfund-gobackend/internal/events"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

// =============================================================================
// Fixtures
// =============================================================================

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, evs ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evs...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	store     *store.MemoryStore
	orgs      *OrganizationService
	donations *DonationService
	stats     *StatsService
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	log := logger.Discard()
	pub := &recordingPublisher{}
	orgs := NewOrganizationService(st, st, log)
	return &fixture{
		store:     st,
		orgs:      orgs,
		donations: NewDonationService(st, orgs, pub, log),
		stats:     NewStatsService(st, log),
		publisher: pub,
	}
}

func wallet(c string) string {
	return "0x" + strings.Repeat(c, 40)
}

func txHash(c string) string {
	return "0x" + strings.Repeat(c, 64)
}

func (f *fixture) createOrg(t *testing.T, name, walletChar string) *models.Organization {
	t.Helper()
	org, err := f.orgs.CreateOrganization(context.Background(), &models.Organization{
		Name:          name,
		Category:      models.CategoryWater,
		Description:   "Clean water for communities",
		Goal:          "100",
		WalletAddress: wallet(walletChar),
	})
	require.NoError(t, err)
	return org
}

func (f *fixture) pledge(t *testing.T, org *models.Organization, donorChar, amount string) *models.Donation {
	t.Helper()
	d, err := f.donations.CreateDonation(context.Background(), models.CreateDonationRequest{
		OrganizationID: org.ID.Hex(),
		DonorWallet:    wallet(donorChar),
		Amount:         jsonNumber(amount),
	})
	require.NoError(t, err)
	return d
}

// =============================================================================
// Organizations
// =============================================================================

func TestOrganizationService_Create(t *testing.T) {
	f := newFixture(t)

	org, err := f.orgs.CreateOrganization(context.Background(), &models.Organization{
		Name:          "  Global Water Initiative ",
		Goal:          "50000.00",
		WalletAddress: "0x1111111111111111111111111111111111111111",
		Raised:        "999",
		Donors:        7,
		Impact: []models.OrganizationImpact{
			{Metric: "second", Order: 2},
			{Metric: "first", Order: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Global Water Initiative", org.Name)
	assert.Equal(t, models.CategoryOther, org.Category)
	assert.Equal(t, "0", org.Raised)
	assert.Equal(t, 0, org.Donors)
	assert.Equal(t, "50000", org.Goal)
	assert.Equal(t, models.DefaultOrganizationImage, org.Image)
	assert.Equal(t, "first", org.Impact[0].Metric)

	_, err = f.orgs.CreateOrganization(context.Background(), &models.Organization{
		Name: "Copy", Goal: "1", WalletAddress: "0x1111111111111111111111111111111111111111",
	})
	assert.ErrorIs(t, err, ErrDuplicateWallet)
}

func TestOrganizationService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]models.Organization{
		"missing name": {Goal: "1", WalletAddress: wallet("1")},
		"bad category": {Name: "x", Category: "sports", Goal: "1", WalletAddress: wallet("1")},
		"bad wallet":   {Name: "x", Goal: "1", WalletAddress: "undefined"},
		"zero goal":    {Name: "x", Goal: "0", WalletAddress: wallet("1")},
		"non-numeric":  {Name: "x", Goal: "lots", WalletAddress: wallet("1")},
	}
	for name, org := range cases {
		t.Run(name, func(t *testing.T) {
			org := org
			_, err := f.orgs.CreateOrganization(context.Background(), &org)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestOrganizationService_AddUpdate(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Water", "1")

	upd, err := f.orgs.AddUpdate(context.Background(), org.ID.Hex(), "New well", "Finished drilling")
	require.NoError(t, err)
	assert.Equal(t, "just now", upd.Date)

	got, err := f.orgs.GetOrganization(context.Background(), org.ID.Hex())
	require.NoError(t, err)
	require.Len(t, got.Updates, 1)
	assert.Equal(t, "New well", got.Updates[0].Title)

	_, err = f.orgs.AddUpdate(context.Background(), org.ID.Hex(), "", "x")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRelativeDate(t *testing.T) {
	now := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2 hours ago", models.RelativeDate(now.Add(-2*time.Hour), now))
	assert.Equal(t, "1 day ago", models.RelativeDate(now.Add(-25*time.Hour), now))
	assert.Equal(t, "3 weeks ago", models.RelativeDate(now.Add(-21*24*time.Hour), now))
	assert.Equal(t, "Jan 2, 2025", models.RelativeDate(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC), now))
}

// =============================================================================
// Donations
// =============================================================================

func TestDonationService_Create(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Water", "1")

	d, err := f.donations.CreateDonation(context.Background(), models.CreateDonationRequest{
		OrganizationID: org.ID.Hex(),
		DonorWallet:    "0x" + strings.Repeat("A", 40),
		Amount:         jsonNumber("0.010"),
		AmountUSD:      jsonNumber("0.01"),
		DonorName:      " Ada ",
	})
	require.NoError(t, err)

	assert.Equal(t, models.DonationPending, d.Status)
	assert.Equal(t, wallet("a"), d.DonorWallet)
	assert.Equal(t, "0.01", d.Amount)
	assert.Equal(t, "0.01", d.AmountUSD)
	assert.Equal(t, "Water", d.OrganizationName)
	assert.Equal(t, "Ada", d.DonorName)
	assert.Empty(t, d.TransactionHash)
	assert.Equal(t, []string{events.DonationCreated}, f.publisher.types())
}

func TestDonationService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	org := f.createOrg(t, "Water", "1")
	ctx := context.Background()

	_, err := f.donations.CreateDonation(ctx, models.CreateDonationRequest{OrganizationID: org.ID.Hex(), DonorWallet: wallet("a"), Amount: jsonNumber("0")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.donations.CreateDonation(ctx, models.CreateDonationRequest{OrganizationID: org.ID.Hex(), DonorWallet: "nope", Amount: jsonNumber("1")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.donations.CreateDonation(ctx, models.CreateDonationRequest{OrganizationID: org.ID.Hex(), DonorWallet: wallet("a"), Amount: jsonNumber("1"), AmountUSD: jsonNumber("1.001")})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.donations.CreateDonation(ctx, models.CreateDonationRequest{OrganizationID: "507f1f77bcf86cd799439011", DonorWallet: wallet("a"), Amount: jsonNumber("1")})
	assert.ErrorIs(t, err, ErrOrganizationNotFound)
}

func TestDonationService_CompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")
	d := f.pledge(t, org, "a", "0.01")

	first, err := f.donations.CompleteDonation(ctx, d.ID.Hex(), strings.ToUpper(txHash("b")))
	require.NoError(t, err)
	assert.Equal(t, models.DonationCompleted, first.Status)
	assert.Equal(t, txHash("b"), first.TransactionHash)
	require.NotNil(t, first.CompletedAt)

	again, err := f.donations.CompleteDonation(ctx, d.ID.Hex(), txHash("b"))
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt.Unix(), again.CompletedAt.Unix())

	_, err = f.donations.CompleteDonation(ctx, d.ID.Hex(), txHash("c"))
	assert.ErrorIs(t, err, ErrDonationAlreadyCompleted)

	// one completion event despite the repeat
	assert.Equal(t, []string{events.DonationCreated, events.DonationCompleted}, f.publisher.types())
}

func TestDonationService_CompleteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")
	a := f.pledge(t, org, "a", "1")
	b := f.pledge(t, org, "b", "1")

	_, err := f.donations.CompleteDonation(ctx, "", txHash("1"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.donations.CompleteDonation(ctx, a.ID.Hex(), "0x1234")
	assert.ErrorIs(t, err, ErrInvalidTransactionHash)

	_, err = f.donations.CompleteDonation(ctx, "507f1f77bcf86cd799439011", txHash("1"))
	assert.ErrorIs(t, err, ErrDonationNotFound)

	_, err = f.donations.CompleteDonation(ctx, a.ID.Hex(), txHash("1"))
	require.NoError(t, err)
	_, err = f.donations.CompleteDonation(ctx, b.ID.Hex(), txHash("1"))
	assert.ErrorIs(t, err, ErrTransactionInUse)
}

func TestDonationService_CompleteRecomputesOrganization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")

	d1 := f.pledge(t, org, "a", "0.01")
	d2 := f.pledge(t, org, "a", "2.5")
	d3 := f.pledge(t, org, "b", "10")
	f.pledge(t, org, "c", "99")

	for i, d := range []*models.Donation{d1, d2, d3} {
		_, err := f.donations.CompleteDonation(ctx, d.ID.Hex(), txHash(string(rune('1'+i))))
		require.NoError(t, err)
	}

	got, err := f.orgs.GetOrganization(ctx, org.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, "12.51", got.Raised)
	assert.Equal(t, 2, got.Donors)
	assert.InDelta(t, 0.1251, got.Progress, 1e-9)

	stats, err := f.stats.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12.51", stats.TotalAmount.String())
	assert.Equal(t, int64(3), stats.TotalDonations)
	assert.Equal(t, int64(2), stats.UniqueDonors)
	assert.Equal(t, int64(1), stats.OrganizationsCount)
}

func TestDonationService_ExpireStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")

	f.donations.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	old := f.pledge(t, org, "a", "1")
	f.donations.now = time.Now
	fresh := f.pledge(t, org, "b", "1")

	n, err := f.donations.ExpireStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = f.donations.CompleteDonation(ctx, old.ID.Hex(), txHash("e"))
	assert.ErrorIs(t, err, ErrDonationFailed)

	_, err = f.donations.CompleteDonation(ctx, fresh.ID.Hex(), txHash("e"))
	assert.NoError(t, err)
	assert.Contains(t, f.publisher.types(), events.DonationFailed)
}

// sweepRaceStore runs beforeSweep ahead of the underlying sweep, standing in
// for a completion that lands while the sweeper is running.
type sweepRaceStore struct {
	*store.MemoryStore
	beforeSweep func()
}

func (s *sweepRaceStore) FailStaleDonations(ctx context.Context, cutoff time.Time) ([]models.Donation, error) {
	s.beforeSweep()
	return s.MemoryStore.FailStaleDonations(ctx, cutoff)
}

func TestDonationService_ExpireStaleSkipsConcurrentCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	org := f.createOrg(t, "Water", "1")

	f.donations.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	racing := f.pledge(t, org, "a", "1")
	f.donations.now = time.Now

	f.donations.donations = &sweepRaceStore{
		MemoryStore: f.store,
		beforeSweep: func() {
			_, err := f.store.CompleteDonation(ctx, racing.ID, txHash("e"), time.Now())
			require.NoError(t, err)
		},
	}

	n, err := f.donations.ExpireStale(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NotContains(t, f.publisher.types(), events.DonationFailed)

	got, err := f.donations.GetDonation(ctx, racing.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.DonationCompleted, got.Status)
}

func TestDonationService_ListRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.donations.ListDonations(context.Background(), store.DonationFilter{Status: "refunded"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// =============================================================================
// Stats and health
// =============================================================================

func TestStatsService_Empty(t *testing.T) {
	f := newFixture(t)
	stats, err := f.stats.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0", stats.TotalAmount.String())
	assert.Equal(t, "0.00", stats.TotalAmountUSD.String())
}

func TestStatsService_Health(t *testing.T) {
	f := newFixture(t)
	h := f.stats.Health(context.Background())
	assert.Equal(t, models.Health{Status: "healthy", DatabaseConnected: true, Version: "1.0.0"}, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h = f.stats.Health(ctx)
	assert.Equal(t, "unhealthy", h.Status)
	assert.False(t, h.DatabaseConnected)
}
