package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

const (
	queryTimeout = 5 * time.Second
	listTimeout  = 10 * time.Second
)

// MongoStore implements Store on top of a MongoDB database.
type MongoStore struct {
	db            *mongo.Database
	organizations *mongo.Collection
	donations     *mongo.Collection
	payouts       *mongo.Collection
	users         *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:            db,
		organizations: db.Collection("organizations"),
		donations:     db.Collection("donations"),
		payouts:       db.Collection("payouts"),
		users:         db.Collection("users"),
	}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the indexes the ledger relies on, including the
// uniqueness of organization wallets, user emails and transaction hashes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	hasHash := bson.M{"transaction_hash": bson.M{"$type": "string"}}
	hasProvider := bson.M{"provider_id": bson.M{"$type": "string"}}

	indexes := map[*mongo.Collection][]mongo.IndexModel{
		s.organizations: {
			{Keys: bson.D{{Key: "wallet_address", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "featured", Value: -1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "category", Value: 1}}},
		},
		s.donations: {
			{Keys: bson.D{{Key: "transaction_hash", Value: 1}}, Options: options.Index().SetUnique(true).SetPartialFilterExpression(hasHash)},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "donor_wallet", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		s.payouts: {
			{Keys: bson.D{{Key: "provider_id", Value: 1}}, Options: options.Index().SetPartialFilterExpression(hasProvider)},
			{Keys: bson.D{{Key: "organization_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		s.users: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, idx := range indexes {
		if _, err := coll.Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// Organizations

func (s *MongoStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if org.ID.IsZero() {
		org.ID = primitive.NewObjectID()
	}
	if _, err := s.organizations.InsertOne(ctx, org); err != nil {
		return insertErr("organization", err)
	}
	return nil
}

func (s *MongoStore) UpdateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"name":             org.Name,
		"category":         org.Category,
		"location":         org.Location,
		"description":      org.Description,
		"long_description": org.LongDescription,
		"image":            org.Image,
		"verified":         org.Verified,
		"featured":         org.Featured,
		"goal":             org.Goal,
		"founded":          org.Founded,
		"wallet_address":   org.WalletAddress,
		"impact":           org.Impact,
		"updated_at":       org.UpdatedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	err := s.organizations.FindOneAndUpdate(ctx, bson.M{"_id": org.ID}, update, opts).Decode(org)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	case err != nil:
		return fmt.Errorf("failed to update organization: %w", err)
	}
	return nil
}

func (s *MongoStore) GetOrganization(ctx context.Context, id primitive.ObjectID) (*models.Organization, error) {
	return s.findOrganization(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetOrganizationByWallet(ctx context.Context, wallet string) (*models.Organization, error) {
	return s.findOrganization(ctx, bson.M{"wallet_address": wallet})
}

func (s *MongoStore) findOrganization(ctx context.Context, filter bson.M) (*models.Organization, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var org models.Organization
	if err := s.organizations.FindOne(ctx, filter).Decode(&org); err != nil {
		return nil, findErr("organization", err)
	}
	return &org, nil
}

func (s *MongoStore) ListOrganizations(ctx context.Context, filter OrganizationFilter) ([]models.Organization, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	query := bson.M{}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Featured != nil {
		query["featured"] = *filter.Featured
	}
	if filter.Verified != nil {
		query["verified"] = *filter.Verified
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
		}
	}

	sort := bson.D{{Key: "featured", Value: -1}, {Key: "created_at", Value: -1}}
	var orgs []models.Organization
	count, err := s.page(ctx, s.organizations, query, sort, filter.Page, &orgs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, count, nil
}

func (s *MongoStore) CountOrganizations(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.organizations.CountDocuments(ctx, bson.M{})
}

func (s *MongoStore) UpdateOrganizationStats(ctx context.Context, id primitive.ObjectID, raised string, donors int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.organizations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"raised":     raised,
		"donors":     donors,
		"updated_at": time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("failed to update organization stats: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AddOrganizationUpdate(ctx context.Context, id primitive.ObjectID, update models.OrganizationUpdate) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.organizations.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$push": bson.M{"updates": bson.M{"$each": bson.A{update}, "$position": 0}},
	})
	if err != nil {
		return fmt.Errorf("failed to add organization update: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Donations

func (s *MongoStore) CreateDonation(ctx context.Context, d *models.Donation) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if _, err := s.donations.InsertOne(ctx, d); err != nil {
		return insertErr("donation", err)
	}
	return nil
}

func (s *MongoStore) GetDonation(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var d models.Donation
	if err := s.donations.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, findErr("donation", err)
	}
	return &d, nil
}

func (s *MongoStore) ListDonations(ctx context.Context, filter DonationFilter) ([]models.Donation, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	query := bson.M{}
	if filter.OrganizationID != nil {
		query["organization_id"] = *filter.OrganizationID
	}
	if filter.DonorWallet != "" {
		query["donor_wallet"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.DonorWallet) + "$", Options: "i"}
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	var donations []models.Donation
	count, err := s.page(ctx, s.donations, query, bson.D{{Key: "created_at", Value: -1}}, filter.Page, &donations)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list donations: %w", err)
	}
	return donations, count, nil
}

func (s *MongoStore) CompleteDonation(ctx context.Context, id primitive.ObjectID, txHash string, at time.Time) (*models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$in": bson.A{models.DonationPending, models.DonationProcessing}},
	}
	update := bson.M{"$set": bson.M{
		"status":           models.DonationCompleted,
		"transaction_hash": txHash,
		"completed_at":     at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var d models.Donation
	err := s.donations.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	switch {
	case err == nil:
		return &d, nil
	case mongo.IsDuplicateKeyError(err):
		return nil, ErrDuplicate
	case errors.Is(err, mongo.ErrNoDocuments):
		n, cerr := s.donations.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check donation: %w", cerr)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStateConflict
	default:
		return nil, fmt.Errorf("failed to complete donation: %w", err)
	}
}

func (s *MongoStore) CompletedDonations(ctx context.Context, orgID *primitive.ObjectID) ([]models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	query := bson.M{"status": models.DonationCompleted}
	if orgID != nil {
		query["organization_id"] = *orgID
	}
	cur, err := s.donations.Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed donations: %w", err)
	}
	defer cur.Close(ctx)

	var donations []models.Donation
	if err := cur.All(ctx, &donations); err != nil {
		return nil, fmt.Errorf("failed to decode donations: %w", err)
	}
	return donations, nil
}

func (s *MongoStore) FailStaleDonations(ctx context.Context, cutoff time.Time) ([]models.Donation, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	ids, err := s.staleDonationIDs(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	return s.failPendingDonations(ctx, ids)
}

func (s *MongoStore) staleDonationIDs(ctx context.Context, cutoff time.Time) ([]primitive.ObjectID, error) {
	query := bson.M{"status": models.DonationPending, "created_at": bson.M{"$lt": cutoff}}
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cur, err := s.donations.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stale donations: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode stale donations: %w", err)
	}
	ids := make([]primitive.ObjectID, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

// failPendingDonations fails each donation that is still pending and returns
// only those it changed.
func (s *MongoStore) failPendingDonations(ctx context.Context, ids []primitive.ObjectID) ([]models.Donation, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var failed []models.Donation
	for _, id := range ids {
		var d models.Donation
		err := s.donations.FindOneAndUpdate(ctx,
			bson.M{"_id": id, "status": models.DonationPending},
			bson.M{"$set": bson.M{"status": models.DonationFailed}},
			opts,
		).Decode(&d)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return failed, fmt.Errorf("failed to mark stale donation: %w", err)
		}
		failed = append(failed, d)
	}
	return failed, nil
}

// Payouts

func (s *MongoStore) CreatePayout(ctx context.Context, p *models.Payout) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if _, err := s.payouts.InsertOne(ctx, p); err != nil {
		return insertErr("payout", err)
	}
	return nil
}

func (s *MongoStore) GetPayoutByProviderID(ctx context.Context, providerID string) (*models.Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p models.Payout
	if err := s.payouts.FindOne(ctx, bson.M{"provider_id": providerID}).Decode(&p); err != nil {
		return nil, findErr("payout", err)
	}
	return &p, nil
}

func (s *MongoStore) UpdatePayout(ctx context.Context, id primitive.ObjectID, providerID, status string) (*models.Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	set := bson.M{"status": status, "updated_at": time.Now()}
	if providerID != "" {
		set["provider_id"] = providerID
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	filter := bson.M{
		"_id":    id,
		"status": bson.M{"$nin": bson.A{models.PayoutCompleted, models.PayoutFailed}},
	}
	var p models.Payout
	err := s.payouts.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either missing or already final
		n, cerr := s.payouts.CountDocuments(ctx, bson.M{"_id": id})
		if cerr != nil {
			return nil, fmt.Errorf("failed to fetch payout: %w", cerr)
		}
		if n == 0 {
			return nil, ErrNotFound
		}
		return nil, ErrStateConflict
	}
	if err != nil {
		return nil, findErr("payout", err)
	}
	return &p, nil
}

func (s *MongoStore) ListPayouts(ctx context.Context, orgID primitive.ObjectID) ([]models.Payout, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cur, err := s.payouts.Find(ctx, bson.M{"organization_id": orgID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payouts: %w", err)
	}
	defer cur.Close(ctx)

	var payouts []models.Payout
	if err := cur.All(ctx, &payouts); err != nil {
		return nil, fmt.Errorf("failed to decode payouts: %w", err)
	}
	return payouts, nil
}

// Users

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if _, err := s.users.InsertOne(ctx, u); err != nil {
		return insertErr("user", err)
	}
	return nil
}

func (s *MongoStore) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var u models.User
	if err := s.users.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, findErr("user", err)
	}
	return &u, nil
}

func (s *MongoStore) page(ctx context.Context, coll *mongo.Collection, query bson.M, sort bson.D, page Page, out interface{}) (int64, error) {
	page = page.Normalize()
	count, err := coll.CountDocuments(ctx, query)
	if err != nil {
		return 0, err
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(page.offset())).
		SetLimit(int64(page.Size))
	cur, err := coll.Find(ctx, query, opts)
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, out); err != nil {
		return 0, err
	}
	return count, nil
}

func insertErr(what string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return fmt.Errorf("failed to save %s: %w", what, err)
}

func findErr(what string, err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}
