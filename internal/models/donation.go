package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DonationPending    = "pending"
	DonationProcessing = "processing"
	DonationCompleted  = "completed"
	DonationFailed     = "failed"
)

var DonationStatuses = map[string]bool{
	DonationPending:    true,
	DonationProcessing: true,
	DonationCompleted:  true,
	DonationFailed:     true,
}

// Donation is one pledged transfer from a donor wallet to an organization.
// Amount is a decimal string in token units; TransactionHash is unique
// across donations once set.
type Donation struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrganizationID   primitive.ObjectID `bson:"organization_id" json:"organization"`
	OrganizationName string             `bson:"organization_name" json:"organization_name"`
	DonorName        string             `bson:"donor_name,omitempty" json:"donor_name,omitempty"`
	DonorEmail       string             `bson:"donor_email,omitempty" json:"donor_email,omitempty"`
	DonorWallet      string             `bson:"donor_wallet" json:"donor_wallet"`
	Amount           string             `bson:"amount" json:"amount"`
	AmountUSD        string             `bson:"amount_usd,omitempty" json:"amount_usd,omitempty"`
	TransactionHash  string             `bson:"transaction_hash,omitempty" json:"transaction_hash,omitempty"`
	Status           string             `bson:"status" json:"status"`
	Message          string             `bson:"message,omitempty" json:"message,omitempty"`
	CreatedAt        time.Time          `bson:"created_at" json:"created_at"`
	CompletedAt      *time.Time         `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
}

// CreateDonationRequest is the body of POST /donations/. Amounts are accepted
// as JSON numbers or numeric strings.
type CreateDonationRequest struct {
	OrganizationID string      `json:"organization"`
	DonorName      string      `json:"donor_name,omitempty"`
	DonorEmail     string      `json:"donor_email,omitempty"`
	DonorWallet    string      `json:"donor_wallet"`
	Amount         json.Number `json:"amount"`
	AmountUSD      json.Number `json:"amount_usd,omitempty"`
	Message        string      `json:"message,omitempty"`
}

// CompleteDonationRequest is the body of POST /donations/complete/.
type CompleteDonationRequest struct {
	DonationID      string `json:"donation_id"`
	TransactionHash string `json:"transaction_hash"`
}
