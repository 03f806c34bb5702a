package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	PayoutPending    = "pending"
	PayoutProcessing = "processing"
	PayoutCompleted  = "completed"
	PayoutFailed     = "failed"
)

var PayoutStatuses = map[string]bool{
	PayoutPending:    true,
	PayoutProcessing: true,
	PayoutCompleted:  true,
	PayoutFailed:     true,
}

// PayoutFinal reports whether status can no longer change.
func PayoutFinal(status string) bool {
	return status == PayoutCompleted || status == PayoutFailed
}

// Payout is an organization cash-out handed to the off-ramp provider.
type Payout struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReferenceID    string             `bson:"reference_id" json:"reference_id"`
	OrganizationID primitive.ObjectID `bson:"organization_id" json:"organization"`
	Amount         string             `bson:"amount" json:"amount"`
	Destination    string             `bson:"destination" json:"destination"`
	Status         string             `bson:"status" json:"status"` // pending, processing, completed, failed
	ProviderID     string             `bson:"provider_id,omitempty" json:"provider_id,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`
}
