// Package events publishes ledger state changes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
)

const (
	DonationCreated   = "donation.created"
	DonationCompleted = "donation.completed"
	DonationFailed    = "donation.failed"
)

// Event is the envelope written to the event stream.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Key        string      `json:"key"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
	Close() error
}

func New(eventType, key string, data interface{}) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func ForDonation(eventType string, d models.Donation) Event {
	return New(eventType, d.OrganizationID.Hex(), d)
}

// ForPayout keys payout events by organization so they stay ordered per
// organization within a partition.
func ForPayout(p models.Payout) Event {
	return New("payout."+p.Status, p.OrganizationID.Hex(), p)
}

// Nop discards every event; used when no brokers are configured.
type Nop struct{}

func (Nop) Publish(context.Context, ...Event) error { return nil }

func (Nop) Close() error { return nil }

var _ Publisher = Nop{}
