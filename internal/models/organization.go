package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization categories accepted by the ledger.
const (
	CategoryWater       = "water"
	CategoryEducation   = "education"
	CategoryHealthcare  = "healthcare"
	CategoryEnvironment = "environment"
	CategoryPoverty     = "poverty"
	CategoryDisaster    = "disaster"
	CategoryHumanRights = "human_rights"
	CategoryOther       = "other"
)

const DefaultOrganizationImage = "🌍"

var Categories = map[string]bool{
	CategoryWater:       true,
	CategoryEducation:   true,
	CategoryHealthcare:  true,
	CategoryEnvironment: true,
	CategoryPoverty:     true,
	CategoryDisaster:    true,
	CategoryHumanRights: true,
	CategoryOther:       true,
}

// OrganizationImpact is one line of an organization's impact summary.
type OrganizationImpact struct {
	Metric string `bson:"metric" json:"metric"`
	Order  int    `bson:"order" json:"order"`
}

// OrganizationUpdate is a news post published by an organization
type OrganizationUpdate struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title     string             `bson:"title" json:"title"`
	Content   string             `bson:"content" json:"content"`
	Date      string             `bson:"-" json:"date"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}

// Organization represents a charity document in the MongoDB database.
// Raised and Donors are maintained by the ledger and never taken from input.
type Organization struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name            string               `bson:"name" json:"name"`
	Category        string               `bson:"category" json:"category"`
	Location        string               `bson:"location" json:"location"`
	Description     string               `bson:"description" json:"description"`
	LongDescription string               `bson:"long_description" json:"longDescription"`
	Image           string               `bson:"image" json:"image"`
	Verified        bool                 `bson:"verified" json:"verified"`
	Featured        bool                 `bson:"featured" json:"featured"`
	Raised          string               `bson:"raised" json:"raised"`
	Goal            string               `bson:"goal" json:"goal"`
	Donors          int                  `bson:"donors" json:"donors"`
	Founded         int                  `bson:"founded,omitempty" json:"founded,omitempty"`
	WalletAddress   string               `bson:"wallet_address" json:"wallet_address"`
	Impact          []OrganizationImpact `bson:"impact" json:"impact"`
	Updates         []OrganizationUpdate `bson:"updates" json:"updates"`
	Progress        float64              `bson:"-" json:"progress"`
	CreatedAt       time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time            `bson:"updated_at" json:"updated_at"`
}

// Decorate fills the computed fields: progress toward the goal (capped at 1)
// and the relative date of every update.
func (o *Organization) Decorate(now time.Time) {
	o.Progress = 0
	raised, err1 := decimal.NewFromString(o.Raised)
	goal, err2 := decimal.NewFromString(o.Goal)
	if err1 == nil && err2 == nil && goal.IsPositive() {
		p := raised.Div(goal)
		if p.GreaterThan(decimal.NewFromInt(1)) {
			p = decimal.NewFromInt(1)
		}
		o.Progress = p.InexactFloat64()
	}
	for i := range o.Updates {
		o.Updates[i].Date = RelativeDate(o.Updates[i].CreatedAt, now)
	}
}

// RelativeDate renders t the way the dashboard shows update timestamps.
func RelativeDate(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hour")
	case d < 7*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "day")
	case d < 30*24*time.Hour:
		return plural(int(d/(7*24*time.Hour)), "week")
	default:
		return t.Format("Jan 2, 2006")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
