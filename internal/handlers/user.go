package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

const dashboardRecent = 10

type UserHandler struct {
	users         *services.UserService
	organizations *services.OrganizationService
	donations     *services.DonationService
	payouts       *services.PayoutService
	stats         *services.StatsService
	log           *logrus.Entry
}

func NewUserHandler(
	users *services.UserService,
	organizations *services.OrganizationService,
	donations *services.DonationService,
	payouts *services.PayoutService,
	stats *services.StatsService,
	log *logrus.Logger,
) *UserHandler {
	return &UserHandler{
		users:         users,
		organizations: organizations,
		donations:     donations,
		payouts:       payouts,
		stats:         stats,
		log:           log.WithField("handler", "user"),
	}
}

// Register handles POST /api/auth/register/
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

// Login handles POST /api/auth/login/
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token, user, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

type organizationDashboard struct {
	Organization *models.Organization `json:"organization"`
	Donations    []models.Donation    `json:"recent_donations"`
	Payouts      []models.Payout      `json:"payouts"`
}

type developerDashboard struct {
	Stats     *models.Stats     `json:"stats"`
	Donations []models.Donation `json:"recent_donations"`
}

// Dashboard handles GET /api/dashboard/. The body depends on the caller's role.
func (h *UserHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Authorization header required")
		return
	}
	recent := store.Page{Number: 1, Size: dashboardRecent}

	if claims.Role == models.RoleOrganization {
		org, err := h.organizations.GetOrganization(r.Context(), claims.OrganizationID)
		if err != nil {
			respondServiceError(w, h.log, err)
			return
		}
		donations, _, err := h.donations.ListDonations(r.Context(), store.DonationFilter{OrganizationID: &org.ID, Page: recent})
		if err != nil {
			respondServiceError(w, h.log, err)
			return
		}
		payouts, err := h.payouts.ListPayouts(r.Context(), claims.OrganizationID)
		if err != nil {
			respondServiceError(w, h.log, err)
			return
		}
		respondJSON(w, http.StatusOK, organizationDashboard{
			Organization: org,
			Donations:    nonNil(donations),
			Payouts:      nonNilPayouts(payouts),
		})
		return
	}

	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	donations, _, err := h.donations.ListDonations(r.Context(), store.DonationFilter{Page: recent})
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, developerDashboard{Stats: stats, Donations: nonNil(donations)})
}

// callerOrganization returns the organization bound to an organization-role token.
func callerOrganization(r *http.Request) (string, bool) {
	claims := claimsFrom(r.Context())
	if claims == nil || claims.Role != models.RoleOrganization {
		return "", false
	}
	if _, err := primitive.ObjectIDFromHex(claims.OrganizationID); err != nil {
		return "", false
	}
	return claims.OrganizationID, true
}

func nonNil(donations []models.Donation) []models.Donation {
	if donations == nil {
		return []models.Donation{}
	}
	return donations
}

func nonNilPayouts(payouts []models.Payout) []models.Payout {
	if payouts == nil {
		return []models.Payout{}
	}
	return payouts
}
