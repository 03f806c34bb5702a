package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

type DonationHandler struct {
	service *services.DonationService
	log     *logrus.Entry
}

func NewDonationHandler(service *services.DonationService, log *logrus.Logger) *DonationHandler {
	return &DonationHandler{service: service, log: log.WithField("handler", "donation")}
}

// ListDonations handles GET /api/donations/
func (h *DonationHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	filter := store.DonationFilter{
		DonorWallet: q.Get("donor_wallet"),
		Status:      q.Get("status"),
		Page:        page,
	}
	if v := q.Get("organization"); v != "" {
		orgID, err := primitive.ObjectIDFromHex(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid organization id")
			return
		}
		filter.OrganizationID = &orgID
	}

	donations, count, err := h.service.ListDonations(r.Context(), filter)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	if donations == nil {
		donations = []models.Donation{}
	}
	respondJSON(w, http.StatusOK, listResponse{Results: donations, Count: count})
}

// GetDonation handles GET /api/donations/{id}/
func (h *DonationHandler) GetDonation(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.GetDonation(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// CreateDonation handles POST /api/donations/
func (h *DonationHandler) CreateDonation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDonationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	d, err := h.service.CreateDonation(r.Context(), req)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// CompleteDonation handles POST /api/donations/complete/
func (h *DonationHandler) CompleteDonation(w http.ResponseWriter, r *http.Request) {
	var req models.CompleteDonationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DonationID == "" || req.TransactionHash == "" {
		respondError(w, http.StatusBadRequest, "donation_id and transaction_hash are required")
		return
	}
	d, err := h.service.CompleteDonation(r.Context(), req.DonationID, req.TransactionHash)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
