package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

// OrganizationHandler handles HTTP requests for organizations
type OrganizationHandler struct {
	service *services.OrganizationService
	log     *logrus.Entry
}

func NewOrganizationHandler(service *services.OrganizationService, log *logrus.Logger) *OrganizationHandler {
	return &OrganizationHandler{service: service, log: log.WithField("handler", "organization")}
}

// ListOrganizations handles GET /api/organizations/
func (h *OrganizationHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	page, err := pageParams(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	orgs, count, err := h.service.ListOrganizations(r.Context(), store.OrganizationFilter{
		Category: q.Get("category"),
		Featured: boolParam(r, "featured"),
		Verified: boolParam(r, "verified"),
		Search:   q.Get("search"),
		Page:     page,
	})
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	respondJSON(w, http.StatusOK, listResponse{Results: orgs, Count: count})
}

// GetOrganization handles GET /api/organizations/{id}/
func (h *OrganizationHandler) GetOrganization(w http.ResponseWriter, r *http.Request) {
	org, err := h.service.GetOrganization(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, org)
}

// CreateOrganization handles POST /api/organizations/
func (h *OrganizationHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var org models.Organization
	if !decodeJSON(w, r, &org) {
		return
	}
	created, err := h.service.CreateOrganization(r.Context(), &org)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// UpdateOrganization handles PUT /api/organizations/{id}/
func (h *OrganizationHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	var org models.Organization
	if !decodeJSON(w, r, &org) {
		return
	}
	updated, err := h.service.UpdateOrganization(r.Context(), mux.Vars(r)["id"], &org)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// AddUpdate handles POST /api/organizations/{id}/updates/. Organization
// accounts may only post to their own organization.
func (h *OrganizationHandler) AddUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	claims := claimsFrom(r.Context())
	if claims != nil && claims.Role == models.RoleOrganization && claims.OrganizationID != id {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	update, err := h.service.AddUpdate(r.Context(), id, body.Title, body.Content)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, update)
}
