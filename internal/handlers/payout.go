package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
)

const webhookTokenHeader = "x-coinflow-webhook-token"

type PayoutHandler struct {
	service *services.PayoutService
	log     *logrus.Entry
}

func NewPayoutHandler(service *services.PayoutService, log *logrus.Logger) *PayoutHandler {
	return &PayoutHandler{service: service, log: log.WithField("handler", "payout")}
}

// RequestPayout handles POST /api/payouts/
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrganization(r)
	if !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	var body struct {
		Amount      string `json:"amount"`
		Destination string `json:"destination"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	payout, err := h.service.RequestPayout(r.Context(), orgID, body.Amount, body.Destination)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, payout)
}

// ListPayouts handles GET /api/payouts/
func (h *PayoutHandler) ListPayouts(w http.ResponseWriter, r *http.Request) {
	orgID, ok := callerOrganization(r)
	if !ok {
		respondError(w, http.StatusForbidden, "forbidden")
		return
	}
	payouts, err := h.service.ListPayouts(r.Context(), orgID)
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, listResponse{Results: nonNilPayouts(payouts), Count: int64(len(payouts))})
}

// HandleWebhook handles POST /api/payouts/webhook/
func (h *PayoutHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload services.WebhookPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if err := h.service.HandleWebhook(r.Context(), r.Header.Get(webhookTokenHeader), payload); err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
