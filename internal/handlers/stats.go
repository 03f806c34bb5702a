package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
)

type StatsHandler struct {
	service *services.StatsService
	log     *logrus.Entry
}

func NewStatsHandler(service *services.StatsService, log *logrus.Logger) *StatsHandler {
	return &StatsHandler{service: service, log: log.WithField("handler", "stats")}
}

// Stats handles GET /api/stats/
func (h *StatsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Health handles GET /api/health/ and always answers 200.
func (h *StatsHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.service.Health(r.Context()))
}
