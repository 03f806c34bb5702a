package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

const maxBodyBytes = 1 << 20

type listResponse struct {
	Results interface{} `json:"results"`
	Count   int64       `json:"count"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinels to HTTP statuses. Unexpected
// errors are logged and reported without detail.
func respondServiceError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrInvalidTransactionHash):
		status = http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrDonationNotFound),
		errors.Is(err, services.ErrPayoutNotFound):
		status = http.StatusNotFound
	case errors.Is(err, services.ErrDuplicateWallet),
		errors.Is(err, services.ErrDonationAlreadyCompleted),
		errors.Is(err, services.ErrDonationFailed),
		errors.Is(err, services.ErrTransactionInUse),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrPayoutFinal):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func pageParams(r *http.Request) (store.Page, error) {
	q := r.URL.Query()
	var page store.Page
	var err error
	if v := q.Get("page"); v != "" {
		if page.Number, err = strconv.Atoi(v); err != nil || page.Number < 1 {
			return page, fmt.Errorf("invalid page %q", v)
		}
	}
	if v := q.Get("page_size"); v != "" {
		if page.Size, err = strconv.Atoi(v); err != nil || page.Size < 1 {
			return page, fmt.Errorf("invalid page_size %q", v)
		}
	}
	return page.Normalize(), nil
}

// boolParam returns nil when the parameter is absent; any value other than
// "true" filters for false.
func boolParam(r *http.Request, name string) *bool {
	q := r.URL.Query()
	if _, ok := q[name]; !ok {
		return nil
	}
	v := strings.EqualFold(q.Get(name), "true")
	return &v
}
