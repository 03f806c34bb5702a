package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/metrics"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
)

// Services groups everything the router dispatches to.
type Services struct {
	Organizations *services.OrganizationService
	Donations     *services.DonationService
	Stats         *services.StatsService
	Users         *services.UserService
	Payouts       *services.PayoutService
}

// NewRouter builds the ledger API. Every route is served with and without a
// trailing slash.
func NewRouter(svc Services, limiter *RateLimiter, log *logrus.Logger) *mux.Router {
	orgHandler := NewOrganizationHandler(svc.Organizations, log)
	donationHandler := NewDonationHandler(svc.Donations, log)
	statsHandler := NewStatsHandler(svc.Stats, log)
	userHandler := NewUserHandler(svc.Users, svc.Organizations, svc.Donations, svc.Payouts, svc.Stats, log)
	payoutHandler := NewPayoutHandler(svc.Payouts, log)
	auth := NewAuthenticator(svc.Users)

	router := mux.NewRouter()
	router.Use(LoggingMiddleware(log))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "HEAD")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	route := func(path string, h http.Handler, methods ...string) {
		api.Handle(path, h).Methods(methods...)
		api.Handle(strings.TrimSuffix(path, "/"), h).Methods(methods...)
	}
	limit := func(h http.HandlerFunc) http.Handler {
		if limiter == nil {
			return h
		}
		return limiter.Limit(h)
	}

	route("/organizations/", http.HandlerFunc(orgHandler.ListOrganizations), "GET")
	route("/organizations/", limit(orgHandler.CreateOrganization), "POST")
	route("/organizations/{id}/", http.HandlerFunc(orgHandler.GetOrganization), "GET")
	route("/organizations/{id}/", limit(orgHandler.UpdateOrganization), "PUT", "PATCH")
	route("/organizations/{id}/updates/", limit(auth.Require(orgHandler.AddUpdate, models.RoleOrganization, models.RoleDeveloper)), "POST")

	route("/donations/", http.HandlerFunc(donationHandler.ListDonations), "GET")
	route("/donations/", limit(donationHandler.CreateDonation), "POST")
	route("/donations/complete/", limit(donationHandler.CompleteDonation), "POST")
	route("/donations/{id}/", http.HandlerFunc(donationHandler.GetDonation), "GET")

	route("/validate/wallet/", http.HandlerFunc(ValidateWallet), "POST")
	route("/validate/transaction/", http.HandlerFunc(ValidateTransaction), "POST")

	route("/stats/", http.HandlerFunc(statsHandler.Stats), "GET")
	route("/health/", http.HandlerFunc(statsHandler.Health), "GET")

	route("/auth/register/", limit(userHandler.Register), "POST")
	route("/auth/login/", limit(userHandler.Login), "POST")
	route("/dashboard/", auth.Require(userHandler.Dashboard), "GET")

	route("/payouts/webhook/", http.HandlerFunc(payoutHandler.HandleWebhook), "POST")
	route("/payouts/", limit(auth.Require(payoutHandler.RequestPayout, models.RoleOrganization)), "POST")
	route("/payouts/", auth.Require(payoutHandler.ListPayouts, models.RoleOrganization), "GET")

	return router
}
