package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

type StatsService struct {
	store store.Store
	log   *logrus.Entry
}

func NewStatsService(st store.Store, log *logrus.Logger) *StatsService {
	return &StatsService{store: st, log: log.WithField("service", "stats")}
}

// Stats aggregates every completed donation on the platform.
func (s *StatsService) Stats(ctx context.Context) (*models.Stats, error) {
	completed, err := s.store.CompletedDonations(ctx, nil)
	if err != nil {
		s.log.WithError(err).Error("failed to load completed donations")
		return nil, fmt.Errorf("failed to load completed donations: %w", err)
	}
	orgCount, err := s.store.CountOrganizations(ctx)
	if err != nil {
		s.log.WithError(err).Error("failed to count organizations")
		return nil, fmt.Errorf("failed to count organizations: %w", err)
	}

	total, donors := sumDonations(completed)
	totalUSD := decimal.Zero
	for _, d := range completed {
		if usd, err := decimal.NewFromString(d.AmountUSD); err == nil {
			totalUSD = totalUSD.Add(usd)
		}
	}

	return &models.Stats{
		TotalAmount:        json.Number(total.String()),
		TotalAmountUSD:     json.Number(totalUSD.StringFixed(2)),
		TotalDonations:     int64(len(completed)),
		UniqueDonors:       int64(len(donors)),
		OrganizationsCount: orgCount,
	}, nil
}

// Health never fails; an unreachable database is reported in the body.
func (s *StatsService) Health(ctx context.Context) models.Health {
	h := models.Health{Status: "healthy", DatabaseConnected: true, Version: config.Version}
	if err := s.store.Ping(ctx); err != nil {
		s.log.WithError(err).Warn("database ping failed")
		h.Status = "unhealthy"
		h.DatabaseConnected = false
	}
	return h
}
