package main

import (
	"context"
	"errors"
	"flag"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/db"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/models"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

type sampleOrganization struct {
	org     models.Organization
	impacts []string
	updates [][2]string
}

func samples() []sampleOrganization {
	return []sampleOrganization{
		{
			org: models.Organization{
				Name:            "Global Water Initiative",
				Category:        models.CategoryWater,
				Location:        "Kenya",
				Description:     "Providing clean water access to rural communities across East Africa",
				LongDescription: "The Global Water Initiative works to bring clean, safe drinking water to rural communities throughout East Africa. We build sustainable water systems, train local technicians and help communities maintain their own water infrastructure. Since 2015 we have helped over 50,000 people gain access to clean water.",
				WalletAddress:   "0x1111111111111111111111111111111111111111",
				Goal:            "100000",
				Image:           "💧",
				Verified:        true,
				Featured:        true,
				Founded:         2015,
			},
			impacts: []string{"50,000+ people served", "120 wells constructed", "45 communities transformed", "98% sustainability rate"},
			updates: [][2]string{
				{"New Well Completed in Kitui", "We just completed our 120th well, bringing clean water to 500 families in Kitui County."},
				{"Training Program Success", "30 local technicians completed our maintenance training program."},
			},
		},
		{
			org: models.Organization{
				Name:            "Education for All",
				Category:        models.CategoryEducation,
				Location:        "India",
				Description:     "Building schools and providing educational resources in underserved areas",
				LongDescription: "Education for All provides quality education to children in underserved communities across India. We build schools, train teachers, provide learning materials and offer scholarships so every child has the opportunity to learn.",
				WalletAddress:   "0x2222222222222222222222222222222222222222",
				Goal:            "150000",
				Image:           "📚",
				Verified:        true,
				Featured:        true,
				Founded:         2012,
			},
			impacts: []string{"15 schools built", "3,200+ students enrolled", "150 teachers trained", "85% graduation rate"},
			updates: [][2]string{
				{"New Computer Lab Opened", "Students now have access to modern technology and digital learning resources."},
			},
		},
		{
			org: models.Organization{
				Name:            "Healthcare Without Borders",
				Category:        models.CategoryHealthcare,
				Location:        "Multiple",
				Description:     "Delivering medical aid and supplies to communities in crisis",
				LongDescription: "Healthcare Without Borders provides medical care, supplies and support to communities affected by conflict, natural disasters and poverty. Volunteer medical professionals deliver emergency care, run health screenings and establish lasting healthcare infrastructure.",
				WalletAddress:   "0x3333333333333333333333333333333333333333",
				Goal:            "200000",
				Image:           "⚕️",
				Verified:        true,
				Founded:         2010,
			},
			impacts: []string{"500,000+ patients treated", "50+ mobile clinics", "200+ healthcare workers", "30 countries served"},
		},
	}
}

// seed inserts the sample organizations. An organization whose wallet is
// already registered is updated in place and keeps its news updates.
func seed(ctx context.Context, orgs *services.OrganizationService, st store.OrganizationStore, log *logrus.Logger) (created, updated int, err error) {
	for _, s := range samples() {
		org := s.org
		for i, metric := range s.impacts {
			org.Impact = append(org.Impact, models.OrganizationImpact{Metric: metric, Order: i})
		}

		existing, err := st.GetOrganizationByWallet(ctx, org.WalletAddress)
		switch {
		case err == nil:
			if _, err := orgs.UpdateOrganization(ctx, existing.ID.Hex(), &org); err != nil {
				return created, updated, err
			}
			updated++
			log.WithField("name", org.Name).Info("Updated organization")
			continue
		case !errors.Is(err, store.ErrNotFound):
			return created, updated, err
		}

		saved, err := orgs.CreateOrganization(ctx, &org)
		if err != nil {
			return created, updated, err
		}
		for _, u := range s.updates {
			if _, err := orgs.AddUpdate(ctx, saved.ID.Hex(), u[0], u[1]); err != nil {
				return created, updated, err
			}
		}
		created++
		log.WithField("name", org.Name).Info("Created organization")
	}
	return created, updated, nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env
	_ = godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Log)
	if cfg.Database.Driver != "mongo" {
		log.Fatal("Seeding requires database.driver mongo")
	}

	ctx := context.Background()
	client, err := db.Connect(ctx, cfg.Database.URI, cfg.Database.ConnectTimeout)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	defer func() {
		if err := db.Disconnect(client, cfg.Database.ConnectTimeout); err != nil {
			log.WithError(err).Error("Error disconnecting from MongoDB")
		}
	}()

	st := store.NewMongoStore(client.Database(cfg.Database.Name))
	if err := st.EnsureIndexes(ctx); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	created, updated, err := seed(ctx, services.NewOrganizationService(st, st, log), st, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load sample organizations")
	}
	log.WithFields(logrus.Fields{"created": created, "updated": updated}).Info("Successfully loaded sample organizations")
}
