package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/markjakearzadon/globalfund-gobackend/internal/config"
	"github.com/markjakearzadon/globalfund-gobackend/internal/db"
	"github.com/markjakearzadon/globalfund-gobackend/internal/events"
	"github.com/markjakearzadon/globalfund-gobackend/internal/handlers"
	"github.com/markjakearzadon/globalfund-gobackend/internal/logger"
	"github.com/markjakearzadon/globalfund-gobackend/internal/services"
	"github.com/markjakearzadon/globalfund-gobackend/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Load .env
	envErr := godotenv.Load(".env")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	log := logger.New(cfg.Log)
	if envErr != nil {
		log.WithError(envErr).Debug("no .env file loaded")
	}
	for _, w := range cfg.Warnings {
		log.Warn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore := openStore(ctx, cfg, log)
	defer closeStore()

	publisher := newPublisher(cfg.Kafka, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Error("Error closing event publisher")
		}
	}()

	// Initialize services
	orgService := services.NewOrganizationService(st, st, log)
	donationService := services.NewDonationService(st, orgService, publisher, log)
	statsService := services.NewStatsService(st, log)
	userService := services.NewUserService(st, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, log)
	coinflow := services.NewCoinflowClient(cfg.Coinflow, log)
	payoutService := services.NewPayoutService(st, coinflow, publisher, cfg.Coinflow.WebhookToken, log)

	limiter := handlers.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	router := handlers.NewRouter(handlers.Services{
		Organizations: orgService,
		Donations:     donationService,
		Stats:         statsService,
		Users:         userService,
		Payouts:       payoutService,
	}, limiter, log)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		donationService.RunSweeper(ctx, cfg.Donations.SweepInterval, cfg.Donations.PendingTTL)
	}()
	go func() {
		defer wg.Done()
		limiter.RunCleanup(ctx, 5*time.Minute)
	}()

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		log.WithField("port", cfg.Server.Port).Info("Server running")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	cancel()
	wg.Wait()
	log.Info("Server stopped")
}

// openStore connects the configured store and returns a func that releases it.
func openStore(ctx context.Context, cfg *config.Config, log *logrus.Logger) (store.Store, func()) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory store; data is lost on restart")
		return store.NewMemoryStore(), func() {}
	}

	client, err := db.Connect(ctx, cfg.Database.URI, cfg.Database.ConnectTimeout)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to MongoDB")
	}
	log.Info("Successfully connected to MongoDB")

	mongoStore := store.NewMongoStore(client.Database(cfg.Database.Name))
	indexCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()
	if err := mongoStore.EnsureIndexes(indexCtx); err != nil {
		log.WithError(err).Fatal("Failed to create indexes")
	}

	return mongoStore, func() {
		if err := db.Disconnect(client, cfg.Database.ConnectTimeout); err != nil {
			log.WithError(err).Error("Error disconnecting from MongoDB")
		}
	}
}

func newPublisher(cfg config.KafkaConfig, log *logrus.Logger) events.Publisher {
	if len(cfg.Brokers) == 0 {
		log.Info("No Kafka brokers configured; events are discarded")
		return events.Nop{}
	}
	publisher, err := events.NewKafkaPublisher(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize Kafka publisher")
	}
	return publisher
}
