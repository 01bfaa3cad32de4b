package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"ticketera/internal/config"
	"ticketera/internal/database"
	"ticketera/internal/messaging"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/repository"
)

const queueGroup = "journal"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	handlers *Handlers
}

func NewConsumerService(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*ConsumerService, error) {
	db, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		handlers: NewHandlers(repos.Journal, m),
	}, nil
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for _, subject := range models.ValidationSubjects {
		if _, err := cs.nats.SubscribeQueue(subject, queueGroup, cs.handlers.For(subject)); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
	}

	slog.Info("All consumers started successfully", "subjects", models.ValidationSubjects)
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
