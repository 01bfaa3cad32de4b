package service

import (
	"context"
	"encoding/json"

	"ticketera/internal/external"
	"ticketera/internal/messaging"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/storage"
)

// Backend is the part of the remote API the services depend on.
type Backend interface {
	Login(ctx context.Context, email, password string) (*models.LoginData, error)
	ListEvents(ctx context.Context, creds external.Credentials) ([]models.Event, error)
	GetSale(ctx context.Context, creds external.Credentials, saleNumber string) (json.RawMessage, error)
	CheckIn(ctx context.Context, creds external.Credentials, saleNumber string, indexes []int) (*models.CheckInResult, error)
	RedeemProducts(ctx context.Context, creds external.Credentials, saleNumber string, lines []models.RedemptionLine) (*models.RedeemResult, error)
	RedeemActivities(ctx context.Context, creds external.Credentials, saleNumber string, lines []models.RedemptionLine) (*models.RedeemResult, error)
}

type Services struct {
	Flow       *Flow
	Scans      *ScanService
	Reconciler *Reconciler
	Auth       *AuthService
	Events     *EventService
}

func NewServices(backend Backend, store *storage.Service, publisher messaging.Publisher, m *metrics.Metrics) *Services {
	flow := NewFlow()

	return &Services{
		Flow:       flow,
		Scans:      NewScanService(flow, backend, store, publisher, m),
		Reconciler: NewReconciler(flow, backend, store, publisher, m),
		Auth:       NewAuthService(flow, backend, store, m),
		Events:     NewEventService(flow, backend, store),
	}
}
