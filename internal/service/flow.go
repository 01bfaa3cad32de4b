package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/external"
	"ticketera/internal/ledger"
	"ticketera/internal/logger"
	"ticketera/internal/messaging"
	"ticketera/internal/payload"
	"ticketera/internal/storage"
)

// Flow owns the single active sale and its ledger.
// mu is held for the whole of every operation, remote calls included,
// so operations on the active sale never interleave.
type Flow struct {
	mu     sync.Mutex
	ledger *ledger.Ledger
}

// State is what the device shows for the active sale.
type State struct {
	Session *payload.RedemptionSession `json:"session"`
	Ledger  ledger.Snapshot            `json:"ledger"`
	Summary ledger.Summary             `json:"summary"`
}

func NewFlow() *Flow {
	return &Flow{ledger: ledger.New()}
}

// Initialize makes s the active sale, discarding the previous one.
func (f *Flow) Initialize(s *payload.RedemptionSession) *State {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger.Initialize(s)
	return f.stateLocked()
}

func (f *Flow) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger.Clear()
}

func (f *Flow) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ledger.Active()
}

func (f *Flow) State() (*State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ledger.Active() {
		return nil, errNoActiveSession()
	}
	return f.stateLocked(), nil
}

func (f *Flow) stateLocked() *State {
	return &State{
		Session: f.ledger.Session(),
		Ledger:  f.ledger.Snapshot(),
		Summary: f.ledger.Summary(),
	}
}

func errNoActiveSession() error {
	return apperrors.New(apperrors.ErrNoActiveSession, "No hay una venta escaneada. Escanea un código QR primero.")
}

// credentials re-reads the token and selected event from the store.
func credentials(ctx context.Context, store *storage.Service) (external.Credentials, error) {
	token, err := store.Token(ctx)
	if err != nil {
		return external.Credentials{}, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" || storage.TokenExpired(token, time.Now()) {
		return external.Credentials{}, apperrors.New(apperrors.ErrNotLoggedIn, "Debes iniciar sesión para continuar")
	}

	eventID, err := store.SelectedEvent(ctx)
	if err != nil {
		return external.Credentials{}, fmt.Errorf("failed to read selected event: %w", err)
	}
	if eventID == "" {
		return external.Credentials{}, apperrors.New(apperrors.ErrNoEventSelected, "Selecciona un evento antes de validar")
	}

	return external.Credentials{Token: token, EventID: eventID}, nil
}

// forgetOnAuthFailure clears the stored session when the backend rejected the token.
// A permission failure for the event leaves it intact.
func forgetOnAuthFailure(ctx context.Context, store *storage.Service, err error) {
	if !errors.Is(err, apperrors.ErrAuthentication) {
		return
	}
	logger.WithContext(ctx).Warn("Backend rejected the token, clearing session")
	if clearErr := store.ClearUserData(ctx); clearErr != nil {
		logger.WithContext(ctx).Error("Failed to clear user data", "error", clearErr)
	}
}

// fetchSale downloads and decodes the sale payload.
func fetchSale(ctx context.Context, backend Backend, creds external.Credentials, saleNumber string) (map[string]any, error) {
	raw, err := backend.GetSale(ctx, creds, saleNumber)
	if err != nil {
		return nil, err
	}
	obj, err := payload.DecodeObject(raw)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedPayload, "Los datos de la venta no son válidos", err)
	}
	return obj, nil
}

// refetch re-derives the active sale from the server. Identifiers the server omits are kept from prev.
func refetch(ctx context.Context, backend Backend, creds external.Credentials, prev *payload.RedemptionSession) (*payload.RedemptionSession, error) {
	obj, err := fetchSale(ctx, backend, creds, prev.SaleIdentifier)
	if err != nil {
		return nil, err
	}

	s, err := payload.NormalizeMap(payload.Merge(map[string]any{"saleNumber": prev.SaleIdentifier}, obj))
	if err != nil {
		return nil, err
	}
	if s.Event.ID == "" {
		s.Event.ID = prev.Event.ID
	}
	if s.Event.Name == "" {
		s.Event.Name = prev.Event.Name
	}
	if s.Event.Date == "" {
		s.Event.Date = prev.Event.Date
	}
	return s, nil
}

func publish(ctx context.Context, publisher messaging.Publisher, subject string, event any) {
	if err := publisher.Publish(subject, event); err != nil {
		// Log error but don't fail the operation
		logger.WithContext(ctx).Error("Failed to publish validation event",
			"error", err,
			"event_type", subject)
	}
}

