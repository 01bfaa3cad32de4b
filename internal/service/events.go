package service

import (
	"context"
	"errors"
	"fmt"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/external"
	"ticketera/internal/logger"
	"ticketera/internal/models"
	"ticketera/internal/storage"
)

type EventService struct {
	flow    *Flow
	backend Backend
	store   *storage.Service
}

func NewEventService(flow *Flow, backend Backend, store *storage.Service) *EventService {
	return &EventService{flow: flow, backend: backend, store: store}
}

// List returns the validator's events, falling back to the ones stored at login
// when the backend cannot be reached.
func (s *EventService) List(ctx context.Context) ([]models.Event, error) {
	token, err := s.store.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return nil, apperrors.New(apperrors.ErrNotLoggedIn, "Debes iniciar sesión para continuar")
	}

	events, err := s.backend.ListEvents(ctx, external.Credentials{Token: token})
	if err == nil {
		return events, nil
	}
	if errors.Is(err, apperrors.ErrAuthentication) {
		forgetOnAuthFailure(ctx, s.store, err)
		return nil, err
	}

	profile, profileErr := s.store.UserData(ctx)
	if profileErr != nil || profile == nil || len(profile.Eventos) == 0 {
		return nil, err
	}
	logger.WithContext(ctx).Warn("Using stored events", "error", err)
	return profile.Eventos, nil
}

// Select makes eventID the event every validation is sent for. A sale scanned
// under another event is discarded.
func (s *EventService) Select(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "" {
		return nil, apperrors.New(apperrors.ErrInvalidRequest, "Debes indicar un evento")
	}
	profile, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}

	event := findEvent(profile, eventID)
	if event == nil && len(profile.Eventos) > 0 {
		return nil, apperrors.New(apperrors.ErrEventPermission, "No tienes permiso para validar este evento")
	}
	if event == nil {
		event = &models.Event{ID: models.FlexibleID(eventID)}
	}

	current, err := s.store.SelectedEvent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read selected event: %w", err)
	}
	if current != eventID {
		s.flow.Clear()
	}
	if err := s.store.SaveSelectedEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("failed to save selected event: %w", err)
	}
	return event, nil
}

func (s *EventService) Selected(ctx context.Context) (*models.Event, error) {
	profile, err := s.profile(ctx)
	if err != nil {
		return nil, err
	}
	eventID, err := s.store.SelectedEvent(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read selected event: %w", err)
	}
	if eventID == "" {
		return nil, apperrors.New(apperrors.ErrNoEventSelected, "Selecciona un evento antes de validar")
	}

	if event := findEvent(profile, eventID); event != nil {
		return event, nil
	}
	return &models.Event{ID: models.FlexibleID(eventID)}, nil
}

func (s *EventService) profile(ctx context.Context) (*models.UserProfile, error) {
	if !s.store.IsLoggedIn(ctx) {
		return nil, apperrors.New(apperrors.ErrNotLoggedIn, "Debes iniciar sesión para continuar")
	}
	profile, err := s.store.UserData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}
	return profile, nil
}

func findEvent(profile *models.UserProfile, eventID string) *models.Event {
	for i := range profile.Eventos {
		if profile.Eventos[i].ID.String() == eventID {
			return &profile.Eventos[i]
		}
	}
	return nil
}
