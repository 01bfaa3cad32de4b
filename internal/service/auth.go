package service

import (
	"context"
	"fmt"
	"time"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/logger"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/storage"
)

type AuthService struct {
	flow    *Flow
	backend Backend
	store   *storage.Service
	metrics *metrics.Metrics
}

// LoginResult is returned to the device after a successful login.
type LoginResult struct {
	Profile         *models.UserProfile `json:"profile"`
	SelectedEventID string              `json:"selectedEventId,omitempty"`
	RememberMe      bool                `json:"rememberMe"`
}

func NewAuthService(flow *Flow, backend Backend, store *storage.Service, m *metrics.Metrics) *AuthService {
	return &AuthService{flow: flow, backend: backend, store: store, metrics: m}
}

// Login replaces whatever session was stored. With exactly one assigned event it is selected.
func (s *AuthService) Login(ctx context.Context, email, password string, rememberMe bool) (*LoginResult, error) {
	data, err := s.backend.Login(ctx, email, password)
	if err != nil {
		s.metrics.Failed("login", apperrors.Code(err))
		logger.WithContext(ctx).Warn("Login failed", "code", apperrors.Code(err), "error", err)
		return nil, err
	}

	if err := s.store.ClearUserData(ctx); err != nil {
		return nil, err
	}
	s.flow.Clear()

	profile := &models.UserProfile{
		Validator:    data.Validator,
		Eventos:      data.Eventos,
		Permisos:     data.Permisos,
		TotalEventos: data.TotalEventos,
	}
	if profile.TotalEventos == 0 {
		profile.TotalEventos = len(profile.Eventos)
	}

	if err := s.store.SaveToken(ctx, data.Token); err != nil {
		return nil, fmt.Errorf("failed to save token: %w", err)
	}
	if err := s.store.SaveUserData(ctx, profile); err != nil {
		return nil, fmt.Errorf("failed to save user data: %w", err)
	}
	if err := s.store.SaveRememberMe(ctx, rememberMe); err != nil {
		return nil, fmt.Errorf("failed to save remember me: %w", err)
	}

	result := &LoginResult{Profile: profile, RememberMe: rememberMe}
	if len(profile.Eventos) == 1 {
		result.SelectedEventID = profile.Eventos[0].ID.String()
		if err := s.store.SaveSelectedEvent(ctx, result.SelectedEventID); err != nil {
			return nil, fmt.Errorf("failed to save selected event: %w", err)
		}
	}

	logger.WithContext(ctx).Info("Validator logged in",
		"validator_id", profile.Validator.ID,
		"events", len(profile.Eventos),
		"auto_selected", result.SelectedEventID != "")

	return result, nil
}

// Logout forgets the stored session and the active sale. Remember-me is kept.
func (s *AuthService) Logout(ctx context.Context) error {
	s.flow.Clear()
	return s.store.ClearUserData(ctx)
}

func (s *AuthService) Profile(ctx context.Context) (*models.UserProfile, error) {
	if !s.store.IsLoggedIn(ctx) {
		return nil, apperrors.New(apperrors.ErrNotLoggedIn, "Debes iniciar sesión para continuar")
	}
	profile, err := s.store.UserData(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read user data: %w", err)
	}
	return profile, nil
}

func (s *AuthService) RememberMe(ctx context.Context) bool {
	return s.store.RememberMe(ctx)
}

// ExpireStaleSession logs the device out once the stored token's exp has passed.
func (s *AuthService) ExpireStaleSession(ctx context.Context, now time.Time) (bool, error) {
	token, err := s.store.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" || !storage.TokenExpired(token, now) {
		return false, nil
	}

	if err := s.Logout(ctx); err != nil {
		return false, fmt.Errorf("failed to clear expired session: %w", err)
	}
	logger.WithContext(ctx).Info("Stored session expired")
	return true, nil
}
