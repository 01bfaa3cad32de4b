package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"ticketera/internal/logger"
	"ticketera/internal/models"
)

// Storage keys
const (
	KeyUserToken     = "userToken"
	KeyUserData      = "userData"
	KeyRememberMe    = "rememberMe"
	KeySelectedEvent = "selectedEventId"
)

type Service struct {
	store  Store
	sealer *Sealer
	now    func() time.Time
}

// NewService wraps store. sealer may be nil, in which case the token is stored as is.
func NewService(store Store, sealer *Sealer) *Service {
	return &Service{store: store, sealer: sealer, now: time.Now}
}

func (s *Service) SaveToken(ctx context.Context, token string) error {
	value := token
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(KeyUserToken, token)
		if err != nil {
			return fmt.Errorf("failed to seal token: %w", err)
		}
		value = sealed
	}
	return s.store.Set(ctx, KeyUserToken, value)
}

// Token returns the stored token, or "" when there is none or it cannot be opened.
func (s *Service) Token(ctx context.Context) (string, error) {
	value, ok, err := s.store.Get(ctx, KeyUserToken)
	if err != nil || !ok {
		return "", err
	}
	if s.sealer == nil {
		return value, nil
	}

	token, err := s.sealer.Open(KeyUserToken, value)
	if err != nil {
		logger.WithContext(ctx).Warn("Stored token cannot be opened, discarding", "error", err)
		if delErr := s.store.Delete(ctx, KeyUserToken); delErr != nil {
			return "", delErr
		}
		return "", nil
	}
	return token, nil
}

func (s *Service) SaveUserData(ctx context.Context, profile *models.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}
	return s.store.Set(ctx, KeyUserData, string(data))
}

// UserData returns nil when no profile is stored or the stored one is unreadable.
func (s *Service) UserData(ctx context.Context) (*models.UserProfile, error) {
	value, ok, err := s.store.Get(ctx, KeyUserData)
	if err != nil || !ok {
		return nil, err
	}

	var profile models.UserProfile
	if err := json.Unmarshal([]byte(value), &profile); err != nil {
		logger.WithContext(ctx).Warn("Stored user data is unreadable", "error", err)
		return nil, nil
	}
	return &profile, nil
}

func (s *Service) SaveRememberMe(ctx context.Context, remember bool) error {
	return s.store.Set(ctx, KeyRememberMe, strconv.FormatBool(remember))
}

func (s *Service) RememberMe(ctx context.Context) bool {
	value, ok, err := s.store.Get(ctx, KeyRememberMe)
	if err != nil {
		logger.WithContext(ctx).Warn("Failed to read remember-me preference", "error", err)
		return false
	}
	return ok && value == "true"
}

func (s *Service) SaveSelectedEvent(ctx context.Context, eventID string) error {
	return s.store.Set(ctx, KeySelectedEvent, eventID)
}

func (s *Service) SelectedEvent(ctx context.Context) (string, error) {
	value, _, err := s.store.Get(ctx, KeySelectedEvent)
	return value, err
}

// ClearUserData removes everything tied to the logged-in validator. Remember-me survives.
func (s *Service) ClearUserData(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyUserToken, KeyUserData, KeySelectedEvent); err != nil {
		return fmt.Errorf("failed to clear user data: %w", err)
	}
	return nil
}

// IsLoggedIn requires both a token and a profile, and an unexpired token when it carries exp.
func (s *Service) IsLoggedIn(ctx context.Context) bool {
	token, err := s.Token(ctx)
	if err != nil || token == "" {
		return false
	}
	profile, err := s.UserData(ctx)
	if err != nil || profile == nil {
		return false
	}
	return !TokenExpired(token, s.now())
}
