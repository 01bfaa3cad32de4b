package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/logger"
	"ticketera/internal/models"
)

// maxResponseBytes caps how much of a backend reply is read.
const maxResponseBytes = 4 << 20

type BackendClient struct {
	baseURL    string
	httpClient *http.Client
}

type BackendConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gt=0"`
}

// Credentials are sent on every authenticated call.
type Credentials struct {
	Token   string
	EventID string
}

func NewBackendClient(cfg BackendConfig) *BackendClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &BackendClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Login exchanges validator credentials for a token and profile.
func (bc *BackendClient) Login(ctx context.Context, email, password string) (*models.LoginData, error) {
	req := models.LoginRequest{CorreoElectronico: email, Password: password}

	env, err := bc.do(ctx, http.MethodPost, "/api/users/login", nil, req)
	if err != nil {
		return nil, err
	}

	var data models.LoginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRejected, "Login failed - Invalid response format", err)
	}
	if data.Token == "" {
		return nil, apperrors.New(apperrors.ErrRejected, "Login failed - Invalid response format")
	}
	return &data, nil
}

// ListEvents returns the events assigned to the validator.
func (bc *BackendClient) ListEvents(ctx context.Context, creds Credentials) ([]models.Event, error) {
	env, err := bc.do(ctx, http.MethodGet, "/api/users/events", &creds, nil)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	if err := json.Unmarshal(env.Data, &events); err == nil {
		return events, nil
	}

	var wrapped struct {
		Eventos []models.Event `json:"eventos"`
	}
	if err := json.Unmarshal(env.Data, &wrapped); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrRejected, "Respuesta de eventos inválida", err)
	}
	return wrapped.Eventos, nil
}

// GetSale fetches the raw sale payload; the caller normalizes it.
func (bc *BackendClient) GetSale(ctx context.Context, creds Credentials, saleNumber string) (json.RawMessage, error) {
	env, err := bc.do(ctx, http.MethodGet, "/api/redemptions/sale/"+url.PathEscape(saleNumber), &creds, nil)
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CheckIn marks attendees of a sale as entered.
func (bc *BackendClient) CheckIn(ctx context.Context, creds Credentials, saleNumber string, indexes []int) (*models.CheckInResult, error) {
	req := models.CheckInRequest{SaleNumber: saleNumber, AttendeeIndexes: indexes}

	env, err := bc.do(ctx, http.MethodPost, "/api/redemptions/checkin", &creds, req)
	if err != nil {
		return nil, err
	}

	var result models.CheckInResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		// A success without a readable body is still a success.
		logger.WithContext(ctx).Warn("Unreadable check-in response", "error", err)
		return &models.CheckInResult{}, nil
	}
	return &result, nil
}

func (bc *BackendClient) RedeemProducts(ctx context.Context, creds Credentials, saleNumber string, lines []models.RedemptionLine) (*models.RedeemResult, error) {
	return bc.redeem(ctx, "/api/redemptions/redeem-products", creds, saleNumber, lines)
}

func (bc *BackendClient) RedeemActivities(ctx context.Context, creds Credentials, saleNumber string, lines []models.RedemptionLine) (*models.RedeemResult, error) {
	return bc.redeem(ctx, "/api/redemptions/redeem-activities", creds, saleNumber, lines)
}

func (bc *BackendClient) redeem(ctx context.Context, path string, creds Credentials, saleNumber string, lines []models.RedemptionLine) (*models.RedeemResult, error) {
	req := models.RedeemRequest{SaleNumber: saleNumber, Redemptions: lines}

	env, err := bc.do(ctx, http.MethodPost, path, &creds, req)
	if err != nil {
		return nil, err
	}

	var result models.RedeemResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		logger.WithContext(ctx).Warn("Unreadable redemption response", "path", path, "error", err)
		return &models.RedeemResult{}, nil
	}
	return &result, nil
}

// do sends one request and unwraps the {status, message, data} envelope.
func (bc *BackendClient) do(ctx context.Context, method, path string, creds *Credentials, body any) (*models.APIResponse, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, bc.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	requestID := logger.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = logger.NewRequestID()
	}
	req.Header.Set("X-Request-Id", requestID)

	if creds != nil {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
		if creds.EventID != "" {
			req.Header.Set("X-Evento-Id", creds.EventID)
		}
	}

	start := time.Now()
	resp, err := bc.httpClient.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, transportError(err)
	}

	logger.WithContext(ctx).Debug("Backend call",
		"method", method,
		"path", path,
		"status_code", resp.StatusCode,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	return decodeEnvelope(resp.StatusCode, raw)
}
