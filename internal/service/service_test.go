package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "ticketera/internal/errors"
	"ticketera/internal/external"
	"ticketera/internal/metrics"
	"ticketera/internal/models"
	"ticketera/internal/storage"
)

type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	lastCreds external.Credentials

	login   func(email, password string) (*models.LoginData, error)
	events  func() ([]models.Event, error)
	sale    func(saleNumber string) (json.RawMessage, error)
	checkIn func(indexes []int) (*models.CheckInResult, error)
	redeem  func(lines []models.RedemptionLine) (*models.RedeemResult, error)
}

func (f *fakeBackend) record(call string, creds external.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	f.lastCreds = creds
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Login(_ context.Context, email, password string) (*models.LoginData, error) {
	f.record("login", external.Credentials{})
	return f.login(email, password)
}

func (f *fakeBackend) ListEvents(_ context.Context, creds external.Credentials) ([]models.Event, error) {
	f.record("events", creds)
	return f.events()
}

func (f *fakeBackend) GetSale(_ context.Context, creds external.Credentials, saleNumber string) (json.RawMessage, error) {
	f.record("sale", creds)
	if f.sale == nil {
		return nil, apperrors.New(apperrors.ErrNetwork, "Network error - Please check your internet connection")
	}
	return f.sale(saleNumber)
}

func (f *fakeBackend) CheckIn(_ context.Context, creds external.Credentials, _ string, indexes []int) (*models.CheckInResult, error) {
	f.record("checkin", creds)
	return f.checkIn(indexes)
}

func (f *fakeBackend) RedeemProducts(_ context.Context, creds external.Credentials, _ string, lines []models.RedemptionLine) (*models.RedeemResult, error) {
	f.record("redeem-products", creds)
	return f.redeem(lines)
}

func (f *fakeBackend) RedeemActivities(_ context.Context, creds external.Credentials, _ string, lines []models.RedemptionLine) (*models.RedeemResult, error) {
	f.record("redeem-activities", creds)
	return f.redeem(lines)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	fail     bool
}

func (p *recordingPublisher) Publish(subject string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	if p.fail {
		return errors.New("nats down")
	}
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	services  *Services
	backend   *fakeBackend
	store     *storage.Service
	publisher *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	backend := &fakeBackend{}
	store := storage.NewService(storage.NewMemoryStore(), nil)
	publisher := &recordingPublisher{}

	return &fixture{
		services:  NewServices(backend, store, publisher, metrics.New()),
		backend:   backend,
		store:     store,
		publisher: publisher,
	}
}

// loggedIn stores a token and a profile with two events, and selects E-1.
func (f *fixture) loggedIn(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.SaveToken(ctx, "tok"))
	require.NoError(t, f.store.SaveUserData(ctx, &models.UserProfile{
		Validator: models.ValidatorProfile{ID: "v1"},
		Eventos:   []models.Event{{ID: "E-1"}, {ID: "E-2"}},
	}))
	require.NoError(t, f.store.SaveSelectedEvent(ctx, "E-1"))
}

const fullQR = `{
	"saleNumber":"V-1",
	"eventoId":"E-1",
	"attendees":[{"index":0,"fullName":"Ana"},{"index":1,"fullName":"Luis"}],
	"products":[{"id":"p1","nombre":"Bebida","precio":2000,"cantidadComprada":5,"cantidadCanjeada":2}],
	"activities":[{"id":"a1","nombre":"Tour","cantidadComprada":1}]
}`

func (f *fixture) scanned(t *testing.T) {
	t.Helper()
	_, err := f.services.Scans.Scan(context.Background(), fullQR)
	require.NoError(t, err)
}

func sale(body string) func(string) (json.RawMessage, error) {
	return func(string) (json.RawMessage, error) {
		return json.RawMessage(body), nil
	}
}
