package storage

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketera/internal/models"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "v1", "exp": exp.Unix()})
	s, err := token.SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return s
}

func testProfile() *models.UserProfile {
	return &models.UserProfile{
		Validator:    models.ValidatorProfile{ID: "v1", NombreCompleto: "Val"},
		Eventos:      []models.Event{{ID: "E-1"}},
		TotalEventos: 1,
	}
}

func TestService_RoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	require.NoError(t, svc.SaveToken(ctx, "opaque"))
	require.NoError(t, svc.SaveUserData(ctx, testProfile()))
	require.NoError(t, svc.SaveRememberMe(ctx, true))
	require.NoError(t, svc.SaveSelectedEvent(ctx, "E-1"))

	token, err := svc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "opaque", token)

	profile, err := svc.UserData(ctx)
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "Val", profile.Validator.NombreCompleto)
	assert.True(t, profile.HasEvent("E-1"))

	assert.True(t, svc.RememberMe(ctx))
	eventID, err := svc.SelectedEvent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "E-1", eventID)
	assert.True(t, svc.IsLoggedIn(ctx))
}

func TestService_ClearUserDataKeepsRememberMe(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	require.NoError(t, svc.SaveToken(ctx, "opaque"))
	require.NoError(t, svc.SaveUserData(ctx, testProfile()))
	require.NoError(t, svc.SaveRememberMe(ctx, true))
	require.NoError(t, svc.SaveSelectedEvent(ctx, "E-1"))

	require.NoError(t, svc.ClearUserData(ctx))

	token, _ := svc.Token(ctx)
	assert.Empty(t, token)
	profile, _ := svc.UserData(ctx)
	assert.Nil(t, profile)
	eventID, _ := svc.SelectedEvent(ctx)
	assert.Empty(t, eventID)
	assert.True(t, svc.RememberMe(ctx))
	assert.False(t, svc.IsLoggedIn(ctx))
}

func TestService_IsLoggedInNeedsBothKeys(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)

	require.NoError(t, svc.SaveToken(ctx, "opaque"))
	assert.False(t, svc.IsLoggedIn(ctx))

	require.NoError(t, svc.SaveUserData(ctx, testProfile()))
	assert.True(t, svc.IsLoggedIn(ctx))
}

func TestService_ExpiredJWT(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewMemoryStore(), nil)
	require.NoError(t, svc.SaveUserData(ctx, testProfile()))

	require.NoError(t, svc.SaveToken(ctx, signedToken(t, time.Now().Add(-time.Minute))))
	assert.False(t, svc.IsLoggedIn(ctx))

	require.NoError(t, svc.SaveToken(ctx, signedToken(t, time.Now().Add(time.Hour))))
	assert.True(t, svc.IsLoggedIn(ctx))
}

func TestService_CorruptUserData(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(store, nil)

	require.NoError(t, store.Set(ctx, KeyUserData, "{not json"))
	profile, err := svc.UserData(ctx)
	assert.NoError(t, err)
	assert.Nil(t, profile)
}

func TestService_SealedToken(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	sealer, err := NewSealer("passphrase", "device-1")
	require.NoError(t, err)
	svc := NewService(store, sealer)

	require.NoError(t, svc.SaveToken(ctx, "secret-token"))

	raw, ok, err := store.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(raw, sealedPrefix))
	assert.NotContains(t, raw, "secret-token")

	token, err := svc.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	// A different device cannot open it and the value is discarded.
	other, err := NewSealer("passphrase", "device-2")
	require.NoError(t, err)
	token, err = NewService(store, other).Token(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
	_, ok, _ = store.Get(ctx, KeyUserToken)
	assert.False(t, ok)
}

func TestSealer_RejectsTampering(t *testing.T) {
	sealer, err := NewSealer("passphrase", "device-1")
	require.NoError(t, err)

	sealed, err := sealer.Seal(KeyUserToken, "abc")
	require.NoError(t, err)

	_, err = sealer.Open(KeyUserData, sealed)
	assert.ErrorIs(t, err, ErrUnsealable)
	_, err = sealer.Open(KeyUserToken, "plain")
	assert.ErrorIs(t, err, ErrUnsealable)
	_, err = sealer.Open(KeyUserToken, sealed[:len(sealed)-2])
	assert.ErrorIs(t, err, ErrUnsealable)

	_, err = NewSealer("", "device-1")
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	require.True(t, ok)
	assert.True(t, got.Equal(exp))

	_, ok = TokenExpiry("opaque")
	assert.False(t, ok)
	assert.False(t, TokenExpired("opaque", time.Now()))
}

func TestValkeyStore(t *testing.T) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		t.Skip("VALKEY_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewValkeyStore(ValkeyConfig{Addr: addr, KeyPrefix: "ticketera:test", DeviceID: time.Now().Format("150405.000")})
	require.NoError(t, err)
	defer store.Close()
	defer store.Delete(ctx, KeyUserToken, KeyRememberMe)

	require.NoError(t, store.Set(ctx, KeyUserToken, "t"))
	v, ok, err := store.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "t", v)

	require.NoError(t, store.Delete(ctx, KeyUserToken))
	_, ok, err = store.Get(ctx, KeyUserToken)
	require.NoError(t, err)
	assert.False(t, ok)
}
