package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketera/internal/config"
	"ticketera/internal/external"
	"ticketera/internal/models"
	"ticketera/internal/storage"
)

// fakeBackend serves one sale: two attendees, five drinks with two redeemed.
type fakeBackend struct {
	mu        sync.Mutex
	checkedIn []int
	redeemed  int
}

func (f *fakeBackend) router() *gin.Engine {
	r := gin.New()
	ok := func(c *gin.Context, data any) {
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": data})
	}

	r.POST("/api/users/login", func(c *gin.Context) {
		var req models.LoginRequest
		_ = c.ShouldBindJSON(&req)
		if req.Password != "secreto" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Credenciales inválidas"})
			return
		}
		ok(c, gin.H{
			"token":     "opaque-token",
			"validator": gin.H{"_id": "v1", "nombreCompleto": "Vale", "correoElectronico": req.CorreoElectronico},
			"eventos":   []gin.H{{"_id": "E-1", "informacionGeneral": gin.H{"nombreEvento": "Fest"}}},
		})
	})

	r.GET("/api/redemptions/sale/:sale", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer opaque-token" || c.GetHeader("X-Evento-Id") != "E-1" {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "Token inválido"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		ok(c, gin.H{
			"saleNumber": c.Param("sale"),
			"attendees":  []gin.H{{"index": 0, "fullName": "Ana"}, {"index": 1, "fullName": "Luis"}},
			"attendance": gin.H{"checkedIn": f.checkedIn},
			"products": []gin.H{{
				"id": "p1", "nombre": "Bebida", "precio": 2000,
				"cantidadComprada": 5, "cantidadCanjeada": 2 + f.redeemed,
			}},
		})
	})

	r.POST("/api/redemptions/checkin", func(c *gin.Context) {
		var req models.CheckInRequest
		_ = c.ShouldBindJSON(&req)
		f.mu.Lock()
		f.checkedIn = append(f.checkedIn, req.AttendeeIndexes...)
		f.mu.Unlock()

		attendees := make([]gin.H, 0, len(req.AttendeeIndexes))
		for _, i := range req.AttendeeIndexes {
			attendees = append(attendees, gin.H{"index": i})
		}
		ok(c, gin.H{"checkedInAttendees": attendees, "newCheckIns": len(attendees)})
	})

	r.POST("/api/redemptions/redeem-products", func(c *gin.Context) {
		var req models.RedeemRequest
		_ = c.ShouldBindJSON(&req)
		f.mu.Lock()
		for _, line := range req.Redemptions {
			f.redeemed += line.Cantidad
		}
		f.mu.Unlock()
		ok(c, gin.H{"redemptions": req.Redemptions})
	})

	return r
}

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := httptest.NewServer((&fakeBackend{}).router())
	t.Cleanup(backend.Close)

	cfg := &config.Config{Port: "0", GinMode: gin.TestMode}
	server := New(cfg, Dependencies{
		Backend: external.NewBackendClient(external.BackendConfig{BaseURL: backend.URL, Timeout: 2 * time.Second}),
		Store:   storage.NewMemoryStore(),
	})
	t.Cleanup(func() { server.Cleanup() })
	return server
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestValidationFlow(t *testing.T) {
	s := setupServer(t)

	w := do(t, s, "GET", "/api/validation", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	var errResp models.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "NO_ACTIVE_SESSION", errResp.Code)

	w = do(t, s, "POST", "/api/auth/login", `{"email":"vale@example.com","password":"secreto","rememberMe":"si"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login struct {
		SelectedEventID string `json:"selectedEventId"`
		RememberMe      bool   `json:"rememberMe"`
	}
	decode(t, w, &login)
	assert.Equal(t, "E-1", login.SelectedEventID)
	assert.True(t, login.RememberMe)

	scan, _ := json.Marshal(models.ScanBody{QR: `{"saleId":"S-1","eventoId":"E-1"}`})
	w = do(t, s, "POST", "/api/validation/scan", string(scan))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var state struct {
		Session struct {
			SaleIdentifier string `json:"saleIdentifier"`
			Limited        bool   `json:"limited"`
		} `json:"session"`
		Ledger struct {
			Tickets map[string]bool `json:"tickets"`
			Food    map[string]int  `json:"food"`
		} `json:"ledger"`
	}
	decode(t, w, &state)
	assert.Equal(t, "S-1", state.Session.SaleIdentifier)
	assert.False(t, state.Session.Limited)
	assert.Equal(t, 3, state.Ledger.Food["p1"])

	w = do(t, s, "POST", "/api/validation/checkin", `{"attendeeIndexes":[0]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var checkIn struct {
		Applied string `json:"applied"`
		Ledger  struct {
			Tickets map[string]bool `json:"tickets"`
		} `json:"ledger"`
	}
	decode(t, w, &checkIn)
	assert.Equal(t, "server-confirmed", checkIn.Applied)
	assert.True(t, checkIn.Ledger.Tickets["0"])
	assert.False(t, checkIn.Ledger.Tickets["1"])

	w = do(t, s, "POST", "/api/validation/products/redeem", `{"redemptions":[{"itemId":"p1","cantidad":2}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var redeem struct {
		Applied string `json:"applied"`
		Ledger  struct {
			Tickets map[string]bool `json:"tickets"`
			Food    map[string]int  `json:"food"`
		} `json:"ledger"`
	}
	decode(t, w, &redeem)
	assert.Equal(t, "server-refreshed", redeem.Applied)
	assert.Equal(t, 1, redeem.Ledger.Food["p1"])
	assert.True(t, redeem.Ledger.Tickets["0"])

	w = do(t, s, "POST", "/api/validation/products/redeem", `{"redemptions":[{"itemId":"p1","cantidad":2}]}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	decode(t, w, &errResp)
	assert.Equal(t, "QUANTITY_EXCEEDED", errResp.Code)

	w = do(t, s, "DELETE", "/api/validation", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, "GET", "/api/validation", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProtectedRoutesRequireLogin(t *testing.T) {
	s := setupServer(t)

	for _, route := range []struct{ method, path, body string }{
		{"GET", "/api/auth/me", ""},
		{"GET", "/api/events", ""},
		{"PUT", "/api/events/selected", `{"eventId":"E-1"}`},
		{"POST", "/api/validation/checkin", `{"attendeeIndexes":[0]}`},
		{"POST", "/api/validation/refresh", ""},
	} {
		w := do(t, s, route.method, route.path, route.body)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)

		var errResp models.ErrorResponse
		decode(t, w, &errResp)
		assert.Equal(t, "NOT_LOGGED_IN", errResp.Code, route.path)
	}
}

func TestLoginRejected(t *testing.T) {
	s := setupServer(t)

	w := do(t, s, "POST", "/api/auth/login", `{"email":"vale@example.com","password":"otra"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var errResp models.ErrorResponse
	decode(t, w, &errResp)
	assert.Equal(t, "AUTHENTICATION_FAILURE", errResp.Code)
	assert.Equal(t, "Credenciales inválidas", errResp.Error)

	w = do(t, s, "POST", "/api/auth/login", `{"email":"not-an-email","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &errResp)
	assert.Equal(t, "INVALID_REQUEST", errResp.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupServer(t)

	w := do(t, s, "GET", "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	var health map[string]any
	decode(t, w, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, false, health["activeSession"])
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	w = do(t, s, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "ticketera_http_requests_total"))
}
