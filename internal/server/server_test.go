package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/memstore"
)

type testServer struct {
	t *testing.T
	e *echo.Echo
}

func newTestServer(t *testing.T, opts ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:            "test",
		Store:          "memory",
		JWTSecret:      strings.Repeat("s", 32),
		JWTTTL:         time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		RateLimitRPS:   1000,
		RateLimitBurst: 1000,
		RequestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	revocations := auth.NewMemoryRevocationStore()
	t.Cleanup(revocations.Close)

	e, err := New(Deps{
		Config:      cfg,
		Logger:      zerolog.Nop(),
		Repos:       MemoryRepositories(memstore.New()),
		Tokens:      auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTTTL),
		Revocations: revocations,
	})
	require.NoError(t, err)
	return &testServer{t: t, e: e}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) decode(rec *httptest.ResponseRecorder, v any) {
	s.t.Helper()
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// register creates a doctor and returns a login token.
func (s *testServer) register(email, password string) string {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": password, "first_name": "Doc", "last_name": "Tor",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	s.decode(rec, &resp)
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

type created struct {
	ID string `json:"id"`
}

func (s *testServer) createPatient(token string) map[string]any {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/patients", token, map[string]any{
		"first_name":    "Pat",
		"last_name":     "Ient",
		"email":         "pat@example.com",
		"phone":         "+1 555 0100",
		"date_of_birth": "1980-04-02",
		"gender":        "FEMALE",
		"blood_type":    "O+",
	})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	var p map[string]any
	s.decode(rec, &p)
	return p
}

func TestHealth_IsPublic(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health/db", "", nil).Code)
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/auth/me",
		"/api/patients",
		"/api/appointments",
		"/api/medical-records",
		"/api/prescriptions",
		"/api/dashboard",
		"/api/calendar/export",
	} {
		rec := s.do(http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := s.do(http.MethodGet, "/api/patients", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestScenario_AppointmentForOwnPatient(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.register("a@x.com", "secret123")
	p := s.createPatient(tokenA)
	patientID := p["id"].(string)

	rec := s.do(http.MethodPost, "/api/appointments", tokenA, map[string]any{
		"patient_id": patientID,
		"date_time":  time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"reason":     "checkup",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/appointments", tokenA, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data []struct {
			PatientID string `json:"patient_id"`
			Status    string `json:"status"`
			Patient   struct {
				ID string `json:"id"`
			} `json:"patient"`
		} `json:"data"`
		Total int `json:"total"`
	}
	s.decode(rec, &list)
	require.Equal(t, 1, list.Total)
	require.Len(t, list.Data, 1)
	require.Equal(t, patientID, list.Data[0].PatientID)
	require.Equal(t, patientID, list.Data[0].Patient.ID)
	require.Equal(t, "SCHEDULED", list.Data[0].Status)
}

func TestScenario_OtherDoctorSeesNotFound(t *testing.T) {
	s := newTestServer(t)
	tokenA := s.register("a@x.com", "secret123")
	p := s.createPatient(tokenA)
	path := "/api/patients/" + p["id"].(string)

	tokenB := s.register("b@x.com", "secret123")
	require.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, tokenB, nil).Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodPut, path, tokenB, map[string]any{"first_name": "X", "last_name": "Y"}).Code)
	require.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, path, tokenB, nil).Code)

	rec := s.do(http.MethodPost, "/api/appointments", tokenB, map[string]any{
		"patient_id": p["id"],
		"date_time":  time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, path, tokenA, nil).Code)
}

func TestPatient_CreateThenGetRoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")
	p := s.createPatient(token)

	rec := s.do(http.MethodGet, "/api/patients/"+p["id"].(string), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	s.decode(rec, &got)
	require.Equal(t, p, got)
	require.Equal(t, "1980-04-02", got["date_of_birth"])
}

func TestDelete_MissingIDIsNotFound(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")
	missing := "/0b6f3c1e-8a43-4d0e-9a55-3f1f7c2f9d10"
	for _, prefix := range []string{"/api/patients", "/api/appointments", "/api/medical-records", "/api/prescriptions"} {
		rec := s.do(http.MethodDelete, prefix+missing, token, nil)
		require.Equal(t, http.StatusNotFound, rec.Code, prefix)
	}
}

func TestCalendarExport_NoMatches(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")

	rec := s.do(http.MethodGet, "/api/calendar/export?status=SCHEDULED", token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"error":"no appointments found"}`, rec.Body.String())
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/auth/me", token, nil).Code)
	require.Equal(t, http.StatusNoContent, s.do(http.MethodPost, "/api/auth/logout", token, nil).Code)
	require.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/auth/me", token, nil).Code)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	s := newTestServer(t)
	s.register("a@x.com", "secret123")
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "A@x.com", "password": "secret123", "first_name": "D", "last_name": "T",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestDashboard_CountsOwnData(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")
	s.createPatient(token)

	rec := s.do(http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats struct {
		TotalPatients    int   `json:"total_patients"`
		NextAppointments []any `json:"next_appointments"`
	}
	s.decode(rec, &stats)
	require.Equal(t, 1, stats.TotalPatients)
	require.NotNil(t, stats.NextAppointments)
}

func TestCalendarStatus_DisabledWithoutOAuth(t *testing.T) {
	s := newTestServer(t)
	token := s.register("a@x.com", "secret123")

	rec := s.do(http.MethodGet, "/api/calendar/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"enabled":false,"linked":false}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/calendar/auth-url", token, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSecurityHeaders_OnAPI(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/patients", "", nil)
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestRateLimit_KeyedPerUser(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimitRPS = 0.001
		cfg.RateLimitBurst = 5
	})
	// Both doctors share the httptest client address; registering spends
	// four of the address's five tokens.
	alice := s.register("alice@x.com", "secret123")
	bob := s.register("bob@x.com", "secret123")

	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/patients", alice, nil).Code, "request %d", i)
	}
	rec := s.do(http.MethodGet, "/api/patients", alice, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/patients", bob, nil).Code)
}

func TestRegister_PasswordOverBcryptLimit(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "long@x.com", "password": strings.Repeat("p", 80), "first_name": "D", "last_name": "T",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "password")

	token := s.register("short@x.com", "secret123")
	rec = s.do(http.MethodPut, "/api/auth/password", token, map[string]string{
		"current_password": "secret123", "new_password": strings.Repeat("p", 73),
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestCreatePatient_OverlongFieldIs400(t *testing.T) {
	s := newTestServer(t)
	token := s.register("doc@x.com", "secret123")
	rec := s.do(http.MethodPost, "/api/patients", token, map[string]any{
		"first_name": strings.Repeat("a", 101), "last_name": "Ient",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), "first_name must be at most 100 characters")
}
