package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/portal-session-server/auth"
	"github.com/jrsteele09/portal-session-server/internal/config"
	"github.com/jrsteele09/portal-session-server/otc"
	"github.com/jrsteele09/portal-session-server/server"
	"github.com/jrsteele09/portal-session-server/sessions"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/jrsteele09/portal-session-server/store/memory"
	"github.com/jrsteele09/portal-session-server/token"
	"github.com/stretchr/testify/require"
)

const otcCode = "424242"

type fixture struct {
	store  *store.SessionStore
	tokens *token.Service
	server *server.Server
}

// setupFixture builds a server over in-memory storage. env holds extra
// key, value pairs applied after the defaults.
func setupFixture(t *testing.T, env ...string) *fixture {
	t.Helper()
	t.Setenv("ENV", "TEST")
	t.Setenv("DEPLOYMENT_ENVIRONMENT", "test")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://portal.example.com")
	t.Setenv("RATE_LIMIT_OTC", "100")
	t.Setenv("ACTIVATION_SECRET", "")
	for i := 0; i+1 < len(env); i += 2 {
		t.Setenv(env[i], env[i+1])
	}

	f := &fixture{}
	f.store = store.New(memory.New())
	f.tokens = token.NewService()
	require.NoError(t, f.tokens.Initialize("server-test-secret"))

	sessionService, err := auth.NewSessionService(f.store, f.tokens)
	require.NoError(t, err)
	otcService, err := otc.NewService(f.store, otc.NewFixedCodeProvider(otcCode))
	require.NoError(t, err)

	f.server, err = server.New(config.New(), sessionService, otcService)
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	return rec
}

func (f *fixture) createSession(t *testing.T, orgID string) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/session", map[string]any{
		"orgId":       orgID,
		"tenantId":    "t",
		"environment": "test",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.SessionID)
	return body.SessionID
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := server.New(nil, nil, nil)
	require.Error(t, err)
	_, err = server.New(config.New(), nil, nil)
	require.Error(t, err)
}

func TestSessionJWT(t *testing.T) {
	f := setupFixture(t)
	sessionID := f.createSession(t, "org")

	rec := f.do(t, http.MethodGet, "/api/session/"+sessionID+"/jwt", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body struct {
		JWT     string             `json:"jwt"`
		Session sessions.TokenData `json:"session"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, sessions.StateCreated, body.Session.State)

	claims, err := f.tokens.VerifyToken(body.JWT)
	require.NoError(t, err)
	require.Equal(t, sessionID, claims.Subject)

	require.Equal(t, sessionID, cookie(rec, auth.SessionCookieName).Value)
	require.Equal(t, body.JWT, cookie(rec, auth.TokenCookieName).Value)
}

func TestSessionJWT_MismatchResetsAuthentication(t *testing.T) {
	f := setupFixture(t)
	first := f.createSession(t, "org-a")
	second := f.createSession(t, "org-b")
	require.NotEqual(t, first, second)

	firstData, err := f.store.GetSession(context.Background(), first)
	require.NoError(t, err)
	verified, err := f.tokens.CreateJWTFromSession(*firstData, first, auth.DefaultIssuer, &token.Overrides{
		AuthenticationState: token.Verified,
		NaviStytchUserID:    "user-1",
	})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/session/"+second+"/jwt", nil,
		&http.Cookie{Name: auth.SessionCookieName, Value: first},
		&http.Cookie{Name: auth.TokenCookieName, Value: verified},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, second, cookie(rec, auth.SessionCookieName).Value)

	claims, err := f.tokens.VerifyToken(cookie(rec, auth.TokenCookieName).Value)
	require.NoError(t, err)
	require.Equal(t, token.Unauthenticated, claims.AuthenticationState)
}

func TestSessionJWT_Errors(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodGet, "/api/session/sess_missing/jwt", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NO_SESSION_FOUND", errorCode(t, rec))

	require.NoError(t, f.store.SetSession(context.Background(), "sess-err", sessions.TokenData{
		OrgID:        "o",
		TenantID:     "t",
		Environment:  sessions.EnvironmentTest,
		Exp:          time.Now().Add(time.Hour).Unix(),
		State:        sessions.StateError,
		ErrorMessage: "Care flow could not be started",
	}))
	rec = f.do(t, http.MethodGet, "/api/session/sess-err/jwt", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "Care flow could not be started")
	require.Nil(t, cookie(rec, auth.TokenCookieName))
}

func TestCreateSession_Invalid(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodPost, "/api/session", map[string]any{"orgId": "org"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_SESSION_TYPE", errorCode(t, rec))

	r := httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader("{"))
	out := httptest.NewRecorder()
	f.server.ServeHTTP(out, r)
	require.Equal(t, http.StatusBadRequest, out.Code)
}

func TestRefreshSession(t *testing.T) {
	f := setupFixture(t)
	sessionID := f.createSession(t, "org")

	rec := f.do(t, http.MethodPost, "/api/session/refresh", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/refresh", nil, &http.Cookie{Name: auth.SessionCookieName, Value: sessionID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		JWT                 string `json:"jwt"`
		SessionID           string `json:"sessionId"`
		SessionExpiresAtISO string `json:"sessionExpiresAtIso"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, sessionID, body.SessionID)
	_, err := time.Parse(time.RFC3339, body.SessionExpiresAtISO)
	require.NoError(t, err)

	rec = f.do(t, http.MethodPost, "/api/session/refresh", nil, &http.Cookie{Name: auth.SessionCookieName, Value: "gone"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "SESSION_EXPIRED", errorCode(t, rec))
}

func TestActivateSession(t *testing.T) {
	f := setupFixture(t)
	sessionID := f.createSession(t, "org")

	rec := f.do(t, http.MethodPost, "/api/session/"+sessionID+"/activate", map[string]any{
		"careflowId":    "cf",
		"stakeholderId": "sh",
		"patientId":     "pt",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	stored, err := f.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StateActive, stored.State)

	rec = f.do(t, http.MethodPost, "/api/session/"+sessionID+"/activate", map[string]any{"careflowId": "cf"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivateSession_RequiresSecret(t *testing.T) {
	f := setupFixture(t, "ACTIVATION_SECRET", "starter-secret")
	sessionID := f.createSession(t, "org")
	body := map[string]any{"careflowId": "cf", "stakeholderId": "sh", "patientId": "pt"}

	rec := f.do(t, http.MethodPost, "/api/session/"+sessionID+"/activate", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "UNAUTHORIZED", errorCode(t, rec))

	activate := func(secret string) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		r := httptest.NewRequest(http.MethodPost, "/api/session/"+sessionID+"/activate", &buf)
		r.Header.Set("X-Activation-Secret", secret)
		rec := httptest.NewRecorder()
		f.server.ServeHTTP(rec, r)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, activate("wrong").Code)

	stored, err := f.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, sessions.StateCreated, stored.State)

	rec = activate("starter-secret")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
}

func TestOTCFlow(t *testing.T) {
	f := setupFixture(t)
	sessionID := f.createSession(t, "org")
	sessionCookie := &http.Cookie{Name: auth.SessionCookieName, Value: sessionID}

	rec := f.do(t, http.MethodPost, "/api/session/otc/start", map[string]any{"method": "sms", "destination": "+31600000000"}, sessionCookie)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.NotContains(t, rec.Body.String(), "+31600000000")

	rec = f.do(t, http.MethodPost, "/api/session/otc/verify", map[string]any{"code": "000000"}, sessionCookie)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "OTC_INVALID_CODE", errorCode(t, rec))

	rec = f.do(t, http.MethodPost, "/api/session/otc/verify", map[string]any{"code": otcCode}, sessionCookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	claims, err := f.tokens.VerifyToken(cookie(rec, auth.TokenCookieName).Value)
	require.NoError(t, err)
	require.Equal(t, token.Verified, claims.AuthenticationState)
	require.NotEmpty(t, claims.NaviStytchUserID)

	rec = f.do(t, http.MethodPost, "/api/session/otc/verify", map[string]any{"code": otcCode}, sessionCookie)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOTC_RequiresSession(t *testing.T) {
	f := setupFixture(t)
	rec := f.do(t, http.MethodPost, "/api/session/otc/start", map[string]any{"method": "sms", "destination": "+31600000000"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "NO_SESSION_FOUND", errorCode(t, rec))
}

func TestOTC_RateLimited(t *testing.T) {
	f := setupFixture(t, "RATE_LIMIT_OTC", "2")

	codes := make([]int, 0, 3)
	for range 3 {
		codes = append(codes, f.do(t, http.MethodPost, "/api/session/otc/verify", map[string]any{"code": otcCode}).Code)
	}
	require.Equal(t, []int{http.StatusNotFound, http.StatusNotFound, http.StatusTooManyRequests}, codes)
}

func TestLogout(t *testing.T) {
	f := setupFixture(t)
	rec := f.do(t, http.MethodPost, "/api/session/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, -1, cookie(rec, auth.SessionCookieName).MaxAge)
	require.Equal(t, -1, cookie(rec, auth.TokenCookieName).MaxAge)
}

func TestCors(t *testing.T) {
	f := setupFixture(t)

	r := httptest.NewRequest(http.MethodOptions, "/api/session/refresh", nil)
	r.Header.Set("Origin", "https://portal.example.com")
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://portal.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	r = httptest.NewRequest(http.MethodOptions, "/api/session/refresh", nil)
	r.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	f.server.ServeHTTP(rec, r)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHealthAndMetrics(t *testing.T) {
	f := setupFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	f.createSession(t, "org")
	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "portal_session_sessions_created_total")
	require.Contains(t, rec.Body.String(), "portal_session_http_requests_total")
}

func TestRoutes_OTCDisabledWithoutService(t *testing.T) {
	sessionService, err := auth.NewSessionService(store.New(memory.New()), token.NewService())
	require.NoError(t, err)
	srv, err := server.New(config.New(), sessionService, nil)
	require.NoError(t, err)
	require.NotContains(t, srv.Routes(), "POST "+server.RouteOTCStart)
	require.Contains(t, srv.Routes(), "POST "+server.RouteCreateSession)
}
