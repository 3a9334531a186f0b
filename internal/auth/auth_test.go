package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tahcohcat/talkinghead-web/config"
)

func newManager(t *testing.T, password string) *Manager {
	t.Helper()
	cfg := &config.AuthConfig{SessionSecret: "test-secret"}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.PasswordHash = string(hash)
	}
	return NewManager(cfg)
}

func TestSessionIDIsStable(t *testing.T) {
	m := newManager(t, "")

	rec := httptest.NewRecorder()
	id, err := m.SessionID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	again, err := m.SessionID(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.Equal(t, id, again)
}

func TestSessionIDIgnoresForeignCookie(t *testing.T) {
	rec := httptest.NewRecorder()
	first, err := newManager(t, "").SessionID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)

	// Same cookie name, different secret.
	other := NewManager(&config.AuthConfig{SessionSecret: "another-secret"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	id, err := other.SessionID(httptest.NewRecorder(), req)
	require.NoError(t, err)
	assert.NotEqual(t, first, id)
}

func TestMiddlewareDisabledWithoutPassword(t *testing.T) {
	m := newManager(t, "")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddlewareBearer(t *testing.T) {
	m := newManager(t, "s3cret")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", "Basic s3cret", http.StatusUnauthorized},
		{"correct", "Bearer s3cret", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				assert.JSONEq(t, `{"detail":"Not authenticated"}`, rec.Body.String())
			}
		})
	}
}

func TestLoginSetsAuthenticatedSession(t *testing.T) {
	m := newManager(t, "s3cret")

	rec := httptest.NewRecorder()
	m.LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"bad"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	m.LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"s3cret"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.AddCookie(cookies[0])
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLoginBadBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newManager(t, "x").LoginHandler(rec, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
