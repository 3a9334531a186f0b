package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/bcrypt"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

const (
	sessionName      = "talkinghead-session"
	sessionIDKey     = "conversation_id"
	authenticatedKey = "authenticated"
)

type Manager struct {
	store        *sessions.CookieStore
	passwordHash []byte
	logger       *logger.Log
}

func NewManager(cfg *config.AuthConfig) *Manager {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{
		store:        store,
		passwordHash: []byte(cfg.PasswordHash),
		logger:       logger.New().WithField("component", "auth"),
	}
}

// Enabled reports whether an API password is configured
func (m *Manager) Enabled() bool {
	return len(m.passwordHash) > 0
}

// SessionID returns the conversation id stored in the session cookie,
// assigning a new one on first use.
func (m *Manager) SessionID(w http.ResponseWriter, r *http.Request) (string, error) {
	// A cookie that fails to decode yields a fresh session.
	session, _ := m.store.Get(r, sessionName)

	if id, ok := session.Values[sessionIDKey].(string); ok && id != "" {
		return id, nil
	}

	id := uuid.NewString()
	session.Values[sessionIDKey] = id
	if err := session.Save(r, w); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) checkPassword(password string) bool {
	if password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(m.passwordHash, []byte(password)) == nil
}

func (m *Manager) authenticated(r *http.Request) bool {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		if m.checkPassword(strings.TrimPrefix(header, "Bearer ")) {
			return true
		}
	}

	session, _ := m.store.Get(r, sessionName)
	auth, ok := session.Values[authenticatedKey].(bool)
	return ok && auth
}

// LoginHandler accepts {"password": "..."} and marks the session as authenticated
func (m *Manager) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if m.Enabled() && !m.checkPassword(req.Password) {
		m.logger.Warn("rejected login attempt")
		writeDetail(w, http.StatusUnauthorized, "Invalid password")
		return
	}

	session, _ := m.store.Get(r, sessionName)
	session.Values[authenticatedKey] = true
	if err := session.Save(r, w); err != nil {
		writeDetail(w, http.StatusInternalServerError, "Failed to save session")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (m *Manager) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	session, _ := m.store.Get(r, sessionName)
	session.Values[authenticatedKey] = false
	session.Save(r, w)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// Middleware rejects requests that carry neither a valid bearer password nor
// an authenticated session. It is a no-op when no password is configured.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() || m.authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("WWW-Authenticate", "Bearer")
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
