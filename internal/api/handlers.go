package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tahcohcat/talkinghead-web/internal/auth"
	"github.com/tahcohcat/talkinghead-web/internal/avatar"
	"github.com/tahcohcat/talkinghead-web/internal/avatars"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
	"github.com/tahcohcat/talkinghead-web/internal/video"
	"github.com/tahcohcat/talkinghead-web/internal/viseme"
)

const (
	maxBodyBytes     = 1 << 20
	modelCheckTimeout = 3 * time.Second
)

type ModelChecker interface {
	IsModelAvailable(ctx context.Context) error
}

// Info is reported by the health and config endpoints. Model, when set, is
// probed on every health check.
type Info struct {
	AIProvider string
	TTSVoice   string
	Model      ModelChecker
}

type AvatarLister interface {
	List() ([]avatars.Avatar, error)
}

type Handler struct {
	service *avatar.Service
	auth    *auth.Manager
	avatars AvatarLister
	info    Info
	logger  *logger.Log
}

func NewHandler(service *avatar.Service, authManager *auth.Manager, avatarList AvatarLister, info Info) *Handler {
	return &Handler{
		service: service,
		auth:    authManager,
		avatars: avatarList,
		info:    info,
		logger:  logger.New().WithField("component", "api"),
	}
}

type ChatRequest struct {
	Text           string `json:"text"`
	GenerateSpeech *bool  `json:"generate_speech"`
}

type VideoRequest struct {
	Image    string             `json:"image"`
	AudioURL string             `json:"audio_url"`
	Options  video.StyleOptions `json:"options"`
}

// GET / - Health check. The server stays "healthy" while it can answer; a
// missing model only degrades it, since replies fall back to apologies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{
		"status":      "healthy",
		"ai_provider": h.info.AIProvider,
		"tts_voice":   h.info.TTSVoice,
	}

	if h.info.Model != nil {
		ctx, cancel := context.WithTimeout(r.Context(), modelCheckTimeout)
		defer cancel()

		if err := h.info.Model.IsModelAvailable(ctx); err != nil {
			body["status"] = "degraded"
			body["ai_status"] = "unavailable"
			body["ai_error"] = err.Error()
		} else {
			body["ai_status"] = "ok"
		}
	}

	writeJSON(w, http.StatusOK, body)
}

// POST /api/chat - Reply to the user, optionally with speech and visemes
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	withSpeech := req.GenerateSpeech == nil || *req.GenerateSpeech

	sessionID, err := h.auth.SessionID(w, r)
	if err != nil {
		h.logger.WithError(err).Warn("could not assign session, continuing without history")
	}

	result, err := h.service.Chat(r.Context(), sessionID, req.Text, withSpeech)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /api/config - Current provider settings and viseme codes
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ai_provider":       h.info.AIProvider,
		"tts_voice":         h.info.TTSVoice,
		"available_visemes": viseme.Codes(),
	})
}

// GET /api/avatars - Images available for video rendering
func (h *Handler) ListAvatars(w http.ResponseWriter, r *http.Request) {
	list, err := h.avatars.List()
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"avatars": list})
}

// POST /api/video - Render a talking-head video from an avatar and speech
func (h *Handler) RenderVideo(w http.ResponseWriter, r *http.Request) {
	req := VideoRequest{Options: video.DefaultStyleOptions()}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Image == "" || req.AudioURL == "" {
		writeError(w, http.StatusBadRequest, "Image and audio_url are required")
		return
	}
	if err := req.Options.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.RenderVideo(r.Context(), req.Image, req.AudioURL, req.Options)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /api/history - Conversation of the current session
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.auth.SessionID(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	messages, err := h.service.History(sessionID)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, models.HistoryResponse{Messages: messages})
}

// DELETE /api/history - Forget the current session's conversation
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, err := h.auth.SessionID(w, r)
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.service.ClearHistory(sessionID); err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// RegisterRoutes mounts the health check at / and the JSON API under /api.
// Login and logout stay reachable without credentials.
func RegisterRoutes(r *mux.Router, h *Handler) {
	r.HandleFunc("/", h.Health).Methods("GET")
	r.HandleFunc("/api/login", h.auth.LoginHandler).Methods("POST")
	r.HandleFunc("/api/logout", h.auth.LogoutHandler).Methods("POST")

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.Use(h.auth.Middleware)

	apiRouter.HandleFunc("/chat", h.Chat).Methods("POST")
	apiRouter.HandleFunc("/text-to-speech", h.TextToSpeech).Methods("POST")
	apiRouter.HandleFunc("/visemes", h.Visemes).Methods("GET")
	apiRouter.HandleFunc("/config", h.Config).Methods("GET")
	apiRouter.HandleFunc("/avatars", h.ListAvatars).Methods("GET")
	apiRouter.HandleFunc("/video", h.RenderVideo).Methods("POST")
	apiRouter.HandleFunc("/history", h.GetHistory).Methods("GET")
	apiRouter.HandleFunc("/history", h.ClearHistory).Methods("DELETE")
}

// fail maps service errors onto status codes with a {"detail": ...} body.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, avatar.ErrEmptyText),
		errors.Is(err, avatar.ErrNoAudio),
		errors.Is(err, avatars.ErrNotFound):
		status = http.StatusBadRequest
	case errors.Is(err, avatar.ErrVideoDisabled),
		errors.Is(err, video.ErrQueueFull):
		status = http.StatusServiceUnavailable
	case errors.Is(err, video.ErrTimeout):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
