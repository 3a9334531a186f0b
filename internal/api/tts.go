package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tahcohcat/talkinghead-web/internal/tts"
	"github.com/tahcohcat/talkinghead-web/internal/viseme"
)

type TTSRequest struct {
	Text string `json:"text"`
}

// POST /api/text-to-speech - Synthesise text and return its viseme timeline
func (h *Handler) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	var req TTSRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}

	result, err := h.service.Speak(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, tts.ErrEmptyText) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /api/visemes - All viseme codes
func (h *Handler) Visemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"visemes": viseme.Codes()})
}
