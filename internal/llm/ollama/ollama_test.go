package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

type chatRequest struct {
	Model    string `json:"model"`
	Stream   bool   `json:"stream"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestServer(t *testing.T, got *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chat":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(got))
			json.NewEncoder(w).Encode(map[string]any{
				"model":   "llama2",
				"message": map[string]any{"role": "assistant", "content": " Hi there. "},
				"done":    true,
			})
		case "/api/tags":
			json.NewEncoder(w).Encode(map[string]any{"models": []map[string]any{{"name": "llama2:latest"}}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestGenerateResponse(t *testing.T) {
	var got chatRequest
	srv := newTestServer(t, &got)
	defer srv.Close()

	c, err := NewClient(&config.OllamaConfig{Host: srv.URL, Model: "llama2", Timeout: 5})
	require.NoError(t, err)

	reply, err := c.GenerateResponse(context.Background(), []models.Message{
		{Role: models.RoleSystem, Content: "Be brief."},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello"},
		{Role: models.RoleUser, Content: "bye"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there.", reply)

	assert.Equal(t, "llama2", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Be brief.", got.Messages[0].Content)
	assert.Equal(t, "bye", got.Messages[3].Content)
}

func TestGenerateResponseServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	c, err := NewClient(&config.OllamaConfig{Host: srv.URL, Model: "llama2", Timeout: 5})
	require.NoError(t, err)

	_, err = c.GenerateResponse(context.Background(), []models.Message{{Role: models.RoleUser, Content: "hi"}})
	assert.Error(t, err)
}

func TestIsModelAvailable(t *testing.T) {
	srv := newTestServer(t, &chatRequest{})
	defer srv.Close()

	c, err := NewClient(&config.OllamaConfig{Host: srv.URL, Model: "llama2", Timeout: 5})
	require.NoError(t, err)
	assert.NoError(t, c.IsModelAvailable(context.Background()))

	c.config.Model = "mistral"
	assert.Error(t, c.IsModelAvailable(context.Background()))
}
