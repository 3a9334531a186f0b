package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
)

// OpenAITTS calls the /audio/speech endpoint of an OpenAI-compatible API.
type OpenAITTS struct {
	apiKey     string
	baseURL    string
	model      string
	voice      string
	speed      float64
	httpClient *http.Client
	logger     *logger.Log
}

type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format,omitempty"`
	Speed          float64 `json:"speed,omitempty"`
}

var openAIVoices = map[string]bool{
	"alloy": true, "echo": true, "fable": true, "onyx": true, "nova": true, "shimmer": true,
}

func NewOpenAITTS(apiCfg *config.OpenAIConfig, cfg *config.TtsConfig) (*OpenAITTS, error) {
	if apiCfg == nil || apiCfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	baseURL := apiCfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	voice := strings.ToLower(cfg.Voice)
	if !openAIVoices[voice] {
		voice = "alloy"
	}

	model := cfg.OpenAIModel
	if model == "" {
		model = "tts-1"
	}

	return &OpenAITTS{
		apiKey:  apiCfg.APIKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		voice:   voice,
		speed:   cfg.SpeakingRate,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger.New().WithField("tts", "openai"),
	}, nil
}

func (o *OpenAITTS) GenerateAudio(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(speechRequest{
		Model:          o.model,
		Input:          text,
		Voice:          o.voice,
		ResponseFormat: "mp3",
		Speed:          o.speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai speech request failed: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		o.logger.Error(fmt.Sprintf("OpenAI speech API returned status %d: %s", resp.StatusCode, string(audio)))
		return nil, fmt.Errorf("openai speech API error: status %d", resp.StatusCode)
	}

	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	o.logger.Debug(fmt.Sprintf("Generated %d bytes of MP3 audio with voice %s", len(audio), o.voice))
	return audio, nil
}

func (o *OpenAITTS) Name() string {
	return "OpenAI Text-to-Speech"
}
