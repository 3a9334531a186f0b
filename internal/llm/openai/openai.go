// Package openai talks to any OpenAI-compatible chat completions API,
// including hosted Gemini, Groq or local servers through base_url.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	temperature    = 0.7
)

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	logger     *logger.Log
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// errorBody is the error envelope shared by OpenAI-compatible servers.
type errorBody struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		logger: logger.New().WithField("provider", "openai"),
	}, nil
}

// GenerateResponse sends the persona, history and user turn as chat messages
// and returns the first choice.
func (c *Client) GenerateResponse(ctx context.Context, conversation []models.Message) (string, error) {
	if len(conversation) == 0 {
		return "", errors.New("conversation is empty")
	}

	messages := make([]chatMessage, len(conversation))
	for i, m := range conversation {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}

	c.logger.Debug(fmt.Sprintf("chatting with model %s, %d turns", c.model, len(messages)))

	var resp chatResponse
	err := c.do(ctx, http.MethodPost, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   c.maxTokens,
	}, &resp)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in OpenAI response")
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "length" {
		c.logger.Warn("reply was cut off by max_tokens")
	}
	c.logger.Debug(fmt.Sprintf("reply used %d tokens", resp.Usage.TotalTokens))

	return strings.TrimSpace(choice.Message.Content), nil
}

// IsModelAvailable retrieves the configured model from the models endpoint.
func (c *Client) IsModelAvailable(ctx context.Context) error {
	var model struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(c.model), nil, &model); err != nil {
		return fmt.Errorf("model %s not available: %w", c.model, err)
	}
	return nil
}

// do sends an optional JSON body and decodes a JSON reply into out. API error
// envelopes become errors even when the status is 200.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithError(err).Error("openai request failed")
		return fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	var apiErr errorBody
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
		return fmt.Errorf("openai API error: status %d: %s", resp.StatusCode, apiErr.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai API error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
