package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

type Client struct {
	client *api.Client
	config *config.OllamaConfig
	logger *logger.Log
}

func NewClient(cfg *config.OllamaConfig) (*Client, error) {
	var (
		client *api.Client
		err    error
	)

	if cfg.Host != "" {
		var base *url.URL
		base, err = url.Parse(cfg.Host)
		if err == nil {
			client = api.NewClient(base, http.DefaultClient)
		}
	} else {
		client, err = api.ClientFromEnvironment()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create ollama client: %w", err)
	}

	return &Client{
		client: client,
		config: cfg,
		logger: logger.New().WithField("provider", "ollama"),
	}, nil
}

// GenerateResponse sends the conversation to the chat endpoint and
// collects the streamed reply.
func (c *Client) GenerateResponse(ctx context.Context, conversation []models.Message) (string, error) {

	shouldStream := false

	messages := make([]api.Message, 0, len(conversation))
	for _, m := range conversation {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	req := &api.ChatRequest{
		Model:    c.config.Model,
		Messages: messages,
		Stream:   &shouldStream,
		Options: map[string]interface{}{
			"temperature": 0.7,
			"top_p":       0.9,
		},
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.config.Timeout)*time.Second)
		defer cancel()
	}

	c.logger.Debug(fmt.Sprintf("chatting with model %s, %d turns", c.config.Model, len(messages)))

	var response strings.Builder

	f := func(r api.ChatResponse) error {
		response.WriteString(r.Message.Content)
		return nil
	}

	if err := c.client.Chat(ctx, req, f); err != nil {
		c.logger.WithError(err).Error("ollama chat failed")
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	return strings.TrimSpace(response.String()), nil
}

func (c *Client) IsModelAvailable(ctx context.Context) error {
	models, err := c.client.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	for _, model := range models.Models {
		if model.Name == c.config.Model || strings.TrimSuffix(model.Name, ":latest") == c.config.Model {
			return nil
		}
	}

	return fmt.Errorf("model %s not found. Available models: %v", c.config.Model, getModelNames(models.Models))
}

func getModelNames(models []api.ListModelResponse) []string {
	names := make([]string, len(models))
	for i, model := range models {
		names[i] = model.Name
	}
	return names
}
