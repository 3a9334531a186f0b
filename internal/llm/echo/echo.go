// Package echo is an offline provider that answers from a small table of
// canned replies. It needs no API key and is the default provider.
package echo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/schollz/closestmatch"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

type reply struct {
	key      string
	response string
}

// Checked in order; "hi" must come after "hello".
var builtin = []reply{
	{"hello", "Hello! I'm your AI avatar assistant. How can I help you today?"},
	{"hi", "Hi there! Nice to meet you. What would you like to talk about?"},
	{"how are you", "I'm doing great, thank you for asking! I'm here to help you with any questions you might have."},
	{"what is your name", "I'm an AI avatar assistant, created to help you with information and have conversations."},
	{"bye", "Goodbye! It was nice talking with you. Have a great day!"},
}

type Client struct {
	replies []reply
	byKey   map[string]string
	fuzzy   *closestmatch.ClosestMatch
	logger  *logger.Log
}

func NewClient(cfg *config.EchoConfig) *Client {
	replies := append([]reply(nil), builtin...)

	if cfg != nil {
		keys := make([]string, 0, len(cfg.Responses))
		for k := range cfg.Responses {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			replies = append(replies, reply{strings.ToLower(k), cfg.Responses[k]})
		}
	}

	byKey := make(map[string]string, len(replies))
	var words []string
	for _, r := range replies {
		if _, dup := byKey[r.key]; dup {
			continue
		}
		byKey[r.key] = r.response
		if len(r.key) >= 3 && !strings.Contains(r.key, " ") {
			words = append(words, r.key)
		}
	}

	return &Client{
		replies: replies,
		byKey:   byKey,
		fuzzy:   closestmatch.New(words, []int{2}),
		logger:  logger.New().WithField("provider", "echo"),
	}
}

func (c *Client) GenerateResponse(_ context.Context, conversation []models.Message) (string, error) {
	message := lastUserMessage(conversation)
	lower := strings.ToLower(message)

	for _, r := range c.replies {
		if strings.Contains(lower, r.key) {
			return r.response, nil
		}
	}

	if key := c.fuzzyKey(lower); key != "" {
		c.logger.Debug(fmt.Sprintf("fuzzy matched %q", key))
		return c.byKey[key], nil
	}

	return fmt.Sprintf("I understand you said: '%s'. I'm currently in demo mode. "+
		"Connect a real AI provider like OpenAI or Ollama for intelligent responses!", message), nil
}

// fuzzyKey catches one-letter typos of single-word keys, e.g. "helo".
func (c *Client) fuzzyKey(lower string) string {
	for _, w := range strings.Fields(lower) {
		w = strings.Trim(w, ".,!?;:'\"")
		if len(w) < 3 {
			continue
		}
		candidate := c.fuzzy.Closest(w)
		if candidate == "" || candidate[0] != w[0] {
			continue
		}
		if diff := len(candidate) - len(w); diff >= -1 && diff <= 1 {
			return candidate
		}
	}
	return ""
}

func (c *Client) IsModelAvailable(context.Context) error {
	return nil
}

// lastUserMessage returns the newest user turn, ignoring earlier history.
func lastUserMessage(conversation []models.Message) string {
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == models.RoleUser {
			return conversation[i].Content
		}
	}
	return ""
}
