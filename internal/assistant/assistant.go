// Package assistant produces the avatar's spoken replies. It owns the persona
// prompt and conversation framing; providers only see the assembled turns.
package assistant

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tahcohcat/talkinghead-web/internal/llm"
	"github.com/tahcohcat/talkinghead-web/internal/logger"
	"github.com/tahcohcat/talkinghead-web/internal/models"
)

type Assistant struct {
	llm          llm.LLM
	systemPrompt string
	timeout      time.Duration
	logger       *logger.Log
}

func New(client llm.LLM, systemPrompt string, timeout time.Duration) *Assistant {
	return &Assistant{
		llm:          client,
		systemPrompt: systemPrompt,
		timeout:      timeout,
		logger:       logger.New(),
	}
}

// Reply returns the assistant's answer to userText given earlier turns.
// Provider failures come back as an apology the avatar can speak, never as
// an error.
func (a *Assistant) Reply(ctx context.Context, userText string, history []models.Message) string {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	resp, err := a.llm.GenerateResponse(ctx, a.conversation(userText, history))
	if err != nil {
		a.logger.WithError(err).Warn("could not generate assistant response")
		return fmt.Sprintf("I apologize, but I encountered an error: %v", err)
	}

	resp = strings.TrimSpace(resp)
	if resp == "" {
		return "I couldn't generate a response."
	}

	return resp
}

// conversation prepends the persona and drops stored system or blank turns.
func (a *Assistant) conversation(userText string, history []models.Message) []models.Message {
	turns := make([]models.Message, 0, len(history)+2)
	if a.systemPrompt != "" {
		turns = append(turns, models.Message{Role: models.RoleSystem, Content: a.systemPrompt})
	}
	for _, m := range history {
		if m.Role == models.RoleSystem || strings.TrimSpace(m.Content) == "" {
			continue
		}
		turns = append(turns, models.Message{Role: m.Role, Content: m.Content})
	}
	return append(turns, models.Message{Role: models.RoleUser, Content: userText})
}
