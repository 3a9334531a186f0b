package llm

import (
	"context"

	"github.com/tahcohcat/talkinghead-web/internal/models"
)

// LLM defines the interface for language model providers
type LLM interface {

	// GenerateResponse returns the assistant's next turn for a conversation
	// that starts with an optional system message and ends with the user turn.
	GenerateResponse(ctx context.Context, conversation []models.Message) (string, error)

	// IsModelAvailable checks if the configured model is available
	IsModelAvailable(ctx context.Context) error
}
