// internal/llm/factory.go
package llm

import (
	"fmt"
	"strings"

	"github.com/tahcohcat/talkinghead-web/config"
	"github.com/tahcohcat/talkinghead-web/internal/llm/echo"
	"github.com/tahcohcat/talkinghead-web/internal/llm/ollama"
	"github.com/tahcohcat/talkinghead-web/internal/llm/openai"
)

type Provider string

const (
	ProviderEcho   Provider = "echo"
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
)

// NewLLMClient creates a new LLM client based on the configuration
func NewLLMClient(cfg *config.Config) (LLM, error) {
	switch Provider(strings.ToLower(cfg.LLM.Provider)) {
	case ProviderEcho, "":
		return echo.NewClient(&cfg.Echo), nil
	case ProviderOllama:
		return ollama.NewClient(&cfg.Ollama)
	case ProviderOpenAI:
		return openai.NewClient(&cfg.OpenAI)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
