package llm

import (
	"fmt"
	"log/slog"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

// New builds the generator named by cfg.Provider. claude is an alias for the
// anthropic backend.
func New(cfg config.GenerationConfig, prompts *story.PromptBuilder, log *slog.Logger) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIGenerator(cfg, prompts)
	case "anthropic", "claude":
		return NewAnthropicGenerator(cfg, prompts)
	case "azure":
		return NewAzureGenerator(cfg, prompts)
	case "local":
		return NewLocalGenerator(cfg, prompts, log)
	case "mock":
		return NewMockGenerator(prompts), nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}
