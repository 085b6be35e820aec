package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

const (
	defaultLocalModel    = "llama3"
	defaultLocalEndpoint = "http://127.0.0.1:11434/v1"
)

// LocalGenerator targets a self-hosted OpenAI-compatible server such as
// Ollama or llama.cpp. Local servers rarely need credentials, and the loaded
// model set drifts, so the first request checks what is actually available
// and substitutes a loaded model when the configured one is missing.
type LocalGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	prompts     *story.PromptBuilder
	log         *slog.Logger

	resolveOnce sync.Once
	resolved    string
}

func NewLocalGenerator(cfg config.GenerationConfig, prompts *story.PromptBuilder, log *slog.Logger) (*LocalGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}
	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = cfg.APIBase
	if clientCfg.BaseURL == "" {
		clientCfg.BaseURL = defaultLocalEndpoint
	}

	model := cfg.Model
	if model == "" {
		model = defaultLocalModel
	}
	temperature := float32(cfg.Temperature)
	if temperature == 0 {
		temperature = 0.7
	}
	return &LocalGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		prompts:     prompts,
		log:         log.With(slog.String("component", "llm-local")),
	}, nil
}

// resolveModel asks the server which models are loaded and swaps in the first
// available one when the configured model is absent. Lookup failures fall
// back to the configured model so a slow-starting server is not fatal.
func (g *LocalGenerator) resolveModel(ctx context.Context) string {
	g.resolveOnce.Do(func() {
		g.resolved = g.model
		list, err := g.client.ListModels(ctx)
		if err != nil {
			g.log.Warn("failed to list local models", slog.String("model", g.model), slogError(err))
			return
		}
		names := make([]string, 0, len(list.Models))
		for _, m := range list.Models {
			names = append(names, m.ID)
		}
		if len(names) == 0 || slices.Contains(names, g.model) {
			return
		}
		g.resolved = names[0]
		g.log.Info("configured model not loaded, substituting",
			slog.String("requested", g.model), slog.String("using", g.resolved))
	})
	return g.resolved
}

func (g *LocalGenerator) request(ctx context.Context, prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.resolveModel(ctx),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: story.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Stream:      stream,
	}
}

func (g *LocalGenerator) Generate(ctx context.Context, elements story.Elements) (Result, error) {
	prompt := g.prompts.Build(elements)
	resp, err := g.client.CreateChatCompletion(ctx, g.request(ctx, prompt, false))
	if err != nil {
		return Result{}, wrapErr("local completion", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("local completion: empty response: %w", ErrUnavailable)
	}
	return Result{StoryText: strings.TrimSpace(resp.Choices[0].Message.Content), Prompt: prompt}, nil
}

func (g *LocalGenerator) GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errs := make(chan error, 1)
	prompt := g.prompts.Build(elements)

	go func() {
		defer close(deltas)
		defer close(errs)

		stream, err := g.client.CreateChatCompletionStream(ctx, g.request(ctx, prompt, true))
		if err != nil {
			errs <- wrapErr("local stream", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				errs <- wrapErr("local stream", err)
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case deltas <- choice.Delta.Content:
				case <-ctx.Done():
					errs <- wrapErr("local stream", ctx.Err())
					return
				}
			}
		}
	}()
	return deltas, errs
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
