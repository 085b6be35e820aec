package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIGenerator talks to the OpenAI chat completions API, or to any proxy
// speaking the same protocol when an api_base override is configured.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	prompts     *story.PromptBuilder
}

func NewOpenAIGenerator(cfg config.GenerationConfig, prompts *story.PromptBuilder) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: api key required")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIBase != "" {
		clientCfg.BaseURL = cfg.APIBase
	}
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	temperature := float32(cfg.Temperature)
	if temperature == 0 {
		temperature = 0.7
	}
	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		prompts:     prompts,
	}, nil
}

func (g *OpenAIGenerator) request(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: story.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Stream:      stream,
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, elements story.Elements) (Result, error) {
	prompt := g.prompts.Build(elements)
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, false))
	if err != nil {
		return Result{}, wrapErr("openai completion", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("openai completion: empty response: %w", ErrUnavailable)
	}
	return Result{StoryText: strings.TrimSpace(resp.Choices[0].Message.Content), Prompt: prompt}, nil
}

func (g *OpenAIGenerator) GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errs := make(chan error, 1)
	prompt := g.prompts.Build(elements)

	go func() {
		defer close(deltas)
		defer close(errs)

		stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt, true))
		if err != nil {
			errs <- wrapErr("openai stream", err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				errs <- wrapErr("openai stream", err)
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case deltas <- choice.Delta.Content:
				case <-ctx.Done():
					errs <- wrapErr("openai stream", ctx.Err())
					return
				}
			}
		}
	}()
	return deltas, errs
}
