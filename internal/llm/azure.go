package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

const azureAPIVersion = "2023-05-15"

// AzureGenerator targets an Azure OpenAI managed deployment. Azure routes
// requests by deployment name rather than model name, so a wrong deployment
// shows up as a 404 and deserves a pointed diagnostic.
type AzureGenerator struct {
	client      *openai.Client
	deployment  string
	endpoint    string
	maxTokens   int
	temperature float32
	prompts     *story.PromptBuilder
}

func NewAzureGenerator(cfg config.GenerationConfig, prompts *story.PromptBuilder) (*AzureGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("azure: api key required")
	}
	if cfg.Deployment == "" || cfg.APIBase == "" {
		return nil, errors.New("azure: deployment and api_base required")
	}
	endpoint := cfg.APIBase
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	deployment := cfg.Deployment
	clientCfg := openai.DefaultAzureConfig(cfg.APIKey, endpoint)
	clientCfg.APIVersion = azureAPIVersion
	clientCfg.AzureModelMapperFunc = func(model string) string { return deployment }

	temperature := float32(cfg.Temperature)
	if temperature == 0 {
		temperature = 0.9
	}
	return &AzureGenerator{
		client:      openai.NewClientWithConfig(clientCfg),
		deployment:  deployment,
		endpoint:    endpoint,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		prompts:     prompts,
	}, nil
}

func (g *AzureGenerator) request(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: g.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: story.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		Stream:      stream,
	}
}

func (g *AzureGenerator) wrapAzureErr(err error) error {
	switch httpStatus(err) {
	case http.StatusNotFound:
		return fmt.Errorf("azure deployment %q not found at %s: %w", g.deployment, g.endpoint, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("azure authentication failed, check the API key: %w", ErrAuth)
	}
	return wrapErr("azure completion", err)
}

func (g *AzureGenerator) Generate(ctx context.Context, elements story.Elements) (Result, error) {
	prompt := g.prompts.Build(elements)
	resp, err := g.client.CreateChatCompletion(ctx, g.request(prompt, false))
	if err != nil {
		return Result{}, g.wrapAzureErr(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("azure completion: empty response: %w", ErrUnavailable)
	}
	return Result{StoryText: strings.TrimSpace(resp.Choices[0].Message.Content), Prompt: prompt}, nil
}

func (g *AzureGenerator) GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errs := make(chan error, 1)
	prompt := g.prompts.Build(elements)

	go func() {
		defer close(deltas)
		defer close(errs)

		stream, err := g.client.CreateChatCompletionStream(ctx, g.request(prompt, true))
		if err != nil {
			errs <- g.wrapAzureErr(err)
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				errs <- g.wrapAzureErr(err)
				return
			}
			for _, choice := range resp.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				select {
				case deltas <- choice.Delta.Content:
				case <-ctx.Done():
					errs <- wrapErr("azure stream", ctx.Err())
					return
				}
			}
		}
	}()
	return deltas, errs
}
