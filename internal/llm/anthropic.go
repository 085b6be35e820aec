package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

const (
	defaultAnthropicModel = "claude-3-haiku-20240307"
	anthropicBaseURL      = "https://api.anthropic.com"
	anthropicVersion      = "2023-06-01"
)

// AnthropicGenerator speaks the Claude Messages API directly over net/http,
// including its SSE streaming mode.
type AnthropicGenerator struct {
	apiKey      string
	endpoint    string
	model       string
	maxTokens   int
	temperature float64
	prompts     *story.PromptBuilder
	httpClient  *http.Client
}

func NewAnthropicGenerator(cfg config.GenerationConfig, prompts *story.PromptBuilder) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key required")
	}
	base := cfg.APIBase
	if base == "" {
		base = anthropicBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	return &AnthropicGenerator{
		apiKey:      cfg.APIKey,
		endpoint:    strings.TrimSuffix(base, "/") + "/v1/messages",
		model:       model,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		prompts:     prompts,
		httpClient:  http.DefaultClient,
	}, nil
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *anthropicError `json:"error"`
}

type anthropicStreamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *anthropicError `json:"error"`
}

func (g *AnthropicGenerator) newRequest(ctx context.Context, prompt string, stream bool) (*http.Request, error) {
	payload := anthropicRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		System:      story.SystemPrompt,
		Temperature: g.temperature,
		Stream:      stream,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", g.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (g *AnthropicGenerator) statusError(resp *http.Response) error {
	var decoded anthropicResponse
	msg := resp.Status
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil && decoded.Error != nil {
		msg = decoded.Error.Message
	}
	return fmt.Errorf("anthropic: %s: %w", msg, errorKind(resp.StatusCode))
}

func (g *AnthropicGenerator) Generate(ctx context.Context, elements story.Elements) (Result, error) {
	prompt := g.prompts.Build(elements)
	req, err := g.newRequest(ctx, prompt, false)
	if err != nil {
		return Result{}, wrapErr("anthropic completion", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Result{}, wrapErr("anthropic completion", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Result{}, g.statusError(resp)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, wrapErr("anthropic completion", err)
	}
	var text strings.Builder
	for _, block := range decoded.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Result{StoryText: strings.TrimSpace(text.String()), Prompt: prompt}, nil
}

func (g *AnthropicGenerator) GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errs := make(chan error, 1)
	prompt := g.prompts.Build(elements)

	go func() {
		defer close(deltas)
		defer close(errs)

		req, err := g.newRequest(ctx, prompt, true)
		if err != nil {
			errs <- wrapErr("anthropic stream", err)
			return
		}
		resp, err := g.httpClient.Do(req)
		if err != nil {
			errs <- wrapErr("anthropic stream", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errs <- g.statusError(resp)
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				errs <- wrapErr("anthropic stream", ctx.Err())
				return
			default:
			}
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var event anthropicStreamEvent
			if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data:"))), &event); err != nil {
				errs <- wrapErr("anthropic stream", err)
				return
			}
			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text == "" {
					continue
				}
				select {
				case deltas <- event.Delta.Text:
				case <-ctx.Done():
					errs <- wrapErr("anthropic stream", ctx.Err())
					return
				}
			case "error":
				msg := "stream error"
				if event.Error != nil {
					msg = event.Error.Message
				}
				errs <- fmt.Errorf("anthropic stream: %s: %w", msg, ErrUnavailable)
				return
			case "message_stop":
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errs <- wrapErr("anthropic stream", err)
		}
	}()
	return deltas, errs
}
