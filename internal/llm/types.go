package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hushabye/hush-core/internal/story"
)

// Result is a completed generation.
type Result struct {
	StoryText string
	Prompt    string
}

// Generator is a pluggable story generation backend. Both operations build
// their own prompt, so a fresh call always draws a fresh scenario and seed.
type Generator interface {
	Generate(ctx context.Context, elements story.Elements) (Result, error)
	GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error)
}

// Error kinds shared by all backends so callers can tell a bad key from a
// missing model without parsing provider messages.
var (
	ErrAuth        = errors.New("authentication failed")
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("backend unavailable")
)

func errorKind(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return ErrUnavailable
	}
}

// httpStatus digs the status code out of either go-openai error shape.
// RequestError covers responses whose body did not parse as an API error.
func httpStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// wrapErr folds a backend failure into the shared error taxonomy while
// keeping context cancellation visible to errors.Is.
func wrapErr(provider string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", provider, err)
	}
	if status := httpStatus(err); status != 0 {
		return fmt.Errorf("%s: %v: %w", provider, err, errorKind(status))
	}
	return fmt.Errorf("%s: %v: %w", provider, err, ErrUnavailable)
}
