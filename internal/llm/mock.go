package llm

import (
	"context"
	"strings"
	"time"

	"github.com/hushabye/hush-core/internal/story"
)

const mockStory = `The Sleepy Star

Once upon a time, a little star could not fall asleep. Twinkle, twinkle went the star, up and down, up and down.

A friendly cloud floated by and sang a soft song. The star yawned a big yawn and snuggled into the cloud.

Soon the little star was fast asleep, and the whole sky whispered goodnight.`

// MockGenerator returns scripted output with no network calls. The factory
// exposes it as the "mock" provider for cost-free runs; tests script Deltas
// and Err directly.
type MockGenerator struct {
	prompts *story.PromptBuilder

	Text   string        // blocking result; defaults to joined Deltas, then a canned story
	Deltas []string      // streamed in order; defaults to the whole text at once
	Err    error         // returned instead of output when set
	Delay  time.Duration // pause before the first output
}

func NewMockGenerator(prompts *story.PromptBuilder) *MockGenerator {
	return &MockGenerator{prompts: prompts, Delay: 20 * time.Millisecond}
}

func (m *MockGenerator) text() string {
	if m.Text != "" {
		return m.Text
	}
	if len(m.Deltas) > 0 {
		return strings.Join(m.Deltas, "")
	}
	return mockStory
}

func (m *MockGenerator) deltas() []string {
	if len(m.Deltas) > 0 {
		return m.Deltas
	}
	return []string{m.text()}
}

func (m *MockGenerator) buildPrompt(elements story.Elements) string {
	if m.prompts == nil {
		return ""
	}
	return m.prompts.Build(elements)
}

func (m *MockGenerator) Generate(ctx context.Context, elements story.Elements) (Result, error) {
	prompt := m.buildPrompt(elements)
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(m.Delay):
	}
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{StoryText: m.text(), Prompt: prompt}, nil
}

func (m *MockGenerator) GenerateStream(ctx context.Context, elements story.Elements) (<-chan string, <-chan error) {
	deltas := make(chan string, 32)
	errs := make(chan error, 1)
	m.buildPrompt(elements)

	go func() {
		defer close(deltas)
		defer close(errs)

		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(m.Delay):
		}
		if m.Err != nil {
			errs <- m.Err
			return
		}
		for _, delta := range m.deltas() {
			select {
			case deltas <- delta:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return deltas, errs
}
