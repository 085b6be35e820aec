package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

// One scripted backend answers both modes so the test can assert that the
// streamed deltas concatenate to exactly the blocking text.
func TestOpenAIStreamMatchesBlocking(t *testing.T) {
	parts := []string{"Once", " upon", " a", " time."}
	full := strings.Join(parts, "")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req struct {
			Stream bool `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id": "1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
				"choices": []map[string]any{
					{"index": 0, "message": map[string]string{"role": "assistant", "content": full}, "finish_reason": "stop"},
				},
			})
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, part := range parts {
			chunk, _ := json.Marshal(map[string]any{
				"id": "1", "object": "chat.completion.chunk", "created": 1, "model": "gpt-4o",
				"choices": []map[string]any{
					{"index": 0, "delta": map[string]string{"content": part}},
				},
			})
			_, _ = fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	cfg := config.GenerationConfig{Provider: "openai", APIKey: "test-key", APIBase: srv.URL + "/v1", MaxTokens: 1500}
	gen, err := NewOpenAIGenerator(cfg, newTestPrompts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res, err := gen.Generate(context.Background(), story.Elements{Theme: "Friendship"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	deltas, errs := gen.GenerateStream(context.Background(), story.Elements{Theme: "Friendship"})
	var streamed strings.Builder
	for delta := range deltas {
		streamed.WriteString(delta)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}

	if streamed.String() != res.StoryText {
		t.Fatalf("stream text %q does not match blocking text %q", streamed.String(), res.StoryText)
	}
}

func TestOpenAIDefaultModel(t *testing.T) {
	gen, err := NewOpenAIGenerator(config.GenerationConfig{Provider: "openai", APIKey: "k"}, newTestPrompts())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.model != defaultOpenAIModel {
		t.Fatalf("expected default model %q, got %q", defaultOpenAIModel, gen.model)
	}
	if gen.temperature != 0.7 {
		t.Fatalf("expected default temperature 0.7, got %v", gen.temperature)
	}
}
