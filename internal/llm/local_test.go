package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/story"
)

func localServer(t *testing.T, models []string, usedModel *string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		if models == nil {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		data := make([]map[string]any, 0, len(models))
		for _, m := range models {
			data = append(data, map[string]any{"id": m, "object": "model"})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		*usedModel = req.Model
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "1", "object": "chat.completion", "created": 1, "model": req.Model,
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": "A story."}, "finish_reason": "stop"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func localConfig(url string) config.GenerationConfig {
	return config.GenerationConfig{Provider: "local", Model: "llama3", APIBase: url + "/v1", MaxTokens: 1500}
}

func TestLocalSubstitutesLoadedModel(t *testing.T) {
	var used string
	srv := localServer(t, []string{"qwen2", "phi3"}, &used)

	gen, err := NewLocalGenerator(localConfig(srv.URL), newTestPrompts(), newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := gen.Generate(context.Background(), story.Elements{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if used != "qwen2" {
		t.Fatalf("expected substitution to first loaded model, request used %q", used)
	}
	if res.StoryText != "A story." {
		t.Fatalf("unexpected story text %q", res.StoryText)
	}
}

func TestLocalKeepsConfiguredModelWhenLoaded(t *testing.T) {
	var used string
	srv := localServer(t, []string{"qwen2", "llama3"}, &used)

	gen, err := NewLocalGenerator(localConfig(srv.URL), newTestPrompts(), newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gen.Generate(context.Background(), story.Elements{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if used != "llama3" {
		t.Fatalf("expected configured model to be kept, request used %q", used)
	}
}

func TestLocalModelListFailureFallsBack(t *testing.T) {
	var used string
	srv := localServer(t, nil, &used)

	gen, err := NewLocalGenerator(localConfig(srv.URL), newTestPrompts(), newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := gen.Generate(context.Background(), story.Elements{}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if used != "llama3" {
		t.Fatalf("expected configured model despite list failure, request used %q", used)
	}
}

func TestLocalNeedsNoAPIKey(t *testing.T) {
	if _, err := NewLocalGenerator(config.GenerationConfig{Provider: "local"}, newTestPrompts(), newLogger()); err != nil {
		t.Fatalf("local provider must not require a key: %v", err)
	}
}
