package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hushabye/hush-core/internal/config"
)

func elevenConfig(url, audioDir string) config.SynthesisConfig {
	return config.SynthesisConfig{
		Provider: "elevenlabs",
		APIKey:   "test-key",
		APIBase:  url,
		Voice:    "luna",
		AudioDir: audioDir,
	}
}

func TestElevenLabsSynthesizeWritesAsset(t *testing.T) {
	var gotPath, gotKey string
	var gotReq elevenRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3 fake mp3"))
	}))
	defer server.Close()

	audioDir := t.TempDir()
	synth, err := NewElevenLabsSynth(elevenConfig(server.URL, audioDir), newLogger())
	if err != nil {
		t.Fatalf("NewElevenLabsSynth: %v", err)
	}

	path, err := synth.Synthesize(context.Background(), "Once upon a time.", Story{Universe: "Paw Patrol", Title: "The Big Day"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotPath != "/v1/text-to-speech/luna" {
		t.Fatalf("unexpected request path %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Fatalf("unexpected api key header %q", gotKey)
	}
	if gotReq.Text != "Once upon a time." || gotReq.ModelID != elevenModelID {
		t.Fatalf("unexpected request payload %+v", gotReq)
	}
	if filepath.Base(path) != "paw-patrol-the-big-day.mp3" {
		t.Fatalf("unexpected asset name %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read asset: %v", err)
	}
	if string(data) != "ID3 fake mp3" {
		t.Fatalf("unexpected asset bytes %q", data)
	}
	if filepath.Dir(path) != audioDir {
		t.Fatalf("asset written outside audio dir: %q", path)
	}
}

func TestElevenLabsStreamUsesStreamEndpoint(t *testing.T) {
	payload := bytes.Repeat([]byte("mp3"), 4000)
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(payload)
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynth(elevenConfig(server.URL, t.TempDir()), newLogger())
	if err != nil {
		t.Fatalf("NewElevenLabsSynth: %v", err)
	}

	chunks, errs := synth.SynthesizeStream(context.Background(), "Goodnight.")
	var got []byte
	for chunk := range chunks {
		got = append(got, chunk...)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if gotPath != "/v1/text-to-speech/luna/stream" {
		t.Fatalf("unexpected stream path %q", gotPath)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("reassembled stream differs: got %d bytes, want %d", len(got), len(payload))
	}
}

func TestElevenLabsSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer server.Close()

	synth, err := NewElevenLabsSynth(elevenConfig(server.URL, t.TempDir()), newLogger())
	if err != nil {
		t.Fatalf("NewElevenLabsSynth: %v", err)
	}

	_, err = synth.Synthesize(context.Background(), "text", Story{})
	if err == nil {
		t.Fatalf("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestElevenLabsRequiresCredentials(t *testing.T) {
	if _, err := NewElevenLabsSynth(config.SynthesisConfig{Voice: "luna"}, newLogger()); err == nil {
		t.Fatalf("expected error without api key")
	}
	if _, err := NewElevenLabsSynth(config.SynthesisConfig{APIKey: "k"}, newLogger()); err == nil {
		t.Fatalf("expected error without voice id")
	}
}
