package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hushabye/hush-core/internal/config"
)

const (
	elevenBaseURL = "https://api.elevenlabs.io"
	elevenModelID = "eleven_multilingual_v2"
)

// ElevenLabsSynth speaks the ElevenLabs text-to-speech API directly
// over net/http, in blocking and chunked streaming modes.
type ElevenLabsSynth struct {
	apiKey     string
	baseURL    string
	voice      string
	writer     *assetWriter
	log        *slog.Logger
	httpClient *http.Client
}

func NewElevenLabsSynth(cfg config.SynthesisConfig, log *slog.Logger) (*ElevenLabsSynth, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("elevenlabs: api key required")
	}
	if cfg.Voice == "" {
		return nil, fmt.Errorf("elevenlabs: voice id required")
	}
	base := cfg.APIBase
	if base == "" {
		base = elevenBaseURL
	}
	return &ElevenLabsSynth{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(base, "/"),
		voice:      cfg.Voice,
		writer:     newAssetWriter(cfg.AudioDir, cfg.ShareDir, log),
		log:        log.With(slog.String("component", "tts-elevenlabs")),
		httpClient: http.DefaultClient,
	}, nil
}

type elevenRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

func (e *ElevenLabsSynth) newRequest(ctx context.Context, text string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(elevenRequest{Text: text, ModelID: elevenModelID})
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voice)
	if stream {
		endpoint += "/stream"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", e.apiKey)
	return req, nil
}

func (e *ElevenLabsSynth) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("elevenlabs: status %d: %s", resp.StatusCode, msg)
}

func (e *ElevenLabsSynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	req, err := e.newRequest(ctx, text, false)
	if err != nil {
		return "", fmt.Errorf("elevenlabs synthesis: %w", err)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs synthesis: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", e.statusError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs synthesis: %w", err)
	}
	name := audioFilename(e.writer.audioDir, info, "story", ".mp3")
	path, err := e.writer.write(name, data)
	if err != nil {
		return "", err
	}
	e.log.Info("generated audio asset", slog.String("path", path))
	return path, nil
}

func (e *ElevenLabsSynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 8)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		req, err := e.newRequest(ctx, text, true)
		if err != nil {
			errs <- fmt.Errorf("elevenlabs stream: %w", err)
			return
		}
		resp, err := e.httpClient.Do(req)
		if err != nil {
			errs <- fmt.Errorf("elevenlabs stream: %w", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errs <- e.statusError(resp)
			return
		}

		buf := make([]byte, streamChunkSize)
		for {
			n, readErr := resp.Body.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				errs <- fmt.Errorf("elevenlabs stream: %w", readErr)
				return
			}
		}
	}()
	return chunks, errs
}
