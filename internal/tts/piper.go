package tts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/hushabye/hush-core/internal/config"
)

const defaultPiperVoice = "en_GB-northern_english_male-medium"

// PiperSynth runs a local Piper process per request. The process takes
// a JSON request line on stdin and emits raw 16-bit PCM on stdout,
// which is wrapped into a WAV asset.
type PiperSynth struct {
	cmd        []string
	voice      string
	sampleRate int
	channels   int
	writer     *assetWriter
	log        *slog.Logger
	mu         sync.Mutex
}

type piperRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func NewPiperSynth(cfg config.SynthesisConfig, log *slog.Logger) (*PiperSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse piper command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("piper command is empty")
	}
	if cfg.ModelPath != "" {
		args = append(args, "--model", cfg.ModelPath)
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultPiperVoice
	}
	return &PiperSynth{
		cmd:        args,
		voice:      voice,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		writer:     newAssetWriter(cfg.AudioDir, cfg.ShareDir, log),
		log:        log.With(slog.String("component", "tts-piper")),
	}, nil
}

func (p *PiperSynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload, err := p.requestPayload(text)
	if err != nil {
		return "", err
	}
	pcm, err := runCommand(ctx, p.cmd, payload)
	if err != nil {
		return "", err
	}
	name := audioFilename(p.writer.audioDir, info, "piper", ".wav")
	path, err := p.writer.writeWav(name, pcm, p.sampleRate, p.channels)
	if err != nil {
		return "", err
	}
	p.log.Info("generated audio asset", slog.String("path", path))
	return path, nil
}

func (p *PiperSynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	p.mu.Lock()
	chunks := make(chan []byte, 8)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		defer p.mu.Unlock()

		payload, err := p.requestPayload(text)
		if err != nil {
			errs <- err
			return
		}
		if err := streamCommand(ctx, p.cmd, payload, chunks); err != nil {
			errs <- err
		}
	}()
	return chunks, errs
}

func (p *PiperSynth) requestPayload(text string) ([]byte, error) {
	data, err := json.Marshal(piperRequest{
		Text:       text,
		Voice:      p.voice,
		SampleRate: p.sampleRate,
		Channels:   p.channels,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal piper request: %w", err)
	}
	return append(data, '\n'), nil
}
