package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/hushabye/hush-core/internal/config"
)

const defaultKokorosVoice = "af_sky"

// KokorosSynth runs a local Kokoros process in stream mode: text on
// stdin, WAV bytes on stdout.
type KokorosSynth struct {
	cmd    []string
	writer *assetWriter
	log    *slog.Logger
	mu     sync.Mutex
}

func NewKokorosSynth(cfg config.SynthesisConfig, log *slog.Logger) (*KokorosSynth, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse kokoros command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("kokoros command is empty")
	}
	voice := cfg.Voice
	if voice == "" {
		voice = defaultKokorosVoice
	}
	args = append(args, "--voice", voice)
	return &KokorosSynth{
		cmd:    args,
		writer: newAssetWriter(cfg.AudioDir, cfg.ShareDir, log),
		log:    log.With(slog.String("component", "tts-kokoros")),
	}, nil
}

func (k *KokorosSynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := runCommand(ctx, k.cmd, []byte(text+"\n"))
	if err != nil {
		return "", err
	}
	name := audioFilename(k.writer.audioDir, info, "kokoros", ".wav")
	path, err := k.writer.write(name, data)
	if err != nil {
		return "", err
	}
	k.log.Info("generated audio asset", slog.String("path", path))
	return path, nil
}

func (k *KokorosSynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	k.mu.Lock()
	chunks := make(chan []byte, 8)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		defer k.mu.Unlock()

		if err := streamCommand(ctx, k.cmd, []byte(text+"\n"), chunks); err != nil {
			errs <- err
		}
	}()
	return chunks, errs
}
