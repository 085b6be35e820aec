package tts

import (
	"context"
	"log/slog"
)

// NoneSynth is the no-op synthesizer used when no TTS engine is
// installed. Stories still complete, they just carry no audio.
type NoneSynth struct {
	log *slog.Logger
}

func NewNoneSynth(log *slog.Logger) *NoneSynth {
	return &NoneSynth{log: log.With(slog.String("component", "tts-none"))}
}

func (n *NoneSynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	n.log.Debug("audio synthesis disabled, skipping", slog.Int("chars", len(text)))
	return "", nil
}

func (n *NoneSynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error)
	close(chunks)
	close(errs)
	return chunks, errs
}
