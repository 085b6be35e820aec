package tts

import (
	"fmt"
	"log/slog"

	"github.com/hushabye/hush-core/internal/config"
)

// New builds the synthesizer named by cfg.Provider.
func New(cfg config.SynthesisConfig, log *slog.Logger) (Synthesizer, error) {
	switch cfg.Provider {
	case "elevenlabs":
		return NewElevenLabsSynth(cfg, log)
	case "polly", "amazon":
		return NewPollySynth(cfg, log)
	case "piper":
		return NewPiperSynth(cfg, log)
	case "kokoros":
		return NewKokorosSynth(cfg, log)
	case "none":
		return NewNoneSynth(log), nil
	case "mock":
		return NewMockSynth(), nil
	default:
		return nil, fmt.Errorf("unknown synthesis provider %q", cfg.Provider)
	}
}

// NewWithFallback builds the configured synthesizer. When construction
// fails it tries the configured fallback provider, and finally settles
// on the no-op synthesizer so story generation keeps working without
// audio.
func NewWithFallback(cfg config.SynthesisConfig, log *slog.Logger) Synthesizer {
	synth, err := New(cfg, log)
	if err == nil {
		return synth
	}
	log.Warn("synthesis provider unavailable",
		slog.String("provider", cfg.Provider), slogError(err))

	if cfg.Fallback != "" && cfg.Fallback != cfg.Provider {
		fallbackCfg := cfg
		fallbackCfg.Provider = cfg.Fallback
		synth, err = New(fallbackCfg, log)
		if err == nil {
			return synth
		}
		log.Warn("fallback synthesis provider unavailable",
			slog.String("provider", cfg.Fallback), slogError(err))
	}
	return NewNoneSynth(log)
}
