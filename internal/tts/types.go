package tts

import "context"

// Story carries the descriptive metadata used to derive friendly
// audio filenames. Either field may be empty, in which case providers
// fall back to a random unique name.
type Story struct {
	Universe string
	Title    string
}

// Synthesizer is the contract for producing audio from story text.
type Synthesizer interface {
	// Synthesize produces a complete audio asset for text and returns
	// the local filesystem path of the written file. Providers that do
	// not produce audio return an empty path and a nil error.
	Synthesize(ctx context.Context, text string, info Story) (string, error)

	// SynthesizeStream produces ordered audio chunks for one span of
	// text. Both channels are closed by the producer; errs carries at
	// most one error.
	SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error)
}
