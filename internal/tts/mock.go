package tts

import (
	"context"
	"sync"
	"time"
)

// MockSynth is a scripted synthesizer for tests. By default it
// "speaks" the text it was given back as a single chunk and reports a
// fixed asset path.
type MockSynth struct {
	Path   string
	Chunks [][]byte
	Err    error
	Delay  time.Duration

	mu    sync.Mutex
	Texts []string
}

func NewMockSynth() *MockSynth {
	return &MockSynth{Path: "mock-story.mp3", Delay: 5 * time.Millisecond}
}

func (m *MockSynth) record(text string) {
	m.mu.Lock()
	m.Texts = append(m.Texts, text)
	m.mu.Unlock()
}

func (m *MockSynth) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(m.Delay):
		return nil
	}
}

func (m *MockSynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	if err := m.wait(ctx); err != nil {
		return "", err
	}
	m.record(text)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Path, nil
}

func (m *MockSynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, len(m.Chunks)+1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		if err := m.wait(ctx); err != nil {
			errs <- err
			return
		}
		m.record(text)
		if m.Err != nil {
			errs <- m.Err
			return
		}
		scripted := m.Chunks
		if len(scripted) == 0 {
			scripted = [][]byte{[]byte(text)}
		}
		for _, chunk := range scripted {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()
	return chunks, errs
}
