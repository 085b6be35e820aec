package orchestrator

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hushabye/hush-core/internal/protocol"
	"github.com/hushabye/hush-core/internal/tts"
)

const defaultMinChunkChars = 50

// EmitFunc delivers one stream event to the consumer. A non-nil return
// aborts the run; the consumer has gone away.
type EmitFunc func(protocol.StreamEvent) error

// Result describes a finished run.
type Result struct {
	Transcript string
	Audio      []byte
	Groups     int
}

// Orchestrator couples a live text-delta stream to a synthesis stream.
// Deltas are forwarded to the consumer as they arrive and accumulate in
// a pending buffer. Once the buffer passes the minimum chunk size it is
// segmented into sentences; every complete sentence is synthesized as
// one group while the trailing sentence stays pending, since it may
// still be growing. The audio stream for a group is fully drained
// before the next delta is pulled, keeping audio in lockstep with text.
type Orchestrator struct {
	synth    tts.Synthesizer
	minChunk int
	log      *slog.Logger
}

func New(synth tts.Synthesizer, minChunkChars int, log *slog.Logger) *Orchestrator {
	if minChunkChars <= 0 {
		minChunkChars = defaultMinChunkChars
	}
	return &Orchestrator{
		synth:    synth,
		minChunk: minChunkChars,
		log:      log.With(slog.String("component", "orchestrator")),
	}
}

type runState struct {
	transcript strings.Builder
	pending    strings.Builder
	audio      []byte
	sequence   int
	groups     int
}

func (s *runState) result() Result {
	return Result{Transcript: s.transcript.String(), Audio: s.audio, Groups: s.groups}
}

// Run consumes deltas until both channels close, emitting text and
// audio events through emit. The returned Result carries the full
// transcript and accumulated audio even when Run fails partway.
func (o *Orchestrator) Run(ctx context.Context, deltas <-chan string, errs <-chan error, emit EmitFunc) (Result, error) {
	state := &runState{}

	for deltas != nil || errs != nil {
		select {
		case delta, ok := <-deltas:
			if !ok {
				deltas = nil
				continue
			}
			if delta == "" {
				continue
			}
			if err := o.consumeDelta(ctx, state, delta, emit); err != nil {
				return state.result(), err
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return state.result(), err
			}
		case <-ctx.Done():
			return state.result(), ctx.Err()
		}
	}

	// The text stream is done; flush whatever is still pending, even
	// if it never reached a sentence boundary.
	if state.pending.Len() > 0 {
		remainder := state.pending.String()
		state.pending.Reset()
		if err := o.synthesizeGroup(ctx, state, remainder, emit); err != nil {
			return state.result(), err
		}
	}
	return state.result(), nil
}

func (o *Orchestrator) consumeDelta(ctx context.Context, state *runState, delta string, emit EmitFunc) error {
	state.transcript.WriteString(delta)
	state.pending.WriteString(delta)
	if err := emit(protocol.StreamEvent{Type: protocol.EventText, Text: delta}); err != nil {
		return err
	}

	if utf8.RuneCountInString(state.pending.String()) < o.minChunk {
		return nil
	}
	sentences := splitSentences(state.pending.String())
	if len(sentences) < 2 {
		return nil
	}
	ready := strings.Join(sentences[:len(sentences)-1], "")
	state.pending.Reset()
	state.pending.WriteString(sentences[len(sentences)-1])
	return o.synthesizeGroup(ctx, state, ready, emit)
}

// synthesizeGroup drains one synthesis stream completely. Synthesis
// failures are logged and the run continues with the remaining text;
// only emit failures and cancellation propagate.
func (o *Orchestrator) synthesizeGroup(ctx context.Context, state *runState, text string, emit EmitFunc) error {
	group := state.groups
	state.groups++

	chunks, errs := o.synth.SynthesizeStream(ctx, text)
	for chunk := range chunks {
		state.audio = append(state.audio, chunk...)
		event := protocol.StreamEvent{
			Type:     protocol.EventAudio,
			Audio:    chunk,
			Sequence: state.sequence,
			Group:    group,
		}
		state.sequence++
		if err := emit(event); err != nil {
			for range chunks {
			}
			<-errs
			return err
		}
	}
	if err := <-errs; err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.log.Warn("audio synthesis failed for sentence group",
			slog.Int("group", group), slog.String("error", err.Error()))
	}
	return nil
}
