package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/hushabye/hush-core/internal/config"
	"github.com/hushabye/hush-core/internal/llm"
	"github.com/hushabye/hush-core/internal/orchestrator"
	"github.com/hushabye/hush-core/internal/protocol"
	"github.com/hushabye/hush-core/internal/story"
	"github.com/hushabye/hush-core/internal/storystore"
	"github.com/hushabye/hush-core/internal/tts"
)

// ErrBusy reports that the single generation slot is taken. Callers
// drop the request instead of queueing it.
var ErrBusy = errors.New("a story generation is already in progress")

// Request carries the caller-supplied element overrides for one story.
// Empty fields are filled by the randomizer; a request that pins
// universe, setting, theme and characters skips randomization
// entirely.
type Request struct {
	Universe    string
	Setting     string
	Theme       string
	Characters  []string
	StoryLength string
	ChildName   string
}

// GeneratedStory is a finished, persisted story.
type GeneratedStory struct {
	ID             int64
	Title          string
	Elements       story.Elements
	StoryText      string
	Prompt         string
	AudioPath      string
	Provider       string
	CreatedAt      time.Time
	GenerationTime time.Duration
	SynthesisTime  time.Duration
}

// Service runs story generation end to end: element resolution, text
// generation, audio synthesis and persistence. One Service is shared
// by the HTTP surface and the bus trigger; its gate keeps device
// requests from piling up behind a long generation.
type Service struct {
	cfg        config.Config
	store      *storystore.Store
	generator  llm.Generator
	provider   string
	synth      tts.Synthesizer
	orch       *orchestrator.Orchestrator
	randomizer *story.Randomizer
	gate       Gate
	log        *slog.Logger

	storiesGenerated  metric.Int64Counter
	synthesisFailures metric.Int64Counter
	generationSeconds metric.Float64Histogram
	synthesisSeconds  metric.Float64Histogram
}

func NewService(cfg config.Config, st *storystore.Store, log *slog.Logger) (*Service, error) {
	log = log.With(slog.String("component", "pipeline"))

	seeds := story.NewSeedBank(cfg.Story.SeedCacheDir, nil, log)
	prompts := story.NewPromptBuilder(seeds, nil)

	generator, provider, err := newGenerator(cfg.Generation, prompts, log)
	if err != nil {
		return nil, err
	}
	synth := tts.NewWithFallback(cfg.Synthesis, log)

	s := &Service{
		cfg:        cfg,
		store:      st,
		generator:  generator,
		provider:   provider,
		synth:      synth,
		orch:       orchestrator.New(synth, cfg.Stream.MinChunkChars, log),
		randomizer: story.NewRandomizer(nil),
		log:        log,
	}
	if err := s.initMetrics(); err != nil {
		s.log.Warn("failed to initialize metrics", slogError(err))
	}
	return s, nil
}

// newGenerator builds the configured generation backend. When
// construction fails it retries once with the fallback provider; there
// is no cascading chain beyond that.
func newGenerator(cfg config.GenerationConfig, prompts *story.PromptBuilder, log *slog.Logger) (llm.Generator, string, error) {
	generator, err := llm.New(cfg, prompts, log)
	if err == nil {
		return generator, cfg.Provider, nil
	}

	fallback := cfg.Fallback
	if fallback == "" {
		fallback = "openai"
	}
	if fallback == cfg.Provider {
		return nil, "", err
	}
	log.Warn("generation provider unavailable, trying fallback",
		slog.String("provider", cfg.Provider),
		slog.String("fallback", fallback),
		slogError(err))

	fallbackCfg := cfg
	fallbackCfg.Provider = fallback
	generator, fallbackErr := llm.New(fallbackCfg, prompts, log)
	if fallbackErr != nil {
		return nil, "", fmt.Errorf("generation provider %q unavailable (fallback %q: %v): %w",
			cfg.Provider, fallback, fallbackErr, err)
	}
	return generator, fallback, nil
}

// Provider names the generation backend actually in use, which may be
// the fallback rather than the configured one.
func (s *Service) Provider() string {
	return s.provider
}

// Busy reports whether a generation currently holds the admission gate.
func (s *Service) Busy() bool {
	return s.gate.Busy()
}

// Generate runs the blocking path: one full story, persisted, with a
// best-effort audio asset. Synthesis failure is degraded success; the
// story comes back text-only with an empty audio path.
func (s *Service) Generate(ctx context.Context, req Request) (GeneratedStory, error) {
	elements := s.resolveElements(ctx, req)
	s.log.Info("generating story",
		slog.String("universe", elements.Universe),
		slog.String("setting", elements.Setting),
		slog.String("theme", elements.Theme),
		slog.String("provider", s.provider))

	genCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Generation.TimeoutMS)*time.Millisecond)
	start := time.Now()
	result, err := s.generator.Generate(genCtx, elements)
	cancel()
	generationTime := time.Since(start)
	if err != nil {
		return GeneratedStory{}, fmt.Errorf("generate story: %w", err)
	}
	if strings.TrimSpace(result.StoryText) == "" {
		return GeneratedStory{}, errors.New("generation produced no story text")
	}
	s.recordGeneration(ctx, generationTime)

	title := story.DeriveTitle(result.StoryText)
	created := time.Now().UTC()
	id, err := s.saveStory(ctx, elements, title, result.Prompt, result.StoryText, created)
	if err != nil {
		return GeneratedStory{}, err
	}

	audioPath, synthesisTime := s.synthesizeAsset(ctx, result.StoryText, tts.Story{Universe: elements.Universe, Title: title}, id)

	return GeneratedStory{
		ID:             id,
		Title:          title,
		Elements:       elements,
		StoryText:      result.StoryText,
		Prompt:         result.Prompt,
		AudioPath:      audioPath,
		Provider:       s.provider,
		CreatedAt:      created,
		GenerationTime: generationTime,
		SynthesisTime:  synthesisTime,
	}, nil
}

// GenerateStream runs the streaming path: metadata first, then text
// deltas interleaved with per-sentence-group audio, then a complete
// event once the story is persisted. Failures after text has streamed
// are reported as an error event and returned. The gate admits one
// stream at a time; a held gate returns ErrBusy immediately.
func (s *Service) GenerateStream(ctx context.Context, req Request, emit orchestrator.EmitFunc) (GeneratedStory, error) {
	if !s.gate.TryAcquire() {
		return GeneratedStory{}, ErrBusy
	}
	defer s.gate.Release()

	elements := s.resolveElements(ctx, req)
	s.log.Info("streaming story generation started",
		slog.String("universe", elements.Universe),
		slog.String("setting", elements.Setting),
		slog.String("theme", elements.Theme),
		slog.String("provider", s.provider))

	if err := emit(protocol.StreamEvent{Type: protocol.EventMetadata, Metadata: &protocol.StoryMetadata{
		Universe:    elements.Universe,
		Setting:     elements.Setting,
		Theme:       elements.Theme,
		Characters:  elements.Characters,
		StoryLength: elements.StoryLength,
		ChildName:   elements.ChildName,
		Provider:    s.provider,
	}}); err != nil {
		return GeneratedStory{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Generation.TimeoutMS)*time.Millisecond)
	start := time.Now()
	deltas, errs := s.generator.GenerateStream(runCtx, elements)
	runResult, err := s.orch.Run(runCtx, deltas, errs, emit)
	cancel()
	generationTime := time.Since(start)
	if err != nil {
		s.emitError(emit, err)
		return GeneratedStory{}, fmt.Errorf("generate story: %w", err)
	}
	if strings.TrimSpace(runResult.Transcript) == "" {
		err := errors.New("generation produced no story text")
		s.emitError(emit, err)
		return GeneratedStory{}, err
	}
	s.recordGeneration(ctx, generationTime)

	title := story.DeriveTitle(runResult.Transcript)
	created := time.Now().UTC()
	id, err := s.saveStory(ctx, elements, title, "", runResult.Transcript, created)
	if err != nil {
		s.emitError(emit, fmt.Errorf("story generated but could not be saved: %w", err))
		return GeneratedStory{}, err
	}

	audioPath, synthesisTime := s.synthesizeAsset(ctx, runResult.Transcript, tts.Story{Universe: elements.Universe, Title: title}, id)

	generated := GeneratedStory{
		ID:             id,
		Title:          title,
		Elements:       elements,
		StoryText:      runResult.Transcript,
		AudioPath:      audioPath,
		Provider:       s.provider,
		CreatedAt:      created,
		GenerationTime: generationTime,
		SynthesisTime:  synthesisTime,
	}
	_ = emit(protocol.StreamEvent{
		Type:         protocol.EventComplete,
		StoryID:      id,
		Title:        title,
		AudioPath:    audioPath,
		GenerationMS: generationTime.Milliseconds(),
		SynthesisMS:  synthesisTime.Milliseconds(),
	})
	return generated, nil
}

// resolveElements turns a request into a full element set. A request
// that pins all four narrative elements is used as given; anything
// less triggers a weighted draw biased away from recent history, with
// stored favorites overlaid and any supplied fields kept on top.
func (s *Service) resolveElements(ctx context.Context, req Request) story.Elements {
	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		s.log.Warn("stored preferences unavailable", slogError(err))
		prefs = story.Preferences{}
	}

	childName := req.ChildName
	if childName == "" {
		childName = prefs.ChildName
	}
	if childName == "" {
		childName = s.cfg.Story.ChildName
	}

	if req.Universe != "" && req.Setting != "" && req.Theme != "" && len(req.Characters) > 0 {
		return story.Elements{
			Universe:    req.Universe,
			Setting:     req.Setting,
			Theme:       req.Theme,
			Characters:  slices.Clone(req.Characters),
			StoryLength: req.StoryLength,
			ChildName:   childName,
		}
	}

	freq, err := s.store.ElementFrequency(ctx, s.cfg.Story.FrequencyWindowDays)
	if err != nil {
		s.log.Warn("element frequency unavailable", slogError(err))
	}
	elements := s.randomizer.Randomize(freq, &story.Preferences{ChildName: childName})
	if prefs != (story.Preferences{}) {
		elements = s.randomizer.ApplyPreferences(elements, prefs)
	}

	if req.Universe != "" {
		elements.Universe = req.Universe
	}
	if req.Setting != "" {
		elements.Setting = req.Setting
	}
	if req.Theme != "" {
		elements.Theme = req.Theme
	}
	if len(req.Characters) > 0 {
		elements.Characters = slices.Clone(req.Characters)
	}
	if req.StoryLength != "" {
		elements.StoryLength = req.StoryLength
	}
	elements.ChildName = childName
	return elements
}

func (s *Service) saveStory(ctx context.Context, e story.Elements, title, prompt, text string, created time.Time) (int64, error) {
	id, err := s.store.SaveStory(ctx, storystore.StoredStory{
		ChildName:   e.ChildName,
		Universe:    e.Universe,
		Setting:     e.Setting,
		Theme:       e.Theme,
		StoryLength: e.StoryLength,
		Title:       title,
		Prompt:      prompt,
		StoryText:   text,
		Provider:    s.provider,
		Characters:  e.Characters,
		CreatedAt:   created,
	})
	if err != nil {
		return 0, fmt.Errorf("save story: %w", err)
	}
	s.log.Info("story saved", slog.Int64("story_id", id), slog.String("title", title))
	return id, nil
}

// synthesizeAsset produces the persistent audio file for a finished
// story and records its path. Failure is degraded success: the story
// stays text-only and the returned path is empty.
func (s *Service) synthesizeAsset(ctx context.Context, text string, info tts.Story, storyID int64) (string, time.Duration) {
	synthCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.Synthesis.TimeoutMS)*time.Millisecond)
	defer cancel()

	start := time.Now()
	path, err := s.synth.Synthesize(synthCtx, text, info)
	elapsed := time.Since(start)
	s.recordSynthesis(ctx, elapsed, err == nil)
	if err != nil {
		s.log.Warn("audio synthesis failed",
			slog.Int64("story_id", storyID), slogError(err))
		return "", elapsed
	}
	if path == "" {
		return "", elapsed
	}
	if err := s.store.UpdateAudioPath(ctx, storyID, path); err != nil {
		s.log.Warn("failed to record audio path",
			slog.Int64("story_id", storyID), slogError(err))
	}
	return path, elapsed
}

func (s *Service) emitError(emit orchestrator.EmitFunc, err error) {
	_ = emit(protocol.StreamEvent{Type: protocol.EventError, Error: err.Error()})
}

func (s *Service) initMetrics() error {
	meter := otel.Meter("github.com/hushabye/hush-core/pipeline")
	var err error
	if s.storiesGenerated, err = meter.Int64Counter("hush.stories.generated",
		metric.WithDescription("Stories generated end to end")); err != nil {
		return err
	}
	if s.synthesisFailures, err = meter.Int64Counter("hush.stories.synthesis_failures",
		metric.WithDescription("Synthesis attempts that produced no audio asset")); err != nil {
		return err
	}
	if s.generationSeconds, err = meter.Float64Histogram("hush.stories.generation_seconds",
		metric.WithDescription("Story text generation duration"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	if s.synthesisSeconds, err = meter.Float64Histogram("hush.stories.synthesis_seconds",
		metric.WithDescription("Audio synthesis duration"),
		metric.WithUnit("s")); err != nil {
		return err
	}
	return nil
}

func (s *Service) recordGeneration(ctx context.Context, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("provider", s.provider))
	if s.generationSeconds != nil {
		s.generationSeconds.Record(ctx, elapsed.Seconds(), attrs)
	}
	if s.storiesGenerated != nil {
		s.storiesGenerated.Add(ctx, 1, attrs)
	}
}

func (s *Service) recordSynthesis(ctx context.Context, elapsed time.Duration, ok bool) {
	attrs := metric.WithAttributes(attribute.String("provider", s.cfg.Synthesis.Provider))
	if s.synthesisSeconds != nil {
		s.synthesisSeconds.Record(ctx, elapsed.Seconds(), attrs)
	}
	if !ok && s.synthesisFailures != nil {
		s.synthesisFailures.Add(ctx, 1, attrs)
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
