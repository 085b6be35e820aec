package tts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"unicode"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/hushabye/hush-core/internal/config"
)

const defaultPollyVoice = "Joanna"

// PollySynth produces MP3 audio through Amazon Polly.
type PollySynth struct {
	client     *polly.Client
	voice      types.VoiceId
	engine     types.Engine
	sampleRate string
	writer     *assetWriter
	log        *slog.Logger
}

func NewPollySynth(cfg config.SynthesisConfig, log *slog.Logger) (*PollySynth, error) {
	logger := log.With(slog.String("component", "tts-polly"))

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if key, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"); key != "" && secret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	voice := resolveVoice(cfg.Voice)
	if cfg.Voice != "" && voice != cfg.Voice {
		logger.Warn("voice id does not look like a polly voice, using default",
			slog.String("voice", cfg.Voice), slog.String("default", defaultPollyVoice))
	}
	engine := cfg.Engine
	if engine == "" {
		engine = "neural"
	}
	sampleRate := ""
	if cfg.SampleRate > 0 {
		sampleRate = strconv.Itoa(cfg.SampleRate)
	}
	return &PollySynth{
		client:     polly.NewFromConfig(awsCfg),
		voice:      types.VoiceId(voice),
		engine:     types.Engine(engine),
		sampleRate: sampleRate,
		writer:     newAssetWriter(cfg.AudioDir, cfg.ShareDir, log),
		log:        logger,
	}, nil
}

// resolveVoice falls back to the default Polly voice when the
// configured id looks like it belongs to another provider, such as the
// long opaque ids ElevenLabs uses.
func resolveVoice(voice string) string {
	if voice == "" {
		return defaultPollyVoice
	}
	if len(voice) > 10 && !isAlpha(voice) {
		return defaultPollyVoice
	}
	return voice
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}

func (s *PollySynth) input(text string) *polly.SynthesizeSpeechInput {
	in := &polly.SynthesizeSpeechInput{
		Text:         aws.String(text),
		OutputFormat: types.OutputFormatMp3,
		VoiceId:      s.voice,
		Engine:       s.engine,
	}
	if s.sampleRate != "" {
		in.SampleRate = aws.String(s.sampleRate)
	}
	return in
}

func (s *PollySynth) Synthesize(ctx context.Context, text string, info Story) (string, error) {
	out, err := s.client.SynthesizeSpeech(ctx, s.input(text))
	if err != nil {
		return "", fmt.Errorf("polly synthesis: %w", err)
	}
	defer out.AudioStream.Close()

	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return "", fmt.Errorf("read polly audio: %w", err)
	}
	name := audioFilename(s.writer.audioDir, info, "polly", ".mp3")
	path, err := s.writer.write(name, data)
	if err != nil {
		return "", err
	}
	s.log.Info("generated audio asset", slog.String("path", path))
	return path, nil
}

func (s *PollySynth) SynthesizeStream(ctx context.Context, text string) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte, 8)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		out, err := s.client.SynthesizeSpeech(ctx, s.input(text))
		if err != nil {
			errs <- fmt.Errorf("polly synthesis: %w", err)
			return
		}
		defer out.AudioStream.Close()

		buf := make([]byte, streamChunkSize)
		for {
			n, readErr := out.AudioStream.Read(buf)
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
				errs <- fmt.Errorf("read polly audio: %w", readErr)
				return
			}
		}
	}()
	return chunks, errs
}
