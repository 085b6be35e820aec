package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string           `yaml:"runtime_name"`
	Environment string           `yaml:"environment"`
	HTTP        HTTPConfig       `yaml:"http"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
	Bus         BusConfig        `yaml:"bus"`
	Store       StoreConfig      `yaml:"store"`
	Story       StoryConfig      `yaml:"story"`
	Generation  GenerationConfig `yaml:"generation"`
	Synthesis   SynthesisConfig  `yaml:"synthesis"`
	Stream      StreamConfig     `yaml:"stream"`
	Trigger     TriggerConfig    `yaml:"trigger"`
}

type BusConfig struct {
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type StoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
	MaxStories    int    `yaml:"max_stories"`
	VacuumOnStart bool   `yaml:"vacuum_on_start"`
}

type StoryConfig struct {
	ChildName           string `yaml:"child_name"`
	SeedCacheDir        string `yaml:"seed_cache_dir"`
	FrequencyWindowDays int    `yaml:"frequency_window_days"`
}

type GenerationConfig struct {
	Provider    string  `yaml:"provider"` // openai, anthropic, azure, local
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	APIBase     string  `yaml:"api_base"`
	Deployment  string  `yaml:"deployment"` // azure deployment name
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"` // 0 means provider default
	TimeoutMS   int     `yaml:"timeout_ms"`
	Fallback    string  `yaml:"fallback"`
}

type SynthesisConfig struct {
	Provider   string `yaml:"provider"` // elevenlabs, polly, piper, kokoros, none
	Voice      string `yaml:"voice"`
	APIKey     string `yaml:"api_key"`
	APIBase    string `yaml:"api_base"`
	Command    string `yaml:"command"`    // piper/kokoros executable and args
	ModelPath  string `yaml:"model_path"` // piper voice model
	Region     string `yaml:"region"`     // polly
	Engine     string `yaml:"engine"`     // polly: standard or neural
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	AudioDir   string `yaml:"audio_dir"`
	ShareDir   string `yaml:"share_dir"`
	Fallback   string `yaml:"fallback"`
	TimeoutMS  int    `yaml:"timeout_ms"`
}

type StreamConfig struct {
	MinChunkChars int `yaml:"min_chunk_chars"`
}

type TriggerConfig struct {
	Enabled bool `yaml:"enabled"`
}

func Default() Config {
	return Config{
		RuntimeName: "hush-core",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8080,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Store: StoreConfig{
			Path:          "./data/hush-stories.db",
			RetentionDays: 0,
			MaxStories:    0,
		},
		Story: StoryConfig{
			ChildName:           "Wesley",
			SeedCacheDir:        "./data",
			FrequencyWindowDays: 14,
		},
		Generation: GenerationConfig{
			Provider:  "openai",
			MaxTokens: 1500,
			TimeoutMS: 120000,
			Fallback:  "openai",
		},
		Synthesis: SynthesisConfig{
			Provider:   "none",
			Engine:     "neural",
			Region:     "us-east-1",
			SampleRate: 22050,
			Channels:   1,
			AudioDir:   "./data/audio",
			Fallback:   "none",
			TimeoutMS:  60000,
		},
		Stream: StreamConfig{
			MinChunkChars: 50,
		},
		Trigger: TriggerConfig{
			Enabled: true,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "HUSH_RUNTIME_NAME")
	overrideString(&cfg.Environment, "HUSH_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "HUSH_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "HUSH_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "HUSH_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "HUSH_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "HUSH_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Bus.Embedded, "HUSH_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "HUSH_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "HUSH_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "HUSH_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "HUSH_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "HUSH_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "HUSH_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "HUSH_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "HUSH_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Store.Path, "HUSH_STORE_PATH")
	overrideInt(&cfg.Store.RetentionDays, "HUSH_STORE_RETENTION_DAYS")
	overrideInt(&cfg.Store.MaxStories, "HUSH_STORE_MAX_STORIES")
	overrideBool(&cfg.Store.VacuumOnStart, "HUSH_STORE_VACUUM_ON_START")
	overrideString(&cfg.Story.ChildName, "HUSH_STORY_CHILD_NAME")
	overrideString(&cfg.Story.SeedCacheDir, "HUSH_STORY_SEED_CACHE_DIR")
	overrideInt(&cfg.Story.FrequencyWindowDays, "HUSH_STORY_FREQUENCY_WINDOW_DAYS")
	overrideString(&cfg.Generation.Provider, "HUSH_GENERATION_PROVIDER")
	overrideString(&cfg.Generation.Model, "HUSH_GENERATION_MODEL")
	overrideString(&cfg.Generation.APIKey, "HUSH_GENERATION_API_KEY")
	overrideString(&cfg.Generation.APIBase, "HUSH_GENERATION_API_BASE")
	overrideString(&cfg.Generation.Deployment, "HUSH_GENERATION_DEPLOYMENT")
	overrideInt(&cfg.Generation.MaxTokens, "HUSH_GENERATION_MAX_TOKENS")
	overrideFloat(&cfg.Generation.Temperature, "HUSH_GENERATION_TEMPERATURE")
	overrideInt(&cfg.Generation.TimeoutMS, "HUSH_GENERATION_TIMEOUT_MS")
	overrideString(&cfg.Generation.Fallback, "HUSH_GENERATION_FALLBACK")
	overrideString(&cfg.Synthesis.Provider, "HUSH_SYNTHESIS_PROVIDER")
	overrideString(&cfg.Synthesis.Voice, "HUSH_SYNTHESIS_VOICE")
	overrideString(&cfg.Synthesis.APIKey, "HUSH_SYNTHESIS_API_KEY")
	overrideString(&cfg.Synthesis.APIBase, "HUSH_SYNTHESIS_API_BASE")
	overrideString(&cfg.Synthesis.Command, "HUSH_SYNTHESIS_COMMAND")
	overrideString(&cfg.Synthesis.ModelPath, "HUSH_SYNTHESIS_MODEL_PATH")
	overrideString(&cfg.Synthesis.Region, "HUSH_SYNTHESIS_REGION")
	overrideString(&cfg.Synthesis.Engine, "HUSH_SYNTHESIS_ENGINE")
	overrideInt(&cfg.Synthesis.SampleRate, "HUSH_SYNTHESIS_SAMPLE_RATE")
	overrideInt(&cfg.Synthesis.Channels, "HUSH_SYNTHESIS_CHANNELS")
	overrideString(&cfg.Synthesis.AudioDir, "HUSH_SYNTHESIS_AUDIO_DIR")
	overrideString(&cfg.Synthesis.ShareDir, "HUSH_SYNTHESIS_SHARE_DIR")
	overrideString(&cfg.Synthesis.Fallback, "HUSH_SYNTHESIS_FALLBACK")
	overrideInt(&cfg.Synthesis.TimeoutMS, "HUSH_SYNTHESIS_TIMEOUT_MS")
	overrideInt(&cfg.Stream.MinChunkChars, "HUSH_STREAM_MIN_CHUNK_CHARS")
	overrideBool(&cfg.Trigger.Enabled, "HUSH_TRIGGER_ENABLED")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Embedded {
		if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
			return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
		}
	} else {
		if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Store.RetentionDays < 0 {
		return errors.New("store.retention_days must be >= 0")
	}
	if cfg.Store.MaxStories < 0 {
		return errors.New("store.max_stories must be >= 0")
	}
	if cfg.Story.ChildName == "" {
		return errors.New("story.child_name must not be empty")
	}
	if cfg.Story.FrequencyWindowDays <= 0 {
		return errors.New("story.frequency_window_days must be positive")
	}
	switch cfg.Generation.Provider {
	case "openai", "anthropic", "claude", "azure", "local", "mock":
	default:
		return errors.New("generation.provider must be one of openai|anthropic|azure|local|mock")
	}
	if cfg.Generation.Provider == "azure" {
		if cfg.Generation.APIBase == "" {
			return errors.New("generation.api_base must be set when provider=azure")
		}
		if cfg.Generation.Deployment == "" {
			return errors.New("generation.deployment must be set when provider=azure")
		}
	}
	if cfg.Generation.MaxTokens <= 0 {
		return errors.New("generation.max_tokens must be positive")
	}
	if cfg.Generation.Temperature < 0 || cfg.Generation.Temperature > 2 {
		return errors.New("generation.temperature must be between 0 and 2")
	}
	if cfg.Generation.TimeoutMS <= 0 {
		return errors.New("generation.timeout_ms must be positive")
	}
	switch cfg.Synthesis.Provider {
	case "elevenlabs", "polly", "amazon", "piper", "kokoros", "none", "mock":
	default:
		return errors.New("synthesis.provider must be one of elevenlabs|polly|piper|kokoros|none|mock")
	}
	switch cfg.Synthesis.Provider {
	case "piper", "kokoros":
		if cfg.Synthesis.Command == "" {
			return fmt.Errorf("synthesis.command must be set when provider=%s", cfg.Synthesis.Provider)
		}
	}
	if cfg.Synthesis.Provider == "polly" || cfg.Synthesis.Provider == "amazon" {
		switch cfg.Synthesis.Engine {
		case "standard", "neural":
		default:
			return errors.New("synthesis.engine must be standard or neural")
		}
	}
	if cfg.Synthesis.SampleRate <= 0 {
		return errors.New("synthesis.sample_rate must be positive")
	}
	if cfg.Synthesis.Channels <= 0 {
		return errors.New("synthesis.channels must be positive")
	}
	if cfg.Synthesis.AudioDir == "" {
		return errors.New("synthesis.audio_dir must not be empty")
	}
	if cfg.Synthesis.TimeoutMS <= 0 {
		return errors.New("synthesis.timeout_ms must be positive")
	}
	if cfg.Stream.MinChunkChars <= 0 {
		return errors.New("stream.min_chunk_chars must be positive")
	}
	return nil
}
