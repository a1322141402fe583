package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Overrides carries values given explicitly on the command line. A nil field
// means the flag was not set.
type Overrides struct {
	SampleRate  *int
	ModelID     *string
	Language    *string
	ChunkMs     *int
	Device      *string
	ComputeType *string

	Engine       *string
	CacheDir     *string
	VADModelPath *string
	Threads      *int
	LogLevel     *string
	HealthAddr   *string

	MinRMSDBFS           *float64
	MinSegmentLogProb    *float64
	MaxNoSpeechProb      *float64
	MaxCompressionRatio  *float64
	HallucinationSilence *float64

	// ConfigPath names an optional YAML file with base settings.
	ConfigPath string
	// EnvFile names an optional dotenv file consulted after the process environment.
	EnvFile string
}

// Loader resolves configuration from flags, environment variables and an
// optional YAML file. Tests can override Lookup and ReadFile to inject
// deterministic sources.
type Loader struct {
	Lookup   func(string) (string, bool)
	ReadFile func(string) ([]byte, error)
}

// Load merges all sources into one validated Config.
func (l Loader) Load(o Overrides) (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	if l.ReadFile == nil {
		l.ReadFile = os.ReadFile
	}

	lookup := l.Lookup
	if strings.TrimSpace(o.EnvFile) != "" {
		fileEnv, err := godotenv.Read(o.EnvFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: read env file %s: %w", o.EnvFile, err)
		}
		lookup = layeredLookup(l.Lookup, fileEnv)
	}

	cfg := Default()
	bases := DefaultThresholds()

	if strings.TrimSpace(o.ConfigPath) != "" {
		raw, err := l.ReadFile(o.ConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", o.ConfigPath, err)
		}
		if err := applyYAML(raw, &cfg, &bases); err != nil {
			return Config{}, err
		}
	}

	overrideString(lookup, "WHISPER_STREAM_LOG_LEVEL", &cfg.LogLevel)
	overrideString(lookup, "WHISPER_STREAM_CACHE_DIR", &cfg.CacheDir)
	overrideString(lookup, "WHISPER_STREAM_ENGINE", &cfg.Engine)

	assign(o.SampleRate, &cfg.SampleRate)
	assign(o.ModelID, &cfg.ModelID)
	assign(o.Language, &cfg.Language)
	assign(o.ChunkMs, &cfg.ChunkMs)
	assign(o.Device, &cfg.Device)
	assign(o.ComputeType, &cfg.ComputeType)
	assign(o.Engine, &cfg.Engine)
	assign(o.CacheDir, &cfg.CacheDir)
	assign(o.VADModelPath, &cfg.VADModelPath)
	assign(o.Threads, &cfg.Threads)
	assign(o.LogLevel, &cfg.LogLevel)
	assign(o.HealthAddr, &cfg.HealthAddr)

	cfg.Thresholds = Thresholds{
		MinRMSDBFS:           resolve(lookup, o.MinRMSDBFS, FloorDBFS, bases.MinRMSDBFS),
		MinSegmentLogProb:    resolve(lookup, o.MinSegmentLogProb, MinSegmentLogProb, bases.MinSegmentLogProb),
		MaxNoSpeechProb:      resolve(lookup, o.MaxNoSpeechProb, MaxNoSpeechProb, bases.MaxNoSpeechProb),
		MaxCompressionRatio:  resolve(lookup, o.MaxCompressionRatio, MaxCompressionRatio, bases.MaxCompressionRatio),
		HallucinationSilence: resolve(lookup, o.HallucinationSilence, HallucinationSilence, bases.HallucinationSilence),
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func resolve(lookup func(string) (string, bool), flagValue *float64, t Threshold, base float64) float64 {
	raw, ok := lookup(t.EnvVar)
	return ResolveThreshold(flagValue, raw, ok, base, t.Range)
}

type fileConfig struct {
	SampleRate   *int    `yaml:"sample_rate"`
	Model        string  `yaml:"model"`
	Language     *string `yaml:"language"`
	ChunkMs      *int    `yaml:"chunk_ms"`
	Device       string  `yaml:"device"`
	ComputeType  string  `yaml:"compute_type"`
	Engine       string  `yaml:"engine"`
	CacheDir     string  `yaml:"cache_dir"`
	VADModelPath string  `yaml:"vad_model"`
	Threads      *int    `yaml:"threads"`
	LogLevel     string  `yaml:"log_level"`
	HealthAddr   string  `yaml:"health_addr"`

	MinRMSDBFS           *float64 `yaml:"min_rms_dbfs"`
	MinSegmentLogProb    *float64 `yaml:"min_segment_logprob"`
	MaxNoSpeechProb      *float64 `yaml:"max_no_speech_prob"`
	MaxCompressionRatio  *float64 `yaml:"max_compression_ratio"`
	HallucinationSilence *float64 `yaml:"hallucination_silence_threshold"`
}

func applyYAML(raw []byte, cfg *Config, bases *Thresholds) error {
	var payload fileConfig
	if err := yaml.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("config: decode yaml: %w", err)
	}
	assign(payload.SampleRate, &cfg.SampleRate)
	assign(payload.Language, &cfg.Language)
	assign(payload.ChunkMs, &cfg.ChunkMs)
	assign(payload.Threads, &cfg.Threads)
	setString(payload.Model, &cfg.ModelID)
	setString(payload.Device, &cfg.Device)
	setString(payload.ComputeType, &cfg.ComputeType)
	setString(payload.Engine, &cfg.Engine)
	setString(payload.CacheDir, &cfg.CacheDir)
	setString(payload.VADModelPath, &cfg.VADModelPath)
	setString(payload.LogLevel, &cfg.LogLevel)
	setString(payload.HealthAddr, &cfg.HealthAddr)

	clampInto(payload.MinRMSDBFS, FloorDBFS.Range, &bases.MinRMSDBFS)
	clampInto(payload.MinSegmentLogProb, MinSegmentLogProb.Range, &bases.MinSegmentLogProb)
	clampInto(payload.MaxNoSpeechProb, MaxNoSpeechProb.Range, &bases.MaxNoSpeechProb)
	clampInto(payload.MaxCompressionRatio, MaxCompressionRatio.Range, &bases.MaxCompressionRatio)
	clampInto(payload.HallucinationSilence, HallucinationSilence.Range, &bases.HallucinationSilence)
	return nil
}

// layeredLookup consults primary first and falls back to the dotenv values.
func layeredLookup(primary func(string) (string, bool), fallback map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		if value, ok := primary(key); ok {
			return value, true
		}
		value, ok := fallback[key]
		return value, ok
	}
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if lookup == nil || target == nil {
		return
	}
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func assign[T any](value *T, target *T) {
	if value != nil {
		*target = *value
	}
}

func setString(value string, target *string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

func clampInto(value *float64, r Range, target *float64) {
	if value != nil {
		*target = r.Clamp(*value)
	}
}
