package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultSampleRate  = 16000
	DefaultModel       = "small"
	DefaultLanguage    = "en"
	DefaultChunkMs     = 2000
	DefaultDevice      = "auto"
	DefaultComputeType = "int8"
	DefaultEngine      = "auto"
	DefaultLogLevel    = "info"

	// MinChunkMs is the floor applied to the chunk duration before sizing chunks.
	MinChunkMs = 200
)

// ErrInvalidSampleRate is returned by Validate when the sample rate is not positive.
var ErrInvalidSampleRate = errors.New("sample-rate must be greater than 0")

// Range is a closed interval used to clamp threshold overrides.
type Range struct {
	Min float64
	Max float64
}

// Clamp returns v limited to [r.Min, r.Max].
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// Threshold describes one decoding threshold: its flag, environment variable,
// compiled-in default and valid range.
type Threshold struct {
	Flag    string
	EnvVar  string
	Default float64
	Range   Range
	Usage   string
}

var (
	FloorDBFS = Threshold{
		Flag:    "min-rms-dbfs",
		EnvVar:  "STT_SEND_AUDIO_FLOOR_DBFS",
		Default: -55.0,
		Range:   Range{Min: -120.0, Max: -10.0},
		Usage:   "chunks quieter than this RMS level (dBFS) are not decoded",
	}
	MinSegmentLogProb = Threshold{
		Flag:    "min-segment-logprob",
		EnvVar:  "FASTER_WHISPER_MIN_SEGMENT_LOGPROB",
		Default: -1.0,
		Range:   Range{Min: -10.0, Max: 0.0},
		Usage:   "segments with a lower average log-probability are dropped",
	}
	MaxNoSpeechProb = Threshold{
		Flag:    "max-no-speech-prob",
		EnvVar:  "FASTER_WHISPER_MAX_NO_SPEECH_PROB",
		Default: 0.6,
		Range:   Range{Min: 0.0, Max: 1.0},
		Usage:   "segments with a higher no-speech probability are dropped",
	}
	MaxCompressionRatio = Threshold{
		Flag:    "max-compression-ratio",
		EnvVar:  "FASTER_WHISPER_MAX_COMPRESSION_RATIO",
		Default: 2.4,
		Range:   Range{Min: 1.0, Max: 10.0},
		Usage:   "segments with a higher compression ratio are dropped",
	}
	HallucinationSilence = Threshold{
		Flag:    "hallucination-silence-threshold",
		EnvVar:  "FASTER_WHISPER_HALLUCINATION_SILENCE_THRESHOLD",
		Default: 0.8,
		Range:   Range{Min: 0.0, Max: 10.0},
		Usage:   "silence (seconds) skipped around suspected hallucinations, where the engine supports it",
	}
)

// Thresholds groups the decoding thresholds.
type Thresholds struct {
	MinRMSDBFS           float64
	MinSegmentLogProb    float64
	MaxNoSpeechProb      float64
	MaxCompressionRatio  float64
	HallucinationSilence float64
}

// DefaultThresholds returns the compiled-in threshold values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRMSDBFS:           FloorDBFS.Default,
		MinSegmentLogProb:    MinSegmentLogProb.Default,
		MaxNoSpeechProb:      MaxNoSpeechProb.Default,
		MaxCompressionRatio:  MaxCompressionRatio.Default,
		HallucinationSilence: HallucinationSilence.Default,
	}
}

// Config is the resolved process configuration. It is built once at startup
// and only read afterwards.
type Config struct {
	SampleRate  int
	ModelID     string
	Language    string
	ChunkMs     int
	Device      string
	ComputeType string

	Engine       string
	CacheDir     string
	VADModelPath string
	Threads      int
	LogLevel     string
	HealthAddr   string

	Thresholds Thresholds
}

// Default returns a Config holding the compiled-in defaults.
func Default() Config {
	return Config{
		SampleRate:  DefaultSampleRate,
		ModelID:     DefaultModel,
		Language:    DefaultLanguage,
		ChunkMs:     DefaultChunkMs,
		Device:      DefaultDevice,
		ComputeType: DefaultComputeType,
		Engine:      DefaultEngine,
		CacheDir:    DefaultCacheDir(),
		LogLevel:    DefaultLogLevel,
		Thresholds:  DefaultThresholds(),
	}
}

// Validate applies defaults to empty fields and rejects invalid values.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if strings.TrimSpace(c.ModelID) == "" {
		c.ModelID = DefaultModel
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.ComputeType == "" {
		c.ComputeType = DefaultComputeType
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir()
	}
	switch strings.ToLower(strings.TrimSpace(c.Engine)) {
	case "", "auto":
		c.Engine = "auto"
	case "native", "stub":
		c.Engine = strings.ToLower(strings.TrimSpace(c.Engine))
	default:
		return fmt.Errorf("config: unknown engine %q (want auto, native or stub)", c.Engine)
	}
	if c.Threads < 0 {
		return fmt.Errorf("config: threads must be >= 0, got %d", c.Threads)
	}
	return nil
}

// EffectiveChunkMs returns the chunk duration with the MinChunkMs floor applied.
func (c Config) EffectiveChunkMs() int {
	if c.ChunkMs < MinChunkMs {
		return MinChunkMs
	}
	return c.ChunkMs
}

// ResolveThreshold picks the value of one threshold. An explicit flag value
// wins unchanged. Otherwise a parsable environment value is clamped into r.
// Anything else yields def.
func ResolveThreshold(flagValue *float64, envValue string, envSet bool, def float64, r Range) float64 {
	if flagValue != nil {
		return *flagValue
	}
	if !envSet {
		return def
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(envValue), 64)
	if err != nil || math.IsNaN(parsed) {
		return def
	}
	return r.Clamp(parsed)
}

// DefaultCacheDir returns the per-user model cache location.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "whisper-stream", "models")
}
