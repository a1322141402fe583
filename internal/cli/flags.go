package cli

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
)

// flagValues holds the raw flag targets. Only flags the user set are turned
// into overrides, so env and file values can fill the rest.
type flagValues struct {
	sampleRate  int
	model       string
	language    string
	chunkMs     int
	device      string
	computeType string

	engine       string
	cacheDir     string
	vadModel     string
	threads      int
	logLevel     string
	healthAddr   string
	configPath   string
	envFile      string

	minRMSDBFS           float64
	minSegmentLogProb    float64
	maxNoSpeechProb      float64
	maxCompressionRatio  float64
	hallucinationSilence float64
}

func (v *flagValues) register(fs *pflag.FlagSet) {
	defaults := config.Default()

	fs.IntVar(&v.sampleRate, "sample-rate", defaults.SampleRate, "input sample rate in Hz (s16le mono)")
	fs.StringVar(&v.model, "model", defaults.ModelID, "model identifier or snapshot directory")
	fs.StringVar(&v.language, "language", defaults.Language, `decoding language, "auto" to detect`)
	fs.IntVar(&v.chunkMs, "chunk-ms", defaults.ChunkMs, fmt.Sprintf("chunk duration in milliseconds (minimum %d)", config.MinChunkMs))
	fs.StringVar(&v.device, "device", defaults.Device, "inference device: auto, cpu, cuda[:N]")
	fs.StringVar(&v.computeType, "compute-type", defaults.ComputeType, "compute precision, e.g. int8, float16")

	fs.StringVar(&v.engine, "engine", defaults.Engine, "backend: auto, native or stub (env WHISPER_STREAM_ENGINE)")
	fs.StringVar(&v.cacheDir, "cache-dir", defaults.CacheDir, "model cache directory (env WHISPER_STREAM_CACHE_DIR)")
	fs.StringVar(&v.vadModel, "vad-model", "", "path to a VAD model used by the native backend")
	fs.IntVar(&v.threads, "threads", 0, "decoder threads, 0 for the backend default")
	fs.StringVar(&v.logLevel, "log-level", defaults.LogLevel, "stderr log level: debug, info, warn, error (env WHISPER_STREAM_LOG_LEVEL)")
	fs.StringVar(&v.healthAddr, "health-addr", "", "serve gRPC health checks on this address")
	fs.StringVar(&v.configPath, "config", "", "YAML file with base settings")
	fs.StringVar(&v.envFile, "env-file", "", "dotenv file consulted after the process environment")

	thresholdFlag(fs, &v.minRMSDBFS, config.FloorDBFS)
	thresholdFlag(fs, &v.minSegmentLogProb, config.MinSegmentLogProb)
	thresholdFlag(fs, &v.maxNoSpeechProb, config.MaxNoSpeechProb)
	thresholdFlag(fs, &v.maxCompressionRatio, config.MaxCompressionRatio)
	thresholdFlag(fs, &v.hallucinationSilence, config.HallucinationSilence)
}

func thresholdFlag(fs *pflag.FlagSet, target *float64, t config.Threshold) {
	usage := fmt.Sprintf("%s (env %s, clamped to [%g, %g])", t.Usage, t.EnvVar, t.Range.Min, t.Range.Max)
	fs.Float64Var(target, t.Flag, t.Default, usage)
}

func (v *flagValues) overrides(fs *pflag.FlagSet) config.Overrides {
	o := config.Overrides{
		ConfigPath: v.configPath,
		EnvFile:    v.envFile,
	}
	changed := fs.Changed

	if changed("sample-rate") {
		o.SampleRate = &v.sampleRate
	}
	if changed("model") {
		o.ModelID = &v.model
	}
	if changed("language") {
		o.Language = &v.language
	}
	if changed("chunk-ms") {
		o.ChunkMs = &v.chunkMs
	}
	if changed("device") {
		o.Device = &v.device
	}
	if changed("compute-type") {
		o.ComputeType = &v.computeType
	}
	if changed("engine") {
		o.Engine = &v.engine
	}
	if changed("cache-dir") {
		o.CacheDir = &v.cacheDir
	}
	if changed("vad-model") {
		o.VADModelPath = &v.vadModel
	}
	if changed("threads") {
		o.Threads = &v.threads
	}
	if changed("log-level") {
		o.LogLevel = &v.logLevel
	}
	if changed("health-addr") {
		o.HealthAddr = &v.healthAddr
	}

	if changed(config.FloorDBFS.Flag) {
		o.MinRMSDBFS = &v.minRMSDBFS
	}
	if changed(config.MinSegmentLogProb.Flag) {
		o.MinSegmentLogProb = &v.minSegmentLogProb
	}
	if changed(config.MaxNoSpeechProb.Flag) {
		o.MaxNoSpeechProb = &v.maxNoSpeechProb
	}
	if changed(config.MaxCompressionRatio.Flag) {
		o.MaxCompressionRatio = &v.maxCompressionRatio
	}
	if changed(config.HallucinationSilence.Flag) {
		o.HallucinationSilence = &v.hallucinationSilence
	}
	return o
}
