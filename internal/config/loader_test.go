package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
)

func mapLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}

func TestLoaderDefaults(t *testing.T) {
	loader := config.Loader{Lookup: mapLookup(nil)}
	cfg, err := loader.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertInt(t, config.DefaultSampleRate, cfg.SampleRate, "sample rate")
	assertEqual(t, config.DefaultModel, cfg.ModelID, "model")
	assertEqual(t, config.DefaultLanguage, cfg.Language, "language")
	assertInt(t, config.DefaultChunkMs, cfg.ChunkMs, "chunk ms")
	assertEqual(t, config.DefaultDevice, cfg.Device, "device")
	assertEqual(t, config.DefaultComputeType, cfg.ComputeType, "compute type")
	assertEqual(t, "auto", cfg.Engine, "engine")
	assertEqual(t, config.DefaultLogLevel, cfg.LogLevel, "log level")
	if cfg.CacheDir == "" {
		t.Fatalf("expected default cache dir")
	}
	if cfg.Thresholds != config.DefaultThresholds() {
		t.Fatalf("unexpected thresholds: %+v", cfg.Thresholds)
	}
}

func TestLoaderEnvThresholdsAreClamped(t *testing.T) {
	env := map[string]string{
		"STT_SEND_AUDIO_FLOOR_DBFS":                      "-200",
		"FASTER_WHISPER_MIN_SEGMENT_LOGPROB":             " -0.5 ",
		"FASTER_WHISPER_MAX_NO_SPEECH_PROB":              "1.7",
		"FASTER_WHISPER_MAX_COMPRESSION_RATIO":           "0.2",
		"FASTER_WHISPER_HALLUCINATION_SILENCE_THRESHOLD": "not-a-number",
	}
	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load(config.Overrides{})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertFloat(t, -120, cfg.Thresholds.MinRMSDBFS, "floor dbfs")
	assertFloat(t, -0.5, cfg.Thresholds.MinSegmentLogProb, "min logprob")
	assertFloat(t, 1.0, cfg.Thresholds.MaxNoSpeechProb, "max no speech")
	assertFloat(t, 1.0, cfg.Thresholds.MaxCompressionRatio, "max compression")
	assertFloat(t, config.HallucinationSilence.Default, cfg.Thresholds.HallucinationSilence, "hallucination silence")
}

func TestLoaderFlagBeatsEnv(t *testing.T) {
	env := map[string]string{
		"STT_SEND_AUDIO_FLOOR_DBFS": "-30",
	}
	floor := -70.0
	model := "medium"
	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load(config.Overrides{
		MinRMSDBFS: &floor,
		ModelID:    &model,
	})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertFloat(t, -70, cfg.Thresholds.MinRMSDBFS, "floor dbfs")
	assertEqual(t, "medium", cfg.ModelID, "model")
}

func TestLoaderRejectsInvalidSampleRate(t *testing.T) {
	rate := 0
	_, err := config.Loader{Lookup: mapLookup(nil)}.Load(config.Overrides{SampleRate: &rate})
	if !errors.Is(err, config.ErrInvalidSampleRate) {
		t.Fatalf("expected ErrInvalidSampleRate, got %v", err)
	}
}

func TestLoaderRejectsUnknownEngine(t *testing.T) {
	engine := "gpu-magic"
	if _, err := (config.Loader{Lookup: mapLookup(nil)}).Load(config.Overrides{Engine: &engine}); err == nil {
		t.Fatal("expected error for unknown engine")
	}
}

func TestLoaderYAMLFile(t *testing.T) {
	files := map[string]string{
		"stream.yaml": `
model: large-v3
language: auto
chunk_ms: 3000
engine: stub
min_rms_dbfs: -5
max_no_speech_prob: 0.4
`,
	}
	env := map[string]string{
		"FASTER_WHISPER_MAX_NO_SPEECH_PROB": "0.3",
		"WHISPER_STREAM_LOG_LEVEL":          "debug",
	}
	loader := config.Loader{
		Lookup: mapLookup(env),
		ReadFile: func(path string) ([]byte, error) {
			raw, ok := files[path]
			if !ok {
				return nil, os.ErrNotExist
			}
			return []byte(raw), nil
		},
	}
	language := "de"
	cfg, err := loader.Load(config.Overrides{ConfigPath: "stream.yaml", Language: &language})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertEqual(t, "large-v3", cfg.ModelID, "model")
	assertEqual(t, "de", cfg.Language, "language (flag wins)")
	assertInt(t, 3000, cfg.ChunkMs, "chunk ms")
	assertEqual(t, "stub", cfg.Engine, "engine")
	assertEqual(t, "debug", cfg.LogLevel, "log level")
	// File values are clamped like environment values.
	assertFloat(t, -10, cfg.Thresholds.MinRMSDBFS, "floor dbfs")
	// Environment beats the file.
	assertFloat(t, 0.3, cfg.Thresholds.MaxNoSpeechProb, "max no speech")
}

func TestLoaderInvalidYAML(t *testing.T) {
	loader := config.Loader{
		Lookup:   mapLookup(nil),
		ReadFile: func(string) ([]byte, error) { return []byte("model: [unterminated"), nil },
	}
	if _, err := loader.Load(config.Overrides{ConfigPath: "bad.yaml"}); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoaderEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.env")
	content := "FASTER_WHISPER_MAX_COMPRESSION_RATIO=3.1\nFASTER_WHISPER_MIN_SEGMENT_LOGPROB=-2\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	env := map[string]string{
		"FASTER_WHISPER_MIN_SEGMENT_LOGPROB": "-0.7",
	}
	cfg, err := config.Loader{Lookup: mapLookup(env)}.Load(config.Overrides{EnvFile: path})
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	assertFloat(t, 3.1, cfg.Thresholds.MaxCompressionRatio, "max compression (env file)")
	assertFloat(t, -0.7, cfg.Thresholds.MinSegmentLogProb, "min logprob (process env wins)")
}

func TestLoaderMissingEnvFile(t *testing.T) {
	_, err := config.Loader{Lookup: mapLookup(nil)}.Load(config.Overrides{EnvFile: filepath.Join(t.TempDir(), "missing.env")})
	if err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func assertEqual(t *testing.T, want, got, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %q, got %q", label, want, got)
	}
}

func assertInt(t *testing.T, want, got int, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %d, got %d", label, want, got)
	}
}

func assertFloat(t *testing.T, want, got float64, label string) {
	t.Helper()
	if want != got {
		t.Fatalf("unexpected %s: want %v, got %v", label, want, got)
	}
}
