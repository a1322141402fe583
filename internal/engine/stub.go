package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/moduleinfo"
)

// StubEngine produces deterministic segments without invoking Whisper.
type StubEngine struct {
	log          *slog.Logger
	modelID      string
	totalSamples int
}

// NewStubEngine returns a Model that describes each chunk it receives.
func NewStubEngine(logger *slog.Logger, modelID string) *StubEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEngine{
		log: logger.With(
			"component", "engine.stub",
			"module", moduleinfo.Info.Slug,
			"model", modelID,
		),
		modelID: modelID,
	}
}

// Transcribe implements the Model interface.
func (e *StubEngine) Transcribe(ctx context.Context, samples []float32, language string, params DecodeParams) ([]Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, nil
	}
	e.totalSamples += len(samples)
	lang := normaliseLanguage(language)
	if lang == "" {
		lang = "auto"
	}
	text := fmt.Sprintf("[stub:%s:%s] %d samples", e.modelID, lang, len(samples))
	e.log.Debug("stub transcript", "samples", len(samples), "total_samples", e.totalSamples, "beam_size", params.BeamSize)
	return []Segment{{
		Text:             text,
		AvgLogProb:       -0.1,
		NoSpeechProb:     0.05,
		CompressionRatio: CompressionRatio(text),
	}}, nil
}

// Close implements the Model interface.
func (e *StubEngine) Close() error {
	return nil
}
