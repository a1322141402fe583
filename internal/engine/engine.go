package engine

import (
	"context"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
)

// Model is a loaded acoustic model. Calls are made from a single goroutine.
type Model interface {
	// Transcribe decodes one chunk of normalised mono samples and returns the
	// segments found in it, in order.
	Transcribe(ctx context.Context, samples []float32, language string, params DecodeParams) ([]Segment, error)
	// Close releases underlying resources.
	Close() error
}

// Segment is one speech span reported by the model.
type Segment struct {
	Text             string
	AvgLogProb       float64
	NoSpeechProb     float64
	CompressionRatio float64
}

// VADParams configures the model-internal voice activity filter.
type VADParams struct {
	MinSilenceDurationMs int
	SpeechPadMs          int
}

// DecodeParams is the decoding configuration passed with every chunk.
type DecodeParams struct {
	VADFilter                     bool
	VAD                           VADParams
	BeamSize                      int
	BestOf                        int
	Temperature                   float64
	ConditionOnPreviousText       bool
	LogProbThreshold              float64
	NoSpeechThreshold             float64
	CompressionRatioThreshold     float64
	HallucinationSilenceThreshold float64
}

// NewDecodeParams returns the greedy, context-free decoding setup used for
// every chunk, carrying the configured thresholds.
func NewDecodeParams(th config.Thresholds) DecodeParams {
	return DecodeParams{
		VADFilter: true,
		VAD: VADParams{
			MinSilenceDurationMs: 500,
			SpeechPadMs:          160,
		},
		BeamSize:                      1,
		BestOf:                        1,
		Temperature:                   0,
		ConditionOnPreviousText:       false,
		LogProbThreshold:              th.MinSegmentLogProb,
		NoSpeechThreshold:             th.MaxNoSpeechProb,
		CompressionRatioThreshold:     th.MaxCompressionRatio,
		HallucinationSilenceThreshold: th.HallucinationSilence,
	}
}
