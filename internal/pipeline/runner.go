// Package pipeline runs the blocking read, chunk, gate, decode and filter loop
// over the input stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/audio"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/events"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/telemetry"
)

// MaxReadSize caps a single read from the input.
const MaxReadSize = 4096

// ErrInputRead wraps failures reading the input stream.
var ErrInputRead = errors.New("pipeline: read input")

// Runner decodes chunks strictly in arrival order on the calling goroutine.
// It does not emit ready or closed; the caller owns the event lifecycle.
type Runner struct {
	cfg      config.Config
	model    engine.Model
	emitter  *events.Emitter
	recorder *telemetry.Recorder
	log      *slog.Logger
	params   engine.DecodeParams
}

// NewRunner wires a Runner for one input stream.
func NewRunner(cfg config.Config, model engine.Model, emitter *events.Emitter, recorder *telemetry.Recorder, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:      cfg,
		model:    model,
		emitter:  emitter,
		recorder: recorder,
		log:      logger.With("component", "pipeline.Runner"),
		params:   engine.NewDecodeParams(cfg.Thresholds),
	}
}

// Run consumes in until EOF and processes the trailing partial chunk. A read
// failure is reported as an error event, the buffered remainder is still
// decoded, and the failure is returned wrapped in ErrInputRead. Cancelling ctx
// stops the loop after the current chunk and returns ctx.Err().
func (r *Runner) Run(ctx context.Context, in io.Reader) (err error) {
	chunker := audio.NewChunker(r.cfg.SampleRate, r.cfg.EffectiveChunkMs())
	streamID := uuid.NewString()
	metrics := r.recorder.StartStream(streamID,
		"sample_rate", r.cfg.SampleRate,
		"chunk_bytes", chunker.ChunkBytes(),
	)
	log := r.log.With("stream_id", streamID)
	defer func() { metrics.Finish(err) }()

	readSize := MaxReadSize
	if chunker.ChunkBytes() < readSize {
		readSize = chunker.ChunkBytes()
	}
	buf := make([]byte, readSize)

	log.Info("streaming started",
		"chunk_ms", r.cfg.EffectiveChunkMs(),
		"chunk_bytes", chunker.ChunkBytes(),
		"read_size", readSize,
	)

	var readErr error
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n, rerr := in.Read(buf)
		if n > 0 {
			metrics.RecordRead(n)
			for _, chunk := range chunker.Feed(buf[:n]) {
				if err := r.handle(ctx, chunk, metrics); err != nil {
					return err
				}
			}
		}
		if rerr == nil {
			continue
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		readErr = fmt.Errorf("%w: %v", ErrInputRead, rerr)
		log.Error("input read failed", "error", rerr)
		if err := r.emitter.Errorf("failed to read input: %v", rerr); err != nil {
			return err
		}
		break
	}

	if chunk, ok := chunker.Flush(); ok {
		if err := r.handle(ctx, chunk, metrics); err != nil {
			return err
		}
	}
	log.Info("input closed", "processed_samples", chunker.ProcessedSamples())
	return readErr
}

// handle processes one chunk. Decode failures become error events; only
// cancellation and failures writing to the output are returned.
func (r *Runner) handle(ctx context.Context, chunk audio.Chunk, metrics *telemetry.StreamMetrics) error {
	samples := audio.PCMToFloat32(chunk.Samples)
	level := audio.DBFS(samples)
	if !audio.PassesGate(samples, r.cfg.Thresholds.MinRMSDBFS) {
		metrics.RecordChunk(chunk.Start, len(samples), level, true)
		return nil
	}
	metrics.RecordChunk(chunk.Start, len(samples), level, false)

	began := time.Now()
	segments, err := r.decode(ctx, samples)
	metrics.RecordDecode(len(segments), time.Since(began), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.log.Warn("chunk decode failed", "start", chunk.Start, "error", err)
		return r.emitter.Errorf("transcription failed: %v", err)
	}

	text, verdicts := AcceptSegments(segments, r.cfg.Thresholds)
	for _, v := range verdicts {
		if v.Accepted {
			metrics.RecordAccepted()
			continue
		}
		metrics.RecordRejected(v.Reason)
	}
	if text == "" {
		return nil
	}
	if err := r.emitter.Transcript(text, chunk.Start, chunk.Duration); err != nil {
		return err
	}
	metrics.RecordTranscript(chunk.Start, text)
	return nil
}

func (r *Runner) decode(ctx context.Context, samples []float32) (segments []engine.Segment, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			segments = nil
			err = fmt.Errorf("engine panic: %v", rec)
		}
	}()
	return r.model.Transcribe(ctx, samples, r.cfg.Language, r.params)
}
