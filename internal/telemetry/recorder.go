package telemetry

import (
	"log/slog"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// RejectReason names why a decoded segment was left out of a transcript.
type RejectReason string

const (
	RejectEmpty            RejectReason = "empty"
	RejectLogProb          RejectReason = "avg_logprob"
	RejectNoSpeech         RejectReason = "no_speech_prob"
	RejectCompressionRatio RejectReason = "compression_ratio"
)

// Recorder tracks process-wide pipeline counters.
type Recorder struct {
	log *slog.Logger

	totalStreams      atomic.Uint64
	activeStreams     atomic.Int64
	totalBytes        atomic.Uint64
	totalChunks       atomic.Uint64
	totalGated        atomic.Uint64
	totalDecoded      atomic.Uint64
	totalDecodeErrors atomic.Uint64
	totalAccepted     atomic.Uint64
	rejectedEmpty     atomic.Uint64
	rejectedLogProb   atomic.Uint64
	rejectedNoSpeech  atomic.Uint64
	rejectedRatio     atomic.Uint64
	totalTranscripts  atomic.Uint64
}

// Snapshot captures cumulative metrics recorded so far.
type Snapshot struct {
	TotalStreams      uint64
	ActiveStreams     int64
	TotalBytes        uint64
	TotalChunks       uint64
	TotalGated        uint64
	TotalDecoded      uint64
	TotalDecodeErrors uint64
	AcceptedSegments  uint64
	RejectedSegments  map[RejectReason]uint64
	TotalTranscripts  uint64
}

// NewRecorder constructs a Recorder using the provided logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		log: logger.With("component", "telemetry.Recorder"),
	}
}

// Snapshot returns an immutable view of the recorder totals.
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}
	return Snapshot{
		TotalStreams:      r.totalStreams.Load(),
		ActiveStreams:     r.activeStreams.Load(),
		TotalBytes:        r.totalBytes.Load(),
		TotalChunks:       r.totalChunks.Load(),
		TotalGated:        r.totalGated.Load(),
		TotalDecoded:      r.totalDecoded.Load(),
		TotalDecodeErrors: r.totalDecodeErrors.Load(),
		AcceptedSegments:  r.totalAccepted.Load(),
		RejectedSegments: map[RejectReason]uint64{
			RejectEmpty:            r.rejectedEmpty.Load(),
			RejectLogProb:          r.rejectedLogProb.Load(),
			RejectNoSpeech:         r.rejectedNoSpeech.Load(),
			RejectCompressionRatio: r.rejectedRatio.Load(),
		},
		TotalTranscripts: r.totalTranscripts.Load(),
	}
}

func (r *Recorder) rejectCounter(reason RejectReason) *atomic.Uint64 {
	switch reason {
	case RejectEmpty:
		return &r.rejectedEmpty
	case RejectLogProb:
		return &r.rejectedLogProb
	case RejectNoSpeech:
		return &r.rejectedNoSpeech
	case RejectCompressionRatio:
		return &r.rejectedRatio
	default:
		return nil
	}
}

// StreamMetrics accumulates statistics for one run over the input stream.
// It is used from the pipeline goroutine only.
type StreamMetrics struct {
	recorder *Recorder
	log      *slog.Logger

	streamID string

	started      time.Time
	bytes        int64
	chunks       int
	gated        int
	decoded      int
	decodeErrors int
	accepted     int
	rejected     map[RejectReason]int
	transcripts  int
	closed       atomic.Bool
}

// StartStream initialises a StreamMetrics instance bound to the recorder.
func (r *Recorder) StartStream(streamID string, attrs ...any) *StreamMetrics {
	if r == nil {
		return nil
	}

	streamLogger := r.log.With("stream_id", streamID)
	if len(attrs) > 0 {
		streamLogger = streamLogger.With(attrs...)
	}

	r.totalStreams.Add(1)
	r.activeStreams.Add(1)

	return &StreamMetrics{
		recorder: r,
		log:      streamLogger,
		streamID: streamID,
		rejected: make(map[RejectReason]int),
		started:  time.Now(),
	}
}

// RecordRead counts bytes read from the input.
func (s *StreamMetrics) RecordRead(size int) {
	if s == nil || size <= 0 {
		return
	}
	s.bytes += int64(size)
	s.recorder.totalBytes.Add(uint64(size))
}

// RecordChunk counts a chunk cut from the input. gated reports whether the
// silence gate blocked it.
func (s *StreamMetrics) RecordChunk(start float64, samples int, dbfs float64, gated bool) {
	if s == nil {
		return
	}
	s.chunks++
	s.recorder.totalChunks.Add(1)
	if gated {
		s.gated++
		s.recorder.totalGated.Add(1)
	}
	s.log.Debug("chunk cut",
		"start", start,
		"samples", samples,
		"dbfs", dbfs,
		"gated", gated,
	)
}

// RecordDecode counts a decode invocation and its outcome.
func (s *StreamMetrics) RecordDecode(segments int, elapsed time.Duration, err error) {
	if s == nil {
		return
	}
	if err != nil {
		s.decodeErrors++
		s.recorder.totalDecodeErrors.Add(1)
		s.log.Debug("decode failed", "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return
	}
	s.decoded++
	s.recorder.totalDecoded.Add(1)
	s.log.Debug("chunk decoded", "segments", segments, "elapsed_ms", elapsed.Milliseconds())
}

// RecordAccepted counts a segment kept in a transcript.
func (s *StreamMetrics) RecordAccepted() {
	if s == nil {
		return
	}
	s.accepted++
	s.recorder.totalAccepted.Add(1)
}

// RecordRejected counts a segment dropped for reason.
func (s *StreamMetrics) RecordRejected(reason RejectReason) {
	if s == nil {
		return
	}
	s.rejected[reason]++
	if counter := s.recorder.rejectCounter(reason); counter != nil {
		counter.Add(1)
	}
}

// RecordTranscript stores statistics for an emitted transcript.
func (s *StreamMetrics) RecordTranscript(start float64, text string) {
	if s == nil {
		return
	}
	s.transcripts++
	s.recorder.totalTranscripts.Add(1)

	s.log.Debug("transcript emitted",
		"start", start,
		"chars", len(text),
		"runes", utf8.RuneCountInString(text),
	)
}

// Finish logs a summary and updates active stream counters.
func (s *StreamMetrics) Finish(err error) {
	if s == nil {
		return
	}
	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	defer s.recorder.activeStreams.Add(-1)

	duration := time.Since(s.started)
	args := []any{
		"duration_ms", duration.Milliseconds(),
		"bytes", s.bytes,
		"chunks", s.chunks,
		"gated", s.gated,
		"decoded", s.decoded,
		"decode_errors", s.decodeErrors,
		"segments_accepted", s.accepted,
		"rejected_empty", s.rejected[RejectEmpty],
		"rejected_logprob", s.rejected[RejectLogProb],
		"rejected_no_speech", s.rejected[RejectNoSpeech],
		"rejected_compression", s.rejected[RejectCompressionRatio],
		"transcripts", s.transcripts,
	}

	if err != nil {
		s.log.Error("stream completed with error", append(args, "error", err)...)
		return
	}

	s.log.Info("stream completed", args...)
}
