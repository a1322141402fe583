package pipeline

import (
	"strings"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/config"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/engine"
	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/telemetry"
)

// Verdict is the filter outcome for one segment.
type Verdict struct {
	Text     string
	Accepted bool
	Reason   telemetry.RejectReason
}

// Judge applies the acceptance rules to one segment, in order: empty text,
// average log-probability floor, no-speech ceiling, compression-ratio ceiling.
func Judge(seg engine.Segment, th config.Thresholds) Verdict {
	text := strings.TrimSpace(seg.Text)
	switch {
	case text == "":
		return Verdict{Reason: telemetry.RejectEmpty}
	case seg.AvgLogProb < th.MinSegmentLogProb:
		return Verdict{Text: text, Reason: telemetry.RejectLogProb}
	case seg.NoSpeechProb > th.MaxNoSpeechProb:
		return Verdict{Text: text, Reason: telemetry.RejectNoSpeech}
	case seg.CompressionRatio > th.MaxCompressionRatio:
		return Verdict{Text: text, Reason: telemetry.RejectCompressionRatio}
	}
	return Verdict{Text: text, Accepted: true}
}

// AcceptSegments joins the accepted segment texts with single spaces, in
// order. The result is empty when nothing was accepted.
func AcceptSegments(segments []engine.Segment, th config.Thresholds) (string, []Verdict) {
	verdicts := make([]Verdict, 0, len(segments))
	accepted := make([]string, 0, len(segments))
	for _, seg := range segments {
		v := Judge(seg, th)
		verdicts = append(verdicts, v)
		if v.Accepted {
			accepted = append(accepted, v.Text)
		}
	}
	return strings.TrimSpace(strings.Join(accepted, " ")), verdicts
}
