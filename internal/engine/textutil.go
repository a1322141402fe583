package engine

import (
	"bytes"
	"strings"

	"github.com/klauspost/compress/zlib"
)

// CompressionRatio returns len(text)/len(zlib(text)), the repetition statistic
// Whisper uses to spot looping output. Empty text yields 0.
func CompressionRatio(text string) float64 {
	if text == "" {
		return 0
	}
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(text)); err != nil {
		return 0
	}
	if err := w.Close(); err != nil || buf.Len() == 0 {
		return 0
	}
	return float64(len(text)) / float64(buf.Len())
}

// normaliseLanguage maps an empty or "auto" language to the empty string,
// which backends treat as a request for detection.
func normaliseLanguage(language string) string {
	trimmed := strings.TrimSpace(language)
	if strings.EqualFold(trimmed, "auto") {
		return ""
	}
	return trimmed
}
