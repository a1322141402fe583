package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, raw string) []map[string]any {
	t.Helper()
	var out []map[string]any
	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		var event map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &event); err != nil {
			t.Fatalf("line %q is not JSON: %v", scanner.Text(), err)
		}
		out = append(out, event)
	}
	return out
}

func TestEmitterWritesProtocol(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(&buf)

	if err := emitter.Ready("small", "en", 16000, 2000); err != nil {
		t.Fatalf("Ready error: %v", err)
	}
	if err := emitter.Transcript("hello <world> & co", 2, 2); err != nil {
		t.Fatalf("Transcript error: %v", err)
	}
	if err := emitter.Errorf("transcription failed: %v", errors.New("boom")); err != nil {
		t.Fatalf("Error error: %v", err)
	}
	if err := emitter.Closed(); err != nil {
		t.Fatalf("Closed error: %v", err)
	}

	raw := buf.String()
	if !strings.Contains(raw, `"text":"hello <world> & co"`) {
		t.Fatalf("expected unescaped text, got %s", raw)
	}
	lines := decodeLines(t, raw)
	if len(lines) != 4 {
		t.Fatalf("expected 4 events, got %d: %s", len(lines), raw)
	}

	ready := lines[0]
	if ready["type"] != "ready" || ready["model"] != "small" || ready["language"] != "en" ||
		ready["sample_rate"] != float64(16000) || ready["chunk_ms"] != float64(2000) {
		t.Fatalf("unexpected ready event %v", ready)
	}
	transcript := lines[1]
	if transcript["status"] != "final" || transcript["source"] != "SPK" {
		t.Fatalf("unexpected transcript event %v", transcript)
	}
	if transcript["start"] != float64(2) || transcript["duration"] != float64(2) || transcript["end"] != float64(4) {
		t.Fatalf("unexpected transcript timing %v", transcript)
	}
	if lines[2]["type"] != "error" || lines[2]["message"] != "transcription failed: boom" {
		t.Fatalf("unexpected error event %v", lines[2])
	}
	if lines[3]["type"] != "closed" || len(lines[3]) != 1 {
		t.Fatalf("unexpected closed event %v", lines[3])
	}
}

func TestEmitterReadyAndClosedOnce(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewEmitter(&buf)
	_ = emitter.Ready("small", "en", 16000, 2000)
	_ = emitter.Ready("small", "en", 16000, 2000)
	_ = emitter.Closed()
	_ = emitter.Closed()
	if err := emitter.Transcript("late", 0, 1); err == nil {
		t.Fatalf("expected error writing after closed")
	}

	lines := decodeLines(t, buf.String())
	if len(lines) != 2 {
		t.Fatalf("expected ready and closed only, got %v", lines)
	}
}

type countingWriter struct {
	writes int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.writes++
	return len(p), nil
}

func TestEmitterFlushesEveryEvent(t *testing.T) {
	w := &countingWriter{}
	emitter := NewEmitter(w)
	_ = emitter.Ready("small", "en", 16000, 2000)
	if w.writes != 1 {
		t.Fatalf("expected ready to reach the writer immediately, got %d writes", w.writes)
	}
	_ = emitter.Transcript("hi", 0, 1)
	if w.writes != 2 {
		t.Fatalf("expected transcript to reach the writer immediately, got %d writes", w.writes)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestEmitterReportsWriteFailure(t *testing.T) {
	emitter := NewEmitter(failingWriter{})
	if err := emitter.Error("x"); err == nil {
		t.Fatalf("expected flush error")
	}
}
