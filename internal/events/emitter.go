// Package events writes the newline-delimited JSON protocol read by the
// consumer of this process's standard output.
package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/nupi-ai/plugin-stt-whisper-stream/internal/moduleinfo"
)

// Event types.
const (
	TypeReady      = "ready"
	TypeTranscript = "transcript"
	TypeError      = "error"
	TypeClosed     = "closed"

	StatusFinal = "final"
)

// Ready announces a loaded model. ChunkMs carries the configured value.
type Ready struct {
	Type       string `json:"type"`
	Model      string `json:"model"`
	Language   string `json:"language"`
	SampleRate int    `json:"sample_rate"`
	ChunkMs    int    `json:"chunk_ms"`
}

// Transcript carries the accepted text of one chunk. Times are in seconds.
type Transcript struct {
	Type     string  `json:"type"`
	Status   string  `json:"status"`
	Source   string  `json:"source"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	End      float64 `json:"end"`
}

// Error reports a fatal or per-chunk failure.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Closed marks the end of the stream.
type Closed struct {
	Type string `json:"type"`
}

// ErrClosed is returned for events written after Closed.
var ErrClosed = errors.New("events: emitter closed")

// Emitter serialises events onto w, one object per line, flushing after each.
// Ready and Closed are written at most once.
type Emitter struct {
	mu  sync.Mutex
	w   *bufio.Writer
	enc *json.Encoder

	readySent  bool
	closedSent bool
}

// NewEmitter returns an Emitter writing to w.
func NewEmitter(w io.Writer) *Emitter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &Emitter{w: bw, enc: enc}
}

// Ready emits the ready event. Later calls are ignored.
func (e *Emitter) Ready(model, language string, sampleRate, chunkMs int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.readySent || e.closedSent {
		return nil
	}
	e.readySent = true
	return e.write(Ready{
		Type:       TypeReady,
		Model:      model,
		Language:   language,
		SampleRate: sampleRate,
		ChunkMs:    chunkMs,
	})
}

// Transcript emits a final transcript covering [start, start+duration).
func (e *Emitter) Transcript(text string, start, duration float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closedSent {
		return ErrClosed
	}
	return e.write(Transcript{
		Type:     TypeTranscript,
		Status:   StatusFinal,
		Source:   moduleinfo.Info.Source,
		Text:     text,
		Start:    start,
		Duration: duration,
		End:      start + duration,
	})
}

// Error emits an error event with the given message.
func (e *Emitter) Error(message string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closedSent {
		return ErrClosed
	}
	return e.write(Error{Type: TypeError, Message: message})
}

// Errorf formats and emits an error event.
func (e *Emitter) Errorf(format string, args ...any) error {
	return e.Error(fmt.Sprintf(format, args...))
}

// Closed emits the closed event. Later calls are ignored.
func (e *Emitter) Closed() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closedSent {
		return nil
	}
	e.closedSent = true
	return e.write(Closed{Type: TypeClosed})
}

func (e *Emitter) write(v any) error {
	if err := e.enc.Encode(v); err != nil {
		return fmt.Errorf("events: encode: %w", err)
	}
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("events: flush: %w", err)
	}
	return nil
}
