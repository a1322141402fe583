// Package audio turns a raw PCM byte stream into fixed-duration chunks and
// measures their loudness.
package audio

import (
	"encoding/binary"
)

// BytesPerSample is the width of one signed 16-bit little-endian mono sample.
const BytesPerSample = 2

// Chunk is one window of samples together with its position in the stream.
type Chunk struct {
	Samples []int16
	// Start is the stream offset of the first sample, in seconds.
	Start float64
	// Duration is len(Samples)/sampleRate, in seconds.
	Duration float64
}

// End returns Start+Duration.
func (c Chunk) End() float64 { return c.Start + c.Duration }

// ChunkSamples returns the number of samples per chunk for the given rate and
// duration. Durations below 200 ms are raised to 200 ms and the result is at
// least one sample.
func ChunkSamples(sampleRate, chunkMs int) int {
	if chunkMs < 200 {
		chunkMs = 200
	}
	n := sampleRate * chunkMs / 1000
	if n < 1 {
		return 1
	}
	return n
}

// Chunker accumulates bytes and cuts complete chunks in arrival order.
// It is not safe for concurrent use.
type Chunker struct {
	sampleRate int
	chunkBytes int

	buf       []byte
	processed int64
}

// NewChunker returns a Chunker for the given sample rate and chunk duration.
func NewChunker(sampleRate, chunkMs int) *Chunker {
	if sampleRate <= 0 {
		sampleRate = 1
	}
	return &Chunker{
		sampleRate: sampleRate,
		chunkBytes: ChunkSamples(sampleRate, chunkMs) * BytesPerSample,
	}
}

// ChunkBytes returns the size in bytes of a complete chunk.
func (c *Chunker) ChunkBytes() int { return c.chunkBytes }

// ProcessedSamples returns the number of samples cut into chunks so far.
func (c *Chunker) ProcessedSamples() int64 { return c.processed }

// Buffered returns the number of bytes waiting for a complete chunk.
func (c *Chunker) Buffered() int { return len(c.buf) }

// Feed appends p to the buffer and returns every complete chunk now available.
func (c *Chunker) Feed(p []byte) []Chunk {
	if len(p) == 0 {
		return nil
	}
	c.buf = append(c.buf, p...)

	var chunks []Chunk
	offset := 0
	for len(c.buf)-offset >= c.chunkBytes {
		chunks = append(chunks, c.cut(c.buf[offset:offset+c.chunkBytes]))
		offset += c.chunkBytes
	}
	if offset > 0 {
		remaining := copy(c.buf, c.buf[offset:])
		c.buf = c.buf[:remaining]
	}
	return chunks
}

// Flush returns the trailing partial chunk, truncated to a whole number of
// samples. It reports false when fewer than two bytes are buffered.
func (c *Chunker) Flush() (Chunk, bool) {
	usable := len(c.buf) - len(c.buf)%BytesPerSample
	if usable < BytesPerSample {
		c.buf = c.buf[:0]
		return Chunk{}, false
	}
	chunk := c.cut(c.buf[:usable])
	c.buf = c.buf[:0]
	return chunk, true
}

func (c *Chunker) cut(raw []byte) Chunk {
	samples := DecodePCM16(raw)
	rate := float64(c.sampleRate)
	chunk := Chunk{
		Samples:  samples,
		Start:    float64(c.processed) / rate,
		Duration: float64(len(samples)) / rate,
	}
	c.processed += int64(len(samples))
	return chunk
}

// DecodePCM16 interprets raw as little-endian signed 16-bit samples. A trailing
// odd byte is ignored.
func DecodePCM16(raw []byte) []int16 {
	n := len(raw) / BytesPerSample
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*BytesPerSample:]))
	}
	return samples
}
