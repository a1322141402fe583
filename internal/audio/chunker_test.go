package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
)

func pcmBytes(samples ...int16) []byte {
	var buf bytes.Buffer
	for _, s := range samples {
		_ = binary.Write(&buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func TestChunkSamples(t *testing.T) {
	tests := []struct {
		name    string
		rate    int
		chunkMs int
		want    int
	}{
		{name: "default", rate: 16000, chunkMs: 2000, want: 32000},
		{name: "floor clamp", rate: 16000, chunkMs: 50, want: 3200},
		{name: "exact floor", rate: 16000, chunkMs: 200, want: 3200},
		{name: "tiny rate", rate: 1, chunkMs: 200, want: 1},
		{name: "fractional", rate: 44100, chunkMs: 333, want: 14685},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := ChunkSamples(tc.rate, tc.chunkMs); got != tc.want {
				t.Fatalf("ChunkSamples(%d, %d) = %d, want %d", tc.rate, tc.chunkMs, got, tc.want)
			}
		})
	}
}

func TestChunkerCutsExactChunks(t *testing.T) {
	chunker := NewChunker(1000, 200) // 200 samples per chunk
	if chunker.ChunkBytes() != 400 {
		t.Fatalf("unexpected chunk bytes %d", chunker.ChunkBytes())
	}

	if chunks := chunker.Feed(make([]byte, 399)); len(chunks) != 0 {
		t.Fatalf("expected no chunk before 400 bytes, got %d", len(chunks))
	}
	chunks := chunker.Feed(make([]byte, 401))
	if len(chunks) != 2 {
		t.Fatalf("expected two chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk.Samples) != 200 {
			t.Fatalf("chunk %d has %d samples", i, len(chunk.Samples))
		}
		if want := float64(i) * 0.2; math.Abs(chunk.Start-want) > 1e-9 {
			t.Fatalf("chunk %d start = %f, want %f", i, chunk.Start, want)
		}
		if math.Abs(chunk.Duration-0.2) > 1e-9 {
			t.Fatalf("chunk %d duration = %f", i, chunk.Duration)
		}
	}
	if chunker.Buffered() != 0 {
		t.Fatalf("expected empty buffer, got %d", chunker.Buffered())
	}
	if chunker.ProcessedSamples() != 400 {
		t.Fatalf("unexpected processed samples %d", chunker.ProcessedSamples())
	}
}

func TestChunkerFlush(t *testing.T) {
	tests := []struct {
		name        string
		trailing    int
		wantOK      bool
		wantSamples int
	}{
		{name: "nothing", trailing: 0},
		{name: "single byte", trailing: 1},
		{name: "one sample", trailing: 2, wantOK: true, wantSamples: 1},
		{name: "odd tail dropped", trailing: 7, wantOK: true, wantSamples: 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			chunker := NewChunker(1000, 200)
			chunker.Feed(make([]byte, 400+tc.trailing))
			chunk, ok := chunker.Flush()
			if ok != tc.wantOK {
				t.Fatalf("Flush ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if len(chunk.Samples) != tc.wantSamples {
				t.Fatalf("expected %d samples, got %d", tc.wantSamples, len(chunk.Samples))
			}
			if math.Abs(chunk.Start-0.2) > 1e-9 {
				t.Fatalf("final chunk start = %f, want 0.2", chunk.Start)
			}
			if chunker.Buffered() != 0 {
				t.Fatalf("buffer not drained")
			}
		})
	}
}

func TestChunkerConservesSamples(t *testing.T) {
	feeds := []int{1, 4096, 3, 777, 4096, 1500, 13}
	chunker := NewChunker(16000, 200)
	total := 0
	samples := 0
	prevEnd := 0.0
	check := func(chunk Chunk) {
		if math.Abs(chunk.Start-prevEnd) > 1e-9 {
			t.Fatalf("chunk starts at %f, previous ended at %f", chunk.Start, prevEnd)
		}
		prevEnd = chunk.End()
		samples += len(chunk.Samples)
	}
	for _, n := range feeds {
		total += n
		for _, chunk := range chunker.Feed(make([]byte, n)) {
			if len(chunk.Samples) != 3200 {
				t.Fatalf("full chunk has %d samples", len(chunk.Samples))
			}
			check(chunk)
		}
	}
	if chunk, ok := chunker.Flush(); ok {
		check(chunk)
	}
	if samples != total/2 {
		t.Fatalf("expected %d samples, got %d", total/2, samples)
	}
}

func TestDecodePCM16(t *testing.T) {
	got := DecodePCM16(append(pcmBytes(1, -1, 32767, -32768), 0x7f))
	want := []int16{1, -1, 32767, -32768}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
