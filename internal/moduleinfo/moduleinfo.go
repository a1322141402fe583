package moduleinfo

// Metadata captures static identifiers for the binary.
type Metadata struct {
	Name          string
	BinaryName    string
	Slug          string
	Description   string
	HealthService string
	// Source is the value carried in the "source" field of transcript events.
	Source string
}

// Info describes the current module.
var Info = Metadata{
	Name:          "Whisper Stream STT",
	BinaryName:    "whisper-stream",
	Slug:          "whisper-stream-stt",
	Description:   "Streams raw PCM from stdin through Whisper and writes NDJSON transcripts to stdout.",
	HealthService: "whisper.stream.v1.Transcriber",
	Source:        "SPK",
}

// LogAttrs returns the attributes attached to every log line of a run.
func LogAttrs(modelID, language string) []any {
	return []any{
		"module", Info.Slug,
		"model", modelID,
		"language", language,
	}
}
