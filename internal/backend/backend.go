// Package backend defines the explicit ComputeBackend capability used
// by the worker runtime to call out to speech-to-text and diarization
// compute, plus HTTP-JSON and mock implementations of each.
package backend

import "context"

// STTWord is a single recognized token with second-granularity timing,
// as returned by a backend before conversion to integer milliseconds.
type STTWord struct {
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// STTResult is the raw response from a speech-to-text backend.
type STTResult struct {
	Text               string    `json:"text"`
	Words              []STTWord `json:"words"`
	Segments           []STTWord `json:"segments"`
	DetectedLanguage   string    `json:"detected_language"`
	LanguageConfidence float64   `json:"language_confidence"`
}

// DiarizationSegment is a raw speaker-attributed interval, with
// second-granularity timing and the backend's native speaker label
// (e.g. "SPEAKER_00"), before relabeling.
type DiarizationSegment struct {
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

// DiarizationResult is the raw response from a diarization backend.
type DiarizationResult struct {
	Segments []DiarizationSegment `json:"segments"`
}

// DiarizationOptions carries the optional speaker-count hints a
// caller may supply.
type DiarizationOptions struct {
	NumSpeakers  *int
	MinSpeakers  *int
	MaxSpeakers  *int
}

// STTBackend transcribes an audio file.
type STTBackend interface {
	Transcribe(ctx context.Context, audioPath, language string, wantWordTimestamps bool) (*STTResult, error)
}

// DiarizationBackend assigns speaker labels to intervals of an audio
// file without transcribing it.
type DiarizationBackend interface {
	Diarize(ctx context.Context, audioPath string, opts DiarizationOptions) (*DiarizationResult, error)
}
