package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Transcription is the child record of a transcription- or
// diarization-typed Job. It
// holds the speech-to-text output and, optionally, the diarization
// output aligned into utterances.
type Transcription struct {
	ID          string  `json:"id" gorm:"primaryKey;type:varchar(36)"`
	JobID       string  `json:"job_id" gorm:"type:varchar(36);not null;uniqueIndex"`
	SourceURL   *string `json:"source_url,omitempty" gorm:"type:text"`
	BlobKey     *string `json:"-" gorm:"type:text"`
	Principal   string  `json:"-" gorm:"type:varchar(100);not null;index"`

	LanguageRequested *string `json:"language_requested,omitempty" gorm:"type:varchar(10)"`
	SpeakerLabels     bool    `json:"speaker_labels_requested" gorm:"not null;default:false"`

	Text               *string `json:"text,omitempty" gorm:"type:text"`
	Words              JSONList[Word] `json:"words,omitempty" gorm:"type:text"`
	Segments           JSONList[Word] `json:"segments,omitempty" gorm:"type:text"`
	DetectedLanguage   *string `json:"detected_language,omitempty" gorm:"type:varchar(10)"`
	LanguageConfidence *float64 `json:"language_confidence,omitempty"`

	Speakers           StringList              `json:"speakers,omitempty" gorm:"type:text"`
	Utterances         JSONList[Utterance]      `json:"utterances,omitempty" gorm:"type:text"`
	DiarizationSegments JSONList[SpeakerSegment] `json:"diarization_segments,omitempty" gorm:"type:text"`
	Overlaps           JSONList[OverlapSegment] `json:"overlaps,omitempty" gorm:"type:text"`
	SpeakerStats       JSONList[SpeakerStat]    `json:"speaker_stats,omitempty" gorm:"type:text"`

	ErrorMessage *string    `json:"error_message,omitempty" gorm:"type:text"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func (t *Transcription) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

// Word is a single recognized token with millisecond timing.
type Word struct {
	Text       string  `json:"text"`
	StartMS    int     `json:"start_ms"`
	EndMS      int     `json:"end_ms"`
	Confidence float64 `json:"confidence"`
	Speaker    *string `json:"speaker,omitempty"`
}

// SpeakerSegment is a contiguous time interval attributed to a single
// speaker. Speaker holds the backend-native label until the Alignment
// Engine relabels it to its public letter.
type SpeakerSegment struct {
	Speaker    string  `json:"speaker"`
	StartMS    int     `json:"start_ms"`
	EndMS      int     `json:"end_ms"`
	Confidence float64 `json:"confidence"`
}

// Utterance pairs a segment with the transcript text spoken in that
// interval; produced only by the Alignment Engine.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	StartMS    int     `json:"start_ms"`
	EndMS      int     `json:"end_ms"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// OverlapSegment marks a region where two or more distinct speakers
// were active simultaneously.
type OverlapSegment struct {
	Speakers   []string `json:"speakers"`
	StartMS    int      `json:"start_ms"`
	EndMS      int      `json:"end_ms"`
	DurationMS int      `json:"duration_ms"`
}

// SpeakerStat is the per-speaker summary produced by the Alignment
// Engine's speaker-statistics step.
type SpeakerStat struct {
	Speaker              string  `json:"speaker"`
	TotalDurationMS       int     `json:"total_duration_ms"`
	NumSegments          int     `json:"num_segments"`
	AvgSegmentDurationMS int     `json:"avg_segment_duration_ms"`
	Percentage           float64 `json:"percentage"`
}

// JSONList persists a slice of any JSON-marshalable element type in a
// single text column, the way StringList/StringMap do for simpler
// shapes; used for the larger nested lists a Transcription carries.
type JSONList[T any] []T

func (l JSONList[T]) Value() (interface{}, error) {
	if l == nil {
		return "null", nil
	}
	b, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *JSONList[T]) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return nil
	}
	if len(raw) == 0 || string(raw) == "null" {
		*l = nil
		return nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*l = out
	return nil
}
