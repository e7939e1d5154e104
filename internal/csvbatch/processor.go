// Package csvbatch implements batch ingestion of transcription jobs
// from a CSV manifest, for the `apilexia batch` CLI subcommand. Each
// row names an audio file path or URL plus the same options a single
// transcription submission accepts; every row is handed to the
// Dispatcher exactly as an API caller's request would be.
package csvbatch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/pkg/logger"
)

// Row is one parsed manifest line: an audio source plus the
// transcription options a single submission would carry.
type Row struct {
	LineNum       int
	AudioPath     string
	AudioURL      string
	Language      string
	SpeakerLabels bool
	WebhookURL    string
}

// Result records the outcome of submitting one row.
type Result struct {
	Row   Row
	JobID string
	Err   error
}

// Processor submits every row of a manifest to the Dispatcher,
// sequentially, one row at a time; a row that fails is recorded and
// the remaining rows are still submitted.
type Processor struct {
	dispatcher *dispatch.Dispatcher
	principal  string
}

func New(dispatcher *dispatch.Dispatcher, principal string) *Processor {
	return &Processor{dispatcher: dispatcher, principal: principal}
}

// Run parses manifestPath and submits every row, returning one Result
// per row in manifest order. A row-level error does not stop the run.
func (p *Processor) Run(ctx context.Context, manifestPath string) ([]Result, error) {
	rows, err := parseManifest(manifestPath)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		result := Result{Row: row}

		audio := dispatch.AudioSource{URL: row.AudioURL}
		if row.AudioPath != "" {
			f, err := os.Open(row.AudioPath)
			if err != nil {
				result.Err = fmt.Errorf("line %d: open %s: %w", row.LineNum, row.AudioPath, err)
				results = append(results, result)
				continue
			}
			audio.File = f
			audio.Filename = row.AudioPath
		}

		job, aerr := p.dispatcher.SubmitTranscription(ctx, dispatch.TranscriptionRequest{
			Audio:         audio,
			LanguageCode:  row.Language,
			SpeakerLabels: row.SpeakerLabels,
			WebhookURL:    row.WebhookURL,
			Principal:     p.principal,
		})
		if audio.File != nil {
			audio.File.Close()
		}
		if aerr != nil {
			result.Err = fmt.Errorf("line %d: %s", row.LineNum, aerr.Message)
			logger.Warn("batch row failed", "line", row.LineNum, "error", aerr.Message)
		} else {
			result.JobID = job.ID
			logger.Info("batch row submitted", "line", row.LineNum, "job_id", job.ID)
		}
		results = append(results, result)
	}
	return results, nil
}

// parseManifest reads a CSV with a header row naming the columns it
// recognizes: audio_path, audio_url, language, speaker_labels,
// webhook_url. Exactly one of audio_path/audio_url must be set per row.
func parseManifest(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}

	get := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var rows []Row
	lineNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse manifest: %w", err)
		}
		lineNum++

		audioPath := get(record, "audio_path")
		audioURL := get(record, "audio_url")
		if audioPath == "" && audioURL == "" {
			return nil, fmt.Errorf("line %d: needs audio_path or audio_url", lineNum)
		}
		if audioPath != "" && audioURL != "" {
			return nil, fmt.Errorf("line %d: set only one of audio_path or audio_url", lineNum)
		}

		speakerLabels, _ := strconv.ParseBool(get(record, "speaker_labels"))
		rows = append(rows, Row{
			LineNum:       lineNum,
			AudioPath:     audioPath,
			AudioURL:      audioURL,
			Language:      get(record, "language"),
			SpeakerLabels: speakerLabels,
			WebhookURL:    get(record, "webhook_url"),
		})
	}
	return rows, nil
}
