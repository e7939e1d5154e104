package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/subraAntoine/apilexia/internal/backend"
	"github.com/subraAntoine/apilexia/internal/blobstore"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	retryDelay = time.Millisecond
}

type fixedFactory struct {
	stt  backend.STTBackend
	diar backend.DiarizationBackend
}

func (f *fixedFactory) STT() backend.STTBackend                 { return f.stt }
func (f *fixedFactory) Diarization() backend.DiarizationBackend { return f.diar }

// testHarness wires a Processor to a real temp-sqlite-backed repository
// pair and a real temp-dir blob store holding one uploaded audio blob.
type testHarness struct {
	proc           *Processor
	jobs           repository.JobRepository
	transcriptions repository.TranscriptionRepository
	blobKey        string
}

func newHarness(t *testing.T, factory BackendFactory) *testHarness {
	t.Helper()
	dbPath := t.TempDir() + "/worker_test.db"
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })

	store, err := blobstore.NewStore(t.TempDir())
	require.NoError(t, err)
	key := store.GenerateKey("audio", "wav")
	_, err = store.Put(key, strings.NewReader("RIFF...."))
	require.NoError(t, err)

	jobs := repository.NewJobRepository(database.DB)
	transcriptions := repository.NewTranscriptionRepository(database.DB)

	return &testHarness{
		proc:           NewProcessor(jobs, transcriptions, store, factory, nil),
		jobs:           jobs,
		transcriptions: transcriptions,
		blobKey:        key,
	}
}

func (h *testHarness) seedJob(t *testing.T, speakerLabels bool) string {
	t.Helper()
	job := &models.Job{
		Type:         models.JobTypeTranscription,
		Status:       models.StatusQueued,
		Principal:    "principal-1",
		CredentialID: "cred-1",
	}
	transcription := &models.Transcription{
		Principal:     "principal-1",
		BlobKey:       &h.blobKey,
		SpeakerLabels: speakerLabels,
	}
	require.NoError(t, h.jobs.CreateWithTranscription(context.Background(), job, transcription))
	return job.ID
}

func TestProcessJobTranscriptionOnly(t *testing.T) {
	factory := &fixedFactory{
		stt: &backend.MockSTTBackend{Result: &backend.STTResult{
			Text:               "hello world",
			DetectedLanguage:   "en",
			LanguageConfidence: 0.97,
			Words: []backend.STTWord{
				{Text: "hello", Start: 0, End: 0.5, Confidence: 0.9},
				{Text: "world", Start: 0.5, End: 1.0, Confidence: 0.9},
			},
		}},
	}
	h := newHarness(t, factory)
	jobID := h.seedJob(t, false)

	require.NoError(t, h.proc.ProcessJob(context.Background(), jobID))

	job, err := h.jobs.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)

	result, err := h.transcriptions.FindByJobID(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, result.Text)
	assert.Equal(t, "hello world", *result.Text)
	assert.Len(t, result.Words, 2)
	require.NotNil(t, result.DetectedLanguage)
	assert.Equal(t, "en", *result.DetectedLanguage)
	assert.Empty(t, result.DiarizationSegments)
}

func TestProcessJobWithDiarization(t *testing.T) {
	factory := &fixedFactory{
		stt: &backend.MockSTTBackend{Result: &backend.STTResult{
			Text: "un deux trois quatre",
		}},
		diar: &backend.MockDiarizationBackend{Result: &backend.DiarizationResult{
			Segments: []backend.DiarizationSegment{
				{Speaker: "SPEAKER_00", Start: 0, End: 1, Confidence: 0.8},
				{Speaker: "SPEAKER_01", Start: 1, End: 3, Confidence: 0.8},
			},
		}},
	}
	h := newHarness(t, factory)
	jobID := h.seedJob(t, true)

	require.NoError(t, h.proc.ProcessJob(context.Background(), jobID))

	result, err := h.transcriptions.FindByJobID(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, result.DiarizationSegments, 2)
	assert.Equal(t, "A", result.DiarizationSegments[0].Speaker)
	assert.Equal(t, "B", result.DiarizationSegments[1].Speaker)
	assert.Len(t, result.Utterances, 2)
	assert.Len(t, result.SpeakerStats, 2)
}

func TestProcessJobSTTFailureMarksFailed(t *testing.T) {
	factory := &fixedFactory{
		stt: &backend.MockSTTBackend{Err: errors.New("stt unavailable")},
	}
	h := newHarness(t, factory)
	jobID := h.seedJob(t, false)

	err := h.proc.ProcessJob(context.Background(), jobID)
	assert.Error(t, err)

	job, err := h.jobs.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
}

func TestSecondsToMS(t *testing.T) {
	assert.Equal(t, 500, secondsToMS(0.5))
	assert.Equal(t, 1000, secondsToMS(1.0))
}

func TestDiarizationOptionsFromParams(t *testing.T) {
	opts := diarizationOptions(models.StringMap{"num_speakers": "2", "min_speakers": "1", "max_speakers": "4"})
	require.NotNil(t, opts.NumSpeakers)
	assert.Equal(t, 2, *opts.NumSpeakers)
	require.NotNil(t, opts.MinSpeakers)
	assert.Equal(t, 1, *opts.MinSpeakers)
	require.NotNil(t, opts.MaxSpeakers)
	assert.Equal(t, 4, *opts.MaxSpeakers)
}
