package dispatch

import (
	"bytes"
	"context"
	"testing"

	"github.com/subraAntoine/apilexia/internal/config"
	"github.com/subraAntoine/apilexia/internal/blobstore"
	"github.com/subraAntoine/apilexia/internal/database"
	"github.com/subraAntoine/apilexia/internal/models"
	"github.com/subraAntoine/apilexia/internal/queue"
	"github.com/subraAntoine/apilexia/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memFile adapts a bytes.Reader to the multipart.File interface for tests.
type memFile struct {
	*bytes.Reader
}

func (m *memFile) Close() error { return nil }

func newMemFile(content string) *memFile {
	return &memFile{bytes.NewReader([]byte(content))}
}

type noopProcessor struct{}

func (noopProcessor) ProcessJob(ctx context.Context, jobID string) error { return nil }

func newTestDispatcher(t *testing.T, maxUploadMB int) (*Dispatcher, repository.JobRepository, repository.TranscriptionRepository) {
	t.Helper()
	dbPath := t.TempDir() + "/dispatch_test.db"
	require.NoError(t, database.Initialize(dbPath))
	t.Cleanup(func() { _ = database.Close() })

	store, err := blobstore.NewStore(t.TempDir())
	require.NoError(t, err)

	jobs := repository.NewJobRepository(database.DB)
	transcriptions := repository.NewTranscriptionRepository(database.DB)

	q := queue.NewTaskQueue(1, noopProcessor{}, jobs)
	q.Start()
	t.Cleanup(q.Stop)

	cfg := &config.Config{MaxUploadSizeMB: maxUploadMB}
	return NewDispatcher(store, jobs, q, cfg), jobs, transcriptions
}

func TestSubmitTranscriptionWithUpload(t *testing.T) {
	d, jobs, transcriptions := newTestDispatcher(t, 10)

	job, aerr := d.SubmitTranscription(context.Background(), TranscriptionRequest{
		Audio:         AudioSource{File: newMemFile("fake audio bytes"), Filename: "clip.WAV"},
		LanguageCode:  "en",
		SpeakerLabels: true,
		Principal:     "principal-1",
		CredentialID:  "cred-1",
	})
	require.Nil(t, aerr)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, models.JobTypeTranscription, job.Type)

	stored, err := jobs.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "principal-1", stored.Principal)
	assert.Equal(t, "en", stored.Params["language"])
	assert.Equal(t, "true", stored.Params["speaker_labels"])

	transcription, err := transcriptions.FindByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, transcription.BlobKey)
	assert.True(t, d.blobs.Exists(*transcription.BlobKey))
}

func TestSubmitTranscriptionWithURL(t *testing.T) {
	d, _, transcriptions := newTestDispatcher(t, 10)

	job, aerr := d.SubmitTranscription(context.Background(), TranscriptionRequest{
		Audio:     AudioSource{URL: "https://example.com/audio/clip.mp3"},
		Principal: "principal-1",
	})
	require.Nil(t, aerr)

	transcription, err := transcriptions.FindByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	require.NotNil(t, transcription.SourceURL)
	assert.Equal(t, "https://example.com/audio/clip.mp3", *transcription.SourceURL)
	assert.Nil(t, transcription.BlobKey)
}

func TestResolveAudioValidation(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 10)

	t.Run("BothProvided", func(t *testing.T) {
		_, _, aerr := d.resolveAudio(AudioSource{File: newMemFile("x"), Filename: "a.wav", URL: "https://x.com/a.wav"})
		require.NotNil(t, aerr)
		assert.Equal(t, "audio", aerr.Param)
	})

	t.Run("NeitherProvided", func(t *testing.T) {
		_, _, aerr := d.resolveAudio(AudioSource{})
		require.NotNil(t, aerr)
		assert.Equal(t, "audio", aerr.Param)
	})

	t.Run("UnsupportedUploadFormat", func(t *testing.T) {
		_, _, aerr := d.resolveAudio(AudioSource{File: newMemFile("x"), Filename: "clip.mov"})
		require.NotNil(t, aerr)
		assert.Equal(t, "invalid_audio_format", aerr.Code)
	})

	t.Run("BadURLScheme", func(t *testing.T) {
		_, _, aerr := d.resolveAudio(AudioSource{URL: "ftp://example.com/a.wav"})
		require.NotNil(t, aerr)
		assert.Equal(t, "audio_url", aerr.Param)
	})

	t.Run("UnsupportedURLFormat", func(t *testing.T) {
		_, _, aerr := d.resolveAudio(AudioSource{URL: "https://example.com/a.mov"})
		require.NotNil(t, aerr)
		assert.Equal(t, "invalid_audio_format", aerr.Code)
	})
}

func TestResolveAudioFileTooLarge(t *testing.T) {
	d, _, _ := newTestDispatcher(t, 0) // 0 MB limit

	content := make([]byte, 1024)
	_, _, aerr := d.resolveAudio(AudioSource{File: &memFile{bytes.NewReader(content)}, Filename: "clip.wav"})
	require.NotNil(t, aerr)
	assert.Equal(t, "file_too_large", aerr.Code)
}

func TestSubmitDiarization(t *testing.T) {
	d, jobs, transcriptions := newTestDispatcher(t, 10)

	numSpeakers := 2
	job, aerr := d.SubmitDiarization(context.Background(), DiarizationRequest{
		Audio:       AudioSource{File: newMemFile("fake audio bytes"), Filename: "clip.flac"},
		NumSpeakers: &numSpeakers,
		Principal:   "principal-2",
	})
	require.Nil(t, aerr)
	assert.Equal(t, models.JobTypeDiarization, job.Type)

	stored, err := jobs.FindByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", stored.Params["num_speakers"])

	transcription, err := transcriptions.FindByJobID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.True(t, transcription.SpeakerLabels)
}
