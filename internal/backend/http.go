package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// defaultTimeout is the generous per-call budget inference calls get;
// STT/diarization runs can take minutes on long audio.
const defaultTimeout = 10 * time.Minute

// HTTPSTTBackend calls an out-of-process STT service over HTTP,
// posting the audio file as multipart form data and decoding a JSON
// STTResult in response.
type HTTPSTTBackend struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewHTTPSTTBackend(baseURL, model string) *HTTPSTTBackend {
	return &HTTPSTTBackend{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (b *HTTPSTTBackend) Transcribe(ctx context.Context, audioPath, language string, wantWordTimestamps bool) (*STTResult, error) {
	body, contentType, err := multipartAudio(audioPath, map[string]string{
		"model":               b.Model,
		"language":            language,
		"word_timestamps":     fmt.Sprintf("%t", wantWordTimestamps),
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/transcribe", body)
	if err != nil {
		return nil, fmt.Errorf("build stt request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stt backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("stt backend returned %d", resp.StatusCode)
	}

	var result STTResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode stt response: %w", err)
	}
	return &result, nil
}

// HTTPDiarizationBackend calls an out-of-process diarization service
// over HTTP with the same multipart convention as HTTPSTTBackend.
type HTTPDiarizationBackend struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewHTTPDiarizationBackend(baseURL, model string) *HTTPDiarizationBackend {
	return &HTTPDiarizationBackend{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (b *HTTPDiarizationBackend) Diarize(ctx context.Context, audioPath string, opts DiarizationOptions) (*DiarizationResult, error) {
	fields := map[string]string{"model": b.Model}
	if opts.NumSpeakers != nil {
		fields["num_speakers"] = fmt.Sprintf("%d", *opts.NumSpeakers)
	}
	if opts.MinSpeakers != nil {
		fields["min_speakers"] = fmt.Sprintf("%d", *opts.MinSpeakers)
	}
	if opts.MaxSpeakers != nil {
		fields["max_speakers"] = fmt.Sprintf("%d", *opts.MaxSpeakers)
	}

	body, contentType, err := multipartAudio(audioPath, fields)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.BaseURL+"/diarize", body)
	if err != nil {
		return nil, fmt.Errorf("build diarization request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diarization backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("diarization backend returned %d", resp.StatusCode)
	}

	var result DiarizationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}
	return &result, nil
}

func multipartAudio(audioPath string, fields map[string]string) (io.Reader, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("audio", filepath.Base(audioPath))
	if err != nil {
		return nil, "", fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("copy audio into request: %w", err)
	}

	for key, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}
