package backend

import "context"

// MockSTTBackend returns a fixed result, for tests and for local
// development without a real inference service running.
type MockSTTBackend struct {
	Result *STTResult
	Err    error
}

func (m *MockSTTBackend) Transcribe(ctx context.Context, audioPath, language string, wantWordTimestamps bool) (*STTResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &STTResult{Text: "", DetectedLanguage: language}, nil
}

// MockDiarizationBackend returns a fixed result, mirroring MockSTTBackend.
type MockDiarizationBackend struct {
	Result *DiarizationResult
	Err    error
}

func (m *MockDiarizationBackend) Diarize(ctx context.Context, audioPath string, opts DiarizationOptions) (*DiarizationResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result != nil {
		return m.Result, nil
	}
	return &DiarizationResult{}, nil
}
