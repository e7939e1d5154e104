package backend

import "github.com/subraAntoine/apilexia/internal/config"

// Factory builds the HTTP backend clients from the configured URLs and
// models, the way the worker runtime wants them: one call per task,
// never a cached singleton, so each task gets its own client bound
// fresh. It always returns the HTTP implementations; the mocks are not
// selectable through it.
type Factory struct {
	cfg *config.Config
}

func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

func (f *Factory) STT() STTBackend {
	return NewHTTPSTTBackend(f.cfg.STTBackendURL, f.cfg.STTBackendModel)
}

func (f *Factory) Diarization() DiarizationBackend {
	return NewHTTPDiarizationBackend(f.cfg.DiarizationBackendURL, f.cfg.DiarizationBackendModel)
}
