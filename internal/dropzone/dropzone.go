// Package dropzone watches a directory for newly-dropped audio files
// and submits each one to the Dispatcher as a transcription job, for
// operators who prefer copying files into a folder over calling the
// API directly.
package dropzone

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/subraAntoine/apilexia/internal/dispatch"
	"github.com/subraAntoine/apilexia/pkg/logger"

	"github.com/fsnotify/fsnotify"
)

var audioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".m4a": true,
	".aac": true, ".ogg": true, ".wma": true, ".webm": true,
}

// Service watches Dir for new audio files and submits each as a
// transcription job owned by Principal.
type Service struct {
	dir        string
	principal  string
	dispatcher *dispatch.Dispatcher
	watcher    *fsnotify.Watcher
}

func NewService(dir, principal string, dispatcher *dispatch.Dispatcher) *Service {
	return &Service{dir: dir, principal: principal, dispatcher: dispatcher}
}

// Start creates the watch directory if needed, submits whatever is
// already sitting in it, then watches for new arrivals in a goroutine.
func (s *Service) Start() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create dropzone directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	s.watcher = watcher

	if err := s.addDirectoryRecursively(s.dir); err != nil {
		s.watcher.Close()
		return fmt.Errorf("watch dropzone directory: %w", err)
	}

	s.processExistingFiles()
	go s.watchFiles()

	logger.Info("dropzone service started", "dir", s.dir)
	return nil
}

// Stop closes the filesystem watcher.
func (s *Service) Stop() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

func (s *Service) addDirectoryRecursively(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone walk error", "path", path, "error", err)
			return nil
		}
		if info.IsDir() {
			if err := s.watcher.Add(path); err != nil {
				logger.Warn("dropzone failed to watch directory", "path", path, "error", err)
			}
		}
		return nil
	})
}

func (s *Service) processExistingFiles() {
	_ = filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			logger.Warn("dropzone walk error", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() && isAudioFile(path) {
			s.processFile(path)
		}
		return nil
	})
}

func (s *Service) watchFiles() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				if err := s.addDirectoryRecursively(event.Name); err != nil {
					logger.Warn("dropzone failed to watch new directory", "path", event.Name, "error", err)
				}
				continue
			}
			s.processFile(event.Name)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("dropzone watcher error", "error", err)
		}
	}
}

func isAudioFile(path string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(path))]
}

// processFile submits a newly-seen file to the Dispatcher and removes
// it from the dropzone on success; a short delay first gives the
// writer time to finish flushing the file.
func (s *Service) processFile(filePath string) {
	time.Sleep(500 * time.Millisecond)

	if !isAudioFile(filePath) {
		return
	}
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		return
	}

	f, err := os.Open(filePath)
	if err != nil {
		logger.Warn("dropzone failed to open file", "path", filePath, "error", err)
		return
	}
	defer f.Close()

	job, aerr := s.dispatcher.SubmitTranscription(context.Background(), dispatch.TranscriptionRequest{
		Audio:     dispatch.AudioSource{File: f, Filename: filepath.Base(filePath)},
		Principal: s.principal,
	})
	if aerr != nil {
		logger.Warn("dropzone submission failed", "path", filePath, "error", aerr.Message)
		return
	}

	var removeErr error
	for i := 0; i < 5; i++ {
		if removeErr = os.Remove(filePath); removeErr == nil {
			break
		}
		time.Sleep(500 * time.Millisecond)
	}
	if removeErr != nil {
		logger.Warn("dropzone failed to remove processed file", "path", filePath, "error", removeErr)
	}
	logger.Info("dropzone submitted job", "path", filePath, "job_id", job.ID)
}
