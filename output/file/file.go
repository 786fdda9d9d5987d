// Package file provides the file sink for completed matches.
package file

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/output"
)

// Config holds configuration for the file sink.
type Config struct {
	Directory     string        `json:"directory"`
	FilePrefix    string        `json:"filePrefix"`
	Append        bool          `json:"append"`
	BufferSize    int           `json:"bufferSize"`
	FlushInterval time.Duration `json:"flushInterval"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Directory == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "directory is required")
	}
	if c.BufferSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"bufferSize cannot be negative")
	}
	return nil
}

// DefaultConfig returns default configuration for the file sink.
func DefaultConfig() Config {
	return Config{
		Directory:     "/tmp/streamcep",
		FilePrefix:    "matches",
		Append:        true,
		BufferSize:    100,
		FlushInterval: time.Second,
	}
}

// Sink buffers encoded match groups and writes them to a file, flushing
// when the buffer fills and on a periodic tick.
type Sink struct {
	cfg    Config
	logger *slog.Logger

	file   *os.File
	fileMu sync.Mutex

	buffer   [][]byte
	bufferMu sync.Mutex

	written int64

	shutdown  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu      sync.Mutex
	running bool
}

// NewSink creates a file sink from validated configuration.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "matches"
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultConfig().FlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:      cfg,
		logger:   logger.With("component", "file_sink"),
		shutdown: make(chan struct{}),
	}, nil
}

// Start opens the output file and launches the flush loop.
func (s *Sink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sink", "Start", "start file sink")
	}

	if err := os.MkdirAll(s.cfg.Directory, 0o755); err != nil {
		return errors.WrapFatal(err, "Sink", "Start", "create output directory")
	}

	path := filepath.Join(s.cfg.Directory, s.cfg.FilePrefix+".out")
	flags := os.O_CREATE | os.O_WRONLY
	if s.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return errors.WrapFatal(err, "Sink", "Start", "open output file")
	}
	s.file = f

	s.wg.Add(1)
	go s.flushLoop()

	s.running = true
	s.logger.Info("file sink started", "path", path)
	return nil
}

// WriteMatch buffers one encoded match group.
func (s *Sink) WriteMatch(match *event.PartialMatch) error {
	data, err := output.EncodeMatch(match)
	if err != nil {
		return err
	}

	s.bufferMu.Lock()
	s.buffer = append(s.buffer, data)
	shouldFlush := len(s.buffer) >= s.cfg.BufferSize
	s.bufferMu.Unlock()

	if shouldFlush {
		return s.Flush()
	}
	return nil
}

// Flush writes all buffered groups to the file.
func (s *Sink) Flush() error {
	s.bufferMu.Lock()
	if len(s.buffer) == 0 {
		s.bufferMu.Unlock()
		return nil
	}
	groups := s.buffer
	s.buffer = make([][]byte, 0, s.cfg.BufferSize)
	s.bufferMu.Unlock()

	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.file == nil {
		return errors.Wrap(errors.ErrNotStarted, "Sink", "Flush", "write match groups")
	}
	for _, g := range groups {
		if _, err := s.file.Write(g); err != nil {
			return errors.WrapTransient(err, "Sink", "Flush", "write match group")
		}
		s.written++
	}
	return nil
}

func (s *Sink) flushLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Warn("periodic flush failed", "error", err)
			}
		}
	}
}

// Written returns the number of match groups written so far.
func (s *Sink) Written() int64 {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.written
}

// Stop flushes remaining groups and closes the file.
func (s *Sink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}

	s.closeOnce.Do(func() { close(s.shutdown) })

	waitCh := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(waitCh)
	}()
	select {
	case <-waitCh:
	case <-time.After(timeout):
		return errors.WrapTransient(
			fmt.Errorf("%w after %v", errors.ErrShutdownTimeout, timeout),
			"Sink", "Stop", "join flush loop")
	}

	if err := s.Flush(); err != nil {
		s.logger.Warn("final flush failed", "error", err)
	}

	s.fileMu.Lock()
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			s.logger.Warn("failed to close output file", "error", err, "path", s.file.Name())
		}
		s.file = nil
	}
	s.fileMu.Unlock()

	s.running = false
	return nil
}
