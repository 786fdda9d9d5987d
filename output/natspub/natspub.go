// Package natspub provides a NATS sink publishing completed matches to
// a subject.
package natspub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/output"
	"github.com/c360/streamcep/pkg/retry"
)

// Config holds configuration for the NATS sink.
type Config struct {
	URL     string `json:"url"`
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "url is required")
	}
	if c.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", "subject is required")
	}
	return nil
}

// DefaultConfig returns default configuration for the NATS sink.
func DefaultConfig() Config {
	return Config{
		URL:     nats.DefaultURL,
		Subject: "streamcep.matches",
		Name:    "streamcep-publisher",
	}
}

// Sink publishes each completed match to a NATS subject. Publish
// failures are retried with backoff before surfacing as transient
// errors.
type Sink struct {
	cfg    Config
	logger *slog.Logger
	retry  retry.Config

	mu        sync.Mutex
	conn      *nats.Conn
	published int64
}

// NewSink creates a NATS sink from validated configuration.
func NewSink(cfg Config, logger *slog.Logger) (*Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		cfg:    cfg,
		logger: logger.With("component", "nats_sink", "subject", cfg.Subject),
		retry:  retry.Quick(),
	}, nil
}

// Start establishes the NATS connection, retrying with backoff.
func (s *Sink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Sink", "Start", "start nats sink")
	}

	var conn *nats.Conn
	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
		var dialErr error
		conn, dialErr = nats.Connect(s.cfg.URL,
			nats.Name(s.cfg.Name),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
		)
		return dialErr
	})
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrNoConnection, err),
			"Sink", "Start", "connect to nats")
	}

	s.conn = conn
	s.logger.Info("nats sink connected", "url", s.cfg.URL)
	return nil
}

// WriteMatch publishes one encoded match group.
func (s *Sink) WriteMatch(match *event.PartialMatch) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.Wrap(errors.ErrNotStarted, "Sink", "WriteMatch", "publish match")
	}

	data, err := output.EncodeMatch(match)
	if err != nil {
		return err
	}

	err = retry.Do(context.Background(), s.retry, func() error {
		return conn.Publish(s.cfg.Subject, data)
	})
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrPublishFailed, err),
			"Sink", "WriteMatch", "publish match")
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()
	return nil
}

// Flush forces delivery of buffered publishes.
func (s *Sink) Flush() error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	if err := conn.FlushTimeout(2 * time.Second); err != nil {
		return errors.WrapTransient(err, "Sink", "Flush", "flush nats connection")
	}
	return nil
}

// Published returns the number of matches published so far.
func (s *Sink) Published() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// Stop drains and closes the connection. The timeout bounds how long
// the drain may take; on expiry the connection is closed hard.
func (s *Sink) Stop(timeout time.Duration) error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	if err := conn.Drain(); err != nil {
		conn.Close()
		return errors.WrapTransient(err, "Sink", "Stop", "drain nats connection")
	}

	deadline := time.Now().Add(timeout)
	for !conn.IsClosed() {
		if time.Now().After(deadline) {
			conn.Close()
			return errors.WrapTransient(
				fmt.Errorf("%w after %v", errors.ErrShutdownTimeout, timeout),
				"Sink", "Stop", "drain nats connection")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}
