package stream

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/c360/streamcep/errors"
)

// SourceConfig configures a line-oriented file source.
type SourceConfig struct {
	// Path of the input file. Required.
	Path string `json:"path"`

	// SkipHeader drops the first line (CSV header rows).
	SkipHeader bool `json:"skipHeader"`

	// MaxRecords caps how many records are read. Zero reads the whole
	// file.
	MaxRecords int `json:"maxRecords"`
}

// Validate checks the configuration.
func (c SourceConfig) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "stream", "Validate", "check source path")
	}
	if c.MaxRecords < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("maxRecords must not be negative, got %d", c.MaxRecords),
			"stream", "Validate", "check record cap")
	}
	return nil
}

// Source reads raw records from a file, one per line. Records are passed
// on as-is; parsing them is the formatter's job downstream.
type Source struct {
	cfg    SourceConfig
	logger *slog.Logger
}

// NewSource creates a Source from validated configuration.
func NewSource(cfg SourceConfig, logger *slog.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{cfg: cfg, logger: logger.With("component", "source", "path", cfg.Path)}, nil
}

// Read streams the file's records to fn in order, stopping at EOF, the
// configured cap, a cancelled context, or the first fn error. It returns
// the number of records handed to fn.
func (s *Source) Read(ctx context.Context, fn func(record string) error) (int, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return 0, errors.Wrap(err, "stream", "Read", "open input file")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	count := 0
	first := true
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		line := scanner.Text()
		if first {
			first = false
			if s.cfg.SkipHeader {
				continue
			}
		}
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return count, err
		}
		count++
		if s.cfg.MaxRecords > 0 && count >= s.cfg.MaxRecords {
			s.logger.Debug("record cap reached", "count", count)
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return count, errors.WrapTransient(err, "stream", "Read", "scan input file")
	}

	s.logger.Info("source drained", "records", count)
	return count, nil
}
