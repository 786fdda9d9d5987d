package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c360/streamcep/errors"
)

// Kleene evaluation modes.
const (
	ModeGreedy     = "greedy"
	ModeExhaustive = "exhaustive"
)

// Config represents the complete pipeline configuration.
type Config struct {
	Pattern  PatternConfig  `json:"pattern"`
	Shedding SheddingConfig `json:"shedding"`
	Input    InputConfig    `json:"input"`
	Output   OutputConfig   `json:"output"`
	Metrics  MetricsConfig  `json:"metrics"`
}

// PatternConfig describes the pattern the evaluation tree is compiled
// from: a repetition of correlated events terminated by a qualifying
// event inside a sliding window.
type PatternConfig struct {
	Name    string   `json:"name"`
	MinSize int      `json:"minSize"`
	MaxSize int      `json:"maxSize"` // 0 means unbounded
	Window  Duration `json:"window"`
	Mode    string   `json:"mode"`

	// Payload fields used as correlation keys.
	EntityKey      string `json:"entityKey"`
	OriginKey      string `json:"originKey"`
	DestinationKey string `json:"destinationKey"`

	// TargetKeys are the high-value keys the pattern is hunting for;
	// the qualifying event must end at one of them, and the feeder
	// always admits records touching them.
	TargetKeys []string `json:"targetKeys"`

	// ConsumeMatched removes partial matches from the child stores once
	// they participate in a completed match.
	ConsumeMatched bool `json:"consumeMatched"`
}

// SheddingConfig tunes the admission controller.
type SheddingConfig struct {
	TargetLatency       Duration `json:"targetLatency"`
	MinRate             float64  `json:"minRate"`
	WindowSize          int      `json:"windowSize"`
	MinSamples          int      `json:"minSamples"`
	InspectionInterval  Duration `json:"inspectionInterval"`
	LargeInputThreshold int      `json:"largeInputThreshold"`
	LargeBatchSize      int      `json:"largeBatchSize"`
	SmallBatchSize      int      `json:"smallBatchSize"`
	StreamCapacity      int      `json:"streamCapacity"`
}

// InputConfig locates the record source.
type InputConfig struct {
	Path       string `json:"path"`
	SkipHeader bool   `json:"skipHeader"`
	MaxRecords int    `json:"maxRecords"`
}

// OutputConfig enables and configures the match sinks.
type OutputConfig struct {
	File FileOutputConfig `json:"file"`
	NATS NATSOutputConfig `json:"nats"`
	WS   WSOutputConfig   `json:"ws"`
}

// FileOutputConfig configures the file sink.
type FileOutputConfig struct {
	Enabled    bool   `json:"enabled"`
	Directory  string `json:"directory"`
	FilePrefix string `json:"filePrefix"`
	Append     bool   `json:"append"`
	BufferSize int    `json:"bufferSize"`
}

// NATSOutputConfig configures the NATS sink.
type NATSOutputConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Subject string `json:"subject"`
}

// WSOutputConfig configures the websocket sink.
type WSOutputConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// MetricsConfig configures the metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// Default returns the standard configuration: the hot-paths pattern over
// trip records, greedy evaluation, and file output.
func Default() *Config {
	return &Config{
		Pattern: PatternConfig{
			Name:           "hot-paths",
			MinSize:        1,
			MaxSize:        5,
			Window:         Duration(time.Hour),
			Mode:           ModeGreedy,
			EntityKey:      "entity",
			OriginKey:      "origin",
			DestinationKey: "destination",
			TargetKeys:     []string{"3186", "3183", "3203"},
		},
		Shedding: SheddingConfig{
			TargetLatency:       Duration(50 * time.Millisecond),
			MinRate:             0.5,
			WindowSize:          20,
			MinSamples:          3,
			InspectionInterval:  Duration(500 * time.Millisecond),
			LargeInputThreshold: 1000,
			LargeBatchSize:      50,
			SmallBatchSize:      20,
			StreamCapacity:      1024,
		},
		Input: InputConfig{
			SkipHeader: true,
		},
		Output: OutputConfig{
			File: FileOutputConfig{
				Enabled:    true,
				Directory:  "/tmp/streamcep",
				FilePrefix: "matches",
				Append:     false,
				BufferSize: 100,
			},
			NATS: NATSOutputConfig{
				URL:     "nats://localhost:4222",
				Subject: "streamcep.matches",
			},
			WS: WSOutputConfig{
				Port: 8080,
				Path: "/matches",
			},
		},
		Metrics: MetricsConfig{
			Port: 9090,
			Path: "/metrics",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	p := c.Pattern
	if p.MinSize < 1 {
		return invalid("pattern.minSize must be at least 1")
	}
	if p.MaxSize != 0 && p.MaxSize < p.MinSize {
		return invalid("pattern.maxSize must be 0 or >= minSize")
	}
	if p.Window.Std() <= 0 {
		return invalid("pattern.window must be positive")
	}
	if p.Mode != ModeGreedy && p.Mode != ModeExhaustive {
		return invalid(fmt.Sprintf("pattern.mode must be %q or %q", ModeGreedy, ModeExhaustive))
	}
	if p.EntityKey == "" || p.OriginKey == "" || p.DestinationKey == "" {
		return invalid("pattern correlation keys are required")
	}
	if len(p.TargetKeys) == 0 {
		return invalid("pattern.targetKeys must not be empty")
	}

	s := c.Shedding
	if s.TargetLatency.Std() <= 0 {
		return invalid("shedding.targetLatency must be positive")
	}
	if s.MinRate <= 0 || s.MinRate > 1 {
		return invalid("shedding.minRate must be in (0, 1]")
	}
	if s.InspectionInterval.Std() <= 0 {
		return invalid("shedding.inspectionInterval must be positive")
	}

	if c.Input.Path == "" {
		return invalid("input.path is required")
	}
	if c.Input.MaxRecords < 0 {
		return invalid("input.maxRecords cannot be negative")
	}

	if c.Output.File.Enabled && c.Output.File.Directory == "" {
		return invalid("output.file.directory is required when the file sink is enabled")
	}
	if c.Output.NATS.Enabled && (c.Output.NATS.URL == "" || c.Output.NATS.Subject == "") {
		return invalid("output.nats requires url and subject when enabled")
	}
	if !c.Output.File.Enabled && !c.Output.NATS.Enabled && !c.Output.WS.Enabled {
		return invalid("at least one output sink must be enabled")
	}

	return nil
}

func invalid(msg string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate", msg)
}

// Loader loads configuration from defaults, an optional JSON file, and
// environment overrides, in that order.
type Loader struct {
	envPrefix  string
	validation bool
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	return &Loader{envPrefix: "STREAMCEP", validation: true}
}

// EnableValidation enables or disables validation on load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load builds the configuration. An empty path skips the file layer.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Load", "read config file")
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", "parse config file")
		}
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (l *Loader) applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(l.envPrefix + "_INPUT_PATH"); val != "" {
		cfg.Input.Path = val
	}
	if val := os.Getenv(l.envPrefix + "_INPUT_MAX_RECORDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Input.MaxRecords = n
		}
	}
	if val := os.Getenv(l.envPrefix + "_PATTERN_MODE"); val != "" {
		cfg.Pattern.Mode = val
	}
	if val := os.Getenv(l.envPrefix + "_PATTERN_TARGET_KEYS"); val != "" {
		cfg.Pattern.TargetKeys = strings.Split(val, ",")
	}
	if val := os.Getenv(l.envPrefix + "_TARGET_LATENCY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Shedding.TargetLatency = Duration(d)
		}
	}
	if val := os.Getenv(l.envPrefix + "_NATS_URL"); val != "" {
		cfg.Output.NATS.URL = val
	}
	if val := os.Getenv(l.envPrefix + "_METRICS_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Metrics.Port = n
		}
	}
}

// SaveToFile writes the configuration to a JSON file.
func (c *Config) SaveToFile(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "Config", "SaveToFile", "write config file")
	}
	return nil
}

// String returns a JSON representation of the config.
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
