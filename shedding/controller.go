package shedding

import (
	"log/slog"
	"sync"
	"time"

	"github.com/c360/streamcep/pkg/rolling"
)

// Controller thresholds and factors. The ratio of mean latency to target
// selects a tier; each tier multiplies the rate and clamps at its bound.
const (
	aggressiveRatio  = 2.0
	aggressiveFactor = 0.9

	moderateRatio  = 1.5
	moderateFactor = 0.95
	moderateFloor  = 0.7

	relaxRatio   = 0.5
	relaxFactor  = 1.1
	relaxCeiling = 1.0
)

// Actions recorded in the adjustment history.
const (
	ActionAggressive = "aggressive"
	ActionModerate   = "moderate"
	ActionRelax      = "relax"
	ActionStable     = "stable"
)

// ControllerConfig configures the latency-feedback controller.
type ControllerConfig struct {
	// TargetLatency is the per-event batch latency the controller
	// steers toward.
	TargetLatency time.Duration `json:"targetLatency"`

	// MinRate is the hard floor on the sampling rate under aggressive
	// shedding.
	MinRate float64 `json:"minRate"`

	// WindowSize is how many recent latency samples feed the mean.
	WindowSize int `json:"windowSize"`

	// MinSamples is the number of samples required before the
	// controller adjusts at all.
	MinSamples int `json:"minSamples"`
}

// DefaultControllerConfig returns the standard controller tuning.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		TargetLatency: 50 * time.Millisecond,
		MinRate:       0.5,
		WindowSize:    20,
		MinSamples:    3,
	}
}

func (c ControllerConfig) withDefaults() ControllerConfig {
	d := DefaultControllerConfig()
	if c.TargetLatency <= 0 {
		c.TargetLatency = d.TargetLatency
	}
	if c.MinRate <= 0 || c.MinRate > 1 {
		c.MinRate = d.MinRate
	}
	if c.WindowSize <= 0 {
		c.WindowSize = d.WindowSize
	}
	if c.MinSamples <= 0 {
		c.MinSamples = d.MinSamples
	}
	return c
}

// Adjustment is one entry of the controller's history log.
type Adjustment struct {
	Time          time.Time     `json:"time"`
	MeanLatency   time.Duration `json:"meanLatency"`
	Rate          float64       `json:"rate"`
	ProtectedKeys int           `json:"protectedKeys"`
	Action        string        `json:"action"`
}

// Controller adjusts the admission sampling rate from batch latency
// feedback. The rate moves multiplicatively: down under latency pressure
// with per-tier floors, back up toward 1.0 when latency is comfortably
// below target.
type Controller struct {
	cfg    ControllerConfig
	window *rolling.Window
	logger *slog.Logger

	mu      sync.RWMutex
	rate    float64
	history []Adjustment
}

// NewController creates a Controller starting at full admission.
func NewController(cfg ControllerConfig, logger *slog.Logger) *Controller {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		cfg:    cfg,
		window: rolling.NewWindow(cfg.WindowSize),
		logger: logger.With("component", "controller"),
		rate:   1.0,
	}
}

// Record adds a batch latency sample and applies an adjustment. The
// protectedKeys count is recorded in the history for observability. It
// returns the adjustment made, with a stable action until enough
// samples accumulate.
func (c *Controller) Record(latency time.Duration, protectedKeys int) Adjustment {
	c.window.Add(float64(latency) / float64(time.Millisecond))
	return c.adjust(protectedKeys)
}

func (c *Controller) adjust(protectedKeys int) Adjustment {
	c.mu.Lock()
	defer c.mu.Unlock()

	meanMS := c.window.Mean()
	mean := time.Duration(meanMS * float64(time.Millisecond))

	adj := Adjustment{
		Time:          time.Now(),
		MeanLatency:   mean,
		Rate:          c.rate,
		ProtectedKeys: protectedKeys,
		Action:        ActionStable,
	}

	if c.window.Size() < c.cfg.MinSamples {
		return adj
	}

	ratio := meanMS / (float64(c.cfg.TargetLatency) / float64(time.Millisecond))
	switch {
	case ratio > aggressiveRatio:
		c.rate = max(c.cfg.MinRate, c.rate*aggressiveFactor)
		adj.Action = ActionAggressive
	case ratio > moderateRatio:
		// The moderate floor never undercuts a configured minimum above it.
		c.rate = max(moderateFloor, c.cfg.MinRate, c.rate*moderateFactor)
		adj.Action = ActionModerate
	case ratio < relaxRatio:
		c.rate = min(relaxCeiling, c.rate*relaxFactor)
		adj.Action = ActionRelax
	}

	adj.Rate = c.rate
	c.history = append(c.history, adj)

	if adj.Action != ActionStable {
		c.logger.Debug("sampling rate adjusted",
			"action", adj.Action,
			"mean_latency", mean,
			"rate", c.rate,
			"protected_keys", protectedKeys)
	}
	return adj
}

// Rate returns the current sampling rate.
func (c *Controller) Rate() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rate
}

// TargetLatency returns the configured target.
func (c *Controller) TargetLatency() time.Duration {
	return c.cfg.TargetLatency
}

// History returns a copy of the adjustment log.
func (c *Controller) History() []Adjustment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Adjustment, len(c.history))
	copy(out, c.history)
	return out
}
