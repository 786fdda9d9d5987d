package shedding

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/c360/streamcep/formatter"
	"github.com/c360/streamcep/metric"
	"github.com/c360/streamcep/stream"
)

// FeederConfig configures the admission controller.
type FeederConfig struct {
	// TargetKeys always admit: records touching these correlation keys
	// are what the pattern is looking for.
	TargetKeys []string `json:"targetKeys"`

	// LargeInputThreshold selects the batch size: inputs larger than
	// this use LargeBatchSize, smaller ones SmallBatchSize.
	LargeInputThreshold int `json:"largeInputThreshold"`
	LargeBatchSize      int `json:"largeBatchSize"`
	SmallBatchSize      int `json:"smallBatchSize"`
}

// DefaultFeederConfig returns the standard feeder tuning.
func DefaultFeederConfig() FeederConfig {
	return FeederConfig{
		LargeInputThreshold: 1000,
		LargeBatchSize:      50,
		SmallBatchSize:      20,
	}
}

func (c FeederConfig) withDefaults() FeederConfig {
	d := DefaultFeederConfig()
	if c.LargeInputThreshold <= 0 {
		c.LargeInputThreshold = d.LargeInputThreshold
	}
	if c.LargeBatchSize <= 0 {
		c.LargeBatchSize = d.LargeBatchSize
	}
	if c.SmallBatchSize <= 0 {
		c.SmallBatchSize = d.SmallBatchSize
	}
	return c
}

// Stats is a snapshot of the feeder's admission counters.
type Stats struct {
	Seen           uint64 `json:"seen"`
	Admitted       uint64 `json:"admitted"`
	Protected      uint64 `json:"protected"`
	DroppedTotal   uint64 `json:"droppedTotal"`
	ShedMalformed  uint64 `json:"shedMalformed"`
	ShedDegenerate uint64 `json:"shedDegenerate"`
	ShedSampling   uint64 `json:"shedSampling"`
}

// Feeder is the admission side of the pipeline. It runs concurrently
// with the evaluator, deciding per record whether to admit, drop, or
// sample, then pushes admitted records downstream and closes the
// transport when the source is exhausted.
//
// Admission follows a strict priority order: protected keys first, then
// target keys, then the degenerate drop, then latency-driven sampling.
// Malformed records never reach step one. The feeder owns all of its
// counters; the controller and inspector are consulted, not mutated,
// except for the latency samples handed to the controller at batch
// boundaries.
type Feeder struct {
	cfg        FeederConfig
	controller *Controller
	inspector  *Inspector
	out        *stream.Stream[string]
	metrics    *metric.Metrics
	logger     *slog.Logger
	targets    map[string]bool
	rng        *rand.Rand

	mu    sync.Mutex
	stats Stats

	wg  sync.WaitGroup
	err error
}

// NewFeeder creates a Feeder pushing admitted records into out.
func NewFeeder(cfg FeederConfig, controller *Controller, inspector *Inspector,
	out *stream.Stream[string], metrics *metric.Metrics, logger *slog.Logger) *Feeder {

	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	targets := make(map[string]bool, len(cfg.TargetKeys))
	for _, k := range cfg.TargetKeys {
		targets[k] = true
	}
	return &Feeder{
		cfg:        cfg,
		controller: controller,
		inspector:  inspector,
		out:        out,
		metrics:    metrics,
		logger:     logger.With("component", "feeder"),
		targets:    targets,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start launches the producer goroutine over the given records. The
// transport is always closed when the producer exits, so the consumer
// never hangs; any producer error is held for Wait.
func (f *Feeder) Start(ctx context.Context, records []string) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.out.Close()
		if err := f.feed(ctx, records); err != nil {
			f.mu.Lock()
			f.err = err
			f.mu.Unlock()
			f.logger.Error("feeding failed", "error", err)
		}
	}()
}

// Wait blocks until the producer goroutine exits and returns its error,
// if any. Callers drain the consumer side first, then call Wait, so a
// producer failure surfaces after the consumer has been joined.
func (f *Feeder) Wait() error {
	f.wg.Wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

func (f *Feeder) feed(ctx context.Context, records []string) error {
	batchSize := f.cfg.SmallBatchSize
	if len(records) > f.cfg.LargeInputThreshold {
		batchSize = f.cfg.LargeBatchSize
	}
	f.logger.Info("feeding started", "records", len(records), "batch_size", batchSize)

	start := time.Now()
	batchStart := start
	inBatch := 0

	for _, rec := range records {
		f.count(func(s *Stats) { s.Seen++ })
		if f.metrics != nil {
			f.metrics.RecordsSeen.Inc()
		}

		batchLatency := perEventLatency(time.Since(batchStart), inBatch)

		if f.shouldAdmit(rec, batchLatency) {
			if err := f.out.Put(ctx, rec); err != nil {
				return err
			}
			f.count(func(s *Stats) { s.Admitted++ })
			if f.metrics != nil {
				f.metrics.RecordsAdmitted.Inc()
			}
			inBatch++
		} else {
			f.count(func(s *Stats) { s.DroppedTotal++ })
		}

		if inBatch >= batchSize {
			sample := perEventLatency(time.Since(batchStart), inBatch)
			adj := f.controller.Record(sample, f.protectedKeySize())
			if f.metrics != nil {
				f.metrics.BatchLatency.Observe(float64(sample) / float64(time.Millisecond))
				f.metrics.SamplingRate.Set(adj.Rate)
				f.metrics.ProtectedKeys.Set(float64(adj.ProtectedKeys))
			}
			batchStart = time.Now()
			inBatch = 0
		}
	}

	stats := f.Stats()
	f.logger.Info("feeding completed",
		"elapsed", time.Since(start),
		"seen", stats.Seen,
		"admitted", stats.Admitted,
		"dropped", stats.DroppedTotal,
		"protected", stats.Protected)
	return nil
}

// shouldAdmit applies the admission priorities to one record.
func (f *Feeder) shouldAdmit(rec string, batchLatency time.Duration) bool {
	keys, err := formatter.ExtractKeys(rec)
	if err != nil {
		f.drop(metric.ReasonMalformed, func(s *Stats) { s.ShedMalformed++ })
		return false
	}

	if f.inspector != nil && f.inspector.IsProtected(keys.Entity, keys.Origin, keys.Destination) {
		f.count(func(s *Stats) { s.Protected++ })
		if f.metrics != nil {
			f.metrics.RecordsProtected.Inc()
		}
		return true
	}

	if f.targets[keys.Origin] || f.targets[keys.Destination] {
		return true
	}

	if keys.Origin != "" && keys.Origin == keys.Destination {
		f.drop(metric.ReasonDegenerate, func(s *Stats) { s.ShedDegenerate++ })
		return false
	}

	if batchLatency > f.controller.TargetLatency() {
		if f.rng.Float64() > f.controller.Rate() {
			f.drop(metric.ReasonSampling, func(s *Stats) { s.ShedSampling++ })
			return false
		}
	}

	return true
}

// protectedKeySize reports the inspector's protected-set size; zero when
// no inspector is wired.
func (f *Feeder) protectedKeySize() int {
	if f.inspector == nil {
		return 0
	}
	return f.inspector.Size()
}

func (f *Feeder) drop(reason string, update func(*Stats)) {
	f.count(update)
	if f.metrics != nil {
		f.metrics.RecordsDropped.WithLabelValues(reason).Inc()
	}
}

func (f *Feeder) count(update func(*Stats)) {
	f.mu.Lock()
	update(&f.stats)
	f.mu.Unlock()
}

// Stats returns a snapshot of the admission counters.
func (f *Feeder) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

func perEventLatency(elapsed time.Duration, admitted int) time.Duration {
	if admitted < 1 {
		admitted = 1
	}
	return elapsed / time.Duration(admitted)
}
