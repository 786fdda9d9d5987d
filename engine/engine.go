package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/streamcep/config"
	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
	"github.com/c360/streamcep/formatter"
	"github.com/c360/streamcep/metric"
	"github.com/c360/streamcep/output"
	filesink "github.com/c360/streamcep/output/file"
	"github.com/c360/streamcep/output/natspub"
	"github.com/c360/streamcep/output/wsfeed"
	"github.com/c360/streamcep/shedding"
	"github.com/c360/streamcep/stream"
	"github.com/c360/streamcep/tree"
)

const sinkShutdownTimeout = 5 * time.Second

// Engine wires the pipeline end to end: source, admission feeder,
// evaluation tree, and output sinks. Build one with New and drive it
// with Run; an Engine processes a single input and is not reusable.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metric.Metrics

	pattern    *Pattern
	controller *shedding.Controller
	inspector  *shedding.Inspector
	feeder     *shedding.Feeder
	transport  *stream.Stream[string]
	format     formatter.Formatter

	sinks []output.Sink

	matches       atomic.Int64
	parseFailures atomic.Int64
}

// New builds an engine from a validated configuration. A nil registry
// disables metrics.
func New(cfg *config.Config, logger *slog.Logger, registry *metric.MetricsRegistry) (*Engine, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Engine", "New", "check config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine")

	var metrics *metric.Metrics
	if registry != nil {
		metrics = registry.CoreMetrics()
	}

	pattern, err := CompilePattern(cfg.Pattern, logger)
	if err != nil {
		return nil, err
	}

	controller := shedding.NewController(shedding.ControllerConfig{
		TargetLatency: cfg.Shedding.TargetLatency.Std(),
		MinRate:       cfg.Shedding.MinRate,
		WindowSize:    cfg.Shedding.WindowSize,
		MinSamples:    cfg.Shedding.MinSamples,
	}, logger)

	inspector := shedding.NewInspector(pattern.Seq, pattern.Accessors,
		cfg.Shedding.InspectionInterval.Std(), logger)

	transport := stream.New[string](stream.WithCapacity(cfg.Shedding.StreamCapacity))

	feeder := shedding.NewFeeder(shedding.FeederConfig{
		TargetKeys:          cfg.Pattern.TargetKeys,
		LargeInputThreshold: cfg.Shedding.LargeInputThreshold,
		LargeBatchSize:      cfg.Shedding.LargeBatchSize,
		SmallBatchSize:      cfg.Shedding.SmallBatchSize,
	}, controller, inspector, transport, metrics, logger)

	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		metrics:    metrics,
		pattern:    pattern,
		controller: controller,
		inspector:  inspector,
		feeder:     feeder,
		transport:  transport,
		format:     formatter.NewTripFormatter(logger),
	}
	pattern.Seq.SetCollector(tree.CollectorFunc(e.collect))
	return e, nil
}

func (e *Engine) collect(match *event.PartialMatch) {
	e.matches.Add(1)
	if e.metrics != nil {
		e.metrics.MatchesTotal.Inc()
	}
	for _, sink := range e.sinks {
		if err := sink.WriteMatch(match); err != nil {
			e.logger.Warn("sink write failed", "error", err)
		}
	}
}

// Run loads the input, starts the sinks, the tree inspector and the
// admission feeder, then consumes admitted records through the
// evaluation tree until the transport drains. Blocking; returns when
// the input is exhausted, the context is cancelled, or a fatal
// evaluation error occurs.
func (e *Engine) Run(ctx context.Context) error {
	src, err := stream.NewSource(stream.SourceConfig{
		Path:       e.cfg.Input.Path,
		SkipHeader: e.cfg.Input.SkipHeader,
		MaxRecords: e.cfg.Input.MaxRecords,
	}, e.logger)
	if err != nil {
		return err
	}

	var records []string
	n, err := src.Read(ctx, func(record string) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return err
	}
	e.logger.Info("input loaded", "records", n, "path", e.cfg.Input.Path)

	if err := e.startSinks(ctx); err != nil {
		return err
	}
	defer e.stopSinks()

	e.inspector.Start(ctx)
	defer e.inspector.Stop()

	feedCtx, cancelFeed := context.WithCancel(ctx)
	defer cancelFeed()
	e.feeder.Start(feedCtx, records)

	consumeErr := e.consume()
	if consumeErr != nil {
		// A fatal evaluation error stops the consumer with records still
		// in flight. Cancel the producer so a blocked Put cannot stall
		// the join below.
		cancelFeed()
	}
	// The feeder closes the transport when it exits, so the consumer is
	// joined before its error is surfaced.
	feedErr := e.feeder.Wait()

	e.logSummary()
	if consumeErr != nil {
		return consumeErr
	}
	return feedErr
}

// consume drains admitted records through both leaves. Each record is
// offered to leaf a and, as a copy, to leaf b.
func (e *Engine) consume() error {
	for record := range e.transport.Items() {
		ev, err := e.format.Parse(record)
		if err != nil {
			e.parseFailures.Add(1)
			e.logger.Debug("record rejected by formatter", "error", err)
			continue
		}
		if err := e.pattern.LeafA.Accept(ev); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			e.logger.Warn("evaluation error", "leaf", "a", "error", err)
		}
		clone := *ev
		if err := e.pattern.LeafB.Accept(&clone); err != nil {
			if errors.IsFatal(err) {
				return err
			}
			e.logger.Warn("evaluation error", "leaf", "b", "error", err)
		}
	}
	return nil
}

func (e *Engine) startSinks(ctx context.Context) error {
	out := e.cfg.Output

	if out.File.Enabled {
		sink, err := filesink.NewSink(filesink.Config{
			Directory:  out.File.Directory,
			FilePrefix: out.File.FilePrefix,
			Append:     out.File.Append,
			BufferSize: out.File.BufferSize,
		}, e.logger)
		if err != nil {
			return err
		}
		if err := sink.Start(); err != nil {
			return err
		}
		e.sinks = append(e.sinks, sink)
	}

	if out.NATS.Enabled {
		sink, err := natspub.NewSink(natspub.Config{
			URL:     out.NATS.URL,
			Subject: out.NATS.Subject,
		}, e.logger)
		if err != nil {
			e.stopSinks()
			return err
		}
		if err := sink.Start(ctx); err != nil {
			e.stopSinks()
			return err
		}
		e.sinks = append(e.sinks, sink)
	}

	if out.WS.Enabled {
		sink, err := wsfeed.NewSink(wsfeed.Config{
			Port: out.WS.Port,
			Path: out.WS.Path,
		}, e.logger)
		if err != nil {
			e.stopSinks()
			return err
		}
		if err := sink.Start(); err != nil {
			e.stopSinks()
			return err
		}
		e.sinks = append(e.sinks, sink)
	}

	e.logger.Info("sinks started", "count", len(e.sinks))
	return nil
}

func (e *Engine) stopSinks() {
	for _, sink := range e.sinks {
		if err := sink.Flush(); err != nil {
			e.logger.Warn("sink flush failed", "error", err)
		}
		if err := sink.Stop(sinkShutdownTimeout); err != nil {
			e.logger.Warn("sink stop failed", "error", err)
		}
	}
	e.sinks = nil
}

func (e *Engine) logSummary() {
	stats := e.feeder.Stats()
	if e.metrics != nil {
		e.metrics.PartialMatches.Set(float64(e.inspector.PartialMatchCount()))
	}
	e.logger.Info("run complete",
		"seen", stats.Seen,
		"admitted", stats.Admitted,
		"protected", stats.Protected,
		"dropped", stats.DroppedTotal,
		"shed_malformed", stats.ShedMalformed,
		"shed_degenerate", stats.ShedDegenerate,
		"shed_sampling", stats.ShedSampling,
		"parse_failures", e.parseFailures.Load(),
		"matches", e.matches.Load(),
		"sampling_rate", e.controller.Rate(),
	)
}

// Matches reports how many completed matches the run emitted.
func (e *Engine) Matches() int64 {
	return e.matches.Load()
}

// Stats returns the feeder's admission counters.
func (e *Engine) Stats() shedding.Stats {
	return e.feeder.Stats()
}
