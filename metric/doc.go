// Package metric provides Prometheus-based metrics collection and an
// HTTP server for pipeline observability.
//
// The pipeline metric set (Metrics) covers the admission side (records
// seen, admitted, protected, dropped by reason), the shedding state
// (sampling rate, protected-key-set size, batch latency samples), and
// the evaluation side (completed matches, in-flight partial matches).
// The feeder owns the admission counters and increments them directly;
// no other component writes them.
//
// NewMetricsRegistry pre-registers the pipeline set plus the Go runtime
// collectors; NewServer exposes the registry over HTTP with a /health
// endpoint alongside the metrics path.
package metric
