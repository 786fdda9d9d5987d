// Package streamcep is a streaming complex-event-processing pipeline with
// pattern-aware load shedding.
//
// # Overview
//
// StreamCEP matches variable-length chains of correlated trip events
// (a Kleene closure) terminated by a qualifying event, while an adaptive
// admission controller decides, record by record, what to admit into the
// matching engine so that processing stays within a latency budget.
//
// The two run concurrently and are deliberately coupled: the admission
// controller periodically inspects the live partial-match state of the
// evaluation tree and exempts any record whose correlation keys appear in
// an in-flight match from shedding. Dropping such a record would silently
// prevent a pending match from ever completing; dropping anything else only
// costs recall, never correctness.
//
//	raw records ──► shedding.Feeder ──► stream.Stream ──► pattern tree ──► output sinks
//	                    ▲    │                               │
//	                    │    └── latency feedback            │
//	                    └──────── protected-key inspection ──┘
//
// # Packages
//
// Core matching:
//   - event: primitive events, aggregated events, partial matches
//   - condition: typed accessors and pattern conditions
//   - tree: partial-match store, Kleene-closure node, sequence node
//
// Admission control:
//   - shedding: feeder, latency-feedback controller, tree inspector
//
// Plumbing:
//   - stream: bounded blocking transport and file record source
//   - formatter: raw trip record parsing
//   - output/file, output/natspub, output/wsfeed: match sinks
//
// Infrastructure:
//   - engine: pattern compilation and pipeline orchestration
//   - config: typed configuration with validation
//   - metric: Prometheus metrics registry
//   - errors: classified error handling
//   - pkg/retry, pkg/rolling: backoff and rolling-sample helpers
//
// # Binary
//
//	go build ./cmd/streamcep
//	./streamcep --input data/trips.csv --config configs/hotpaths.json
package streamcep
