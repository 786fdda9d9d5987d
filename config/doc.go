// Package config defines the pipeline configuration: the pattern being
// compiled, the load-shedding tuning, the input source, and the output
// sinks. Configuration layers are defaults, then an optional JSON file,
// then STREAMCEP_* environment overrides.
package config
