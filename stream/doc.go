// Package stream provides the transport between pipeline stages: a
// bounded generic FIFO with producer-owned close semantics, and a
// line-oriented file source for raw input records.
package stream
