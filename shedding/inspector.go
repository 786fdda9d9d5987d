package shedding

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/streamcep/condition"
	"github.com/c360/streamcep/tree"
)

// Inspector periodically walks the evaluation tree and rebuilds the
// protected correlation-key set from the partial matches in flight.
//
// The walk reads evaluator-owned state from outside the evaluator's
// goroutine. Stores are individually lock-protected, so reads are
// memory-safe, but the set as a whole may lag the evaluator by up to
// one inspection interval. That staleness is tolerated: an oversized
// set only admits events that are no longer pattern-relevant, it never
// breaks a match.
type Inspector struct {
	root      tree.Node
	accessors []condition.Accessor
	interval  time.Duration
	logger    *slog.Logger

	mu        sync.RWMutex
	protected map[string]struct{}
	partials  int

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewInspector creates an Inspector over the tree rooted at root. The
// accessors name which correlation keys each partial-match event
// contributes to the protected set.
func NewInspector(root tree.Node, accessors []condition.Accessor, interval time.Duration, logger *slog.Logger) *Inspector {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{
		root:      root,
		accessors: accessors,
		interval:  interval,
		logger:    logger.With("component", "inspector"),
		protected: make(map[string]struct{}),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the periodic inspection loop. It returns immediately;
// the loop runs until Stop or context cancellation.
func (i *Inspector) Start(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		ticker := time.NewTicker(i.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				i.Refresh()
			case <-ctx.Done():
				return
			case <-i.stopCh:
				return
			}
		}
	}()
}

// Stop ends the inspection loop and waits for it to exit.
func (i *Inspector) Stop() {
	i.stopOnce.Do(func() { close(i.stopCh) })
	i.wg.Wait()
}

// Refresh performs one walk and swaps in the rebuilt protected set.
// Any failure during the walk keeps the previous set; protection
// degrades to staleness, never to a crash.
func (i *Inspector) Refresh() {
	defer func() {
		if r := recover(); r != nil {
			i.logger.Warn("tree inspection failed, keeping previous protected set", "panic", r)
		}
	}()

	next := make(map[string]struct{})
	partials := 0
	i.walk(i.root, next, &partials, make(map[tree.Node]bool))

	i.mu.Lock()
	i.protected = next
	i.partials = partials
	i.mu.Unlock()
}

func (i *Inspector) walk(n tree.Node, keys map[string]struct{}, partials *int, seen map[tree.Node]bool) {
	if n == nil || seen[n] {
		return
	}
	seen[n] = true

	for _, pm := range n.SnapshotPartialMatches() {
		if pm == nil {
			continue
		}
		*partials++
		for _, ev := range pm.Events {
			if ev == nil {
				continue
			}
			for _, acc := range i.accessors {
				if key := acc(ev.Payload); key != "" {
					keys[key] = struct{}{}
				}
			}
		}
	}

	for _, child := range n.Children() {
		i.walk(child, keys, partials, seen)
	}
}

// IsProtected reports whether any of the given keys is in the current
// protected set.
func (i *Inspector) IsProtected(keys ...string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, k := range keys {
		if _, ok := i.protected[k]; ok {
			return true
		}
	}
	return false
}

// Size returns the current protected-set size.
func (i *Inspector) Size() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.protected)
}

// PartialMatchCount returns the number of partial matches seen on the
// last walk.
func (i *Inspector) PartialMatchCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.partials
}
