// Package rolling provides a fixed-capacity rolling window of float64
// samples with constant-time mean computation. It backs the latency
// feedback loop of the admission controller: the most recent N batch
// latency samples are retained and their mean drives sampling-rate
// adjustments.
package rolling

import "sync"

// Window is a thread-safe rolling window of float64 samples. When the
// window is full the oldest sample is evicted to make room for new ones.
type Window struct {
	mu       sync.RWMutex
	samples  []float64
	capacity int
	next     int
	size     int
	sum      float64
}

// NewWindow creates a rolling window retaining the most recent capacity
// samples. A non-positive capacity defaults to 1.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		samples:  make([]float64, capacity),
		capacity: capacity,
	}
}

// Add records a new sample, evicting the oldest if the window is full.
func (w *Window) Add(sample float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.size == w.capacity {
		w.sum -= w.samples[w.next]
	} else {
		w.size++
	}
	w.samples[w.next] = sample
	w.sum += sample
	w.next = (w.next + 1) % w.capacity
}

// Mean returns the mean of the retained samples, or 0 if empty.
func (w *Window) Mean() float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.size == 0 {
		return 0
	}
	return w.sum / float64(w.size)
}

// Size returns the number of retained samples.
func (w *Window) Size() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.size
}

// Capacity returns the maximum number of retained samples.
func (w *Window) Capacity() int {
	return w.capacity
}

// Snapshot returns the retained samples in insertion order, oldest first.
func (w *Window) Snapshot() []float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]float64, 0, w.size)
	start := w.next - w.size
	for i := 0; i < w.size; i++ {
		idx := (start + i + w.capacity) % w.capacity
		out = append(out, w.samples[idx])
	}
	return out
}

// Reset discards all retained samples.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = 0
	w.next = 0
	w.sum = 0
}
