package tree

import (
	"sync"
	"time"

	"github.com/c360/streamcep/event"
)

// Store is an append-ordered collection of partial matches held by one
// evaluation node. Entries expire when, relative to a reference time,
// their span would exceed the sliding window.
//
// The evaluator mutates the store single-threaded; the admission
// controller's inspector reads snapshots concurrently. The mutex keeps
// those snapshot reads memory-safe; the inspector's view is still allowed
// to lag the evaluator by design.
type Store struct {
	mu      sync.RWMutex
	window  time.Duration
	entries []*event.PartialMatch
}

// NewStore creates a store bound to the given sliding window.
func NewStore(window time.Duration) *Store {
	return &Store{window: window}
}

// Append adds a partial match at the end of the store.
func (s *Store) Append(pm *event.PartialMatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, pm)
}

// Last returns the most recently appended entry.
func (s *Store) Last() (*event.PartialMatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, false
	}
	return s.entries[len(s.entries)-1], true
}

// Len returns the number of held entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Window returns the store's sliding window.
func (s *Store) Window() time.Duration {
	return s.window
}

// Snapshot returns a copy of the held entries in arrival order.
func (s *Store) Snapshot() []*event.PartialMatch {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*event.PartialMatch, len(s.entries))
	copy(out, s.entries)
	return out
}

// CleanExpired removes entries that can no longer contribute to a match:
// any entry whose first timestamp lies more than the sliding window before
// the reference time. Returns the number of removed entries. Calling it
// twice with the same reference removes nothing the second time.
func (s *Store) CleanExpired(ref time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, pm := range s.entries {
		if ref.Sub(pm.First) <= s.window {
			kept = append(kept, pm)
		}
	}
	removed := len(s.entries) - len(kept)
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed
}

// Remove deletes the given entries from the store, matching by identity.
// Used by the consumption policy after a completed match.
func (s *Store) Remove(pms ...*event.PartialMatch) int {
	if len(pms) == 0 {
		return 0
	}

	drop := make(map[*event.PartialMatch]bool, len(pms))
	for _, pm := range pms {
		drop[pm] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, pm := range s.entries {
		if !drop[pm] {
			kept = append(kept, pm)
		}
	}
	removed := len(s.entries) - len(kept)
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
	return removed
}
