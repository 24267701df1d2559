package apiclient

import "sync"

// LoadingTracker maintains the set of URLs with calls in flight. Each URL is
// counted, so two concurrent calls to the same URL keep it loading until both
// have settled.
type LoadingTracker struct {
	notifyMu sync.Mutex
	mu       sync.RWMutex
	counts   map[string]int
	listener func(anyLoading bool)
}

// NewLoadingTracker creates a tracker. listener, if not nil, is called each
// time the aggregate AnyLoading flag flips. It must not call SetLoading.
func NewLoadingTracker(listener func(anyLoading bool)) *LoadingTracker {
	return &LoadingTracker{
		counts:   make(map[string]int),
		listener: listener,
	}
}

// SetLoading adds (loading=true) or removes (loading=false) one in-flight
// call for url.
func (t *LoadingTracker) SetLoading(url string, loading bool) {
	t.notifyMu.Lock()
	defer t.notifyMu.Unlock()

	t.mu.Lock()
	before := len(t.counts) > 0
	if loading {
		t.counts[url]++
	} else if n, ok := t.counts[url]; ok {
		if n <= 1 {
			delete(t.counts, url)
		} else {
			t.counts[url] = n - 1
		}
	}
	after := len(t.counts) > 0
	t.mu.Unlock()

	if before != after && t.listener != nil {
		t.listener(after)
	}
}

// IsLoading reports whether url has at least one call in flight.
func (t *LoadingTracker) IsLoading(url string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[url] > 0
}

// AnyLoading reports whether any call is in flight.
func (t *LoadingTracker) AnyLoading() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.counts) > 0
}

// Snapshot returns a copy of the per-URL in-flight counts.
func (t *LoadingTracker) Snapshot() map[string]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]int, len(t.counts))
	for url, n := range t.counts {
		out[url] = n
	}
	return out
}
