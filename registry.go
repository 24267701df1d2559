package apiclient

import (
	"context"
	"sync"
)

type inFlightRecord struct {
	cancel context.CancelCauseFunc
	reject func(error)
}

// ControllerRegistry tracks the cancellation handle and the reject callback
// of every in-flight call, keyed by resolved URL and call id. It also keeps
// the set of call ids that were cancelled so a call still unwinding can
// notice it was told to stop.
type ControllerRegistry struct {
	mu        sync.Mutex
	records   map[string]map[string]inFlightRecord
	cancelled map[string]struct{}
}

// NewControllerRegistry returns an empty registry.
func NewControllerRegistry() *ControllerRegistry {
	return &ControllerRegistry{
		records:   make(map[string]map[string]inFlightRecord),
		cancelled: make(map[string]struct{}),
	}
}

// Register stores the handle and reject callback of call id under url.
func (r *ControllerRegistry) Register(url, id string, cancel context.CancelCauseFunc, reject func(error)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls, ok := r.records[url]
	if !ok {
		calls = make(map[string]inFlightRecord)
		r.records[url] = calls
	}
	calls[id] = inFlightRecord{cancel: cancel, reject: reject}
}

// Release removes the registration of call id. It reports whether the
// registration was still present.
func (r *ControllerRegistry) Release(url, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.removeLocked(url, id)
	return ok
}

// Abort cancels every call registered under url: each is marked cancelled,
// rejected with cause, has its handle aborted and is released. It returns
// the number of calls aborted.
func (r *ControllerRegistry) Abort(url string, cause error) int {
	r.mu.Lock()
	calls := r.records[url]
	delete(r.records, url)
	for id := range calls {
		r.cancelled[id] = struct{}{}
	}
	r.mu.Unlock()

	for _, rec := range calls {
		rec.reject(cause)
		rec.cancel(cause)
	}
	return len(calls)
}

// AbortCall is Abort restricted to a single call. It reports whether the
// call was still registered.
func (r *ControllerRegistry) AbortCall(url, id string, cause error) bool {
	r.mu.Lock()
	rec, ok := r.removeLocked(url, id)
	if ok {
		r.cancelled[id] = struct{}{}
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	rec.reject(cause)
	rec.cancel(cause)
	return true
}

// AbortAll aborts every registered call, using causeFor to build the
// rejection of each URL. It returns the number of calls aborted per URL.
func (r *ControllerRegistry) AbortAll(causeFor func(url string) error) map[string]int {
	r.mu.Lock()
	urls := make([]string, 0, len(r.records))
	for url := range r.records {
		urls = append(urls, url)
	}
	r.mu.Unlock()

	aborted := make(map[string]int, len(urls))
	for _, url := range urls {
		if n := r.Abort(url, causeFor(url)); n > 0 {
			aborted[url] = n
		}
	}
	return aborted
}

// MarkCancelled records that call id was told to stop.
func (r *ControllerRegistry) MarkCancelled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled[id] = struct{}{}
}

// IsCancelled reports whether call id was told to stop.
func (r *ControllerRegistry) IsCancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancelled[id]
	return ok
}

// ClearCancelled forgets the cancellation mark of call id.
func (r *ControllerRegistry) ClearCancelled(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancelled, id)
}

// Len returns the number of calls registered under url.
func (r *ControllerRegistry) Len(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records[url])
}

// Total returns the number of registered calls across all URLs.
func (r *ControllerRegistry) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, calls := range r.records {
		total += len(calls)
	}
	return total
}

func (r *ControllerRegistry) removeLocked(url, id string) (inFlightRecord, bool) {
	calls, ok := r.records[url]
	if !ok {
		return inFlightRecord{}, false
	}
	rec, ok := calls[id]
	if !ok {
		return inFlightRecord{}, false
	}
	delete(calls, id)
	if len(calls) == 0 {
		delete(r.records, url)
	}
	return rec, true
}
