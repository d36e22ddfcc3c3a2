package window

import (
	"sort"
	"sync"
	"time"
)

// DefaultRetention is the rolling window width used for "requests per minute".
const DefaultRetention = time.Minute

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides the clock used to decide which events are stale.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// WithEndpoints pre-populates windows for a fixed endpoint set.
func WithEndpoints(endpoints ...string) Option {
	return func(t *Tracker) {
		for _, ep := range endpoints {
			if _, ok := t.windows[ep]; !ok {
				t.windows[ep] = &rollingWindow{}
			}
		}
	}
}

// Tracker keeps, per endpoint, the completion timestamps that fall inside
// the retention duration. It is safe for concurrent use.
type Tracker struct {
	retention time.Duration
	now       func() time.Time

	mu      sync.RWMutex
	windows map[string]*rollingWindow
}

type rollingWindow struct {
	mu     sync.Mutex
	events []time.Time
}

// NewTracker creates a tracker with the given retention. A non-positive
// retention treats every event as immediately stale.
func NewTracker(retention time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		retention: retention,
		now:       time.Now,
		windows:   make(map[string]*rollingWindow),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Retention returns the configured window width.
func (t *Tracker) Retention() time.Duration {
	return t.retention
}

// Record appends a completion for endpoint and prunes stale entries. The
// returned count includes the event just recorded when it is still in range.
func (t *Tracker) Record(endpoint string, ts time.Time) int {
	w := t.window(endpoint)
	w.mu.Lock()
	defer w.mu.Unlock()

	if t.retention > 0 {
		w.events = append(w.events, ts)
	}
	return w.prune(t.cutoff())
}

// Count prunes the endpoint's window and returns the number of completions
// left in it.
func (t *Tracker) Count(endpoint string) int {
	t.mu.RLock()
	w, ok := t.windows[endpoint]
	t.mu.RUnlock()
	if !ok {
		return 0
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prune(t.cutoff())
}

// Endpoints lists every endpoint with a window, sorted.
func (t *Tracker) Endpoints() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.windows))
	for name := range t.windows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns the pruned count of every known endpoint.
func (t *Tracker) Snapshot() map[string]int {
	names := t.Endpoints()
	counts := make(map[string]int, len(names))
	for _, name := range names {
		counts[name] = t.Count(name)
	}
	return counts
}

func (t *Tracker) window(endpoint string) *rollingWindow {
	t.mu.RLock()
	w, ok := t.windows[endpoint]
	t.mu.RUnlock()
	if ok {
		return w
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if w, ok = t.windows[endpoint]; ok {
		return w
	}
	w = &rollingWindow{}
	t.windows[endpoint] = w
	return w
}

// cutoff is sampled at call time so delayed callers never extend the window.
func (t *Tracker) cutoff() time.Time {
	return t.now().Add(-t.retention)
}

// prune drops events older than cutoff. Completions can be recorded slightly
// out of order, so every entry is checked rather than only the head.
func (w *rollingWindow) prune(cutoff time.Time) int {
	kept := w.events[:0]
	for _, ts := range w.events {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	for i := len(kept); i < len(w.events); i++ {
		w.events[i] = time.Time{}
	}
	w.events = kept
	if len(w.events) == 0 {
		w.events = nil
	}
	return len(w.events)
}
