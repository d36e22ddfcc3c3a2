package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/torosent/pacefire/internal/window"
)

// Observation is the latest outcome seen for an endpoint.
type Observation struct {
	StatusCode  int
	Latency     time.Duration
	CompletedAt time.Time
	LastError   string
	ErrorAt     time.Time
}

// EndpointSnapshot combines an endpoint's rolling count with its latest observation.
type EndpointSnapshot struct {
	Endpoint    string        `json:"endpoint"`
	WindowCount int           `json:"window_count"`
	StatusCode  int           `json:"last_status_code,omitempty"`
	LatencyMs   float64       `json:"last_response_time_ms,omitempty"`
	Latency     time.Duration `json:"-"`
	CompletedAt time.Time     `json:"last_completed_at,omitzero"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt time.Time     `json:"last_error_at,omitzero"`
}

// Board records the latest observation per endpoint in a thread-safe manner.
type Board struct {
	tracker *window.Tracker

	mu           sync.Mutex
	observations map[string]*Observation
}

// NewBoard creates a board reading rolling counts from tracker.
func NewBoard(tracker *window.Tracker) *Board {
	return &Board{
		tracker:      tracker,
		observations: make(map[string]*Observation),
	}
}

// Observe stores a completed response.
func (b *Board) Observe(endpoint string, statusCode int, latency time.Duration, completedAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obs := b.observation(endpoint)
	obs.StatusCode = statusCode
	obs.Latency = latency
	obs.CompletedAt = completedAt
}

// ObserveFailure stores a transport failure. Failures do not touch the rolling count.
func (b *Board) ObserveFailure(endpoint string, err error, at time.Time) {
	if err == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	obs := b.observation(endpoint)
	obs.LastError = ErrorLabel(err)
	obs.ErrorAt = at
}

// Latest returns the latest observation for endpoint.
func (b *Board) Latest(endpoint string) (Observation, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	obs, ok := b.observations[endpoint]
	if !ok {
		return Observation{}, false
	}
	return *obs, true
}

// Snapshot returns one row per endpoint known to the tracker or the board,
// sorted by endpoint.
func (b *Board) Snapshot() []EndpointSnapshot {
	var counts map[string]int
	if b.tracker != nil {
		counts = b.tracker.Snapshot()
	}

	b.mu.Lock()
	names := make(map[string]struct{}, len(counts)+len(b.observations))
	for name := range counts {
		names[name] = struct{}{}
	}
	for name := range b.observations {
		names[name] = struct{}{}
	}

	rows := make([]EndpointSnapshot, 0, len(names))
	for name := range names {
		row := EndpointSnapshot{Endpoint: name, WindowCount: counts[name]}
		if obs, ok := b.observations[name]; ok {
			row.StatusCode = obs.StatusCode
			row.Latency = obs.Latency
			row.LatencyMs = float64(obs.Latency) / float64(time.Millisecond)
			row.CompletedAt = obs.CompletedAt
			row.LastError = obs.LastError
			row.LastErrorAt = obs.ErrorAt
		}
		rows = append(rows, row)
	}
	b.mu.Unlock()

	sort.Slice(rows, func(i, j int) bool { return rows[i].Endpoint < rows[j].Endpoint })
	return rows
}

func (b *Board) observation(endpoint string) *Observation {
	obs, ok := b.observations[endpoint]
	if !ok {
		obs = &Observation{}
		b.observations[endpoint] = obs
	}
	return obs
}
