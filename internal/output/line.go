package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// Line describes one completed request.
type Line struct {
	Endpoint    string
	StatusCode  int
	Latency     time.Duration
	WindowCount int
	CompletedAt time.Time
}

// Sink receives completed requests.
type Sink interface {
	Emit(Line)
}

type discard struct{}

func (discard) Emit(Line) {}

// Discard is a Sink that drops every line.
var Discard Sink = discard{}

// LatencyMs converts d to fractional milliseconds at nanosecond precision.
func LatencyMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// WindowLabel names the rolling window in the text output: "m" for the
// default one minute retention, otherwise the duration itself.
func WindowLabel(retention time.Duration) string {
	if retention == time.Minute {
		return "m"
	}
	return retention.String()
}

// FormatLine renders l in the plain text layout.
func FormatLine(l Line, windowLabel string) string {
	return fmt.Sprintf("[%s] status code: %d | response time, ms: %s | requests/%s: %d",
		l.Endpoint,
		l.StatusCode,
		strconv.FormatFloat(LatencyMs(l.Latency), 'f', -1, 64),
		windowLabel,
		l.WindowCount,
	)
}

type jsonLine struct {
	RunID          string    `json:"run_id,omitempty"`
	Endpoint       string    `json:"endpoint"`
	StatusCode     int       `json:"status_code"`
	ResponseTimeMs float64   `json:"response_time_ms"`
	WindowCount    int       `json:"window_count"`
	Window         string    `json:"window"`
	CompletedAt    time.Time `json:"completed_at"`
}

// LineWriter writes one line per completed request. Writes are serialized
// so concurrent completions never interleave.
type LineWriter struct {
	mu        sync.Mutex
	w         io.Writer
	enc       *json.Encoder
	runID     string
	retention time.Duration
	label     string
}

// NewLineWriter returns a text writer, or a JSON lines writer when asJSON is set.
func NewLineWriter(w io.Writer, retention time.Duration, asJSON bool, runID string) *LineWriter {
	if w == nil {
		w = io.Discard
	}
	lw := &LineWriter{
		w:         w,
		runID:     runID,
		retention: retention,
		label:     WindowLabel(retention),
	}
	if asJSON {
		lw.enc = json.NewEncoder(w)
	}
	return lw
}

// Emit writes l. Write errors are ignored; stdout going away must not stop
// the run.
func (lw *LineWriter) Emit(l Line) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.enc != nil {
		_ = lw.enc.Encode(jsonLine{
			RunID:          lw.runID,
			Endpoint:       l.Endpoint,
			StatusCode:     l.StatusCode,
			ResponseTimeMs: LatencyMs(l.Latency),
			WindowCount:    l.WindowCount,
			Window:         lw.retention.String(),
			CompletedAt:    l.CompletedAt.UTC(),
		})
		return
	}
	fmt.Fprintln(lw.w, FormatLine(l, lw.label))
}
