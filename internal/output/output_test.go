package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/torosent/pacefire/internal/metrics"
	"github.com/torosent/pacefire/internal/output"
)

func TestFormatLine(t *testing.T) {
	tests := []struct {
		name  string
		line  output.Line
		label string
		want  string
	}{
		{
			name:  "default window",
			line:  output.Line{Endpoint: "http://a.test", StatusCode: 200, Latency: 12500 * time.Microsecond, WindowCount: 3},
			label: "m",
			want:  "[http://a.test] status code: 200 | response time, ms: 12.5 | requests/m: 3",
		},
		{
			name:  "server error with custom window",
			line:  output.Line{Endpoint: "http://b.test", StatusCode: 503, Latency: 1234567 * time.Nanosecond, WindowCount: 1},
			label: "30s",
			want:  "[http://b.test] status code: 503 | response time, ms: 1.234567 | requests/30s: 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := output.FormatLine(tt.line, tt.label); got != tt.want {
				t.Errorf("FormatLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWindowLabel(t *testing.T) {
	if got := output.WindowLabel(time.Minute); got != "m" {
		t.Errorf("WindowLabel(1m) = %q, want m", got)
	}
	if got := output.WindowLabel(30 * time.Second); got != "30s" {
		t.Errorf("WindowLabel(30s) = %q, want 30s", got)
	}
}

func TestLineWriterText(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewLineWriter(&buf, time.Minute, false, "run")
	w.Emit(output.Line{Endpoint: "http://a.test", StatusCode: 404, Latency: 2 * time.Millisecond, WindowCount: 7})

	want := "[http://a.test] status code: 404 | response time, ms: 2 | requests/m: 7\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestLineWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewLineWriter(&buf, 30*time.Second, true, "01HZXRUN")
	completed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	w.Emit(output.Line{Endpoint: "http://a.test", StatusCode: 200, Latency: 1500 * time.Microsecond, WindowCount: 2, CompletedAt: completed})

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON line %q: %v", buf.String(), err)
	}
	checks := map[string]interface{}{
		"run_id":           "01HZXRUN",
		"endpoint":         "http://a.test",
		"status_code":      float64(200),
		"response_time_ms": 1.5,
		"window_count":     float64(2),
		"window":           "30s",
		"completed_at":     "2024-05-01T12:00:00Z",
	}
	for k, v := range checks {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}
}

func TestLineWriterConcurrentLinesDoNotInterleave(t *testing.T) {
	var buf bytes.Buffer
	w := output.NewLineWriter(&buf, time.Minute, false, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				w.Emit(output.Line{Endpoint: "http://a.test", StatusCode: 200, Latency: time.Millisecond, WindowCount: j})
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1000 {
		t.Fatalf("expected 1000 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[http://a.test] status code: 200") {
			t.Fatalf("corrupted line %q", line)
		}
	}
}

func sampleSummary() output.Summary {
	return output.Summary{
		RunID:     "01HZXRUN",
		Requests:  2,
		Period:    time.Minute,
		Interval:  30 * time.Second,
		Retention: time.Minute,
		Duration:  90 * time.Second,
		Ticks:     4,
		Fired:     8,
		Skipped:   1,
		Endpoints: []metrics.EndpointSnapshot{
			{Endpoint: "http://a.test", WindowCount: 2, StatusCode: 200, LatencyMs: 12.346},
			{Endpoint: "http://b.test", LastError: "Connection refused"},
		},
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	output.PrintSummary(&buf, sampleSummary())
	out := buf.String()

	for _, want := range []string{
		"01HZXRUN",
		"2 requests / 1m0s per endpoint (every 30s)",
		"4 (1 skipped)",
		"Requests/m",
		"http://a.test",
		"12.35",
		"Connection refused",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestPrintJSONSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := output.PrintJSONSummary(&buf, sampleSummary()); err != nil {
		t.Fatalf("PrintJSONSummary() error = %v", err)
	}

	var got struct {
		RunID     string                   `json:"run_id"`
		Interval  string                   `json:"interval"`
		Window    string                   `json:"window"`
		Skipped   int64                    `json:"skipped_cycles"`
		Endpoints []map[string]interface{} `json:"endpoints"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.RunID != "01HZXRUN" || got.Interval != "30s" || got.Window != "1m0s" || got.Skipped != 1 {
		t.Errorf("unexpected summary: %+v", got)
	}
	if len(got.Endpoints) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(got.Endpoints))
	}
}

func TestDiscardSink(t *testing.T) {
	output.Discard.Emit(output.Line{Endpoint: "http://a.test"})
}
