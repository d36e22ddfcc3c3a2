package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/torosent/pacefire/internal/metrics"
)

// Summary is the end-of-run report.
type Summary struct {
	RunID     string                     `json:"run_id"`
	Requests  int                        `json:"requests"`
	Period    time.Duration              `json:"-"`
	Interval  time.Duration              `json:"-"`
	Retention time.Duration              `json:"-"`
	Duration  time.Duration              `json:"-"`
	Ticks     int64                      `json:"ticks"`
	Fired     int64                      `json:"fired"`
	Skipped   int64                      `json:"skipped_cycles"`
	Endpoints []metrics.EndpointSnapshot `json:"endpoints"`
}

// PrintSummary renders s as a table.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\n--- pacefire run %s ---\n", s.RunID)
	fmt.Fprintf(w, "Pacing:     %d requests / %s per endpoint (every %s)\n", s.Requests, s.Period, s.Interval)
	fmt.Fprintf(w, "Duration:   %s\n", s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Ticks:      %d (%d skipped)\n", s.Ticks, s.Skipped)
	fmt.Fprintf(w, "Requests:   %d started\n\n", s.Fired)

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Endpoint", "Requests/" + WindowLabel(s.Retention), "Last Status", "Last Latency (ms)", "Last Error"})
	for _, row := range s.Endpoints {
		t.AppendRow(table.Row{
			row.Endpoint,
			row.WindowCount,
			statusText(row.StatusCode),
			latencyText(row),
			row.LastError,
		})
	}
	fmt.Fprintln(w, t.Render())
}

// PrintJSONSummary writes s as indented JSON.
func PrintJSONSummary(w io.Writer, s Summary) error {
	view := struct {
		Summary
		Period    string  `json:"period"`
		Interval  string  `json:"interval"`
		Window    string  `json:"window"`
		ElapsedMs float64 `json:"elapsed_ms"`
	}{
		Summary:   s,
		Period:    s.Period.String(),
		Interval:  s.Interval.String(),
		Window:    s.Retention.String(),
		ElapsedMs: LatencyMs(s.Duration),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func statusText(code int) string {
	if code == 0 {
		return "-"
	}
	return strconv.Itoa(code)
}

func latencyText(row metrics.EndpointSnapshot) string {
	if row.StatusCode == 0 {
		return "-"
	}
	return strconv.FormatFloat(row.LatencyMs, 'f', 2, 64)
}
