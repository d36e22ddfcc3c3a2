package dashboard

import (
	"strings"
	"testing"
	"time"

	"github.com/torosent/pacefire/internal/metrics"
)

func TestFormatEndpointRows(t *testing.T) {
	rows := formatEndpointRows([]metrics.EndpointSnapshot{
		{Endpoint: "http://a.test", WindowCount: 4, StatusCode: 200, LatencyMs: 12.346},
		{Endpoint: "http://b.test", LastError: "Timeout"},
	}, "m")

	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(rows))
	}
	if rows[0][1] != "Requests/m" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"http://a.test", "4", "200", "12.35"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("row[1][%d] = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][2] != "-" || rows[2][3] != "-" {
		t.Errorf("endpoint without a response should show dashes, got %v", rows[2])
	}
}

func TestFormatEndpointRowsEmpty(t *testing.T) {
	rows := formatEndpointRows(nil, "30s")
	if len(rows) != 2 || rows[1][0] != "Awaiting data" || rows[0][1] != "Requests/30s" {
		t.Fatalf("unexpected rows %v", rows)
	}
}

func TestFormatErrorRows(t *testing.T) {
	if got := formatErrorRows(nil); len(got) != 1 || !strings.Contains(got[0], "No failures") {
		t.Fatalf("formatErrorRows(nil) = %v", got)
	}

	at := time.Date(2024, 1, 1, 10, 11, 12, 0, time.UTC)
	got := formatErrorRows([]metrics.EndpointSnapshot{
		{Endpoint: "http://a.test"},
		{Endpoint: "http://b.test", LastError: "Connection refused", LastErrorAt: at},
	})
	if len(got) != 1 {
		t.Fatalf("expected 1 error row, got %v", got)
	}
	for _, want := range []string{"http://b.test", "Connection refused", "10:11:12"} {
		if !strings.Contains(got[0], want) {
			t.Errorf("row %q missing %q", got[0], want)
		}
	}
}

func TestFormatRunParams(t *testing.T) {
	got := formatRunParams(RunInfo{RunID: "01HZX", Requests: 2, Period: time.Minute, Timeout: 5 * time.Second}, 30*time.Second)
	want := "Run: 01HZX | Pacing: 2 per 1m0s per endpoint | Interval: 30s | Timeout: 5s"
	if got != want {
		t.Errorf("formatRunParams() = %q, want %q", got, want)
	}

	got = formatRunParams(RunInfo{RunID: "01HZX", Requests: 1, Period: time.Second}, 0)
	if strings.Contains(got, "Interval") || strings.Contains(got, "Timeout") {
		t.Errorf("zero values should be omitted, got %q", got)
	}
}

func TestAppendHistory(t *testing.T) {
	var h []float64
	for i := 0; i < 5; i++ {
		h = appendHistory(h, float64(i), 3)
	}
	if len(h) != 3 || h[0] != 2 || h[2] != 4 {
		t.Fatalf("appendHistory kept %v, want [2 3 4]", h)
	}
}
