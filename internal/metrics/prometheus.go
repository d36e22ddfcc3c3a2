package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pacefire"

// SchedulerState exposes the live scheduler counters scraped alongside the board.
type SchedulerState interface {
	Ticks() int64
	InFlight() int64
}

// Exporter is a prometheus.Collector that reads the board at scrape time.
type Exporter struct {
	board     *Board
	scheduler SchedulerState

	windowRequests *prometheus.Desc
	lastLatency    *prometheus.Desc
	lastStatus     *prometheus.Desc
	inFlight       *prometheus.Desc
	ticks          *prometheus.Desc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates a collector over board. scheduler may be nil.
func NewExporter(board *Board, scheduler SchedulerState) *Exporter {
	return &Exporter{
		board:     board,
		scheduler: scheduler,
		windowRequests: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "window_requests"),
			"Requests completed within the rolling window.",
			[]string{"endpoint"}, nil,
		),
		lastLatency: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_response_seconds"),
			"Time to response headers of the latest completed request.",
			[]string{"endpoint"}, nil,
		),
		lastStatus: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "last_status_code"),
			"HTTP status code of the latest completed request.",
			[]string{"endpoint"}, nil,
		),
		inFlight: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "inflight_requests"),
			"Requests started but not yet finished.",
			nil, nil,
		),
		ticks: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "ticks_total"),
			"Interval boundaries fired by the scheduler.",
			nil, nil,
		),
	}
}

// NewRegistry returns a registry with the exporter registered.
func NewRegistry(exporter *Exporter) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(exporter)
	return reg
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.windowRequests
	ch <- e.lastLatency
	ch <- e.lastStatus
	ch <- e.inFlight
	ch <- e.ticks
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for _, row := range e.board.Snapshot() {
		ch <- prometheus.MustNewConstMetric(e.windowRequests, prometheus.GaugeValue, float64(row.WindowCount), row.Endpoint)
		if row.StatusCode == 0 {
			continue
		}
		ch <- prometheus.MustNewConstMetric(e.lastLatency, prometheus.GaugeValue, row.Latency.Seconds(), row.Endpoint)
		ch <- prometheus.MustNewConstMetric(e.lastStatus, prometheus.GaugeValue, float64(row.StatusCode), row.Endpoint)
	}
	if e.scheduler != nil {
		ch <- prometheus.MustNewConstMetric(e.inFlight, prometheus.GaugeValue, float64(e.scheduler.InFlight()))
		ch <- prometheus.MustNewConstMetric(e.ticks, prometheus.CounterValue, float64(e.scheduler.Ticks()))
	}
}
