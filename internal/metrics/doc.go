// Package metrics holds the live per-endpoint view reported by pacefire.
//
// Reporting is deliberately narrow: the rolling completion count from
// [window.Tracker] plus the latest status code, latency and transport error
// seen for each endpoint. No percentiles or histograms are kept.
//
// # Board
//
// The [Board] stores the latest [Observation] per endpoint:
//
//	board := metrics.NewBoard(tracker)
//	board.Observe("https://example.com", 200, latency, time.Now())
//	rows := board.Snapshot()
//
// # Prometheus
//
// [Exporter] implements prometheus.Collector over a board and reads it at
// scrape time, so nothing is double-counted:
//
//	reg := metrics.NewRegistry(metrics.NewExporter(board, scheduler))
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
