// Package window tracks recent request completions per endpoint.
//
// A [Tracker] keeps one rolling window of completion timestamps for every
// endpoint it has seen. Stale entries are pruned lazily whenever a window is
// written or read, so the tracker never runs a background sweep:
//
//	tracker := window.NewTracker(window.DefaultRetention)
//	n := tracker.Record("https://example.com", time.Now())
//	fmt.Printf("requests/m: %d\n", n)
package window
