// Package httpclient issues the GET requests pacefire schedules.
//
// [NewClient] builds an *http.Client with a transport sized for many short
// concurrent requests and keep-alive reuse. [Executor] performs a single
// request per call and records the outcome:
//
//	tracker := window.NewTracker(time.Minute)
//	exec := httpclient.NewExecutor(httpclient.NewClient(30*time.Second), tracker,
//		httpclient.WithSink(output.NewLineWriter(os.Stdout, time.Minute, false, runID)),
//	)
//	err := exec.Do(ctx, "https://example.com/health")
//
// Latency is measured until response headers arrive. The body is drained
// afterwards so the connection can be reused, and that time is not counted.
package httpclient
