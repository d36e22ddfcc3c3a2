// Package runner provides the cycle scheduler that paces pacefire's requests.
//
// The period is divided into n equal intervals. The scheduler polls a
// monotonic clock and, whenever elapsed/interval moves to a new cycle, fires
// one request per configured endpoint:
//   - Every endpoint gets n requests per period (not n split across endpoints)
//   - All endpoints fire on the same tick
//   - Requests run as detached goroutines and never delay the next tick
//   - Cycles missed during a stall are skipped rather than caught up
//
// # Basic Usage
//
//	s := runner.New(runner.Options{
//		Requests:  2,
//		Period:    time.Minute,
//		Endpoints: []string{"https://example.com"},
//		Requester: myRequester,
//	})
//	result := s.Run(ctx)
//
// # Requester Interface
//
// The [Requester] interface defines what a tick executes:
//
//	type Requester interface {
//		Do(ctx context.Context, endpoint string) error
//	}
//
// # Middleware
//
// [WithLogging] reports failed executions to a [FailureLogger]. The scheduler
// itself discards every returned error.
//
// # Shutdown
//
// Run returns once its context is done and in-flight requests have finished
// or [Options.GracefulShutdown] has elapsed, whichever comes first.
package runner
