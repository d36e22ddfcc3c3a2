package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is how long the scheduler yields between boundary checks.
	DefaultPollInterval = time.Millisecond
	// DefaultGracefulShutdown bounds how long Run waits for in-flight requests.
	DefaultGracefulShutdown = 5 * time.Second
)

// Requester abstracts executing a single request against one endpoint.
// Implementations should return an error for failed requests.
type Requester interface {
	Do(ctx context.Context, endpoint string) error
}

// RequesterFunc adapts a plain function to the Requester interface.
type RequesterFunc func(ctx context.Context, endpoint string) error

func (f RequesterFunc) Do(ctx context.Context, endpoint string) error {
	return f(ctx, endpoint)
}

// Clock reports elapsed monotonic time since an arbitrary, fixed epoch.
type Clock func() time.Duration

// TickEvent describes one fired boundary.
type TickEvent struct {
	Cycle   int64         // cycle index (elapsed / interval)
	Elapsed time.Duration // clock reading that triggered the tick
	Skipped int64         // cycles missed since the previous tick
}

// Options configure the Scheduler.
type Options struct {
	Requests         int           // requests per period, per endpoint (required)
	Period           time.Duration // period the requests are spread over (required)
	Endpoints        []string      // every tick fires once per endpoint
	Requester        Requester     // request executor (required)
	PollInterval     time.Duration // yield between boundary checks (0 means DefaultPollInterval)
	GracefulShutdown time.Duration // drain window after ctx is done (0 means default, negative cancels immediately)
	Clock            Clock         // optional injection for tests
	OnTick           func(TickEvent)
	Logger           *zap.Logger
}

func (o *Options) normalize() {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.GracefulShutdown == 0 {
		o.GracefulShutdown = DefaultGracefulShutdown
	}
	if o.Clock == nil {
		epoch := time.Now()
		o.Clock = func() time.Duration { return time.Since(epoch) }
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Endpoints = append([]string(nil), o.Endpoints...)
}

// Interval divides period into n equal slots, rounded to the nearest
// nanosecond and never shorter than one nanosecond.
func Interval(period time.Duration, n int) time.Duration {
	if n <= 0 || period <= 0 {
		return period
	}
	ns := (int64(period) + int64(n)/2) / int64(n)
	if ns < 1 {
		ns = 1
	}
	return time.Duration(ns)
}
