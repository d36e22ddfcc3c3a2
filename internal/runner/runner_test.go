package runner_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/torosent/pacefire/internal/runner"
)

// manualClock is advanced explicitly by tests; the scheduler polls it.
type manualClock struct {
	ns atomic.Int64
}

func (c *manualClock) Now() time.Duration { return time.Duration(c.ns.Load()) }

func (c *manualClock) Set(d time.Duration) { c.ns.Store(int64(d)) }

// fire records the clock reading seen by each request.
type fire struct {
	endpoint string
	at       time.Duration
}

type recordingRequester struct {
	clock *manualClock
	mu    sync.Mutex
	fires []fire
}

func (r *recordingRequester) Do(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fires = append(r.fires, fire{endpoint: endpoint, at: r.clock.Now()})
	return nil
}

func (r *recordingRequester) snapshot() []fire {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fire(nil), r.fires...)
}

func (r *recordingRequester) count(endpoint string) int {
	n := 0
	for _, f := range r.snapshot() {
		if f.endpoint == endpoint {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startScheduler(t *testing.T, opts runner.Options) (*runner.Scheduler, func() runner.Result) {
	t.Helper()
	s := runner.New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan runner.Result, 1)
	go func() { done <- s.Run(ctx) }()

	var once sync.Once
	var result runner.Result
	stop := func() runner.Result {
		once.Do(func() {
			cancel()
			select {
			case result = <-done:
			case <-time.After(5 * time.Second):
				t.Fatalf("scheduler did not stop")
			}
		})
		return result
	}
	t.Cleanup(func() { stop() })
	return s, stop
}

func TestSchedulerFiresAtIntervalBoundaries(t *testing.T) {
	clock := &manualClock{}
	req := &recordingRequester{clock: clock}
	s, stop := startScheduler(t, runner.Options{
		Requests:         2,
		Period:           60 * time.Second,
		Endpoints:        []string{"http://a"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: -1,
	})

	if s.Interval() != 30*time.Second {
		t.Fatalf("Interval() = %s, want 30s", s.Interval())
	}

	waitFor(t, "tick at t=0", func() bool { return req.count("http://a") == 1 })

	clock.Set(15 * time.Second)
	time.Sleep(20 * time.Millisecond)
	if got := req.count("http://a"); got != 1 {
		t.Fatalf("fired %d times by t=15s, want 1", got)
	}

	clock.Set(30 * time.Second)
	waitFor(t, "tick at t=30s", func() bool { return req.count("http://a") == 2 })

	clock.Set(59 * time.Second)
	time.Sleep(20 * time.Millisecond)

	res := stop()
	if res.Ticks != 2 {
		t.Fatalf("Ticks = %d, want 2", res.Ticks)
	}
	if res.Fired != 2 {
		t.Fatalf("Fired = %d, want 2", res.Fired)
	}
	fires := req.snapshot()
	if fires[0].at != 0 || fires[1].at != 30*time.Second {
		t.Fatalf("fires at %s and %s, want 0s and 30s", fires[0].at, fires[1].at)
	}
}

func TestSchedulerFiresEndpointsTogether(t *testing.T) {
	clock := &manualClock{}
	req := &recordingRequester{clock: clock}
	_, stop := startScheduler(t, runner.Options{
		Requests:         1,
		Period:           60 * time.Second,
		Endpoints:        []string{"http://a", "http://b"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: -1,
	})

	waitFor(t, "first tick", func() bool { return len(req.snapshot()) == 2 })
	clock.Set(30 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := len(req.snapshot()); got != 2 {
		t.Fatalf("got %d fires before the second boundary, want 2", got)
	}
	clock.Set(60 * time.Second)
	waitFor(t, "second tick", func() bool { return len(req.snapshot()) == 4 })
	stop()

	at := map[string][]time.Duration{}
	for _, f := range req.snapshot() {
		at[f.endpoint] = append(at[f.endpoint], f.at)
	}
	for i := range at["http://a"] {
		if at["http://a"][i] != at["http://b"][i] {
			t.Fatalf("tick %d: a fired at %s, b at %s", i, at["http://a"][i], at["http://b"][i])
		}
	}
}

func TestSchedulerHangingRequestDoesNotBlockTicks(t *testing.T) {
	clock := &manualClock{}
	var okCalls, hangCalls atomic.Int64
	released := make(chan struct{})
	var releasedOnce sync.Once

	req := runner.RequesterFunc(func(ctx context.Context, endpoint string) error {
		if endpoint == "http://hang" {
			hangCalls.Add(1)
			<-ctx.Done()
			releasedOnce.Do(func() { close(released) })
			return ctx.Err()
		}
		okCalls.Add(1)
		return nil
	})

	s, stop := startScheduler(t, runner.Options{
		Requests:         10,
		Period:           10 * time.Second,
		Endpoints:        []string{"http://hang", "http://ok"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: -1,
	})

	for i := 0; i < 3; i++ {
		clock.Set(time.Duration(i) * time.Second)
		want := int64(i + 1)
		waitFor(t, "tick", func() bool { return okCalls.Load() == want && hangCalls.Load() == want })
	}

	waitFor(t, "three hanging requests in flight", func() bool { return s.InFlight() == 3 })

	stop()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("hanging request was not cancelled on shutdown")
	}
}

func TestSchedulerSkipsMissedCycles(t *testing.T) {
	clock := &manualClock{}
	req := &recordingRequester{clock: clock}
	var events []runner.TickEvent
	var mu sync.Mutex

	_, stop := startScheduler(t, runner.Options{
		Requests:         10,
		Period:           10 * time.Second,
		Endpoints:        []string{"http://a"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: -1,
		OnTick: func(ev runner.TickEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})

	waitFor(t, "first tick", func() bool { return req.count("http://a") == 1 })
	// Jump five intervals at once: one fire, four skipped, no catch-up.
	clock.Set(5*time.Second + 10*time.Millisecond)
	waitFor(t, "tick after stall", func() bool { return req.count("http://a") == 2 })
	time.Sleep(20 * time.Millisecond)

	res := stop()
	if res.Fired != 2 {
		t.Fatalf("Fired = %d, want 2", res.Fired)
	}
	if res.Skipped != 4 {
		t.Fatalf("Skipped = %d, want 4", res.Skipped)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 2 || events[1].Cycle != 5 || events[1].Skipped != 4 {
		t.Fatalf("tick events = %+v, want second tick at cycle 5 with 4 skipped", events)
	}
}

func TestSchedulerDrainsInFlightOnShutdown(t *testing.T) {
	clock := &manualClock{}
	var completed atomic.Int64
	started := make(chan struct{}, 1)

	req := runner.RequesterFunc(func(ctx context.Context, _ string) error {
		started <- struct{}{}
		select {
		case <-time.After(50 * time.Millisecond):
			completed.Add(1)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	_, stop := startScheduler(t, runner.Options{
		Requests:         1,
		Period:           time.Hour,
		Endpoints:        []string{"http://a"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: time.Second,
	})

	<-started
	stop()
	if completed.Load() != 1 {
		t.Fatalf("in-flight request was not drained before Run returned")
	}
}

func TestSchedulerGraceWindowCancelsStragglers(t *testing.T) {
	clock := &manualClock{}
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool

	req := runner.RequesterFunc(func(ctx context.Context, _ string) error {
		started <- struct{}{}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	_, stop := startScheduler(t, runner.Options{
		Requests:         1,
		Period:           time.Hour,
		Endpoints:        []string{"http://a"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: 30 * time.Millisecond,
	})

	<-started
	begin := time.Now()
	stop()
	if elapsed := time.Since(begin); elapsed < 30*time.Millisecond {
		t.Fatalf("Run returned after %s, before the grace window", elapsed)
	}
	waitFor(t, "cancellation", cancelled.Load)
}

func TestSchedulerNegativeGraceCancelsImmediately(t *testing.T) {
	clock := &manualClock{}
	started := make(chan struct{}, 1)
	var cancelled atomic.Bool

	req := runner.RequesterFunc(func(ctx context.Context, _ string) error {
		started <- struct{}{}
		<-ctx.Done()
		cancelled.Store(true)
		return ctx.Err()
	})

	_, stop := startScheduler(t, runner.Options{
		Requests:         1,
		Period:           time.Hour,
		Endpoints:        []string{"http://a"},
		Requester:        req,
		Clock:            clock.Now,
		GracefulShutdown: -1,
	})

	<-started
	begin := time.Now()
	stop()
	if elapsed := time.Since(begin); elapsed > time.Second {
		t.Fatalf("Run took %s with a negative grace window", elapsed)
	}
	waitFor(t, "cancellation", cancelled.Load)
}

func TestSchedulerWithRealClock(t *testing.T) {
	var calls atomic.Int64
	req := runner.RequesterFunc(func(context.Context, string) error {
		calls.Add(1)
		return nil
	})

	s := runner.New(runner.Options{
		Requests:  20,
		Period:    200 * time.Millisecond,
		Endpoints: []string{"http://a"},
		Requester: req,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 105*time.Millisecond)
	defer cancel()
	res := s.Run(ctx)

	// Ticks at 0, 10ms, ..., 100ms: about 11, allow scheduling slack.
	if res.Ticks < 8 || res.Ticks > 12 {
		t.Fatalf("Ticks = %d, want about 11", res.Ticks)
	}
	if calls.Load() != res.Fired {
		t.Fatalf("calls = %d, Fired = %d", calls.Load(), res.Fired)
	}
}

func TestWithLoggingReportsFailures(t *testing.T) {
	failure := errors.New("connection refused")
	logger := &captureLogger{}
	req := runner.WithLogging(runner.RequesterFunc(func(_ context.Context, endpoint string) error {
		if endpoint == "http://bad" {
			return failure
		}
		return nil
	}), logger)

	if err := req.Do(context.Background(), "http://good"); err != nil {
		t.Fatalf("Do(good) error = %v", err)
	}
	if err := req.Do(context.Background(), "http://bad"); !errors.Is(err, failure) {
		t.Fatalf("Do(bad) error = %v, want %v", err, failure)
	}
	if len(logger.entries) != 1 || logger.entries[0] != "http://bad" {
		t.Fatalf("logged %v, want [http://bad]", logger.entries)
	}
}

func TestWithLoggingNilLogger(t *testing.T) {
	inner := runner.RequesterFunc(func(context.Context, string) error { return nil })
	if got := runner.WithLogging(inner, nil); got == nil {
		t.Fatal("WithLogging(nil logger) returned nil")
	}
}

type captureLogger struct {
	entries []string
}

func (c *captureLogger) LogFailure(endpoint string, _ error) {
	c.entries = append(c.entries, endpoint)
}
