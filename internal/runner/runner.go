package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Result captures execution summary.
type Result struct {
	Ticks    int64
	Fired    int64
	Skipped  int64
	Duration time.Duration
}

// Scheduler fires one request per endpoint at every interval boundary.
// Requests run as detached goroutines; the scheduler never waits on them
// while running and never bounds how many are in flight.
type Scheduler struct {
	opt      Options
	interval time.Duration
	cycles   cycleDetector

	ticks    atomic.Int64
	fired    atomic.Int64
	skipped  atomic.Int64
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

func New(opt Options) *Scheduler {
	opt.normalize()
	interval := Interval(opt.Period, opt.Requests)
	return &Scheduler{
		opt:      opt,
		interval: interval,
		cycles:   cycleDetector{interval: interval},
	}
}

// Interval returns the time between ticks.
func (s *Scheduler) Interval() time.Duration { return s.interval }

// Ticks returns the number of boundaries fired so far.
func (s *Scheduler) Ticks() int64 { return s.ticks.Load() }

// InFlight returns the number of requests started but not yet finished.
func (s *Scheduler) InFlight() int64 { return s.inFlight.Load() }

// Run polls for interval boundaries until ctx is done. It then waits up to
// the graceful shutdown window for in-flight requests before cancelling
// them. Run must not be called more than once.
func (s *Scheduler) Run(ctx context.Context) Result {
	start := time.Now()

	// Requests outlive ctx so they can drain; they stop on cancelRequests.
	reqCtx, cancelRequests := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRequests()

	s.opt.Logger.Info("scheduler started",
		zap.Int("requests", s.opt.Requests),
		zap.Duration("period", s.opt.Period),
		zap.Duration("interval", s.interval),
		zap.Strings("endpoints", s.opt.Endpoints))

	ticker := time.NewTicker(s.opt.PollInterval)
	defer ticker.Stop()

	for {
		s.poll(reqCtx)
		select {
		case <-ctx.Done():
			s.drain(cancelRequests)
			result := Result{
				Ticks:    s.ticks.Load(),
				Fired:    s.fired.Load(),
				Skipped:  s.skipped.Load(),
				Duration: time.Since(start),
			}
			s.opt.Logger.Info("scheduler stopped",
				zap.Int64("ticks", result.Ticks),
				zap.Int64("fired", result.Fired),
				zap.Int64("skipped", result.Skipped),
				zap.Duration("duration", result.Duration))
			return result
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) poll(ctx context.Context) {
	elapsed := s.opt.Clock()
	fire, skipped := s.cycles.advance(elapsed)
	if !fire {
		return
	}
	if skipped > 0 {
		s.skipped.Add(skipped)
		s.opt.Logger.Debug("scheduler stalled, cycles skipped",
			zap.Int64("skipped", skipped),
			zap.Duration("interval", s.interval))
	}
	s.ticks.Add(1)

	for _, endpoint := range s.opt.Endpoints {
		s.launch(ctx, endpoint)
	}

	if s.opt.OnTick != nil {
		s.opt.OnTick(TickEvent{Cycle: s.cycles.current, Elapsed: elapsed, Skipped: skipped})
	}
}

func (s *Scheduler) launch(ctx context.Context, endpoint string) {
	s.fired.Add(1)
	s.inFlight.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.inFlight.Add(-1)
		if s.opt.Requester != nil {
			_ = s.opt.Requester.Do(ctx, endpoint)
		}
	}()
}

func (s *Scheduler) drain(cancel context.CancelFunc) {
	grace := s.opt.GracefulShutdown
	if grace < 0 || s.inFlight.Load() == 0 {
		cancel()
		return
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.opt.Logger.Warn("graceful shutdown window elapsed, cancelling in-flight requests",
			zap.Int64("in_flight", s.inFlight.Load()))
	}
	cancel()
}

// cycleDetector turns clock readings into tick decisions. A boundary fires
// at most once; cycles missed during a stall are skipped, never replayed.
type cycleDetector struct {
	interval time.Duration
	current  int64
	started  bool
}

func (c *cycleDetector) advance(elapsed time.Duration) (fire bool, skipped int64) {
	if c.interval <= 0 {
		return false, 0
	}
	cycle := int64(elapsed / c.interval)
	if !c.started {
		c.started = true
		c.current = cycle
		return true, 0
	}
	if cycle <= c.current {
		return false, 0
	}
	skipped = cycle - c.current - 1
	c.current = cycle
	return true, skipped
}
