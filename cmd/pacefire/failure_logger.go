package main

import (
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/torosent/pacefire/internal/metrics"
)

const (
	failureLogRate  = rate.Limit(10)
	failureLogBurst = 20
)

// failureLogger logs transport failures through zap, throttled so a dead
// endpoint at a high request rate cannot flood stderr. Dropped entries are
// counted and reported with the next entry that gets through.
type failureLogger struct {
	logger     *zap.Logger
	limiter    *rate.Limiter
	suppressed atomic.Int64
}

func newFailureLogger(logger *zap.Logger, limit rate.Limit, burst int) *failureLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &failureLogger{
		logger:  logger,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (l *failureLogger) LogFailure(endpoint string, err error) {
	if !l.limiter.Allow() {
		l.suppressed.Add(1)
		return
	}
	fields := []zap.Field{
		zap.String("endpoint", endpoint),
		zap.String("reason", metrics.ErrorLabel(err)),
		zap.Error(err),
	}
	if n := l.suppressed.Swap(0); n > 0 {
		fields = append(fields, zap.Int64("suppressed", n))
	}
	l.logger.Warn("request failed", fields...)
}

// Flush reports failures that were dropped since the last logged entry.
func (l *failureLogger) Flush() {
	if n := l.suppressed.Swap(0); n > 0 {
		l.logger.Warn("request failures suppressed", zap.Int64("suppressed", n))
	}
}
