package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/torosent/pacefire/internal/metrics"
	"github.com/torosent/pacefire/internal/output"
	"github.com/torosent/pacefire/internal/tracing"
	"github.com/torosent/pacefire/internal/window"
)

// maxDrainBytes bounds how much of a response body is read to allow
// connection reuse.
const maxDrainBytes = 1 << 20

// Executor performs one GET per call and records the outcome.
// It implements runner.Requester.
type Executor struct {
	client    *http.Client
	tracker   *window.Tracker
	board     *metrics.Board
	sink      output.Sink
	tracer    trace.Tracer
	propagate bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBoard records latest observations on board.
func WithBoard(board *metrics.Board) ExecutorOption {
	return func(e *Executor) { e.board = board }
}

// WithSink sends a line per completed request to sink.
func WithSink(sink output.Sink) ExecutorOption {
	return func(e *Executor) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithTracer wraps each request in a client span. When propagate is set the
// W3C trace context is injected into the request headers.
func WithTracer(tracer trace.Tracer, propagate bool) ExecutorOption {
	return func(e *Executor) {
		if tracer != nil {
			e.tracer = tracer
		}
		e.propagate = propagate
	}
}

// NewExecutor creates an executor recording completions in tracker.
func NewExecutor(client *http.Client, tracker *window.Tracker, opts ...ExecutorOption) *Executor {
	if client == nil {
		client = NewClient(0)
	}
	e := &Executor{
		client:  client,
		tracker: tracker,
		sink:    output.Discard,
		tracer:  noop.NewTracerProvider().Tracer("pacefire"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do issues a GET to endpoint. Any HTTP response, whatever its status,
// counts as a completion: it is recorded in the rolling window and emitted.
// Transport failures are returned without being recorded.
func (e *Executor) Do(ctx context.Context, endpoint string) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := tracing.StartRequestSpan(ctx, e.tracer, endpoint)
	statusCode := 0
	defer func() { tracing.EndSpan(span, statusCode, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		e.fail(endpoint, err, time.Now())
		return fmt.Errorf("build request: %w", err)
	}
	if e.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	completedAt := time.Now()
	if err != nil {
		e.fail(endpoint, err, completedAt)
		return err
	}
	defer drain(resp.Body)

	latency := completedAt.Sub(start)
	statusCode = resp.StatusCode

	count := e.tracker.Record(endpoint, completedAt)
	if e.board != nil {
		e.board.Observe(endpoint, statusCode, latency, completedAt)
	}
	e.sink.Emit(output.Line{
		Endpoint:    endpoint,
		StatusCode:  statusCode,
		Latency:     latency,
		WindowCount: count,
		CompletedAt: completedAt,
	})
	return nil
}

func (e *Executor) fail(endpoint string, err error, at time.Time) {
	if e.board != nil {
		e.board.ObserveFailure(endpoint, err, at)
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxDrainBytes))
	_ = body.Close()
}
