package runner

import "context"

// FailureLogger logs failed requests.
type FailureLogger interface {
	LogFailure(endpoint string, err error)
}

// loggingRequester wraps a Requester with failure logging.
type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log failures.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{
		inner:  req,
		logger: logger,
	}
}

func (l *loggingRequester) Do(ctx context.Context, endpoint string) error {
	err := l.inner.Do(ctx, endpoint)
	if err != nil && l.logger != nil {
		l.logger.LogFailure(endpoint, err)
	}
	return err
}
