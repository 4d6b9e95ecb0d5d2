package executor

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds how WithRetry retries a transient Executor failure:
// a capped exponential schedule, quickly exhausted rather than hammering a
// dead provider.
type RetryPolicy struct {
	MaxElapsed     time.Duration
	InitialInterval time.Duration
	MaxInterval    time.Duration
}

// DefaultRetryPolicy keeps waits short and jittered; a provider that is
// still down after ten seconds is treated as permanently failed.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxElapsed:      10 * time.Second,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// Classification is the outcome of inspecting an execution failure: whether
// it is worth retrying at all.
type Classification int

const (
	// Permanent errors are never retried: bad request, auth failure, content
	// rejected by provider safety filters.
	Permanent Classification = iota
	// Transient errors are retried under RetryPolicy: connection resets,
	// timeouts, rate limiting.
	Transient
)

// ClassifyError decides whether a failure is worth retrying: context
// cancellation and unknown errors are not, connection-level failures are.
func ClassifyError(err error) Classification {
	if err == nil {
		return Permanent
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Permanent
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Transient
		}
		return Transient
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return Transient
	}
	msg := strings.ToLower(err.Error())
	for _, substr := range []string{"connection refused", "connection reset", "broken pipe", "connection closed", "rate limit", "too many requests", "503", "502", "timeout"} {
		if strings.Contains(msg, substr) {
			return Transient
		}
	}
	return Permanent
}

// WithRetry runs call, retrying transient errors per policy. It returns the
// last Result unconditionally: a permanently-failing or exhausted call still
// produces a populated, Success=false Result rather than a Go error.
func WithRetry(ctx context.Context, policy RetryPolicy, call func(context.Context) Result) Result {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval
	b.MaxElapsedTime = policy.MaxElapsed

	var last Result
	op := func() error {
		last = call(ctx)
		if last.Success {
			return nil
		}
		if ClassifyError(errors.New(last.Error)) == Permanent {
			return backoff.Permanent(errors.New(last.Error))
		}
		return errors.New(last.Error)
	}

	_ = backoff.Retry(op, backoff.WithContext(b, ctx))
	return last
}
