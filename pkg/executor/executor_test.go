package executor

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitize_StripsThinkingTagsAndTrims(t *testing.T) {
	in := "  <thinking>internal chain of thought</thinking>\nThe answer is 42.  "
	assert.Equal(t, "The answer is 42.", Sanitize(in))

	in = "<think>short form</think>before <think>again</think>after"
	assert.Equal(t, "before after", Sanitize(in))
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Classification
	}{
		{"nil", nil, Permanent},
		{"context canceled", context.Canceled, Permanent},
		{"deadline exceeded", context.DeadlineExceeded, Permanent},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connection refused"), Transient},
		{"connection reset", errors.New("read: connection reset by peer"), Transient},
		{"rate limited", errors.New("429 too many requests"), Transient},
		{"unexpected eof", io.ErrUnexpectedEOF, Transient},
		{"auth failure", errors.New("invalid api key"), Permanent},
		{"model not found", errors.New("model not found: nope-70b"), Permanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

// flaky fails with a transient error a fixed number of times before
// succeeding, counting every attempt.
type flaky struct {
	failuresLeft int
	attempts     int
}

func (f *flaky) call(ctx context.Context) Result {
	f.attempts++
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return Result{Success: false, Error: "read: connection reset by peer"}
	}
	return Result{Success: true, Content: "recovered", Model: "test"}
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxElapsed:      200 * time.Millisecond,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func TestWithRetry_TransientFailureThenSuccess(t *testing.T) {
	f := &flaky{failuresLeft: 1}
	result := WithRetry(context.Background(), fastPolicy(), f.call)

	require.True(t, result.Success)
	assert.Equal(t, "recovered", result.Content)
	assert.Equal(t, 2, f.attempts, "one failed attempt plus one successful retry")
}

func TestWithRetry_PermanentErrorShortCircuits(t *testing.T) {
	attempts := 0
	result := WithRetry(context.Background(), fastPolicy(), func(ctx context.Context) Result {
		attempts++
		return Result{Success: false, Error: "authentication failed"}
	})

	assert.False(t, result.Success)
	assert.Equal(t, 1, attempts, "a permanent error must not be retried")
}

func TestWithRetry_ExhaustionReturnsLastResult(t *testing.T) {
	result := WithRetry(context.Background(), fastPolicy(), func(ctx context.Context) Result {
		return Result{Success: false, Error: "connection refused"}
	})

	assert.False(t, result.Success)
	assert.Equal(t, "connection refused", result.Error, "an exhausted retry still yields a populated result, never a panic")
}

func TestMock_EmitsVoteTokenOnVotingPrompt(t *testing.T) {
	m := &Mock{AgentID: "alpha", VoteFor: "beta"}

	result := m.Execute(context.Background(), "Produce your candidate final answer, then vote for a participant.", "terse")
	require.True(t, result.Success)
	assert.Contains(t, result.Content, "Vote: beta")
	assert.Equal(t, int64(1), m.Calls.Load())

	plain := m.Execute(context.Background(), "Share your first-pass thinking.", "terse")
	assert.NotContains(t, plain.Content, "Vote:")
}
