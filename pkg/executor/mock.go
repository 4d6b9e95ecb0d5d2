package executor

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

// Mock is an Executor used by tests and local runs without a configured
// provider. Its only state is the Calls counter. It fails only when ctx is
// done before Latency elapses, and otherwise echoes enough structure back
// (including a vote token when the prompt looks like an output-generation
// or finalizer-voting turn) that the router and summarizer can be exercised
// end to end without a live model behind them.
type Mock struct {
	AgentID string
	Latency time.Duration
	// VoteFor, if set, is the agent id this mock always votes for on a
	// voting turn. Tests use it to drive a deterministic tally; a zero
	// value falls back to nextAgentAfter.
	VoteFor string
	// Calls counts Execute invocations; tests use it to assert on
	// deduplication of concurrent identical requests.
	Calls atomic.Int64
}

// Execute implements Executor. It never returns a Go error across the
// boundary: every outcome is folded into the returned Result.
func (m *Mock) Execute(ctx context.Context, prompt, personality string) Result {
	m.Calls.Add(1)
	start := time.Now()
	select {
	case <-ctx.Done():
		return Result{Success: false, Error: ctx.Err().Error(), Duration: time.Since(start)}
	case <-time.After(m.Latency):
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] responding as %s: ", m.AgentID, firstLine(personality))
	b.WriteString(summarizePrompt(prompt))

	if looksLikeVotingTurn(prompt) {
		target := m.VoteFor
		if target == "" {
			target = nextAgentAfter(m.AgentID)
		}
		fmt.Fprintf(&b, "\n\nVote: %s", target)
	}

	return Result{
		Content:  Sanitize(b.String()),
		Model:    "mock",
		Duration: time.Since(start),
		Success:  true,
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}

func summarizePrompt(prompt string) string {
	trimmed := strings.TrimSpace(prompt)
	if len(trimmed) > 120 {
		trimmed = trimmed[:120] + "..."
	}
	return "acknowledging: " + trimmed
}

func looksLikeVotingTurn(prompt string) bool {
	lower := strings.ToLower(prompt)
	return strings.Contains(lower, "output-generation") || strings.Contains(lower, "vote") || strings.Contains(lower, "finaliz")
}

// nextAgentAfter is a deterministic placeholder vote target; real agent
// registries resolve this against the actual participant list.
func nextAgentAfter(agentID string) string {
	return "agent-" + agentID
}
