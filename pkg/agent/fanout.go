package agent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dialogcore/engine/pkg/models"
)

// FanoutResult pairs a stage call's output with the agent that produced it,
// delivered to the caller in completion order — not dispatch order.
type FanoutResult struct {
	Agent    *Agent
	Response models.AgentResponse
}

// Fanout runs call once per agent concurrently, bounded to maxConcurrent
// in-flight calls, and streams results back on the returned channel in
// completion order as each call finishes. The channel is closed once every
// agent has reported. The buffered results channel decouples goroutine
// completion from consumption, so a slow consumer never blocks an agent.
func Fanout(ctx context.Context, agents []*Agent, maxConcurrent int, call func(context.Context, *Agent) models.AgentResponse) <-chan FanoutResult {
	if maxConcurrent <= 0 {
		maxConcurrent = len(agents)
	}
	results := make(chan FanoutResult, len(agents))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrent)
	for _, a := range agents {
		a := a
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results <- FanoutResult{Agent: a, Response: models.AgentResponse{
					AgentID:   a.Descriptor().ID,
					StageData: map[string]any{"success": false, "error": err.Error()},
				}}
				return nil
			}
			results <- FanoutResult{Agent: a, Response: call(ctx, a)}
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(results)
	}()

	return results
}
