package agent

import (
	"context"
	"testing"
	"time"

	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDescriptor(id string) models.AgentDescriptor {
	return models.AgentDescriptor{ID: id, Name: id, Personality: "terse and direct", Style: models.StyleLogical}
}

func TestAgent_IndividualThought(t *testing.T) {
	a := New(testDescriptor("alpha"), &executor.Mock{AgentID: "alpha"}, nil, DefaultMemoryConfig())

	t.Run("produces a well-formed response tagged with its stage", func(t *testing.T) {
		resp := a.IndividualThought(context.Background(), StageInput{Query: "what should we build?"})
		assert.Equal(t, "alpha", resp.AgentID)
		assert.Equal(t, string(models.StageIndividualThought), resp.Stage)
		assert.NotEmpty(t, resp.Content)
		require.NotNil(t, resp.StageData)
		assert.Equal(t, true, resp.StageData["success"])
	})
}

func TestAgent_OutputGeneration_EmitsVoteToken(t *testing.T) {
	a := New(testDescriptor("beta"), &executor.Mock{AgentID: "beta"}, nil, DefaultMemoryConfig())

	resp := a.OutputGeneration(context.Background(), StageInput{
		Query:   "converge on a plan",
		Context: []ContextMessage{{Speaker: "gamma", Content: "I think we should ship the MVP first."}},
	})

	assert.Contains(t, resp.Content, "Vote:")
}

func TestAgent_FailureIsolation(t *testing.T) {
	failing := executorFunc(func(ctx context.Context, prompt, personality string) executor.Result {
		return executor.Result{Success: false, Error: "connection refused"}
	})
	a := New(testDescriptor("gamma"), failing, nil, DefaultMemoryConfig())

	t.Run("unsuccessful executor result becomes a well-formed failure response, not a panic", func(t *testing.T) {
		resp := a.IndividualThought(context.Background(), StageInput{Query: "anything"})
		assert.Equal(t, "gamma", resp.AgentID)
		assert.NotEmpty(t, resp.Content)
		assert.Equal(t, false, resp.StageData["success"])
	})
}

func TestAgent_ContextCompression(t *testing.T) {
	cfg := MemoryConfig{MaxRecentMessages: 1, TokenThreshold: 1, CompressionRatio: 0.5}
	var captured string
	capture := executorFunc(func(ctx context.Context, prompt, personality string) executor.Result {
		captured = prompt
		return executor.Result{Success: true, Content: "ok"}
	})
	a := New(testDescriptor("delta"), capture, nil, cfg)

	a.IndividualThought(context.Background(), StageInput{
		Query: "q",
		Context: []ContextMessage{
			{Speaker: "a", Content: "a long opening statement about the topic at hand"},
			{Speaker: "b", Content: "a second long statement adding more detail"},
			{Speaker: "c", Content: "the most recent statement, which must stay verbatim"},
		},
	})

	assert.Contains(t, captured, "earlier in this dialogue")
	assert.Contains(t, captured, "the most recent statement, which must stay verbatim")
}

func TestAgent_IndividualThoughtConsultsRetriever(t *testing.T) {
	r := retrieval.NewLocalRetriever(retrieval.Config{ChunkSize: 200, DefaultTopK: 2})
	r.Ingest("recursion.md", "Recursion is a function calling itself until a base case stops it.")

	var captured string
	capture := executorFunc(func(ctx context.Context, prompt, personality string) executor.Result {
		captured = prompt
		return executor.Result{Success: true, Content: "ok"}
	})
	a := New(testDescriptor("alpha"), capture, r, DefaultMemoryConfig())

	a.IndividualThought(context.Background(), StageInput{Query: "explain recursion and its base case"})
	assert.Contains(t, captured, "knowledge:recursion.md", "stage one must surface retrieved passages in the prompt")
	assert.Contains(t, captured, "base case stops it")

	captured = ""
	a.MutualReflection(context.Background(), StageInput{Query: "explain recursion and its base case"})
	assert.NotContains(t, captured, "knowledge:recursion.md", "later stages do not re-query the retriever")
}

func TestFanout_BoundedConcurrencyCompletionOrder(t *testing.T) {
	agents := []*Agent{
		New(testDescriptor("a1"), &executor.Mock{AgentID: "a1", Latency: 30 * time.Millisecond}, nil, DefaultMemoryConfig()),
		New(testDescriptor("a2"), &executor.Mock{AgentID: "a2", Latency: 5 * time.Millisecond}, nil, DefaultMemoryConfig()),
	}

	results := Fanout(context.Background(), agents, 2, func(ctx context.Context, a *Agent) models.AgentResponse {
		return a.IndividualThought(ctx, StageInput{Query: "q"})
	})

	var order []string
	for r := range results {
		order = append(order, r.Agent.Descriptor().ID)
	}

	require.Len(t, order, 2)
	assert.Equal(t, "a2", order[0], "the faster call should complete first regardless of dispatch order")
}

type executorFunc func(ctx context.Context, prompt, personality string) executor.Result

func (f executorFunc) Execute(ctx context.Context, prompt, personality string) executor.Result {
	return f(ctx, prompt, personality)
}
