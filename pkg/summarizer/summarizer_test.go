package summarizer

import (
	"context"
	"testing"

	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExecutor struct {
	content string
	success bool
}

func (s stubExecutor) Execute(ctx context.Context, prompt, personality string) executor.Result {
	return executor.Result{Content: s.content, Success: s.success}
}

func testAgents() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "agent-1", Name: "Ada"},
		{ID: "agent-2", Name: "Grace"},
	}
}

func TestSummarizeStage_DashedFormat(t *testing.T) {
	exec := stubExecutor{success: true, content: "- agent-1: Prefers a phased rollout.\n- agent-2: Wants to ship everything at once."}
	s := New(exec)

	summary := s.SummarizeStage(context.Background(), "individual-thought", nil, testAgents(), "sess", "en")

	require.Len(t, summary.Positions, 2)
	assert.Equal(t, "agent-1", summary.Positions[0].Speaker)
	assert.Contains(t, summary.Positions[0].Position, "phased rollout")
}

func TestSummarizeStage_MarkdownHeaders(t *testing.T) {
	exec := stubExecutor{success: true, content: "## Ada\nPrefers a phased rollout across three weeks.\n\n## Grace\nWants a single release."}
	s := New(exec)

	summary := s.SummarizeStage(context.Background(), "individual-thought", nil, testAgents(), "sess", "en")

	require.Len(t, summary.Positions, 2)
	assert.Equal(t, "agent-1", summary.Positions[0].Speaker)
}

func TestSummarizeStage_DuplicateSpeakerKeepsFirst(t *testing.T) {
	exec := stubExecutor{success: true, content: "- agent-1: first position.\n- agent-1: a second, different position."}
	s := New(exec)

	summary := s.SummarizeStage(context.Background(), "individual-thought", nil, testAgents(), "sess", "en")

	require.Len(t, summary.Positions, 1)
	assert.Contains(t, summary.Positions[0].Position, "first position")
}

func TestSummarizeStage_FallsBackOnExecutorFailure(t *testing.T) {
	exec := stubExecutor{success: false}
	s := New(exec)
	responses := []models.AgentResponse{{AgentID: "agent-1", Content: "My take. More detail follows."}}

	summary := s.SummarizeStage(context.Background(), "individual-thought", responses, testAgents(), "sess", "en")

	require.Len(t, summary.Positions, 1)
	assert.Equal(t, "agent-1", summary.Positions[0].Speaker)
}

func TestAnalyzeVotes_VoteTokenGrammar(t *testing.T) {
	s := New(stubExecutor{})

	responses := []models.AgentResponse{
		{AgentID: "agent-1", Content: "Here is my answer.\n\nVote: agent-2"},
		{AgentID: "agent-2", Content: "My answer.\n\n**Agent Vote:** `agent-1`"},
		{AgentID: "agent-1", Content: "投票: Grace"},
	}

	result := s.AnalyzeVotes(responses[:2], testAgents(), "sess", "en")
	require.Len(t, result.VoteAnalysis, 2)
	assert.Equal(t, "agent-2", result.VoteAnalysis[0].VotedAgent)
	assert.Equal(t, "agent-1", result.VoteAnalysis[1].VotedAgent)

	furiganaResult := s.AnalyzeVotes([]models.AgentResponse{responses[2]}, testAgents(), "sess", "en")
	require.Len(t, furiganaResult.VoteAnalysis, 1)
	assert.Equal(t, "agent-2", furiganaResult.VoteAnalysis[0].VotedAgent)
}

func TestAnalyzeVotes_RejectsSelfVotes(t *testing.T) {
	s := New(stubExecutor{})
	responses := []models.AgentResponse{{AgentID: "agent-1", Content: "Vote: agent-1"}}

	result := s.AnalyzeVotes(responses, testAgents(), "sess", "en")

	require.Len(t, result.VoteAnalysis, 1)
	assert.Empty(t, result.VoteAnalysis[0].VotedAgent)
}

func TestDeriveConflicts(t *testing.T) {
	thoughts := []models.AgentResponse{
		{AgentID: "agent-1", StageData: map[string]any{"approach": "phased rollout"}},
		{AgentID: "agent-2", StageData: map[string]any{"approach": "big bang release"}},
		{AgentID: "agent-3", StageData: map[string]any{"approach": "phased rollout"}},
	}

	conflicts := DeriveConflicts(thoughts)

	require.Len(t, conflicts, 2)
	for _, c := range conflicts {
		assert.Equal(t, "medium", c.Severity)
	}
}
