package dynamic

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/events"
	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/facilitator"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
	"github.com/dialogcore/engine/pkg/summarizer"
)

func testAgents() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "alpha", Name: "Alpha", Style: models.StyleLogical, Priority: models.PriorityPrecision, Personality: "terse and logical"},
		{ID: "beta", Name: "Beta", Style: models.StyleEmotive, Priority: models.PriorityBreadth, Personality: "warm and exploratory"},
		{ID: "gamma", Name: "Gamma", Style: models.StyleAnalytical, Priority: models.PriorityDepth, Personality: "skeptical and thorough"},
	}
}

func newTestRouter(t *testing.T, voteFor string, cfg Config) (*Router, *models.Session) {
	t.Helper()
	dir := t.TempDir()
	store, err := session.NewStore(dir)
	require.NoError(t, err)
	mgr := session.NewManager(store)

	descs := testAgents()
	registry := agent.NewRegistry(descs, func(d models.AgentDescriptor) executor.Executor {
		return &executor.Mock{AgentID: d.ID, VoteFor: voteFor}
	}, nil, agent.DefaultMemoryConfig())

	fac := facilitator.New()
	summ := summarizer.New(&executor.Mock{AgentID: "summarizer"})
	bus := events.NewBus()

	seed := int64(7)
	cfg.Seed = &seed
	if cfg.DefaultFinalizerID == "" {
		cfg.DefaultFinalizerID = "alpha"
	}
	router := New(registry, fac, summ, mgr, bus, cfg)

	sess, err := mgr.CreateSession("test dialogue", descs, models.VersionV2, models.LanguageEN)
	require.NoError(t, err)
	return router, sess
}

func TestRouter_Run_ConvergesWithinMaxRounds(t *testing.T) {
	router, sess := newTestRouter(t, "beta", Config{MaxRounds: 3})

	err := router.Run(context.Background(), sess, "how should the team prioritize this quarter?")
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, sess.Status)
	require.NotEmpty(t, sess.SequenceOutputFiles)

	var individualThoughts int
	for _, m := range sess.Messages {
		if m.Stage == string(models.StageIndividualThought) {
			individualThoughts++
		}
	}
	assert.Equal(t, 3, individualThoughts, "one individual-thought message per agent in the initial round")

	var finalizeCount int
	for _, m := range sess.Messages {
		if m.Stage == string(models.StageFinalize) {
			finalizeCount++
		}
	}
	assert.GreaterOrEqual(t, finalizeCount, 1)
}

func TestRouter_Run_StopsAtMaxRoundsWithReason(t *testing.T) {
	router, sess := newTestRouter(t, "", Config{MaxRounds: 2, HighSatisfactionThreshold: 99, ConvergenceThreshold: 99})

	err := router.Run(context.Background(), sess, "an open-ended question with no easy convergence")
	require.NoError(t, err)

	var sawMaxRounds bool
	for _, m := range sess.Messages {
		if m.Stage == string(models.DynamicFacilitator) && strings.Contains(m.Content, "maximum round cap") {
			sawMaxRounds = true
		}
	}
	assert.True(t, sawMaxRounds, "expected a max-rounds convergence message when thresholds are unreachable")
}

func TestRouter_Run_VotingFallsBackToDefaultFinalizer(t *testing.T) {
	router, sess := newTestRouter(t, "", Config{MaxRounds: 2, DefaultFinalizerID: "gamma"})

	err := router.Run(context.Background(), sess, "settle an ambiguous tradeoff")
	require.NoError(t, err)

	var finalizers []string
	for _, m := range sess.Messages {
		if m.Stage == string(models.StageFinalize) {
			finalizers = append(finalizers, m.AgentID)
		}
	}
	require.Len(t, finalizers, 1)
	assert.Equal(t, "gamma", finalizers[0])
}

func TestEvaluateConvergence_HighSatisfactionTakesPriority(t *testing.T) {
	cfg := Config{ConvergenceThreshold: 7.0, HighSatisfactionThreshold: 8.0}
	state := models.DialogueState{ShouldContinue: false, OverallConsensus: 8.0}
	consensus := []models.ConsensusIndicator{
		{SatisfactionLevel: 9, ReadyToMove: true},
		{SatisfactionLevel: 9, ReadyToMove: true},
		{SatisfactionLevel: 9, ReadyToMove: true},
	}

	converged, reason := evaluateConvergence(true, state, consensus, 3, 3, cfg)
	assert.True(t, converged)
	assert.Equal(t, models.ReasonHighSatisfaction, reason)
}

func TestEvaluateConvergence_NoConsensusGatheredNeverConverges(t *testing.T) {
	cfg := Config{ConvergenceThreshold: 7.0, HighSatisfactionThreshold: 8.0}
	converged, _ := evaluateConvergence(false, models.DialogueState{ShouldContinue: false}, nil, 5, 3, cfg)
	assert.False(t, converged)
}

func TestParseConsensusIndicator_FallsBackOnMissingFields(t *testing.T) {
	ind := parseConsensusIndicator("alpha", "I don't have a strong view either way.")
	assert.Equal(t, 5, ind.SatisfactionLevel)
	assert.False(t, ind.HasAdditionalPoints)
	assert.False(t, ind.ReadyToMove)
	assert.Equal(t, "no specific reasoning", ind.Reasoning)
}

func TestParseConsensusIndicator_CriticalPointsOverridesReadyToMove(t *testing.T) {
	content := "Satisfaction: 8\nReadyToMove: yes\nCriticalPointsRemaining: yes\nReasoning: still one open question"
	ind := parseConsensusIndicator("beta", content)
	assert.Equal(t, 8, ind.SatisfactionLevel)
	assert.False(t, ind.ReadyToMove, "a declared critical point remaining must override readyToMove to false")
	assert.Equal(t, "still one open question", ind.Reasoning)
}

// Two entries for the same agent id in one gatherConsensus call must share
// a single executor invocation.
func TestGatherConsensus_DedupesConcurrentQueryForSameAgent(t *testing.T) {
	dir := t.TempDir()
	store, err := session.NewStore(dir)
	require.NoError(t, err)
	mgr := session.NewManager(store)

	mock := &executor.Mock{AgentID: "alpha"}
	a := agent.New(models.AgentDescriptor{ID: "alpha", Name: "Alpha", Style: models.StyleLogical}, mock, nil, agent.DefaultMemoryConfig())

	fac := facilitator.New()
	summ := summarizer.New(&executor.Mock{AgentID: "summarizer"})
	router := New(nil, fac, summ, mgr, nil, Config{MaxConcurrent: 4})

	sess, err := mgr.CreateSession("dedup test", []models.AgentDescriptor{{ID: "alpha"}}, models.VersionV2, models.LanguageEN)
	require.NoError(t, err)

	results := router.gatherConsensus(context.Background(), sess, "does this dedupe?", []*agent.Agent{a, a}, 2)

	require.Len(t, results, 2)
	assert.Equal(t, int64(1), mock.Calls.Load(), "duplicate consensus query for the same agent must make exactly one executor call")
}

