package staged

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
	"github.com/dialogcore/engine/pkg/summarizer"
)

func testAgents() []models.AgentDescriptor {
	return []models.AgentDescriptor{
		{ID: "alpha", Name: "Alpha", Style: models.StyleLogical, Priority: models.PriorityPrecision, Personality: "terse and logical"},
		{ID: "beta", Name: "Beta", Style: models.StyleEmotive, Priority: models.PriorityBreadth, Personality: "warm and exploratory"},
		{ID: "gamma", Name: "Gamma", Style: models.StyleCritical, Priority: models.PriorityDepth, Personality: "skeptical and thorough"},
	}
}

func newTestRouter(t *testing.T, voteFor string, defaultFinalizer string) (*Router, *session.Manager, *models.Session) {
	t.Helper()
	dir := t.TempDir()
	store, err := session.NewStore(dir)
	require.NoError(t, err)
	mgr := session.NewManager(store)

	descs := testAgents()
	registry := agent.NewRegistry(descs, func(d models.AgentDescriptor) executor.Executor {
		return &executor.Mock{AgentID: d.ID, VoteFor: voteFor}
	}, nil, agent.DefaultMemoryConfig())

	summ := summarizer.New(&executor.Mock{AgentID: "summarizer"})

	seed := int64(42)
	router := New(registry, summ, mgr, nil, Config{DefaultFinalizerID: defaultFinalizer, Seed: &seed})

	sess, err := mgr.CreateSession("test dialogue", descs, models.VersionV1, models.LanguageEN)
	require.NoError(t, err)
	return router, mgr, sess
}

func TestRouter_Run_HappyPath(t *testing.T) {
	router, _, sess := newTestRouter(t, "beta", "alpha")

	err := router.Run(context.Background(), sess, "how should we ship this feature?")
	require.NoError(t, err)

	assert.Equal(t, models.SessionCompleted, sess.Status)
	assert.Equal(t, string(models.StageFinalize), sess.CurrentStage)

	stageCounts := map[string]int{}
	for _, m := range sess.Messages {
		stageCounts[m.Stage]++
	}

	for _, stage := range []models.DialogueStage{
		models.StageIndividualThought,
		models.StageMutualReflection,
		models.StageConflictResolution,
		models.StageSynthesisAttempt,
		models.StageOutputGeneration,
	} {
		assert.Equal(t, 3, stageCounts[string(stage)], "expected one message per agent in stage %s", stage)
	}

	for _, stage := range []models.DialogueStage{
		models.StageIndividualThought,
		models.StageMutualReflection,
		models.StageConflictResolution,
		models.StageSynthesisAttempt,
	} {
		summaryStage, ok := stage.SummaryStage()
		require.True(t, ok)
		assert.Equal(t, 1, stageCounts[string(summaryStage)], "expected exactly one summary message for %s", stage)
	}

	assert.Zero(t, stageCounts["output-generation-summary"], "output-generation has no summary stage")
	assert.GreaterOrEqual(t, stageCounts[string(models.StageFinalize)], 1, "expected at least one finalize message")

	require.NotEmpty(t, sess.SequenceOutputFiles)
	_, ok := sess.SequenceOutputFiles[sess.SequenceNumber]
	require.True(t, ok)
}

func TestRouter_Run_UnresolvedVotesFallBackToDefaultFinalizer(t *testing.T) {
	// VoteFor "" makes every mock vote for "agent-<ownID>", which never
	// resolves to a registered participant, so the tally is empty and the
	// router must fall back to DefaultFinalizerID.
	router, _, sess := newTestRouter(t, "", "gamma")

	err := router.Run(context.Background(), sess, "what is the right tradeoff here?")
	require.NoError(t, err)

	var finalizeAuthors []string
	for _, m := range sess.Messages {
		if m.Stage == string(models.StageFinalize) {
			finalizeAuthors = append(finalizeAuthors, m.AgentID)
		}
	}
	require.Len(t, finalizeAuthors, 1)
	assert.Equal(t, "gamma", finalizeAuthors[0])
}

func TestRouter_Run_StageOrderingAndSummaryPlacement(t *testing.T) {
	router, _, sess := newTestRouter(t, "beta", "alpha")
	require.NoError(t, router.Run(context.Background(), sess, "plan the rollout"))

	var seenStages []string
	for _, m := range sess.Messages {
		if m.Stage == "" {
			continue
		}
		if len(seenStages) == 0 || seenStages[len(seenStages)-1] != m.Stage {
			seenStages = append(seenStages, m.Stage)
		}
	}

	expectedOrder := []string{
		string(models.StageIndividualThought),
		string(models.StageIndividualThought) + "-summary",
		string(models.StageMutualReflection),
		string(models.StageMutualReflection) + "-summary",
		string(models.StageConflictResolution),
		string(models.StageConflictResolution) + "-summary",
		string(models.StageSynthesisAttempt),
		string(models.StageSynthesisAttempt) + "-summary",
		string(models.StageOutputGeneration),
		string(models.StageFinalize),
	}
	assert.Equal(t, expectedOrder, seenStages)
}

func TestRouter_Run_SecondSequenceResumesAfterCompletion(t *testing.T) {
	router, mgr, sess := newTestRouter(t, "beta", "alpha")
	require.NoError(t, router.Run(context.Background(), sess, "first question"))
	assert.Equal(t, 1, sess.SequenceNumber)

	require.NoError(t, router.Run(context.Background(), sess, "follow-up question"))
	assert.Equal(t, 2, sess.SequenceNumber)
	assert.Equal(t, models.SessionCompleted, sess.Status)

	_ = mgr
}
