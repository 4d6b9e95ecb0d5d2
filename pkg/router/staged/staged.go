// Package staged implements the v1 orchestration regime: a fixed sequence
// of five dialogue stages executed once per sequence, with per-stage
// summarization and a voting-elected finalizer.
package staged

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/events"
	"github.com/dialogcore/engine/pkg/facilitator"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
	"github.com/dialogcore/engine/pkg/summarizer"
)

// Config bounds the staged router's pacing and fallback behavior.
type Config struct {
	// Delay is the inter-agent and post-stage pacing sleep.
	Delay time.Duration
	// DefaultFinalizerID is used when the output-generation vote tally is
	// empty, e.g. when every cast vote was a discarded self-vote.
	DefaultFinalizerID string
	// Seed, if non-nil, makes the per-stage agent shuffle deterministic —
	// used by tests. A nil Seed uses a time-derived source.
	Seed *int64
}

// Router runs the v1 staged pipeline for one sequence at a time. It holds
// no per-sequence state between calls to Run — everything needed to resume
// or inspect a run lives on the Session itself.
type Router struct {
	registry    *agent.Registry
	summarizer  *summarizer.Summarizer
	sessions    *session.Manager
	progress    events.ProgressFunc
	cfg         Config
}

// New constructs a Router.
func New(registry *agent.Registry, summ *summarizer.Summarizer, sessions *session.Manager, progress events.ProgressFunc, cfg Config) *Router {
	return &Router{registry: registry, summarizer: summ, sessions: sessions, progress: progress, cfg: cfg}
}

// Run executes one full sequence: binds agents, appends the user query
// (starting a new sequence if the session was completed), runs the five
// fixed stages in order, conducts the output-generation vote, finalizes,
// and marks the session completed.
func (r *Router) Run(ctx context.Context, sess *models.Session, query string) error {
	for _, desc := range sess.Agents {
		if ag, ok := r.registry.Get(desc.ID); ok {
			ag.BindSession(sess.ID)
		}
	}

	if sess.Status == models.SessionCompleted {
		if err := r.sessions.StartSequence(sess); err != nil {
			return fmt.Errorf("staged router: start sequence: %w", err)
		}
	}

	if err := r.appendSaveEmit(sess, r.sessions.NewUserMessage(sess, query)); err != nil {
		return err
	}

	responses := make(map[models.DialogueStage][]models.AgentResponse)
	summaries := make(map[models.DialogueStage]models.StageSummary)

	for _, stage := range models.OrderedStages() {
		if stage == models.StageFinalize {
			break
		}

		stageResponses, err := r.runStage(ctx, sess, stage, query, responses, summaries)
		if err != nil {
			return err
		}
		responses[stage] = stageResponses

		if summaryStage, ok := stage.SummaryStage(); ok {
			if err := r.sleep(ctx); err != nil {
				return err
			}
			summary := r.summarizer.SummarizeStage(ctx, string(stage), stageResponses, sess.Agents, sess.ID, string(sess.Language))
			summaries[stage] = summary
			sess.StageSummaries = append(sess.StageSummaries, summary)

			msg := r.sessions.NewSystemMessage(sess, summaryContent(summary), string(summaryStage))
			if err := r.appendSaveEmit(sess, msg); err != nil {
				return err
			}
		}
	}

	if err := r.sleep(ctx); err != nil {
		return err
	}
	outputResponses := responses[models.StageOutputGeneration]
	voteResult := r.summarizer.AnalyzeVotes(outputResponses, sess.Agents, sess.ID, string(sess.Language))
	r.applyVotesToMessages(sess, voteResult)

	var ballots []models.VotingBallot
	for _, v := range voteResult.VoteAnalysis {
		if v.VotedAgent == "" {
			continue
		}
		ballots = append(ballots, models.VotingBallot{VoterAgentID: v.AgentID, VotedAgentID: v.VotedAgent, Reasoning: v.Reasoning})
	}
	finalizers := facilitator.FinalizeVotes(ballots)
	if len(finalizers) == 0 {
		finalizers = []string{r.cfg.DefaultFinalizerID}
	}

	var lastContent string
	for _, finalizerID := range finalizers {
		ag, ok := r.registry.Get(finalizerID)
		if !ok {
			continue
		}
		in := agent.StageInput{
			Query:   query,
			Context: finalizeContext(voteResult, outputResponses),
		}
		resp := ag.Finalize(ctx, in)
		lastContent = resp.Content

		msg := r.sessions.NewAgentMessage(sess, finalizerID, resp.Content, string(models.StageFinalize), map[string]any{"vote": voteResult})
		if err := r.appendSaveEmit(sess, msg); err != nil {
			return err
		}
	}

	sess.Status = models.SessionCompleted
	sess.CurrentStage = string(models.StageFinalize)

	outputID := uuid.NewString()
	if err := r.sessions.Store().SaveFile(fmt.Sprintf("outputs/%s.md", outputID), []byte(lastContent)); err != nil {
		return fmt.Errorf("staged router: save output artifact: %w", err)
	}
	if sess.SequenceOutputFiles == nil {
		sess.SequenceOutputFiles = make(map[int]string)
	}
	sess.SequenceOutputFiles[sess.SequenceNumber] = outputID

	if err := r.sessions.Save(sess); err != nil {
		return fmt.Errorf("staged router: save on completion: %w", err)
	}
	if r.progress != nil {
		r.progress(events.ProgressEvent{Session: sess})
	}
	return nil
}

// runStage runs one fixed stage across every agent, in a fresh random
// order, recording a stageHistory entry.
func (r *Router) runStage(ctx context.Context, sess *models.Session, stage models.DialogueStage, query string,
	priorResponses map[models.DialogueStage][]models.AgentResponse, summaries map[models.DialogueStage]models.StageSummary) ([]models.AgentResponse, error) {

	order := r.shuffled(sess.Agents)
	start := time.Now()
	var stageResponses []models.AgentResponse

	for i, desc := range order {
		if i > 0 {
			if err := r.sleep(ctx); err != nil {
				return nil, err
			}
		}
		ag, ok := r.registry.Get(desc.ID)
		if !ok {
			continue
		}

		in := agent.StageInput{
			Query:   query,
			Context: r.buildContext(stage, desc.ID, sess, priorResponses, summaries),
		}
		resp := r.invokeStage(ctx, ag, stage, in)
		stageResponses = append(stageResponses, resp)

		msg := r.sessions.NewAgentMessage(sess, desc.ID, resp.Content, string(stage), resp.StageData)
		if err := r.appendSaveEmit(sess, msg); err != nil {
			return nil, err
		}
	}

	sess.StageHistory = append(sess.StageHistory, models.StageExecutionRecord{
		Stage:          string(stage),
		StartTime:      start,
		EndTime:        time.Now(),
		AgentResponses: stageResponses,
		SequenceNumber: sess.SequenceNumber,
	})
	return stageResponses, nil
}

func (r *Router) invokeStage(ctx context.Context, ag *agent.Agent, stage models.DialogueStage, in agent.StageInput) models.AgentResponse {
	switch stage {
	case models.StageIndividualThought:
		return ag.IndividualThought(ctx, in)
	case models.StageMutualReflection:
		return ag.MutualReflection(ctx, in)
	case models.StageConflictResolution:
		return ag.ConflictResolution(ctx, in)
	case models.StageSynthesisAttempt:
		return ag.SynthesisAttempt(ctx, in)
	case models.StageOutputGeneration:
		return ag.OutputGeneration(ctx, in)
	default:
		return ag.IndividualThought(ctx, in)
	}
}

// buildContext composes the stage input from earlier stages of this
// sequence. Each stage has a fixed recipe: mutual-reflection sees the other
// agents' raw individual thoughts, conflict-resolution sees derived
// conflicts, and the last two stages see raw mutual-reflection plus the
// previous stage's summary only.
func (r *Router) buildContext(stage models.DialogueStage, selfID string, sess *models.Session,
	prior map[models.DialogueStage][]models.AgentResponse, summaries map[models.DialogueStage]models.StageSummary) []agent.ContextMessage {

	switch stage {
	case models.StageIndividualThought:
		return priorSequenceConclusions(sess)
	case models.StageMutualReflection:
		return otherAgentsRaw(prior[models.StageIndividualThought], selfID)
	case models.StageConflictResolution:
		return conflictsAsContext(summarizer.DeriveConflicts(prior[models.StageIndividualThought]))
	case models.StageSynthesisAttempt:
		ctx := rawAsContext(prior[models.StageMutualReflection])
		ctx = append(ctx, summaryAsContext(summaries[models.StageConflictResolution])...)
		return ctx
	case models.StageOutputGeneration:
		ctx := rawAsContext(prior[models.StageMutualReflection])
		ctx = append(ctx, summaryAsContext(summaries[models.StageSynthesisAttempt])...)
		return ctx
	default:
		return nil
	}
}

func priorSequenceConclusions(sess *models.Session) []agent.ContextMessage {
	var out []agent.ContextMessage
	for _, m := range sess.Messages {
		if m.SequenceNumber == sess.SequenceNumber {
			continue
		}
		if m.Role == models.RoleUser || m.Stage == string(models.StageFinalize) {
			out = append(out, agent.ContextMessage{Speaker: m.AgentID, Content: m.Content})
		}
	}
	return out
}

func otherAgentsRaw(responses []models.AgentResponse, selfID string) []agent.ContextMessage {
	var out []agent.ContextMessage
	for _, resp := range responses {
		if resp.AgentID == selfID {
			continue
		}
		out = append(out, agent.ContextMessage{Speaker: resp.AgentID, Content: resp.Content})
	}
	return out
}

func rawAsContext(responses []models.AgentResponse) []agent.ContextMessage {
	out := make([]agent.ContextMessage, 0, len(responses))
	for _, resp := range responses {
		out = append(out, agent.ContextMessage{Speaker: resp.AgentID, Content: resp.Content})
	}
	return out
}

func summaryAsContext(summary models.StageSummary) []agent.ContextMessage {
	out := make([]agent.ContextMessage, 0, len(summary.Positions))
	for _, p := range summary.Positions {
		out = append(out, agent.ContextMessage{Speaker: p.Speaker, Content: p.Position})
	}
	return out
}

func conflictsAsContext(conflicts []models.Conflict) []agent.ContextMessage {
	out := make([]agent.ContextMessage, 0, len(conflicts))
	for _, c := range conflicts {
		out = append(out, agent.ContextMessage{
			Speaker: "conflict",
			Content: fmt.Sprintf("%s vs %s: %s", c.AgentA, c.AgentB, c.Approach),
		})
	}
	return out
}

func finalizeContext(voteResult models.VoteAnalysisResult, outputResponses []models.AgentResponse) []agent.ContextMessage {
	ctx := rawAsContext(outputResponses)
	ctx = append(ctx, agent.ContextMessage{Speaker: "system", Content: voteResult.Content})
	return ctx
}

func summaryContent(summary models.StageSummary) string {
	var out string
	for i, p := range summary.Positions {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("- %s: %s", p.Speaker, p.Position)
	}
	return out
}

// applyVotesToMessages writes each voter's resolved vote into its own
// output-generation message metadata.
func (r *Router) applyVotesToMessages(sess *models.Session, result models.VoteAnalysisResult) {
	byAgent := make(map[string]models.VoteAnalysis, len(result.VoteAnalysis))
	for _, v := range result.VoteAnalysis {
		byAgent[v.AgentID] = v
	}
	for i, m := range sess.Messages {
		if m.Stage != string(models.StageOutputGeneration) || m.SequenceNumber != sess.SequenceNumber {
			continue
		}
		v, ok := byAgent[m.AgentID]
		if !ok {
			continue
		}
		if sess.Messages[i].Metadata == nil {
			sess.Messages[i].Metadata = make(map[string]any)
		}
		sess.Messages[i].Metadata["vote"] = v.VotedAgent
		sess.Messages[i].Metadata["voteReasoning"] = v.Reasoning
	}
}

func (r *Router) shuffled(agents []models.AgentDescriptor) []models.AgentDescriptor {
	out := make([]models.AgentDescriptor, len(agents))
	copy(out, agents)

	var rng *rand.Rand
	if r.cfg.Seed != nil {
		rng = rand.New(rand.NewSource(*r.cfg.Seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func (r *Router) sleep(ctx context.Context) error {
	if r.cfg.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(r.cfg.Delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// appendSaveEmit appends msg, persists the session, and only then invokes
// the progress callback. Persistence is the commit point: a failed save
// means no progress event for that message is ever delivered.
func (r *Router) appendSaveEmit(sess *models.Session, msg models.Message) error {
	r.sessions.Append(sess, msg)
	if err := r.sessions.Save(sess); err != nil {
		return fmt.Errorf("staged router: save message %s: %w", msg.ID, err)
	}
	if r.progress != nil {
		m := msg
		r.progress(events.ProgressEvent{Message: &m})
	}
	return nil
}
