package dynamic

import (
	"context"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/facilitator"
	"github.com/dialogcore/engine/pkg/models"
)

const votingPrompt = "The dialogue has concluded. Considering every participant's contributions, who should author " +
	"the final synthesized answer? You may not vote for yourself. End with a line such as \"Vote: <agent-id>\" " +
	"naming your choice, followed by a short reason."

// runFinalizerVoting asks every agent to vote for a finalizer, tallies the
// ballots via the facilitator, and runs Finalize once per tied winner (in
// order, with a prompt that differentiates first/middle/last turns),
// returning the last winner's content as the session's final output. An
// empty tally falls back to cfg.DefaultFinalizerID.
func (r *Router) runFinalizerVoting(ctx context.Context, sess *models.Session, query string, agents []*agent.Agent, round int) (string, error) {

	recentCtx := contextFromMessages(recentMessages(sess, 8))

	var voteResponses []models.AgentResponse
	for _, ag := range agents {
		resp := ag.RunDynamicStage(ctx, string(models.DynamicVoting), agent.StageInput{
			Query:             query,
			Context:           recentCtx,
			ExtraInstructions: votingPrompt,
		})
		voteResponses = append(voteResponses, resp)
		msg := r.sessions.NewAgentMessage(sess, resp.AgentID, resp.Content, string(models.DynamicVoting), resp.StageData)
		if err := r.appendSaveEmit(sess, msg, round); err != nil {
			return "", err
		}
	}

	voteResult := r.summarizer.AnalyzeVotes(voteResponses, sess.Agents, sess.ID, string(sess.Language))

	var ballots []models.VotingBallot
	for _, v := range voteResult.VoteAnalysis {
		if v.VotedAgent == "" {
			continue
		}
		ballots = append(ballots, models.VotingBallot{VoterAgentID: v.AgentID, VotedAgentID: v.VotedAgent, Reasoning: v.Reasoning})
	}
	winners := facilitator.FinalizeVotes(ballots)
	if len(winners) == 0 {
		winners = []string{r.cfg.DefaultFinalizerID}
	}

	var lastContent string
	for i, winnerID := range winners {
		ag, ok := r.registry.Get(winnerID)
		if !ok {
			continue
		}
		resp := ag.Finalize(ctx, agent.StageInput{
			Query:   query,
			Context: append(recentCtx, agent.ContextMessage{Speaker: "system", Content: voteResult.Content}),
			ExtraInstructions: finalizeTurnInstructions(i, len(winners)),
		})
		lastContent = resp.Content

		msg := r.sessions.NewAgentMessage(sess, winnerID, resp.Content, string(models.StageFinalize), map[string]any{"vote": voteResult})
		if err := r.appendSaveEmit(sess, msg, round); err != nil {
			return "", err
		}
	}
	return lastContent, nil
}

func finalizeTurnInstructions(index, total int) string {
	if total <= 1 {
		return ""
	}
	switch {
	case index == 0:
		return "You are the first of several tied finalizers. Open the synthesis in your own voice."
	case index == total-1:
		return "You are the last of several tied finalizers. Build on the prior synthesis and deliver the final version."
	default:
		return "You are a middle finalizer among several tied winners. Refine the synthesis so far without restarting it."
	}
}
