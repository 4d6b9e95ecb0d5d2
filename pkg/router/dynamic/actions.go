package dynamic

import (
	"context"
	"fmt"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/models"
)

// executeActions runs up to two facilitator-suggested interventions against
// their resolved target agent, producing one message per action. The
// facilitator always resolves a concrete target; a missing target here
// falls back to whichever agent has the lowest participation count.
func (r *Router) executeActions(ctx context.Context, sess *models.Session, query string, actions []models.FacilitatorAction,
	participation map[string]int, recentSpeakers *[]string) ([]models.Message, error) {

	actions = actions[:min(2, len(actions))]
	recentCtx := contextFromMessages(recentMessages(sess, 5))

	var out []models.Message
	for _, action := range actions {
		targetID := action.Target
		if targetID == "" {
			targetID = lowestParticipationAgent(sess.Agents, participation)
		}
		ag, ok := r.registry.Get(targetID)
		if !ok {
			continue
		}

		stage := string(dynamicStageFor(action.Type))
		resp := ag.RunDynamicStage(ctx, stage, agent.StageInput{
			Query:             query,
			Context:           recentCtx,
			ExtraInstructions: actionPrompt(action),
		})

		msg := r.sessions.NewAgentMessage(sess, targetID, resp.Content, stage, resp.StageData)
		out = append(out, msg)
		trackParticipation(participation, recentSpeakers, targetID)
	}
	return out, nil
}

func actionPrompt(action models.FacilitatorAction) string {
	switch action.Type {
	case models.ActionSummarize:
		return "Summarize the dialogue so far: the key insights raised, where participants agree, what remains " +
			"disputed, and the overall direction the conversation is heading. Prefer concrete claims over vague gestures."
	case models.ActionRedirect:
		return "The conversation may have drifted from the original question. Explicitly note the drift and refocus " +
			"the discussion back on the original query, in 150-200 words."
	case models.ActionConclude:
		return "Propose a concluding synthesis that the group could converge on, in 150-200 words."
	case models.ActionDeepDive, models.ActionClarification, models.ActionPerspectiveShift:
		fallthrough
	default:
		return deepDivePrompt(action)
	}
}

func deepDivePrompt(action models.FacilitatorAction) string {
	return fmt.Sprintf("Respond to the recent messages from the other participants below with a %s. "+
		"Reference specific points they raised by name, don't open with a formulaic greeting, aim for "+
		"150-200 words, and close with a question or a metaphor that invites a response. Reason given: %s.",
		actionLabel(action.Type), action.Reason)
}

func actionLabel(t models.FacilitatorActionType) string {
	switch t {
	case models.ActionClarification:
		return "clarifying question"
	case models.ActionPerspectiveShift:
		return "shift in perspective"
	default:
		return "deeper exploration of the topic"
	}
}

// dynamicStageFor maps a facilitator action type to the message-stage label
// used for appended dynamic-round messages. Conclude has no dedicated
// DynamicStage; its messages are tagged with the raw action type.
func dynamicStageFor(t models.FacilitatorActionType) models.DynamicStage {
	switch t {
	case models.ActionDeepDive:
		return models.DynamicDeepDive
	case models.ActionClarification:
		return models.DynamicClarification
	case models.ActionPerspectiveShift:
		return models.DynamicPerspectiveShift
	case models.ActionSummarize:
		return models.DynamicSummary
	case models.ActionRedirect:
		return models.DynamicRedirect
	default:
		return models.DynamicStage(t)
	}
}

func lowestParticipationAgent(agents []models.AgentDescriptor, participation map[string]int) string {
	if len(agents) == 0 {
		return ""
	}
	best := agents[0]
	bestCount := participation[best.ID]
	for _, a := range agents[1:] {
		if c := participation[a.ID]; c < bestCount {
			best, bestCount = a, c
		}
	}
	return best.ID
}
