// Package dynamic implements the v2 orchestration regime: an open-ended
// round loop driven by a facilitator that gathers consensus, recommends
// interventions, and decides when the dialogue has converged, in contrast
// to the fixed five-stage pipeline in pkg/router/staged.
package dynamic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/events"
	"github.com/dialogcore/engine/pkg/facilitator"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/session"
	"github.com/dialogcore/engine/pkg/summarizer"
)

// Config bounds the dynamic router's pacing, fanout width, and convergence
// thresholds.
type Config struct {
	MaxRounds int
	// ConvergenceThreshold is rule (b)'s overallConsensus cutoff (default 7.0).
	ConvergenceThreshold float64
	// HighSatisfactionThreshold is rule (c)'s averageSatisfaction cutoff
	// (8.0; exposed for tests).
	HighSatisfactionThreshold float64
	Delay                     time.Duration
	MaxConcurrent             int
	DefaultFinalizerID        string
	Seed                      *int64
}

// Router runs the v2 dynamic round loop for one sequence at a time. Like
// the staged router, it holds no state between calls to Run beyond what
// the Facilitator itself tracks per session id.
type Router struct {
	registry    *agent.Registry
	facilitator *facilitator.Facilitator
	summarizer  *summarizer.Summarizer
	sessions    *session.Manager
	bus         *events.Bus
	cfg         Config
}

// New constructs a Router. bus may be nil (no realtime emission, e.g. in
// tests that only assert on the persisted session).
func New(registry *agent.Registry, fac *facilitator.Facilitator, summ *summarizer.Summarizer, sessions *session.Manager, bus *events.Bus, cfg Config) *Router {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = 10
	}
	if cfg.ConvergenceThreshold <= 0 {
		cfg.ConvergenceThreshold = 7.0
	}
	if cfg.HighSatisfactionThreshold <= 0 {
		cfg.HighSatisfactionThreshold = 8.0
	}
	return &Router{registry: registry, facilitator: fac, summarizer: summ, sessions: sessions, bus: bus, cfg: cfg}
}

// Run executes one full v2 sequence: the initial concurrent individual-
// thought round, then the round loop of consensus-gather / analyze /
// intervene until convergence or the round cap, then finalizer voting.
func (r *Router) Run(ctx context.Context, sess *models.Session, query string) error {
	for _, desc := range sess.Agents {
		if ag, ok := r.registry.Get(desc.ID); ok {
			ag.BindSession(sess.ID)
		}
	}
	if sess.Status == models.SessionCompleted {
		if err := r.sessions.StartSequence(sess); err != nil {
			return fmt.Errorf("dynamic router: start sequence: %w", err)
		}
	}
	defer r.facilitator.Clear(sess.ID)

	participation := make(map[string]int)
	var recentSpeakers []string

	userMsg := r.sessions.NewUserMessage(sess, query)
	if err := r.appendSaveEmit(sess, userMsg, 0); err != nil {
		return err
	}

	agents := r.registry.For(descriptorIDs(sess.Agents))

	if _, err := r.runInitialRound(ctx, sess, query, agents, participation, &recentSpeakers); err != nil {
		return err
	}

	initialState := r.facilitator.Analyze(sess.ID, facilitator.AnalyzeInput{
		Query:          query,
		Round:          0,
		RecentMessages: recentMessages(sess, 10),
		Consensus:      nil,
		Participants:   sess.Agents,
		Participation:  participation,
		RecentSpeakers: recentSpeakers,
	}, time.Now())
	r.emitFacilitatorActions(sess.ID, initialState)

	round := 0
	converged := false
	var convergenceReason models.ConvergenceReason

	for round < r.cfg.MaxRounds && !converged {
		round++
		r.publishRoundStart(sess.ID, round)

		var consensus []models.ConsensusIndicator
		var dialogueState models.DialogueState

		if round == 1 {
			dialogueState = r.facilitator.Analyze(sess.ID, facilitator.AnalyzeInput{
				Query:          query,
				Round:          round,
				RecentMessages: recentMessages(sess, 10),
				Participants:   sess.Agents,
				Participation:  participation,
				RecentSpeakers: recentSpeakers,
			}, time.Now())
		} else {
			consensus = r.gatherConsensus(ctx, sess, query, agents, round)
			dialogueState = r.facilitator.Analyze(sess.ID, facilitator.AnalyzeInput{
				Query:          query,
				Round:          round,
				RecentMessages: recentMessages(sess, 10),
				Consensus:      consensus,
				Participants:   sess.Agents,
				Participation:  participation,
				RecentSpeakers: recentSpeakers,
			}, time.Now())

			snapshot := r.sessions.NewFacilitatorMessage(sess, consensusSnapshotContent(consensus, dialogueState), string(models.DynamicFacilitator), map[string]any{
				"overallConsensus": dialogueState.OverallConsensus,
				"round":            round,
			})
			if err := r.appendSaveEmit(sess, snapshot, round); err != nil {
				return err
			}
			r.publishConsensusUpdate(sess.ID, dialogueState.OverallConsensus, round)
		}

		converged, convergenceReason = evaluateConvergence(len(consensus) > 0, dialogueState, consensus, round, len(sess.Agents), r.cfg)
		if converged {
			sess.ConsensusHistory = append(sess.ConsensusHistory, models.DynamicRoundRecord{
				Round: round, Consensus: consensus, DialogueState: dialogueState, ConvergenceReason: convergenceReason,
			})
			msg := r.sessions.NewFacilitatorMessage(sess, convergenceMessage(convergenceReason), string(models.DynamicFacilitator), map[string]any{
				"convergenceReason": string(convergenceReason),
			})
			if err := r.appendSaveEmit(sess, msg, round); err != nil {
				return err
			}
			break
		}

		actionMsgs, err := r.executeActions(ctx, sess, query, dialogueState.SuggestedActions, participation, &recentSpeakers)
		if err != nil {
			return err
		}
		for _, m := range actionMsgs {
			if err := r.appendSaveEmit(sess, m, round); err != nil {
				return err
			}
		}

		sess.ConsensusHistory = append(sess.ConsensusHistory, models.DynamicRoundRecord{
			Round: round, Consensus: consensus, DialogueState: dialogueState, ActionsExecuted: dialogueState.SuggestedActions,
		})
	}

	if !converged {
		convergenceReason = models.ReasonMaxRounds
		msg := r.sessions.NewFacilitatorMessage(sess, convergenceMessage(convergenceReason), string(models.DynamicFacilitator), map[string]any{
			"convergenceReason": string(convergenceReason),
		})
		if err := r.appendSaveEmit(sess, msg, round); err != nil {
			return err
		}
	}

	finalContent, err := r.runFinalizerVoting(ctx, sess, query, agents, round)
	if err != nil {
		return err
	}

	sess.Status = models.SessionCompleted
	sess.CurrentStage = string(models.StageFinalize)

	outputID := uuid.NewString()
	if err := r.sessions.Store().SaveFile(fmt.Sprintf("outputs/%s.md", outputID), []byte(finalContent)); err != nil {
		return fmt.Errorf("dynamic router: save output artifact: %w", err)
	}
	if sess.SequenceOutputFiles == nil {
		sess.SequenceOutputFiles = make(map[int]string)
	}
	sess.SequenceOutputFiles[sess.SequenceNumber] = outputID

	if err := r.persistFacilitatorLog(sess); err != nil {
		return err
	}

	if err := r.sessions.Save(sess); err != nil {
		return fmt.Errorf("dynamic router: save on completion: %w", err)
	}
	return nil
}

func (r *Router) runInitialRound(ctx context.Context, sess *models.Session, query string, agents []*agent.Agent,
	participation map[string]int, recentSpeakers *[]string) ([]models.AgentResponse, error) {

	maxConcurrent := r.cfg.MaxConcurrent
	results := agent.Fanout(ctx, agents, maxConcurrent, func(ctx context.Context, a *agent.Agent) models.AgentResponse {
		return a.IndividualThought(ctx, agent.StageInput{Query: query})
	})

	var responses []models.AgentResponse
	for res := range results {
		resp := res.Response
		responses = append(responses, resp)
		msg := r.sessions.NewAgentMessage(sess, resp.AgentID, resp.Content, string(models.StageIndividualThought), resp.StageData)
		if err := r.appendSaveEmit(sess, msg, 0); err != nil {
			return nil, err
		}
		trackParticipation(participation, recentSpeakers, resp.AgentID)
	}
	return responses, nil
}

func descriptorIDs(descs []models.AgentDescriptor) []string {
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.ID
	}
	return out
}

func trackParticipation(participation map[string]int, recentSpeakers *[]string, agentID string) {
	participation[agentID]++
	speakers := append(*recentSpeakers, agentID)
	if len(speakers) > 3 {
		speakers = speakers[len(speakers)-3:]
	}
	*recentSpeakers = speakers
}

func recentMessages(sess *models.Session, n int) []models.Message {
	if len(sess.Messages) <= n {
		return sess.Messages
	}
	return sess.Messages[len(sess.Messages)-n:]
}

func consensusSnapshotContent(consensus []models.ConsensusIndicator, state models.DialogueState) string {
	return fmt.Sprintf("round %d consensus snapshot: overall=%.1f, %d participant readings", state.RoundNumber, state.OverallConsensus, len(consensus))
}

func convergenceMessage(reason models.ConvergenceReason) string {
	switch reason {
	case models.ReasonMaxRounds:
		return "the dialogue reached its maximum round cap without full convergence"
	case models.ReasonHighSatisfaction:
		return "the dialogue converged: participant satisfaction is high and most are ready to move on"
	case models.ReasonFacilitatorDecision:
		return "the dialogue converged: the facilitator judged exploration complete"
	case models.ReasonNaturalConsensus:
		return "the dialogue converged: overall consensus has settled"
	default:
		return "the dialogue converged"
	}
}

// appendSaveEmit appends msg, persists the session, and only then publishes
// the v2-message event. Persistence is the commit point: a failed save means
// no event for that message is ever emitted.
func (r *Router) appendSaveEmit(sess *models.Session, msg models.Message, round int) error {
	r.sessions.Append(sess, msg)
	if err := r.sessions.Save(sess); err != nil {
		return fmt.Errorf("dynamic router: save message %s: %w", msg.ID, err)
	}
	if r.bus != nil {
		r.bus.PublishMessage(sess.ID, events.MessagePayload{SessionID: sess.ID, Message: msg, Round: round})
	}
	return nil
}

func (r *Router) publishRoundStart(sessionID string, round int) {
	if r.bus != nil {
		r.bus.PublishRoundStart(sessionID, events.RoundStartPayload{SessionID: sessionID, Round: round, Timestamp: time.Now()})
	}
}

func (r *Router) publishConsensusUpdate(sessionID string, level float64, round int) {
	if r.bus != nil {
		r.bus.PublishConsensusUpdate(sessionID, events.ConsensusUpdatePayload{SessionID: sessionID, ConsensusLevel: level, Round: round})
	}
}

func (r *Router) emitFacilitatorActions(sessionID string, state models.DialogueState) {
	if r.bus == nil {
		return
	}
	for _, a := range state.SuggestedActions {
		r.bus.PublishFacilitatorAction(sessionID, events.FacilitatorActionPayload{
			SessionID: sessionID, Action: string(a.Type), Target: a.Target, Reason: a.Reason,
		})
	}
}

// persistFacilitatorLog writes one file per facilitator invocation under
// logs/<sessionID>/facilitator/, named by round, action, and timestamp.
func (r *Router) persistFacilitatorLog(sess *models.Session) error {
	for _, rec := range r.facilitator.Log(sess.ID) {
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return fmt.Errorf("dynamic router: marshal facilitator log record: %w", err)
		}
		path := fmt.Sprintf("logs/%s/facilitator/facilitator-r%d-%s-%s.json",
			sess.ID, rec.RoundNumber, logNameToken(rec.Action), logNameToken(rec.Timestamp))
		if err := r.sessions.Store().SaveFile(path, data); err != nil {
			return fmt.Errorf("dynamic router: persist facilitator log: %w", err)
		}
	}
	return nil
}

var logNameReplacer = strings.NewReplacer(":", "", ".", "", ",", "+", " ", "_", "/", "_")

func logNameToken(s string) string {
	return logNameReplacer.Replace(s)
}
