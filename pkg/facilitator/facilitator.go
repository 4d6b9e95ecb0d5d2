// Package facilitator implements the pure per-round analyser the dynamic
// router consults: given a consensus vector and recent dialogue, it
// recommends up to two interventions and tallies finalizer votes. It holds
// no across-session state beyond the per-session action-history and log
// bookkeeping needed to honor its own rules.
package facilitator

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dialogcore/engine/pkg/models"
)

// AnalyzeInput is everything one Analyze call needs.
type AnalyzeInput struct {
	Query          string
	Round          int
	RecentMessages []models.Message
	Consensus      []models.ConsensusIndicator
	Participants   []models.AgentDescriptor
	Participation  map[string]int
	RecentSpeakers []string // bounded to the 3 most recent, most-recent last
}

// Facilitator is safe for concurrent use across sessions; per-session state
// is keyed by session id and guarded by a single mutex since invocations are
// infrequent (once per round) relative to agent calls.
type Facilitator struct {
	mu sync.Mutex

	recentActionTypes map[string][]models.FacilitatorActionType
	deepDiveCursor    map[string]int
	logs              map[string][]models.FacilitatorLogRecord
}

// New constructs an empty Facilitator.
func New() *Facilitator {
	return &Facilitator{
		recentActionTypes: make(map[string][]models.FacilitatorActionType),
		deepDiveCursor:    make(map[string]int),
		logs:              make(map[string][]models.FacilitatorLogRecord),
	}
}

// Analyze computes the DialogueState for one round and appends a log record
// for that session. timestamp is supplied by the caller (the router owns
// wall-clock access so this package stays pure and deterministically
// testable).
func (f *Facilitator) Analyze(sessionID string, in AnalyzeInput, timestamp time.Time) models.DialogueState {
	overall := meanSatisfaction(in.Consensus)
	shouldContinue := f.shouldContinue(in, overall)

	actions := f.selectActions(sessionID, in)

	state := models.DialogueState{
		CurrentTopic:      in.Query,
		RoundNumber:       in.Round,
		ParticipantStates: in.Consensus,
		OverallConsensus:  overall,
		SuggestedActions:  actions,
		ShouldContinue:    shouldContinue,
	}

	f.appendLog(sessionID, in, timestamp, state)
	return state
}

func meanSatisfaction(consensus []models.ConsensusIndicator) float64 {
	if len(consensus) == 0 {
		return 0
	}
	var sum int
	for _, c := range consensus {
		sum += c.SatisfactionLevel
	}
	return float64(sum) / float64(len(consensus))
}

// shouldContinue is the facilitator's own exploration-complete judgment;
// the router layers its own convergence rule on top and does not take this
// as the sole signal.
func (f *Facilitator) shouldContinue(in AnalyzeInput, overall float64) bool {
	if len(in.Consensus) == 0 {
		return true
	}
	if overall >= 8.0 {
		return false
	}
	allReady := true
	for _, c := range in.Consensus {
		if !c.ReadyToMove {
			allReady = false
			break
		}
	}
	return !allReady
}

// selectActions picks up to 2 FacilitatorActions: prefer underrepresented
// targets, avoid a 3-round action type streak, rotate deep_dive targets,
// prefer analytical agents for summarize, and always resolve a concrete
// agent id, never 'all'/'auto'.
func (f *Facilitator) selectActions(sessionID string, in AnalyzeInput) []models.FacilitatorAction {
	if len(in.Participants) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	underrepresented := underrepresentedAgents(in.Participants, in.Participation)
	banned := f.bannedActionType(sessionID)

	var actions []models.FacilitatorAction

	primaryType := models.FacilitatorActionType("deep_dive")
	if primaryType == banned {
		primaryType = "clarification"
	}
	if target := f.pickRotatingTarget(sessionID, underrepresented, in.Participants, in.RecentSpeakers); target != "" {
		actions = append(actions, models.FacilitatorAction{
			Type:     primaryType,
			Target:   target,
			Reason:   "balancing participation across the dialogue",
			Priority: 7,
		})
	}

	secondaryType := models.FacilitatorActionType("summarize")
	if secondaryType == banned {
		secondaryType = "perspective_shift"
	}
	if target := pickStylePreferred(in.Participants, models.StyleAnalytical, models.StyleLogical); target != "" {
		actions = append(actions, models.FacilitatorAction{
			Type:     secondaryType,
			Target:   target,
			Reason:   "consolidating the discussion so far",
			Priority: 5,
		})
	}

	if len(actions) > 2 {
		actions = actions[:2]
	}

	var types []models.FacilitatorActionType
	for _, a := range actions {
		types = append(types, a.Type)
	}
	f.recordActionTypes(sessionID, types)

	return actions
}

func underrepresentedAgents(participants []models.AgentDescriptor, participation map[string]int) []models.AgentDescriptor {
	counts := make([]int, 0, len(participants))
	for _, p := range participants {
		counts = append(counts, participation[p.ID])
	}
	sort.Ints(counts)
	median := counts[len(counts)/2]

	var out []models.AgentDescriptor
	for _, p := range participants {
		if participation[p.ID] < median {
			out = append(out, p)
		}
	}
	return out
}

// pickRotatingTarget rotates among candidates (underrepresented agents, or
// all participants if none are underrepresented), excluding up to the 2
// most recent speakers when an alternative exists.
func (f *Facilitator) pickRotatingTarget(sessionID string, candidates, all []models.AgentDescriptor, recentSpeakers []string) string {
	pool := candidates
	if len(pool) == 0 {
		pool = all
	}
	if len(pool) == 0 {
		return ""
	}

	excluded := recentSpeakers
	if len(excluded) > 2 {
		excluded = excluded[len(excluded)-2:]
	}
	filtered := excludeIDs(pool, excluded)
	if len(filtered) == 0 {
		filtered = pool
	}

	cursor := f.deepDiveCursor[sessionID]
	target := filtered[cursor%len(filtered)]
	f.deepDiveCursor[sessionID] = cursor + 1
	return target.ID
}

func excludeIDs(agents []models.AgentDescriptor, ids []string) []models.AgentDescriptor {
	if len(ids) == 0 {
		return agents
	}
	excluded := make(map[string]bool, len(ids))
	for _, id := range ids {
		excluded[id] = true
	}
	var out []models.AgentDescriptor
	for _, a := range agents {
		if !excluded[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

func pickStylePreferred(agents []models.AgentDescriptor, preferred ...models.AgentStyle) string {
	if len(agents) == 0 {
		return ""
	}
	for _, style := range preferred {
		for _, a := range agents {
			if a.Style == style {
				return a.ID
			}
		}
	}
	return agents[0].ID
}

func (f *Facilitator) bannedActionType(sessionID string) models.FacilitatorActionType {
	history := f.recentActionTypes[sessionID]
	if len(history) < 2 {
		return ""
	}
	last2 := history[len(history)-2:]
	if last2[0] != last2[1] {
		return ""
	}
	return last2[0]
}

func (f *Facilitator) recordActionTypes(sessionID string, types []models.FacilitatorActionType) {
	if len(types) == 0 {
		return
	}
	history := append(f.recentActionTypes[sessionID], types[0])
	if len(history) > 3 {
		history = history[len(history)-3:]
	}
	f.recentActionTypes[sessionID] = history
}

// FinalizeVotes tallies a bag of VotingBallots and returns the set of agent
// ids with the maximal tally, preserving ties. An empty ballot set returns
// an empty slice, signalling the router should fall back to a default.
func FinalizeVotes(ballots []models.VotingBallot) []string {
	tally := make(map[string]int)
	for _, b := range ballots {
		tally[b.VotedAgentID]++
	}
	if len(tally) == 0 {
		return nil
	}

	max := 0
	for _, count := range tally {
		if count > max {
			max = count
		}
	}

	var winners []string
	for id, count := range tally {
		if count == max {
			winners = append(winners, id)
		}
	}
	sort.Strings(winners)
	return winners
}

func (f *Facilitator) appendLog(sessionID string, in AnalyzeInput, ts time.Time, state models.DialogueState) {
	dataAnalyzed := map[string]any{
		"round":              in.Round,
		"consensusCount":     len(in.Consensus),
		"overallConsensus":   state.OverallConsensus,
		"recentMessageCount": len(in.RecentMessages),
	}
	if len(in.Participation) > 0 {
		counts := make(map[string]any, len(in.Participation))
		for id, n := range in.Participation {
			counts[id] = n
		}
		dataAnalyzed["participation"] = counts
	}

	record := models.FacilitatorLogRecord{
		RoundNumber: in.Round,
		Timestamp:   ts.UTC().Format(time.RFC3339Nano),
		Action:      actionSummary(state.SuggestedActions),
		Decision: models.FacilitatorDecision{
			Reasoning:        reasoningFor(state),
			DataAnalyzed:     dataAnalyzed,
			SuggestedActions: state.SuggestedActions,
		},
		ExecutionDetails: executionDetails(state),
	}
	if len(state.SuggestedActions) > 0 {
		first := state.SuggestedActions[0]
		record.Decision.SelectedAction = &first
	}

	f.mu.Lock()
	f.logs[sessionID] = append(f.logs[sessionID], record)
	f.mu.Unlock()
}

func executionDetails(state models.DialogueState) map[string]any {
	details := map[string]any{"shouldContinue": state.ShouldContinue}
	if len(state.SuggestedActions) > 0 {
		targets := make([]string, 0, len(state.SuggestedActions))
		for _, a := range state.SuggestedActions {
			targets = append(targets, a.Target)
		}
		details["plannedTargets"] = targets
	}
	return details
}

func actionSummary(actions []models.FacilitatorAction) string {
	if len(actions) == 0 {
		return "none"
	}
	names := make([]string, len(actions))
	for i, a := range actions {
		names[i] = string(a.Type)
	}
	return strings.Join(names, ",")
}

func reasoningFor(state models.DialogueState) string {
	if !state.ShouldContinue {
		return "facilitator judged the dialogue ready to conclude"
	}
	return "facilitator recommends continuing exploration"
}

// Log returns the accumulated log records for a session, in invocation
// order. The router persists these at session end.
func (f *Facilitator) Log(sessionID string) []models.FacilitatorLogRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.FacilitatorLogRecord, len(f.logs[sessionID]))
	copy(out, f.logs[sessionID])
	return out
}

// Clear drops all per-session bookkeeping (action history, rotation
// cursor, log) once the router has persisted the session's log.
func (f *Facilitator) Clear(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recentActionTypes, sessionID)
	delete(f.deepDiveCursor, sessionID)
	delete(f.logs, sessionID)
}
