package dynamic

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dialogcore/engine/pkg/agent"
	"github.com/dialogcore/engine/pkg/models"
)

// gatherConsensus polls every agent for a consensus indicator in shuffled
// order, exiting early once the majority threshold of agents voting to
// continue (hasAdditionalPoints or not readyToMove) is reached. Agents not
// yet dispatched at that point get a synthesized record rather than an
// executor call. Concurrency is bounded the same way the initial round is.
func (r *Router) gatherConsensus(ctx context.Context, sess *models.Session, query string, agents []*agent.Agent, round int) []models.ConsensusIndicator {
	order := shuffledAgents(agents, r.cfg.Seed)
	n := len(order)
	if n == 0 {
		return nil
	}
	majority := (n + 1) / 2

	maxConcurrent := r.cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = n
	}
	sem := make(chan struct{}, maxConcurrent)

	results := make([]models.ConsensusIndicator, n)
	var mu sync.Mutex
	continuing := 0
	earlyExit := false

	// active dedupes a concurrent consensus query for the same agent id
	// within this single gatherConsensus call: the first caller for an id
	// owns the executor call and broadcasts its result to every other index
	// sharing that id via the recorded channel.
	active := make(map[string]chan models.ConsensusIndicator)

	recentCtx := contextFromMessages(recentMessages(sess, 5))

	var wg sync.WaitGroup
	for i, ag := range order {
		wg.Add(1)
		go func(i int, ag *agent.Agent) {
			defer wg.Done()

			agentID := ag.Descriptor().ID

			mu.Lock()
			if wait, dup := active[agentID]; dup {
				mu.Unlock()
				results[i] = <-wait
				wait <- results[i]
				return
			}
			done := make(chan models.ConsensusIndicator, 1)
			active[agentID] = done
			mu.Unlock()

			indicator := r.queryConsensus(ctx, sem, ag, agentID, query, round, recentCtx, &mu, &continuing, &earlyExit, majority)
			results[i] = indicator
			done <- indicator
		}(i, ag)
	}
	wg.Wait()

	return results
}

func (r *Router) queryConsensus(ctx context.Context, sem chan struct{}, ag *agent.Agent, agentID, query string, round int,
	recentCtx []agent.ContextMessage, mu *sync.Mutex, continuing *int, earlyExit *bool, majority int) models.ConsensusIndicator {

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		return synthesizedConsensus(agentID)
	}

	mu.Lock()
	skip := *earlyExit
	mu.Unlock()
	if skip {
		return synthesizedConsensus(agentID)
	}

	resp := ag.RunDynamicStage(ctx, "consensus-check", agent.StageInput{
		Query:             query,
		Context:           recentCtx,
		ExtraInstructions: consensusPrompt(round),
	})
	indicator := parseConsensusIndicator(resp.AgentID, resp.Content)

	mu.Lock()
	if indicator.HasAdditionalPoints || !indicator.ReadyToMove {
		*continuing++
	}
	if *continuing >= majority {
		*earlyExit = true
	}
	mu.Unlock()
	return indicator
}

// synthesizedConsensus is the fallback record for an agent whose consensus
// poll was skipped by the early-exit rule.
func synthesizedConsensus(agentID string) models.ConsensusIndicator {
	return models.ConsensusIndicator{
		AgentID:             agentID,
		SatisfactionLevel:   6,
		ReadyToMove:         false,
		HasAdditionalPoints: true,
		Reasoning:           "assumed continuing",
	}
}

func consensusPrompt(round int) string {
	return fmt.Sprintf("This is round %d of the dialogue. Report your current state on five lines: "+
		"\"Satisfaction: <1-10>\", \"AdditionalPoints: yes/no\" (do you have more to add), "+
		"\"ReadyToMove: yes/no\" (are you ready for the dialogue to conclude), "+
		"\"CriticalPointsRemaining: yes/no\" (is there something essential still unresolved), "+
		"and \"Reasoning: <one sentence>\".", round)
}

var (
	satisfactionPattern = regexp.MustCompile(`(?i)satisfaction[^0-9]{0,12}(\d{1,2})`)
	additionalPattern   = regexp.MustCompile(`(?i)additional\s*points?[^a-z]{0,12}(yes|no|true|false)`)
	readyPattern        = regexp.MustCompile(`(?i)ready\s*to\s*move[^a-z]{0,12}(yes|no|true|false)`)
	criticalPattern     = regexp.MustCompile(`(?i)critical\s*points?\s*remaining[^a-z]{0,12}(yes|no|true|false)`)
	reasoningPattern    = regexp.MustCompile(`(?im)^\s*reasoning\s*[:：]\s*(.+)$`)
)

// parseConsensusIndicator tolerantly extracts the five consensus fields
// from free-form LM output, falling back to neutral defaults for anything
// it cannot find. A declared critical-points-remaining overrides
// readyToMove to false.
func parseConsensusIndicator(agentID, content string) models.ConsensusIndicator {
	ind := models.ConsensusIndicator{
		AgentID:             agentID,
		SatisfactionLevel:   5,
		HasAdditionalPoints: false,
		ReadyToMove:         false,
		Reasoning:           "no specific reasoning",
	}

	if m := satisfactionPattern.FindStringSubmatch(content); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			ind.SatisfactionLevel = v
		}
	}
	if m := additionalPattern.FindStringSubmatch(content); m != nil {
		ind.HasAdditionalPoints = isAffirmative(m[1])
	}
	if m := readyPattern.FindStringSubmatch(content); m != nil {
		ind.ReadyToMove = isAffirmative(m[1])
	}
	if m := reasoningPattern.FindStringSubmatch(content); m != nil {
		ind.Reasoning = strings.TrimSpace(m[1])
	}
	if m := criticalPattern.FindStringSubmatch(content); m != nil && isAffirmative(m[1]) {
		ind.ReadyToMove = false
	}
	return ind
}

func isAffirmative(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "yes" || s == "true"
}

func contextFromMessages(messages []models.Message) []agent.ContextMessage {
	out := make([]agent.ContextMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, agent.ContextMessage{Speaker: m.AgentID, Content: m.Content})
	}
	return out
}

func shuffledAgents(agents []*agent.Agent, seed *int64) []*agent.Agent {
	out := make([]*agent.Agent, len(agents))
	copy(out, agents)

	var rng *rand.Rand
	if seed != nil {
		rng = rand.New(rand.NewSource(*seed))
	} else {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
