package dynamic

import "github.com/dialogcore/engine/pkg/models"

// evaluateConvergence applies the router-level convergence rule. It is
// distinct from Facilitator.shouldContinue, which only feeds rule (a)
// below.
//
// Priority when multiple rules fire simultaneously: (c) high_satisfaction,
// then (a) facilitator_decision, then (b) natural_consensus — (c) is the
// most specific condition and (a) is a catch-all. max_rounds is handled by
// the caller's loop-exit path, not here.
func evaluateConvergence(consensusGathered bool, state models.DialogueState, consensus []models.ConsensusIndicator, round, numAgents int, cfg Config) (bool, models.ConvergenceReason) {
	if !consensusGathered {
		return false, ""
	}

	avgSatisfaction := averageSatisfaction(consensus)
	readyCount := readyToMoveCount(consensus)
	majority := (numAgents + 1) / 2

	ruleC := avgSatisfaction >= cfg.HighSatisfactionThreshold && readyCount >= majority && round >= 2
	ruleA := !state.ShouldContinue
	ruleB := state.OverallConsensus >= cfg.ConvergenceThreshold && round >= 3

	switch {
	case ruleC:
		return true, models.ReasonHighSatisfaction
	case ruleA:
		return true, models.ReasonFacilitatorDecision
	case ruleB:
		return true, models.ReasonNaturalConsensus
	default:
		return false, ""
	}
}

func averageSatisfaction(consensus []models.ConsensusIndicator) float64 {
	if len(consensus) == 0 {
		return 0
	}
	var sum int
	for _, c := range consensus {
		sum += c.SatisfactionLevel
	}
	return float64(sum) / float64(len(consensus))
}

func readyToMoveCount(consensus []models.ConsensusIndicator) int {
	n := 0
	for _, c := range consensus {
		if c.ReadyToMove {
			n++
		}
	}
	return n
}
