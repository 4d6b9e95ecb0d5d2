package summarizer

import (
	"github.com/dialogcore/engine/pkg/models"
)

// DeriveConflicts compares every pair of individual-thought responses and
// emits a Conflict record when their approach fields differ. Severity is
// always "medium"; the comparison has no finer-grained signal to grade by.
func DeriveConflicts(individualThoughts []models.AgentResponse) []models.Conflict {
	var conflicts []models.Conflict
	for i := 0; i < len(individualThoughts); i++ {
		for j := i + 1; j < len(individualThoughts); j++ {
			a, b := individualThoughts[i], individualThoughts[j]
			approachA, _ := a.StageData["approach"].(string)
			approachB, _ := b.StageData["approach"].(string)
			if approachA == "" || approachB == "" || approachA == approachB {
				continue
			}
			conflicts = append(conflicts, models.Conflict{
				AgentA:   a.AgentID,
				AgentB:   b.AgentID,
				Approach: approachA + " vs. " + approachB,
				Severity: "medium",
			})
		}
	}
	return conflicts
}
