package models

// DialogueStage is one of the five fixed v1 stages, plus finalize.
type DialogueStage string

const (
	StageIndividualThought  DialogueStage = "individual-thought"
	StageMutualReflection   DialogueStage = "mutual-reflection"
	StageConflictResolution DialogueStage = "conflict-resolution"
	StageSynthesisAttempt   DialogueStage = "synthesis-attempt"
	StageOutputGeneration   DialogueStage = "output-generation"
	StageFinalize           DialogueStage = "finalize"
)

// orderedStages is the fixed v1 pipeline order.
var orderedStages = []DialogueStage{
	StageIndividualThought,
	StageMutualReflection,
	StageConflictResolution,
	StageSynthesisAttempt,
	StageOutputGeneration,
	StageFinalize,
}

// OrderedStages returns the fixed v1 stage sequence.
func OrderedStages() []DialogueStage {
	out := make([]DialogueStage, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// SummaryStage returns the derived summary stage label for a v1 stage.
// Finalize and output-generation have no summary stage.
func (s DialogueStage) SummaryStage() (DialogueStage, bool) {
	switch s {
	case StageOutputGeneration, StageFinalize:
		return "", false
	default:
		return s + "-summary", true
	}
}

// Index returns the stage's position in the fixed pipeline, or -1 if unknown.
func (s DialogueStage) Index() int {
	for i, st := range orderedStages {
		if st == s {
			return i
		}
	}
	return -1
}

// DynamicStage labels messages produced by the v2 round loop.
type DynamicStage string

const (
	DynamicDeepDive         DynamicStage = "deep-dive"
	DynamicClarification    DynamicStage = "clarification"
	DynamicPerspectiveShift DynamicStage = "perspective-shift"
	DynamicSummary          DynamicStage = "summary"
	DynamicRedirect         DynamicStage = "redirect"
	DynamicFacilitator      DynamicStage = "facilitator"
	DynamicVoting           DynamicStage = "voting"
)

// SessionStatus is the lifecycle status of a Session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// SessionVersion selects the orchestration regime for a session.
type SessionVersion string

const (
	VersionV1 SessionVersion = "v1"
	VersionV2 SessionVersion = "v2"
)

// Language selects the summarizer/prompt language.
type Language string

const (
	LanguageEN Language = "en"
	LanguageJA Language = "ja"
)

// MessageRole is the role of a message's author.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Well-known non-agent message author ids.
const (
	AgentIDUser        = "user"
	AgentIDSystem      = "system"
	AgentIDFacilitator = "facilitator-001"
)

// FacilitatorActionType enumerates the interventions the facilitator may suggest.
type FacilitatorActionType string

const (
	ActionDeepDive         FacilitatorActionType = "deep_dive"
	ActionClarification    FacilitatorActionType = "clarification"
	ActionPerspectiveShift FacilitatorActionType = "perspective_shift"
	ActionSummarize        FacilitatorActionType = "summarize"
	ActionConclude         FacilitatorActionType = "conclude"
	ActionRedirect         FacilitatorActionType = "redirect"
)

// ConvergenceReason names why the dynamic router stopped running rounds.
type ConvergenceReason string

const (
	ReasonNaturalConsensus    ConvergenceReason = "natural_consensus"
	ReasonFacilitatorDecision ConvergenceReason = "facilitator_decision"
	ReasonHighSatisfaction    ConvergenceReason = "high_satisfaction"
	ReasonMaxRounds           ConvergenceReason = "max_rounds"
)
