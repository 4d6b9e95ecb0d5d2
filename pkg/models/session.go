package models

import "time"

// Session is the aggregate root of a dialogue: a user query, the agents
// taking part, and the append-only log of messages they produce.
//
// messages is append-only: a router may only append to it, never rewrite or
// truncate an existing entry. status='completed' is terminal for the current
// sequence but reopens to 'active' when a new user turn starts a new sequence.
type Session struct {
	ID                  string                  `json:"id"`
	Title               string                  `json:"title"`
	Agents              []AgentDescriptor       `json:"agents"`
	Messages            []Message               `json:"messages"`
	CreatedAt           time.Time               `json:"createdAt"`
	UpdatedAt           time.Time               `json:"updatedAt"`
	Status              SessionStatus           `json:"status"`
	CurrentStage        string                  `json:"currentStage"`
	StageHistory        []StageExecutionRecord  `json:"stageHistory"`
	StageSummaries      []StageSummary          `json:"stageSummaries"`
	SequenceNumber      int                     `json:"sequenceNumber"`
	Language            Language                `json:"language"`
	Version             SessionVersion          `json:"version"`
	ConsensusHistory     []DynamicRoundRecord    `json:"consensusHistory,omitempty"`
	SequenceOutputFiles  map[int]string          `json:"sequenceOutputFiles,omitempty"`
	Metadata             map[string]any          `json:"metadata,omitempty"`
}

// StageExecutionRecord is one stageHistory entry: the agent responses
// produced during a single v1 stage (or v2 round, reusing the same shape).
type StageExecutionRecord struct {
	Stage          string          `json:"stage"`
	StartTime      time.Time       `json:"startTime"`
	EndTime        time.Time       `json:"endTime"`
	AgentResponses []AgentResponse `json:"agentResponses"`
	SequenceNumber int             `json:"sequenceNumber"`
}

// DynamicRoundRecord is one consensusHistory entry for a v2 round.
type DynamicRoundRecord struct {
	Round             int                 `json:"round"`
	Consensus         []ConsensusIndicator `json:"consensus"`
	DialogueState     DialogueState       `json:"dialogueState"`
	ActionsExecuted   []FacilitatorAction `json:"actionsExecuted"`
	ConvergenceReason ConvergenceReason   `json:"convergenceReason,omitempty"`
}

// SessionFilters describes status, version and paging filters for a session
// listing. Store.ListSessions takes no filters, and no handler reads one.
type SessionFilters struct {
	Status  SessionStatus `json:"status,omitempty"`
	Version SessionVersion `json:"version,omitempty"`
	Limit   int           `json:"limit,omitempty"`
	Offset  int           `json:"offset,omitempty"`
}

// NewSequenceStart returns the defaults applied when a sequence begins:
// status transitions to active and currentStage resets to the first stage.
func NewSequenceStart() (SessionStatus, string) {
	return SessionActive, string(StageIndividualThought)
}
