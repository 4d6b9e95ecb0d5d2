package models

// ConsensusIndicator is one agent's self-reported state for a v2 round.
type ConsensusIndicator struct {
	AgentID            string   `json:"agentId"`
	SatisfactionLevel  int      `json:"satisfactionLevel"` // 1-10
	HasAdditionalPoints bool     `json:"hasAdditionalPoints"`
	QuestionsForOthers []string `json:"questionsForOthers,omitempty"`
	ReadyToMove        bool     `json:"readyToMove"`
	Reasoning          string   `json:"reasoning"`
}

// DialogueState is the facilitator's per-round analysis output.
type DialogueState struct {
	CurrentTopic      string              `json:"currentTopic"`
	RoundNumber       int                 `json:"roundNumber"`
	ParticipantStates []ConsensusIndicator `json:"participantStates"`
	OverallConsensus  float64             `json:"overallConsensus"` // 0-10
	SuggestedActions  []FacilitatorAction `json:"suggestedActions"`
	ShouldContinue    bool                `json:"shouldContinue"`
}

// FacilitatorAction is one suggested intervention.
type FacilitatorAction struct {
	Type     FacilitatorActionType `json:"type"`
	Target   string                `json:"target,omitempty"`
	Reason   string                `json:"reason"`
	Priority int                   `json:"priority"` // 1-10
}

// VotingBallot is one agent's vote for who should finalize (v2) or for a
// vote parsed out of v1 output-generation content.
type VotingBallot struct {
	VoterAgentID string `json:"voterAgentId"`
	VotedAgentID string `json:"votedAgentId"`
	Reasoning    string `json:"reasoning,omitempty"`
}

// FacilitatorLogRecord is one entry in the per-session facilitator log,
// flushed to logs/<sessionId>/facilitator/facilitator-r<round>-<action>-<ts>.json.
type FacilitatorLogRecord struct {
	RoundNumber     int                `json:"roundNumber"`
	Timestamp       string             `json:"timestamp"`
	Action          string             `json:"action"`
	Decision        FacilitatorDecision `json:"decision"`
	ExecutionDetails map[string]any    `json:"executionDetails,omitempty"`
}

// FacilitatorDecision captures the reasoning behind a facilitator invocation.
type FacilitatorDecision struct {
	Reasoning        string              `json:"reasoning"`
	DataAnalyzed     map[string]any      `json:"dataAnalyzed,omitempty"`
	SuggestedActions []FacilitatorAction `json:"suggestedActions"`
	SelectedAction   *FacilitatorAction  `json:"selectedAction,omitempty"`
}
