package models

// StageSummary is the summarizer's output for one v1 stage: one position
// statement per participating agent.
type StageSummary struct {
	Stage     string        `json:"stage"`
	Positions []SpeakerPosition `json:"positions"`
}

// SpeakerPosition is one agent's one-to-two sentence position in a stage.
type SpeakerPosition struct {
	Speaker  string `json:"speaker"`  // canonical agent id
	Position string `json:"position"`
}

// Conflict records a disagreement surfaced between two agents' individual-thought
// stageData, consumed by the conflict-resolution stage.
type Conflict struct {
	AgentA   string `json:"agentA"`
	AgentB   string `json:"agentB"`
	Approach string `json:"approach"` // short description of the differing approaches
	Severity string `json:"severity"` // always "medium" per the derivation rule
}

// VoteAnalysis is one resolved vote extracted from output-generation content.
type VoteAnalysis struct {
	AgentID     string `json:"agentId"`
	VotedAgent  string `json:"votedAgent,omitempty"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// VoteAnalysisResult is the summarizer's AnalyzeVotes return value.
type VoteAnalysisResult struct {
	VoteAnalysis []VoteAnalysis `json:"voteAnalysis"`
	Content      string         `json:"content"`
}

// OutputArtifact is a finalized answer persisted as outputs/<id>.md and
// referenced from Session.SequenceOutputFiles[sequenceNumber].
type OutputArtifact struct {
	ID             string `json:"id"`
	SessionID      string `json:"sessionId"`
	SequenceNumber int    `json:"sequenceNumber"`
	Content        string `json:"content"`
	CreatedAt      string `json:"createdAt"`
}

// Passage is one retrieved knowledge snippet (the retrieval adapter contract).
type Passage struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source,omitempty"`
}
