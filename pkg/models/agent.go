package models

// AgentStyle is the dialectic posture an agent brings to the dialogue.
type AgentStyle string

const (
	StyleLogical    AgentStyle = "logical"
	StyleEmotive    AgentStyle = "emotive"
	StyleCritical   AgentStyle = "critical"
	StyleIntuitive  AgentStyle = "intuitive"
	StyleAnalytical AgentStyle = "analytical"
	StyleMeta       AgentStyle = "meta"
)

// AgentPriority is what an agent optimizes its contributions for.
type AgentPriority string

const (
	PriorityPrecision AgentPriority = "precision"
	PriorityBreadth   AgentPriority = "breadth"
	PriorityDepth     AgentPriority = "depth"
)

// MemoryScope bounds how much prior context an agent draws on.
type MemoryScope string

const (
	MemoryLocal       MemoryScope = "local"
	MemorySession     MemoryScope = "session"
	MemoryCrossSession MemoryScope = "cross-session"
)

// AgentDescriptor is the registry's static record for one participant.
// Agent instances (pkg/agent.Agent) carry the mutable session binding;
// the descriptor is the immutable identity/personality data persisted
// alongside a Session.
type AgentDescriptor struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Style              AgentStyle    `json:"style"`
	Priority           AgentPriority `json:"priority"`
	Personality        string        `json:"personality"`
	Preferences        string        `json:"preferences,omitempty"`
	MemoryScope        MemoryScope   `json:"memoryScope"`
	Tone               string        `json:"tone,omitempty"`
	CommunicationStyle string        `json:"communicationStyle,omitempty"`
}

// AgentResponse is the typed wrapper every agent stage method returns.
// A failed executor call is still converted into a well-formed AgentResponse
// (see StageData["success"]=false); the router never observes an exception.
type AgentResponse struct {
	AgentID    string         `json:"agentId"`
	Content    string         `json:"content"`
	Reasoning  string         `json:"reasoning,omitempty"`
	Confidence float64        `json:"confidence,omitempty"`
	Stage      string         `json:"stage"`
	StageData  map[string]any `json:"stageData,omitempty"`
}
