package config

import "time"

// ExecutorConfig configures one provider-backed Executor instance. A
// provider that does not accept a given knob silently drops it; providers
// whose model families use a different parameter name map internally, and
// that mapping lives in the executor implementation chosen for
// AgentDefinition.Provider, not here.
type ExecutorConfig struct {
	Provider          string        `yaml:"provider"`
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	TopP              float64       `yaml:"top_p"`
	TopK              int           `yaml:"top_k"`
	MaxTokens         int           `yaml:"max_tokens"`
	RepetitionPenalty float64       `yaml:"repetition_penalty"`
	PresencePenalty   float64       `yaml:"presence_penalty"`
	FrequencyPenalty  float64       `yaml:"frequency_penalty"`
	CustomConfig      CustomConfig  `yaml:"custom_config"`
}

// CustomConfig carries provider-specific connection details.
type CustomConfig struct {
	APIKeyEnv   string `yaml:"api_key_env"`
	BaseURL     string `yaml:"base_url"`
	ModelPath   string `yaml:"model_path"`
	ContextSize int    `yaml:"context_size"`
	GPULayers   int    `yaml:"gpu_layers"`
}

// ConsensusConfig bounds the v2 dynamic router's round loop.
type ConsensusConfig struct {
	MaxRounds            int     `yaml:"max_rounds"`            // 5-50
	ConvergenceThreshold float64 `yaml:"convergence_threshold"` // 5.0-10.0
	MinSatisfactionLevel int     `yaml:"min_satisfaction_level"` // 1-10
}

// DefaultConsensusConfig is the default round-loop tuning.
func DefaultConsensusConfig() ConsensusConfig {
	return ConsensusConfig{
		MaxRounds:            10,
		ConvergenceThreshold: 7.0,
		MinSatisfactionLevel: 5,
	}
}

// MemoryConfig bounds an agent's context-compression policy.
type MemoryConfig struct {
	MaxRecentMessages int     `yaml:"max_recent_messages"` // 1-20
	TokenThreshold    int     `yaml:"token_threshold"`     // 1000-50000
	CompressionRatio  float64 `yaml:"compression_ratio"`   // 0.1-1.0
}

// DefaultMemoryConfig matches the documented Memory/v2 defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{MaxRecentMessages: 8, TokenThreshold: 4000, CompressionRatio: 0.3}
}

// FacilitatorConfig tunes the v2 facilitator's action preferences.
type FacilitatorConfig struct {
	ActionPriority      map[string]int `yaml:"action_priority"` // each 1-10
	InterventionCooldown int           `yaml:"intervention_cooldown"` // 0-10
}

// DefaultFacilitatorConfig assigns a default priority to every action type.
func DefaultFacilitatorConfig() FacilitatorConfig {
	return FacilitatorConfig{
		ActionPriority: map[string]int{
			"deep_dive":         7,
			"clarification":     6,
			"perspective_shift": 5,
			"summarize":         5,
			"conclude":          8,
			"redirect":          6,
		},
		InterventionCooldown: 2,
	}
}

// RAGConfig configures the optional knowledge-retrieval hook.
type RAGConfig struct {
	Enabled   bool            `yaml:"enabled"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// IngestionConfig bounds how source documents are chunked for retrieval.
// KnowledgeDir is resolved relative to the config directory when not
// absolute; its matching files are ingested once at startup.
type IngestionConfig struct {
	KnowledgeDir       string   `yaml:"knowledge_dir"`
	ChunkSize          int      `yaml:"chunk_size"`
	ChunkOverlap       int      `yaml:"chunk_overlap"`
	SupportedFileTypes []string `yaml:"supported_file_types"`
	BatchSize          int      `yaml:"batch_size"`
}

// RetrievalConfig bounds one retrieval call's shape.
type RetrievalConfig struct {
	DefaultTopK      int     `yaml:"default_top_k"`
	DefaultMinScore  float64 `yaml:"default_min_score"`
	MaxContextTokens int     `yaml:"max_context_tokens"`
}

// DefaultRAGConfig disables retrieval unless a dialog.yaml opts in.
func DefaultRAGConfig() RAGConfig {
	return RAGConfig{
		Enabled: false,
		Ingestion: IngestionConfig{
			KnowledgeDir:       "./knowledge",
			ChunkSize:          800,
			ChunkOverlap:       100,
			SupportedFileTypes: []string{".md", ".txt"},
			BatchSize:          16,
		},
		Retrieval: RetrievalConfig{
			DefaultTopK:      3,
			DefaultMinScore:  0.1,
			MaxContextTokens: 2000,
		},
	}
}

// AgentDefinition is one roster entry: identity/personality plus the
// executor configuration backing it. Maps to models.AgentDescriptor plus
// the wiring details the registry needs to construct an agent.Agent.
type AgentDefinition struct {
	ID                 string          `yaml:"id"`
	Name               string          `yaml:"name"`
	Style              string          `yaml:"style"`
	Priority           string          `yaml:"priority"`
	Personality        string          `yaml:"personality"`
	Preferences        string          `yaml:"preferences"`
	MemoryScope        string          `yaml:"memory_scope"`
	Tone               string          `yaml:"tone"`
	CommunicationStyle string          `yaml:"communication_style"`
	Executor           ExecutorConfig  `yaml:"executor"`
}

// RouterConfig bounds both routers' pacing delay and the v2 fan-out.
type RouterConfig struct {
	Delay         time.Duration `yaml:"delay"`
	MaxConcurrent int           `yaml:"max_concurrent"` // v2 fanout bound
}

// DefaultRouterConfig paces agents a few hundred milliseconds apart.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{Delay: 300 * time.Millisecond, MaxConcurrent: 4}
}

// ServerConfig bounds the HTTP/realtime surface (pkg/api's collaborator
// boundary — specified here only so dialogd's entrypoint has one place to
// read listen address and allowed origins from).
type ServerConfig struct {
	ListenAddr       string   `yaml:"listen_addr"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// DefaultServerConfig listens on every interface for local development.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{ListenAddr: ":8080", AllowedWSOrigins: []string{"http://localhost:5173"}}
}

// StorageConfig points at the on-disk roots for sessions/logs/outputs.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// DefaultStorageConfig keeps state under a relative ./data directory.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{DataDir: "./data"}
}

// Config is the fully-resolved, validated configuration for one dialogd
// process: the agent roster plus every ambient tuning block.
type Config struct {
	configDir string

	Agents      []AgentDefinition `yaml:"-"`
	Consensus   ConsensusConfig   `yaml:"consensus"`
	Memory      MemoryConfig      `yaml:"memory"`
	Facilitator FacilitatorConfig `yaml:"facilitator"`
	RAG         RAGConfig         `yaml:"rag"`
	Router      RouterConfig      `yaml:"router"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	DefaultFinalizerID string     `yaml:"default_finalizer_id"`
}

// ConfigDir returns the directory the configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// AgentByID returns the roster entry for id, or ErrAgentNotFound.
func (c *Config) AgentByID(id string) (*AgentDefinition, error) {
	for i := range c.Agents {
		if c.Agents[i].ID == id {
			return &c.Agents[i], nil
		}
	}
	return nil, ErrAgentNotFound
}
