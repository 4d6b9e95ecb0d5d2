package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// dialogYAMLConfig represents the complete dialog.yaml file structure: the
// ambient tuning blocks. Agent roster is loaded separately from agents.yaml.
type dialogYAMLConfig struct {
	Consensus          *ConsensusConfig   `yaml:"consensus"`
	Memory             *MemoryConfig      `yaml:"memory"`
	Facilitator        *FacilitatorConfig `yaml:"facilitator"`
	RAG                *RAGConfig         `yaml:"rag"`
	Router             *RouterConfig      `yaml:"router"`
	Server             *ServerConfig      `yaml:"server"`
	Storage            *StorageConfig     `yaml:"storage"`
	DefaultFinalizerID string             `yaml:"default_finalizer_id"`
}

// agentsYAMLConfig represents the complete agents.yaml roster file.
type agentsYAMLConfig struct {
	Agents []AgentDefinition `yaml:"agents"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in defaults with the loaded tuning blocks
//  5. Validate all configuration
//  6. Return Config ready for use
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("configuration initialized successfully", "agents", len(cfg.Agents))
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	dialogCfg, err := loader.loadDialogYAML()
	if err != nil {
		return nil, NewLoadError("dialog.yaml", err)
	}
	agentsCfg, err := loader.loadAgentsYAML()
	if err != nil {
		return nil, NewLoadError("agents.yaml", err)
	}

	consensus := DefaultConsensusConfig()
	if dialogCfg.Consensus != nil {
		if err := mergo.Merge(&consensus, *dialogCfg.Consensus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge consensus config: %w", err)
		}
	}

	memory := DefaultMemoryConfig()
	if dialogCfg.Memory != nil {
		if err := mergo.Merge(&memory, *dialogCfg.Memory, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge memory config: %w", err)
		}
	}

	facilitator := DefaultFacilitatorConfig()
	if dialogCfg.Facilitator != nil {
		if dialogCfg.Facilitator.InterventionCooldown > 0 {
			facilitator.InterventionCooldown = dialogCfg.Facilitator.InterventionCooldown
		}
		for action, priority := range dialogCfg.Facilitator.ActionPriority {
			facilitator.ActionPriority[action] = priority
		}
	}

	rag := DefaultRAGConfig()
	if dialogCfg.RAG != nil {
		if err := mergo.Merge(&rag, *dialogCfg.RAG, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge rag config: %w", err)
		}
	}

	router := DefaultRouterConfig()
	if dialogCfg.Router != nil {
		if err := mergo.Merge(&router, *dialogCfg.Router, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge router config: %w", err)
		}
	}

	server := DefaultServerConfig()
	if dialogCfg.Server != nil {
		if err := mergo.Merge(&server, *dialogCfg.Server, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge server config: %w", err)
		}
	}

	storage := DefaultStorageConfig()
	if dialogCfg.Storage != nil {
		if err := mergo.Merge(&storage, *dialogCfg.Storage, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merge storage config: %w", err)
		}
	}

	defaultFinalizer := dialogCfg.DefaultFinalizerID
	if defaultFinalizer == "" && len(agentsCfg.Agents) > 0 {
		defaultFinalizer = agentsCfg.Agents[0].ID
	}

	return &Config{
		configDir:          configDir,
		Agents:             agentsCfg.Agents,
		Consensus:          consensus,
		Memory:             memory,
		Facilitator:        facilitator,
		RAG:                rag,
		Router:             router,
		Server:             server,
		Storage:            storage,
		DefaultFinalizerID: defaultFinalizer,
	}, nil
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return nil
}

func (l *configLoader) loadDialogYAML() (*dialogYAMLConfig, error) {
	var cfg dialogYAMLConfig
	if err := l.loadYAML("dialog.yaml", &cfg); err != nil {
		if errIsNotFound(err) {
			return &dialogYAMLConfig{}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (l *configLoader) loadAgentsYAML() (*agentsYAMLConfig, error) {
	var cfg agentsYAMLConfig
	if err := l.loadYAML("agents.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func errIsNotFound(err error) bool {
	return err != nil && (os.IsNotExist(err) || isWrapped(err, ErrConfigNotFound))
}

func isWrapped(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
