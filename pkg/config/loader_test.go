package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, dialogYAML, agentsYAML string) string {
	t.Helper()
	dir := t.TempDir()
	if dialogYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "dialog.yaml"), []byte(dialogYAML), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "agents.yaml"), []byte(agentsYAML), 0o644))
	return dir
}

const minimalAgents = `
agents:
  - id: alpha
    name: Alpha
    style: logical
    priority: precision
    personality: terse and direct
  - id: beta
    name: Beta
    style: emotive
    priority: breadth
    personality: warm and exploratory
`

func TestInitialize_AppliesDefaultsWhenTuningBlocksOmitted(t *testing.T) {
	dir := writeConfigDir(t, "", minimalAgents)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultConsensusConfig(), cfg.Consensus)
	assert.Equal(t, DefaultMemoryConfig(), cfg.Memory)
	assert.Equal(t, "alpha", cfg.DefaultFinalizerID, "first roster agent becomes the default finalizer")
	assert.Len(t, cfg.Agents, 2)
}

func TestInitialize_UserValuesOverrideDefaults(t *testing.T) {
	dialogYAML := `
consensus:
  max_rounds: 20
  convergence_threshold: 8.5
server:
  listen_addr: ":9999"
`
	dir := writeConfigDir(t, dialogYAML, minimalAgents)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.Consensus.MaxRounds)
	assert.Equal(t, 8.5, cfg.Consensus.ConvergenceThreshold)
	assert.Equal(t, DefaultConsensusConfig().MinSatisfactionLevel, cfg.Consensus.MinSatisfactionLevel, "unset fields keep their default")
	assert.Equal(t, ":9999", cfg.Server.ListenAddr)
}

func TestInitialize_RejectsEmptyRoster(t *testing.T) {
	dir := writeConfigDir(t, "", "agents: []\n")

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrMissingRequiredField)
}

func TestInitialize_RejectsOutOfRangeConsensusBounds(t *testing.T) {
	dialogYAML := "consensus:\n  max_rounds: 2\n"
	dir := writeConfigDir(t, dialogYAML, minimalAgents)

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestInitialize_RejectsUnknownDefaultFinalizer(t *testing.T) {
	dialogYAML := "default_finalizer_id: ghost\n"
	dir := writeConfigDir(t, dialogYAML, minimalAgents)

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrInvalidReference)
}

func TestInitialize_MissingAgentsFileIsAnError(t *testing.T) {
	dir := t.TempDir()

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestAgentByID(t *testing.T) {
	dir := writeConfigDir(t, "", minimalAgents)
	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	found, err := cfg.AgentByID("beta")
	require.NoError(t, err)
	assert.Equal(t, "Beta", found.Name)

	_, err = cfg.AgentByID("ghost")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}
