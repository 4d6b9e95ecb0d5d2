package config

import "fmt"

// Validator checks a loaded Config against the documented bounds for each
// tuning block, and cross-references roster ids.
type Validator struct {
	cfg *Config
}

// NewValidator constructs a Validator for cfg.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll runs every check, returning the first failure encountered.
func (v *Validator) ValidateAll() error {
	if err := v.validateAgents(); err != nil {
		return err
	}
	if err := v.validateConsensus(); err != nil {
		return err
	}
	if err := v.validateMemory(); err != nil {
		return err
	}
	if err := v.validateFacilitator(); err != nil {
		return err
	}
	if err := v.validateDefaultFinalizer(); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validateAgents() error {
	if len(v.cfg.Agents) == 0 {
		return NewValidationError("agents", "", "", fmt.Errorf("%w: at least one agent is required", ErrMissingRequiredField))
	}
	seen := make(map[string]bool, len(v.cfg.Agents))
	for _, a := range v.cfg.Agents {
		if a.ID == "" {
			return NewValidationError("agent", "", "id", ErrMissingRequiredField)
		}
		if seen[a.ID] {
			return NewValidationError("agent", a.ID, "id", fmt.Errorf("%w: duplicate agent id", ErrInvalidValue))
		}
		seen[a.ID] = true
		if a.Personality == "" {
			return NewValidationError("agent", a.ID, "personality", ErrMissingRequiredField)
		}
		if !validStyle(a.Style) {
			return NewValidationError("agent", a.ID, "style", fmt.Errorf("%w: %q", ErrInvalidValue, a.Style))
		}
		if !validPriority(a.Priority) {
			return NewValidationError("agent", a.ID, "priority", fmt.Errorf("%w: %q", ErrInvalidValue, a.Priority))
		}
	}
	return nil
}

func validStyle(s string) bool {
	switch s {
	case "logical", "emotive", "critical", "intuitive", "analytical", "meta":
		return true
	default:
		return false
	}
}

func validPriority(p string) bool {
	switch p {
	case "precision", "breadth", "depth":
		return true
	default:
		return false
	}
}

func (v *Validator) validateConsensus() error {
	c := v.cfg.Consensus
	if c.MaxRounds < 5 || c.MaxRounds > 50 {
		return NewValidationError("consensus", "", "max_rounds", fmt.Errorf("%w: must be 5-50, got %d", ErrInvalidValue, c.MaxRounds))
	}
	if c.ConvergenceThreshold < 5.0 || c.ConvergenceThreshold > 10.0 {
		return NewValidationError("consensus", "", "convergence_threshold", fmt.Errorf("%w: must be 5.0-10.0, got %v", ErrInvalidValue, c.ConvergenceThreshold))
	}
	if c.MinSatisfactionLevel < 1 || c.MinSatisfactionLevel > 10 {
		return NewValidationError("consensus", "", "min_satisfaction_level", fmt.Errorf("%w: must be 1-10, got %d", ErrInvalidValue, c.MinSatisfactionLevel))
	}
	return nil
}

func (v *Validator) validateMemory() error {
	m := v.cfg.Memory
	if m.MaxRecentMessages < 1 || m.MaxRecentMessages > 20 {
		return NewValidationError("memory", "", "max_recent_messages", fmt.Errorf("%w: must be 1-20, got %d", ErrInvalidValue, m.MaxRecentMessages))
	}
	if m.TokenThreshold < 1000 || m.TokenThreshold > 50000 {
		return NewValidationError("memory", "", "token_threshold", fmt.Errorf("%w: must be 1000-50000, got %d", ErrInvalidValue, m.TokenThreshold))
	}
	if m.CompressionRatio < 0.1 || m.CompressionRatio > 1.0 {
		return NewValidationError("memory", "", "compression_ratio", fmt.Errorf("%w: must be 0.1-1.0, got %v", ErrInvalidValue, m.CompressionRatio))
	}
	return nil
}

func (v *Validator) validateFacilitator() error {
	for action, priority := range v.cfg.Facilitator.ActionPriority {
		if priority < 1 || priority > 10 {
			return NewValidationError("facilitator", action, "action_priority", fmt.Errorf("%w: must be 1-10, got %d", ErrInvalidValue, priority))
		}
	}
	if cd := v.cfg.Facilitator.InterventionCooldown; cd < 0 || cd > 10 {
		return NewValidationError("facilitator", "", "intervention_cooldown", fmt.Errorf("%w: must be 0-10, got %d", ErrInvalidValue, cd))
	}
	return nil
}

func (v *Validator) validateDefaultFinalizer() error {
	if v.cfg.DefaultFinalizerID == "" {
		return nil
	}
	if _, err := v.cfg.AgentByID(v.cfg.DefaultFinalizerID); err != nil {
		return NewValidationError("config", "", "default_finalizer_id", fmt.Errorf("%w: %q is not a registered agent", ErrInvalidReference, v.cfg.DefaultFinalizerID))
	}
	return nil
}
