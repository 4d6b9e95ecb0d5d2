// Package executor defines the uniform contract every external LM provider
// must satisfy: a single Execute call that never propagates an exception
// across the boundary, always returning a populated ExecutionResult.
package executor

import (
	"context"
	"regexp"
	"strings"
	"time"
)

// Config holds the per-instance tuning knobs an Executor is constructed with.
// A provider that does not accept a given knob silently drops it; a provider
// whose model family uses a different name for a knob (e.g. a completion-token
// cap instead of a generic max-token cap) maps it internally.
type Config struct {
	Provider            string
	Model               string
	Temperature         float64
	TopP                float64
	TopK                int
	MaxTokens           int
	RepetitionPenalty   float64
	PresencePenalty     float64
	FrequencyPenalty    float64
	CustomConfig        CustomConfig
}

// CustomConfig carries provider-specific connection details.
type CustomConfig struct {
	APIKey      string
	BaseURL     string
	ModelPath   string
	ContextSize int
	GPULayers   int
}

// Result is what every Executor.Execute call returns, success or not.
type Result struct {
	Content      string
	Model        string
	Duration     time.Duration
	Success      bool
	TokensUsed   int
	Error        string
	ErrorDetails map[string]any
}

// Executor performs a single LM call for a given prompt and personality text.
// Implementations must never panic or return a Go error from Execute; every
// outcome, including provider failure, is encoded in the returned Result.
type Executor interface {
	Execute(ctx context.Context, prompt, personality string) Result
}

var thinkingTagPattern = regexp.MustCompile(`(?is)<thinking>.*?</thinking>|<think>.*?</think>`)

// Sanitize strips thinking-tag markers and trims the result. Applied to
// every success path by every Executor implementation in this package.
func Sanitize(content string) string {
	stripped := thinkingTagPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(stripped)
}
