package agent

import (
	"strings"
)

// ContextMessage is one piece of prior dialogue an agent is shown before
// producing its own stage response: either a raw message from another
// participant or a condensed stage/round summary.
type ContextMessage struct {
	Speaker string
	Content string
}

// MemoryConfig bounds how much prior context an agent keeps verbatim before
// compressing older entries. Loaded from the Memory/v2 configuration block.
type MemoryConfig struct {
	MaxRecentMessages int
	TokenThreshold    int
	CompressionRatio  float64
}

// DefaultMemoryConfig matches the documented Memory/v2 defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxRecentMessages: 8,
		TokenThreshold:    4000,
		CompressionRatio:  0.3,
	}
}

// approxTokens estimates token count from word count — enough to drive the
// compression threshold without a real tokenizer dependency.
func approxTokens(s string) int {
	return len(strings.Fields(s))
}

// compress reduces older context entries to one summary entry once the
// accumulated estimated token count exceeds cfg.TokenThreshold, preserving
// the last cfg.MaxRecentMessages entries verbatim.
func compress(cfg MemoryConfig, ctxMsgs []ContextMessage) []ContextMessage {
	total := 0
	for _, m := range ctxMsgs {
		total += approxTokens(m.Content)
	}
	if total <= cfg.TokenThreshold || len(ctxMsgs) <= cfg.MaxRecentMessages {
		return ctxMsgs
	}

	splitAt := len(ctxMsgs) - cfg.MaxRecentMessages
	older, recent := ctxMsgs[:splitAt], ctxMsgs[splitAt:]

	out := make([]ContextMessage, 0, len(recent)+1)
	out = append(out, ContextMessage{
		Speaker: "system",
		Content: summarizeOlder(cfg, older),
	})
	out = append(out, recent...)
	return out
}

func summarizeOlder(cfg MemoryConfig, older []ContextMessage) string {
	var b strings.Builder
	b.WriteString("earlier in this dialogue: ")
	for i, m := range older {
		if i > 0 {
			b.WriteString("; ")
		}
		content := m.Content
		keep := int(float64(len(content)) * cfg.CompressionRatio)
		if keep > 0 && keep < len(content) {
			content = content[:keep] + "..."
		}
		b.WriteString(m.Speaker)
		b.WriteString(": ")
		b.WriteString(content)
	}
	return b.String()
}

func formatContext(ctxMsgs []ContextMessage) string {
	var b strings.Builder
	for _, m := range ctxMsgs {
		b.WriteString(m.Speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}
