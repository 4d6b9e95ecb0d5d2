// Package summarizer reduces a batch of per-stage agent responses into a
// structured per-speaker summary, and separately extracts finalizer votes
// from output-generation content.
package summarizer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
)

// Summarizer calls an executor to produce the natural-language summary text,
// then parses that text back into structured positions/votes. One instance
// is shared across stages and sequences; it holds no session state.
type Summarizer struct {
	exec        executor.Executor
	retryPolicy executor.RetryPolicy
}

// New constructs a Summarizer backed by exec.
func New(exec executor.Executor) *Summarizer {
	return &Summarizer{exec: exec, retryPolicy: executor.DefaultRetryPolicy()}
}

// SummarizeStage asks the executor for a one-to-two-sentence position per
// agent and parses the result into a StageSummary, tolerating dashed
// lists, headed markdown sections, and bolded names.
func (s *Summarizer) SummarizeStage(ctx context.Context, stage string, responses []models.AgentResponse, agents []models.AgentDescriptor, sessionID, language string) models.StageSummary {
	prompt := buildSummaryPrompt(stage, responses, language)
	result := executor.WithRetry(ctx, s.retryPolicy, func(ctx context.Context) executor.Result {
		return s.exec.Execute(ctx, prompt, "You are a neutral summarizer of a multi-agent dialogue.")
	})

	if !result.Success {
		return fallbackSummary(stage, responses)
	}

	positions := parsePositions(result.Content, agents)
	if len(positions) == 0 {
		return fallbackSummary(stage, responses)
	}
	return models.StageSummary{Stage: stage, Positions: positions}
}

func buildSummaryPrompt(stage string, responses []models.AgentResponse, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize each participant's position during the %s stage in one or two sentences each. ", stage)
	b.WriteString("Use the format \"- <agent id>: <position>\", one line per agent, in the language code ")
	b.WriteString(language)
	b.WriteString(".\n\n")
	for _, r := range responses {
		fmt.Fprintf(&b, "%s said: %s\n\n", r.AgentID, r.Content)
	}
	return b.String()
}

func fallbackSummary(stage string, responses []models.AgentResponse) models.StageSummary {
	positions := make([]models.SpeakerPosition, 0, len(responses))
	for _, r := range responses {
		positions = append(positions, models.SpeakerPosition{Speaker: r.AgentID, Position: firstTwoSentences(r.Content)})
	}
	return models.StageSummary{Stage: stage, Positions: positions}
}

func firstTwoSentences(s string) string {
	s = strings.TrimSpace(s)
	count := 0
	for i, r := range s {
		if r == '.' || r == '!' || r == '?' {
			count++
			if count == 2 {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	if len(s) > 200 {
		return s[:200]
	}
	return s
}

// headerPatterns recognize the per-agent section openers the summarizer's
// LM output may use. The first capture group is the raw speaker reference;
// a second group, where a pattern has one, is the position text on the
// same line.
var headerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*-\s*\*{0,2}([^:*]+?)\*{0,2}\s*:\s*(.+)$`),
	regexp.MustCompile(`(?m)^\s*#{1,3}\s*([^\n:]+?)\s*:?\s*$`),
	regexp.MustCompile(`(?m)^\s*\*\*([^*]+?)\*\*\s*:\s*(.+)$`),
}

// parsePositions walks result line by line (not purely regex-FindAll, since
// header-only patterns like markdown ## sections need the following lines
// as body) and resolves each detected speaker reference to a canonical
// agent id, keeping only the first occurrence per agent.
func parsePositions(text string, agents []models.AgentDescriptor) []models.SpeakerPosition {
	lines := strings.Split(text, "\n")
	seen := make(map[string]bool)
	var out []models.SpeakerPosition

	var pendingSpeaker string
	var pendingBody strings.Builder

	flush := func() {
		if pendingSpeaker == "" {
			return
		}
		if id, ok := resolveAgentRef(pendingSpeaker, agents); ok && !seen[id] {
			seen[id] = true
			out = append(out, models.SpeakerPosition{Speaker: id, Position: strings.TrimSpace(pendingBody.String())})
		}
		pendingSpeaker = ""
		pendingBody.Reset()
	}

	for _, line := range lines {
		if matched, speaker, body, hasBody := matchHeader(line); matched {
			flush()
			pendingSpeaker = speaker
			if hasBody {
				pendingBody.WriteString(body)
			}
			continue
		}
		if pendingSpeaker != "" && strings.TrimSpace(line) != "" {
			if pendingBody.Len() > 0 {
				pendingBody.WriteString(" ")
			}
			pendingBody.WriteString(strings.TrimSpace(line))
		}
	}
	flush()

	return out
}

func matchHeader(line string) (matched bool, speaker, body string, hasBody bool) {
	for _, pattern := range headerPatterns {
		groups := pattern.FindStringSubmatch(line)
		if groups == nil {
			continue
		}
		speaker = groups[1]
		if len(groups) > 2 {
			body = groups[2]
			hasBody = true
		}
		return true, speaker, body, hasBody
	}
	return false, "", "", false
}

var furiganaPattern = regexp.MustCompile(`[（(][^）)]*[）)]`)

// resolveAgentRef canonicalizes a raw speaker reference (possibly wrapped in
// markdown emphasis/backticks, or carrying a furigana parenthetical) to a
// registered agent id. Matching is case-insensitive on id and exact on name.
func resolveAgentRef(raw string, agents []models.AgentDescriptor) (string, bool) {
	clean := cleanToken(raw)
	for _, a := range agents {
		if strings.EqualFold(clean, a.ID) {
			return a.ID, true
		}
	}
	for _, a := range agents {
		if clean == a.Name {
			return a.ID, true
		}
	}
	return "", false
}

func cleanToken(raw string) string {
	s := furiganaPattern.ReplaceAllString(raw, "")
	s = strings.Trim(s, " \t*`_#")
	return strings.TrimSpace(s)
}

// voteLinePattern captures the value following any of the vote-token
// introducers: "Agent Vote: <id>", "投票: <id|name>", "Vote: <id>", with
// optional bold/backtick wrapping.
var voteLinePattern = regexp.MustCompile(`(?im)(?:Agent Vote|Vote|投票)\s*[:：]\s*\*{0,2}\s*` + "`{0,1}" + `\s*([\w\p{Han}\p{Hiragana}\p{Katakana}-]+)`)

// AnalyzeVotes extracts one vote per responder from output-generation
// content, rejecting self-votes and resolving the raw token to a canonical
// agent id by id, exact name, or name-with-furigana.
func (s *Summarizer) AnalyzeVotes(responses []models.AgentResponse, agents []models.AgentDescriptor, sessionID, language string) models.VoteAnalysisResult {
	var analysis []models.VoteAnalysis
	var contentParts []string

	for _, r := range responses {
		entry := models.VoteAnalysis{AgentID: r.AgentID}
		if m := voteLinePattern.FindStringSubmatch(r.Content); m != nil {
			if id, ok := resolveAgentRef(m[1], agents); ok && !strings.EqualFold(id, r.AgentID) {
				entry.VotedAgent = id
				entry.Reasoning = reasoningAfterVote(r.Content)
			}
		}
		analysis = append(analysis, entry)
		contentParts = append(contentParts, fmt.Sprintf("%s: %s", r.AgentID, r.Content))
	}

	return models.VoteAnalysisResult{
		VoteAnalysis: analysis,
		Content:      strings.Join(contentParts, "\n\n"),
	}
}

func reasoningAfterVote(content string) string {
	loc := voteLinePattern.FindStringIndex(content)
	if loc == nil {
		return ""
	}
	rest := strings.TrimSpace(content[loc[1]:])
	if idx := strings.IndexByte(rest, '\n'); idx >= 0 {
		rest = rest[:idx]
	}
	return strings.TrimPrefix(strings.TrimSpace(rest), "-")
}
