// Package agent provides the dialogue participant: a stateful wrapper
// around an Executor that exposes one method per dialogue stage.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/retrieval"
)

// StageInput is what the router hands an agent for one stage or round
// invocation: the original query, prior context composed per the stage's
// input-composition rule, and an optional extra instruction block for
// stage-specific prompting (e.g. a v2 action's targeted instructions).
type StageInput struct {
	Stage             string
	Query             string
	Context           []ContextMessage
	ExtraInstructions string
}

// Agent is a dialogue participant bound to one session at a time. Agent
// instances live for the process lifetime and are rebound on each new
// session assignment; they never call another agent directly — all
// coordination is the router's job.
type Agent struct {
	mu sync.Mutex

	descriptor  models.AgentDescriptor
	exec        executor.Executor
	retriever   retrieval.Retriever
	memory      MemoryConfig
	retryPolicy executor.RetryPolicy

	sessionID string
}

// New constructs an Agent. retriever may be nil (no retrieval hook).
func New(descriptor models.AgentDescriptor, exec executor.Executor, retriever retrieval.Retriever, memory MemoryConfig) *Agent {
	return &Agent{
		descriptor:  descriptor,
		exec:        exec,
		retriever:   retriever,
		memory:      memory,
		retryPolicy: executor.DefaultRetryPolicy(),
	}
}

// Descriptor returns the agent's static identity data.
func (a *Agent) Descriptor() models.AgentDescriptor {
	return a.descriptor
}

// BindSession rebinds this agent instance to a new session, resetting any
// per-session state. Called by the router when a sequence begins.
func (a *Agent) BindSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionID = sessionID
}

// stageTemplate is the fixed instruction text appended after the agent's
// personality for a given v1 stage label. v2 pseudo-stages supply their own
// instructions via StageInput.ExtraInstructions.
var stageTemplate = map[string]string{
	string(models.StageIndividualThought):  "Share your own first-pass thinking on the query below. Be direct about your own perspective before considering anyone else's.",
	string(models.StageMutualReflection):   "Read the other participants' individual thoughts below and reflect on where you agree or diverge, and why.",
	string(models.StageConflictResolution): "The disagreements below were derived from the individual-thought stage. Propose how each might be reconciled.",
	string(models.StageSynthesisAttempt):   "Attempt to synthesize the discussion so far into a coherent answer, using the summary below.",
	string(models.StageOutputGeneration):   "Produce your candidate final answer, then vote for which participant (not yourself) should author the synthesized response. End with a line such as \"Vote: <agent-id>\" naming your choice.",
}

// runStage builds the full prompt, invokes the executor with retry, and
// wraps the outcome in a well-formed AgentResponse. No error is ever
// returned: an unsuccessful executor call is converted to a response whose
// stageData carries success=false, per the failure-isolation policy.
func (a *Agent) runStage(ctx context.Context, in StageInput) models.AgentResponse {
	ctxMsgs := in.Context
	if in.Stage == string(models.StageIndividualThought) && a.retriever != nil {
		if passages, err := a.Retrieve(ctx, in.Query, 0); err == nil && len(passages) > 0 {
			ctxMsgs = append(passagesAsContext(passages), ctxMsgs...)
		}
	}
	ctxMsgs = compress(a.memory, ctxMsgs)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Query: %s\n\n", in.Query)
	if instructions, ok := stageTemplate[in.Stage]; ok {
		prompt.WriteString(instructions)
	}
	if in.ExtraInstructions != "" {
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(in.ExtraInstructions)
	}
	if formatted := formatContext(ctxMsgs); formatted != "" {
		fmt.Fprintf(&prompt, "\n\nContext:\n%s", formatted)
	}

	result := executor.WithRetry(ctx, a.retryPolicy, func(ctx context.Context) executor.Result {
		return a.exec.Execute(ctx, prompt.String(), a.descriptor.Personality)
	})

	resp := models.AgentResponse{
		AgentID: a.descriptor.ID,
		Stage:   in.Stage,
	}
	if !result.Success {
		resp.Content = fallbackContent(a.descriptor, in.Stage)
		resp.StageData = map[string]any{"success": false, "error": result.Error}
		return resp
	}

	resp.Content = result.Content
	resp.StageData = map[string]any{
		"success":  true,
		"approach": firstSentence(result.Content),
	}
	return resp
}

func fallbackContent(d models.AgentDescriptor, stage string) string {
	return fmt.Sprintf("%s was unable to respond during %s; continuing without this contribution.", d.Name, stage)
}

func firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, ".!?\n"); idx > 0 {
		return s[:idx+1]
	}
	if len(s) > 160 {
		return s[:160]
	}
	return s
}

// IndividualThought runs the v1 "individual-thought" stage.
func (a *Agent) IndividualThought(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageIndividualThought)
	return a.runStage(ctx, in)
}

// MutualReflection runs the v1 "mutual-reflection" stage.
func (a *Agent) MutualReflection(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageMutualReflection)
	return a.runStage(ctx, in)
}

// ConflictResolution runs the v1 "conflict-resolution" stage.
func (a *Agent) ConflictResolution(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageConflictResolution)
	return a.runStage(ctx, in)
}

// SynthesisAttempt runs the v1 "synthesis-attempt" stage.
func (a *Agent) SynthesisAttempt(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageSynthesisAttempt)
	return a.runStage(ctx, in)
}

// OutputGeneration runs the v1 "output-generation" stage. The response must
// contain a vote for a different agent; the router/summarizer is responsible
// for parsing and rejecting self-votes, not the agent.
func (a *Agent) OutputGeneration(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageOutputGeneration)
	return a.runStage(ctx, in)
}

// Finalize runs the "finalize" stage: authoring the synthesized final answer
// given the full voting results and output-generation responses.
func (a *Agent) Finalize(ctx context.Context, in StageInput) models.AgentResponse {
	in.Stage = string(models.StageFinalize)
	return a.runStage(ctx, in)
}

// RunDynamicStage runs a v2 pseudo-stage (deep-dive, clarification,
// perspective-shift, summary, redirect, voting) whose instructions are
// assembled by the caller and passed as ExtraInstructions.
func (a *Agent) RunDynamicStage(ctx context.Context, stage string, in StageInput) models.AgentResponse {
	in.Stage = stage
	return a.runStage(ctx, in)
}

// Retrieve augments context with passages from the agent's retriever, if
// bound. A nil retriever is a no-op, not an error. runStage consults it
// before the individual-thought stage; a topK of 0 defers to the
// retriever's configured default.
func (a *Agent) Retrieve(ctx context.Context, query string, topK int) ([]models.Passage, error) {
	if a.retriever == nil {
		return nil, nil
	}
	passages, err := a.retriever.Retrieve(ctx, query, topK)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed: %w", err)
	}
	return passages, nil
}

// passagesAsContext renders retrieved knowledge as context entries shown
// ahead of the dialogue itself.
func passagesAsContext(passages []models.Passage) []ContextMessage {
	out := make([]ContextMessage, 0, len(passages))
	for _, p := range passages {
		speaker := "knowledge"
		if p.Source != "" {
			speaker = "knowledge:" + p.Source
		}
		out = append(out, ContextMessage{Speaker: speaker, Content: p.Content})
	}
	return out
}
