package agent

import (
	"fmt"
	"sync"

	"github.com/dialogcore/engine/pkg/executor"
	"github.com/dialogcore/engine/pkg/models"
	"github.com/dialogcore/engine/pkg/retrieval"
)

// Registry is the process-wide, read-mostly-after-startup set of agent
// instances. Built once from the configured roster; routers look agents up
// by id and rebind them to whichever session is currently running.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]*Agent
	order  []string
}

// NewRegistry builds a Registry from descriptors, constructing one Agent per
// descriptor against the given executor factory. retrieverFor may be nil,
// in which case every agent gets a nil retriever.
func NewRegistry(descriptors []models.AgentDescriptor, execFor func(models.AgentDescriptor) executor.Executor, retrieverFor func(models.AgentDescriptor) retrieval.Retriever, memory MemoryConfig) *Registry {
	r := &Registry{agents: make(map[string]*Agent, len(descriptors))}
	for _, d := range descriptors {
		var ret retrieval.Retriever
		if retrieverFor != nil {
			ret = retrieverFor(d)
		}
		r.agents[d.ID] = New(d, execFor(d), ret, memory)
		r.order = append(r.order, d.ID)
	}
	return r
}

// Get returns the agent for id, or (nil, false) if unregistered.
func (r *Registry) Get(id string) (*Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	return a, ok
}

// MustGet panics if id is not registered — reserved for wiring code where an
// unregistered session agent id indicates a configuration bug, not runtime
// input.
func (r *Registry) MustGet(id string) *Agent {
	a, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("agent registry: unknown agent id %q", id))
	}
	return a
}

// Descriptors returns the registered agent descriptors in registration order.
func (r *Registry) Descriptors() []models.AgentDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.AgentDescriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.agents[id].Descriptor())
	}
	return out
}

// For returns the agents bound to the given session's participant ids, in
// the order given.
func (r *Registry) For(agentIDs []string) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(agentIDs))
	for _, id := range agentIDs {
		if a, ok := r.agents[id]; ok {
			out = append(out, a)
		}
	}
	return out
}
