// Package script provides a deterministic provider for offline runs.
// Each actor walks its role's scripted action batches in order and
// stops when the script runs out.
package script

import (
	"context"
	"sync"

	"github.com/djav1985/v-axion-ai/core"
)

// Provider replays canned decisions keyed by actor role. Roles without
// a script fall through to the "" default.
type Provider struct {
	mu      sync.Mutex
	scripts map[string][]core.Decision
	cursor  map[string]int
}

// New builds a provider from per-role decision sequences.
func New(scripts map[string][]core.Decision) *Provider {
	return &Provider{
		scripts: scripts,
		cursor:  make(map[string]int),
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "script" }

// Decide replays the next scripted batch for the actor's role. A role
// past the end of its script gets a stop, so scripted runs terminate.
func (p *Provider) Decide(ctx context.Context, snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot) (core.Decision, error) {
	if err := ctx.Err(); err != nil {
		return core.Decision{}, &core.ProviderError{Provider: p.Name(), Err: err}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	script, ok := p.scripts[snap.Role]
	if !ok {
		script = p.scripts[""]
	}
	i := p.cursor[snap.ID]
	p.cursor[snap.ID] = i + 1
	if i >= len(script) {
		return core.Decision{Actions: []core.Action{{Type: core.ActionStop}}}, nil
	}
	return script[i], nil
}
