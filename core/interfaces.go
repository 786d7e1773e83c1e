package core

import (
	"context"
	"encoding/json"
)

// Provider is the decision collaborator: given an actor's observable
// state and the memories recalled for this cycle, it decides the next
// actions. Failures should be *ProviderError so the loop can record
// them and retry next cycle instead of terminating the actor.
type Provider interface {
	// Decide returns the actions for the actor's next cycle. Drained
	// inbox traffic is visible through the snapshot's context buffer.
	Decide(ctx context.Context, snapshot ActorSnapshot, recalled []MemoryEntrySnapshot) (Decision, error)

	// Name identifies the provider in telemetry.
	Name() string
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	// Success reports whether the tool completed its operation.
	Success bool `json:"success"`

	// Data holds the tool's output on success.
	Data any `json:"data,omitempty"`

	// Error describes the failure when Success is false.
	Error string `json:"error,omitempty"`
}

// Tool is one callable tool: a name, an input schema for validation,
// and an execution entry point. Unknown names and disallowed arguments
// surface as *ToolError from the registry, recorded and non-fatal
// unless the tool marks the failure fatal.
type Tool interface {
	// Name returns the tool's unique registry name.
	Name() string

	// Description returns a short human-readable summary used when
	// advertising the tool catalog to providers.
	Description() string

	// InputSchema returns the JSON-schema-shaped description of the
	// tool's arguments.
	InputSchema() map[string]any

	// Execute runs the tool with already-validated arguments.
	Execute(ctx context.Context, args json.RawMessage) (*ToolResult, error)
}

// Invoker is the tool collaborator surface the dispatcher depends on.
type Invoker interface {
	// Invoke validates args against the named tool's schema and runs it.
	Invoke(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error)

	// Describe lists the registered tool catalog.
	Describe() []ToolDescription
}

// ToolDescription is catalog metadata for one registered tool.
type ToolDescription struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
}
