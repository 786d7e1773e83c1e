// Package tools implements the registry of callable tools and the
// builtin catalog: file I/O behind a path allowlist, shell execution
// behind a command allowlist, an HTTP client with a response cache,
// and meta tools for inspecting the catalog itself.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/djav1985/v-axion-ai/core"
)

// Registry holds named tools and validates arguments against each
// tool's input schema before execution.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]core.Tool)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t core.Tool) error {
	if t.Name() == "" {
		return fmt.Errorf("tool name must be non-empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Invoke validates args against the named tool's schema and runs it.
// Unknown names and schema violations surface as *core.ToolError.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, &core.ToolError{Tool: name, Reason: "unknown tool"}
	}
	if err := validateArgs(t.InputSchema(), args); err != nil {
		return nil, &core.ToolError{Tool: name, Reason: fmt.Sprintf("validation failed: %v", err)}
	}
	return t.Execute(ctx, args)
}

// Describe lists the registered catalog sorted by name.
func (r *Registry) Describe() []core.ToolDescription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.ToolDescription, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, core.ToolDescription{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.InputSchema(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// funcTool adapts a plain function into a core.Tool.
type funcTool struct {
	name   string
	desc   string
	schema map[string]any
	fn     func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error)
}

// NewTool wraps a function as a registrable tool.
func NewTool(name, desc string, schema map[string]any, fn func(ctx context.Context, args json.RawMessage) (*core.ToolResult, error)) core.Tool {
	return &funcTool{name: name, desc: desc, schema: schema, fn: fn}
}

func (t *funcTool) Name() string                { return t.name }
func (t *funcTool) Description() string         { return t.desc }
func (t *funcTool) InputSchema() map[string]any { return t.schema }

func (t *funcTool) Execute(ctx context.Context, args json.RawMessage) (*core.ToolResult, error) {
	return t.fn(ctx, args)
}

// ok builds a success result.
func ok(data any) *core.ToolResult {
	return &core.ToolResult{Success: true, Data: data}
}

// fail builds a failure result.
func fail(format string, args ...any) *core.ToolResult {
	return &core.ToolResult{Success: false, Error: fmt.Sprintf(format, args...)}
}
