package core

import "fmt"

// The error taxonomy. Everything that happens inside one actor's cycle is
// recovered into that actor's error telemetry; only orchestrator-level
// misuse (duplicate root, bad configuration) surfaces to the caller.

// ValidationError marks a malformed or unrecognized action shape.
// The actor records it and continues.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid action: %s", e.Reason)
}

// FanOutExceeded marks a spawn denied because the parent's children set
// is already at the configured maximum.
type FanOutExceeded struct {
	ActorID     string
	MaxChildren int
}

func (e *FanOutExceeded) Error() string {
	return fmt.Sprintf("actor %s: fan-out exceeded (max %d children)", e.ActorID, e.MaxChildren)
}

// ToolError marks a failed tool invocation. Non-fatal errors are recorded
// and the actor continues; Fatal forces the actor into Errored.
type ToolError struct {
	Tool   string
	Reason string
	Fatal  bool
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Reason)
}

// ProviderError marks an unavailable or misbehaving decision provider.
// The loop records it and retries on the next cycle.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CapacityError marks construction-time misuse: a second root submitted
// to an orchestrator, or a misconfigured memory store. Fatal, surfaced
// synchronously to the caller.
type CapacityError struct {
	Reason string
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity: %s", e.Reason)
}
