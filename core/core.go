package core

import "time"

// MessageKind classifies inter-actor traffic.
type MessageKind string

const (
	// KindChat is ordinary conversational traffic between actors or from the user.
	KindChat MessageKind = "chat"

	// KindSystem is orchestrator-originated traffic (lifecycle notices, status).
	KindSystem MessageKind = "system"

	// KindToolResult carries the outcome of a tool invocation back to an actor.
	KindToolResult MessageKind = "tool_result"

	// KindInjection is out-of-band input injected by an operator or watcher.
	KindInjection MessageKind = "injection"
)

// Message is one unit of inter-actor communication.
// Messages are immutable once enqueued.
type Message struct {
	SenderID    string      `json:"sender_id"`
	RecipientID string      `json:"recipient_id"`
	Content     string      `json:"content"`
	Kind        MessageKind `json:"kind"`
	Timestamp   time.Time   `json:"timestamp"`
}

// ActorState is the lifecycle state of a monologue actor.
//
// Transitions are monotone toward the terminal states Stopped and Errored,
// with the single exception of WaitingOnChild <-> Running.
type ActorState string

const (
	StateIdle           ActorState = "idle"
	StateRunning        ActorState = "running"
	StateWaitingOnChild ActorState = "waiting_on_child"
	StateStopped        ActorState = "stopped"
	StateErrored        ActorState = "errored"
)

// Terminal reports whether the state admits no further transitions.
func (s ActorState) Terminal() bool {
	return s == StateStopped || s == StateErrored
}

// ActorSnapshot is a read-only copy of one actor's observable state,
// consumed by dashboards and by decision providers as prompt context.
type ActorSnapshot struct {
	ID         string         `json:"id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Role       string         `json:"role"`
	Goal       string         `json:"goal"`
	State      ActorState     `json:"state"`
	Step       int            `json:"step"`
	MaxSteps   int            `json:"max_steps"`
	Children   []string       `json:"children"`
	InboxSize  int            `json:"inbox_size"`
	LastAction string         `json:"last_action"`
	ToolUsage  map[string]int `json:"tool_usage"`
	Errors     []string       `json:"errors"`
	Context    []string       `json:"context"`
	Created    time.Time      `json:"created"`
}

// Event is one entry in the orchestrator's observable event feed.
type Event struct {
	ActorID   string    `json:"actor_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryEntrySnapshot is a read-only view of one stored memory entry.
type MemoryEntrySnapshot struct {
	ID        int       `json:"id"`
	Text      string    `json:"text"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
}

// MemoryEdgeSnapshot is a read-only view of one graph edge between entries.
type MemoryEdgeSnapshot struct {
	From   int     `json:"from"`
	To     int     `json:"to"`
	Weight float64 `json:"weight"`
}

// MemorySnapshot is the dashboard view of one actor's memory store.
type MemorySnapshot struct {
	Entries []MemoryEntrySnapshot `json:"entries"`
	Edges   []MemoryEdgeSnapshot  `json:"edges"`
}
