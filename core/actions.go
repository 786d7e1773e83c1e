package core

import (
	"encoding/json"
	"fmt"
)

// ActionType identifies one of the recognized action shapes.
type ActionType string

const (
	// ActionReply appends a chat message destined for the sender of the
	// last message the actor processed.
	ActionReply ActionType = "reply"

	// ActionSpawn creates a child actor with its own goal.
	ActionSpawn ActionType = "spawn"

	// ActionUseTool invokes a registered tool by name.
	ActionUseTool ActionType = "use_tool"

	// ActionRoute sends a message to another actor by id.
	ActionRoute ActionType = "route"

	// ActionSleep pauses the actor for a number of seconds. The pause is
	// cut short by inbox arrival or shutdown, like the inter-cycle delay.
	ActionSleep ActionType = "sleep"

	// ActionStop transitions the actor to Stopped.
	ActionStop ActionType = "stop"

	// ActionKill requests the cooperative stop of another actor's
	// subtree. Only the root actor may target others; any other actor
	// may only kill itself (an empty target means self).
	ActionKill ActionType = "kill"

	// ActionList records the current actor roster into the emitting
	// actor's context so the next cycle can see who is alive.
	ActionList ActionType = "list"
)

// Action is the closed union of shapes the dispatcher recognizes.
// Exactly the fields relevant to Type are meaningful; everything else is
// ignored on decode and omitted on encode.
type Action struct {
	Type ActionType `json:"type"`

	// reply / route
	Content string `json:"content,omitempty"`

	// spawn
	Role string `json:"role,omitempty"`
	Goal string `json:"goal,omitempty"`
	Wait bool   `json:"wait,omitempty"`

	// use_tool
	Tool string          `json:"name,omitempty"`
	Args json.RawMessage `json:"args,omitempty"`

	// route / kill
	To string `json:"to,omitempty"`

	// sleep
	Seconds float64 `json:"seconds,omitempty"`
}

// Validate checks the action shape against the schema for its type.
// A failure is a *ValidationError; the dispatcher records it in the
// actor's error telemetry rather than crashing the actor.
func (a Action) Validate() error {
	switch a.Type {
	case ActionReply:
		if a.Content == "" {
			return &ValidationError{Reason: "reply requires content"}
		}
	case ActionSpawn:
		if a.Goal == "" {
			return &ValidationError{Reason: "spawn requires goal"}
		}
	case ActionUseTool:
		if a.Tool == "" {
			return &ValidationError{Reason: "use_tool requires name"}
		}
	case ActionRoute:
		if a.To == "" || a.Content == "" {
			return &ValidationError{Reason: "route requires to and content"}
		}
	case ActionSleep:
		if a.Seconds < 0 {
			return &ValidationError{Reason: "sleep requires non-negative seconds"}
		}
	case ActionStop, ActionList:
		// no payload
	case ActionKill:
		// empty To means self; policy is checked at dispatch
	case "":
		return &ValidationError{Reason: "missing action type"}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown action type %q", a.Type)}
	}
	return nil
}

// String returns a short human-readable form used for telemetry and logs.
func (a Action) String() string {
	switch a.Type {
	case ActionSpawn:
		return fmt.Sprintf("spawn(%s)", truncate(a.Goal, 40))
	case ActionUseTool:
		return fmt.Sprintf("use_tool(%s)", a.Tool)
	case ActionRoute:
		return fmt.Sprintf("route(%s)", a.To)
	case ActionSleep:
		return fmt.Sprintf("sleep(%.1fs)", a.Seconds)
	case ActionKill:
		if a.To == "" {
			return "kill(self)"
		}
		return fmt.Sprintf("kill(%s)", a.To)
	case ActionReply, ActionStop, ActionList:
		return string(a.Type)
	default:
		return fmt.Sprintf("unknown(%s)", string(a.Type))
	}
}

// Decision is the provider's full answer for one cycle: an ordered list
// of actions to dispatch.
type Decision struct {
	Actions []Action `json:"actions"`
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
