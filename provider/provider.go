// Package provider implements decision collaborators: the prompt the
// orchestrator-facing providers build from an actor snapshot, and the
// lenient JSON extraction that turns raw model text into actions.
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/djav1985/v-axion-ai/core"
)

// ControlSystem is the system prompt every hosted provider sends. The
// model must answer with JSON only, matching the dispatcher's closed
// action union.
const ControlSystem = `You are an internal monologue actor.
Output ONLY JSON with this schema, no prose:

{
  "actions": [
    {"type":"reply","content":"<short message to whoever last wrote to you>"},
    {"type":"spawn","role":"<role name>","goal":"<goal for child>","wait":false},
    {"type":"use_tool","name":"<tool name>","args":{}},
    {"type":"route","to":"<actor_id>","content":"..."},
    {"type":"sleep","seconds":1},
    {"type":"kill","to":"<actor_id, empty for self; only the root may target others>"},
    {"type":"list"},
    {"type":"stop"}
  ]
}

Rules:
- JSON only. No thoughts, no prose.
- Keep 'reply' concise.
- Prefer: read/plan -> confirm -> act.
- If there is nothing useful to do, emit a short sleep.
- Emit "stop" once the goal is complete.`

// BuildPrompt renders one cycle's context: identity, goal, recalled
// memories, recent telemetry, and the available tool catalog.
func BuildPrompt(snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot, tools []core.ToolDescription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[INTEROLOG]\nid=%s role=%s STEP:%d/%d\ngoal: %s\n",
		snap.ID, snap.Role, snap.Step, snap.MaxSteps, snap.Goal)

	if len(recalled) > 0 {
		b.WriteString("relevant_memory:\n")
		for _, m := range recalled {
			fmt.Fprintf(&b, "- (%s) %s\n", m.Kind, m.Text)
		}
	}
	if len(snap.Context) > 0 {
		b.WriteString("recent_context:\n")
		for _, line := range snap.Context {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if len(snap.Errors) > 0 {
		fmt.Fprintf(&b, "recent_errors: %s\n", strings.Join(snap.Errors, "; "))
	}
	if len(tools) > 0 {
		b.WriteString("tools:\n")
		for _, tl := range tools {
			fmt.Fprintf(&b, "- %s: %s\n", tl.Name, tl.Description)
		}
	}
	return b.String()
}

// ExtractDecision parses model output into a decision. Models drift, so
// parsing is lenient: strict JSON first, then the first {...} blob in
// the text. When nothing parses, the fallback is a short idle sleep so
// the actor keeps cycling rather than erroring on sloppy output.
func ExtractDecision(raw string) core.Decision {
	var d core.Decision
	if err := json.Unmarshal([]byte(raw), &d); err == nil && len(d.Actions) > 0 {
		return d
	}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			var embedded core.Decision
			if err := json.Unmarshal([]byte(raw[start:end+1]), &embedded); err == nil && len(embedded.Actions) > 0 {
				return embedded
			}
		}
	}
	return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 1}}}
}
