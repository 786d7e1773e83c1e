package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/memory"
)

// apply is the action dispatcher: it validates one decided action and
// applies it to the actor, possibly mutating the actor tree (spawn) or
// emitting messages. Every applied action, successful or not, lands in
// the actor's context buffer and memory. Failures inside the cycle are
// recovered into the actor's error telemetry; nothing here crashes the
// loop.
func (o *Orchestrator) apply(m *Monologue, act core.Action) {
	if err := act.Validate(); err != nil {
		m.recordError(err)
		return
	}

	m.setLastAction(act.String())
	m.recordContext("action: " + act.String())
	o.events.add(m.id, EventAction, act.String())

	// Every applied action becomes a memory entry, with the source kind
	// reflecting what the action touched.
	entryText := act.String()
	if act.Content != "" {
		entryText += ": " + act.Content
	}
	entryKind := memory.SourceInbox
	if act.Type == core.ActionUseTool {
		entryKind = memory.SourceTool
	}
	m.memInsert(entryText, entryKind, time.Now())

	switch act.Type {
	case core.ActionReply:
		o.applyReply(m, act)
	case core.ActionSpawn:
		o.applySpawn(m, act)
	case core.ActionUseTool:
		o.applyTool(m, act)
	case core.ActionRoute:
		o.Route(core.Message{
			SenderID:    m.id,
			RecipientID: act.To,
			Content:     act.Content,
			Kind:        core.KindChat,
			Timestamp:   time.Now(),
		})
	case core.ActionSleep:
		m.setPendingSleep(time.Duration(act.Seconds * float64(time.Second)))
	case core.ActionKill:
		o.applyKill(m, act)
	case core.ActionList:
		o.applyList(m)
	case core.ActionStop:
		m.setState(core.StateStopped)
	}
}

// applyKill stops another actor's subtree under the kill policy: the
// root actor may kill any actor in the tree; every other actor may only
// kill itself. An empty target means self, which for the root is a
// no-op rather than tearing down the whole tree by accident. Denials
// and unknown targets land in error telemetry like any other bad
// action.
func (o *Orchestrator) applyKill(m *Monologue, act core.Action) {
	target := act.To

	o.mu.Lock()
	isRoot := m.id == o.rootID
	_, known := o.actors[target]
	o.mu.Unlock()

	if target == "" {
		if isRoot {
			return
		}
		target = m.id
		known = true
	}
	if !isRoot && target != m.id {
		m.recordError(&core.ValidationError{Reason: "kill: a non-root actor may only kill itself"})
		return
	}
	if !known {
		m.recordError(&core.ValidationError{Reason: fmt.Sprintf("kill: no actor %s", target)})
		return
	}

	log.Printf("[ACTOR %s] killing %s", m.id, target)
	o.Kill(target)
	m.recordContext("killed " + target)
}

// applyList snapshots the actor roster into the emitting actor's
// context and memory, one line per live actor.
func (o *Orchestrator) applyList(m *Monologue) {
	snaps := o.Snapshot()
	parts := make([]string, 0, len(snaps))
	for _, s := range snaps {
		line := fmt.Sprintf("%s role=%s state=%s", s.ID, s.Role, s.State)
		if s.ParentID != "" {
			line += " parent=" + s.ParentID
		}
		parts = append(parts, line)
	}
	listing := "actors: " + strings.Join(parts, "; ")
	m.recordContext(listing)
	m.memInsert(listing, memory.SourceInbox, time.Now())
}

// applyReply sends a chat message back to whoever the actor last heard
// from (falling back to the parent, then the user).
func (o *Orchestrator) applyReply(m *Monologue, act core.Action) {
	o.Route(core.Message{
		SenderID:    m.id,
		RecipientID: m.replyTarget(),
		Content:     act.Content,
		Kind:        core.KindChat,
		Timestamp:   time.Now(),
	})
}

// applySpawn creates a child actor under the fan-out bound and schedules
// its loop. With wait set, the parent blocks in WaitingOnChild until the
// child reports back or terminates.
func (o *Orchestrator) applySpawn(m *Monologue, act core.Action) {
	role := act.Role
	if role == "" {
		role = "Worker"
	}

	o.mu.Lock()
	if len(m.childIDs()) >= o.cfg.MaxChildren {
		o.mu.Unlock()
		m.recordError(&core.FanOutExceeded{ActorID: m.id, MaxChildren: o.cfg.MaxChildren})
		return
	}
	child, err := o.newActorLocked(m.id, role, act.Goal)
	if err == nil {
		err = m.addChild(child.id, o.cfg.MaxChildren)
	}
	if err == nil {
		o.scheduleLocked(child)
	}
	o.mu.Unlock()

	if err != nil {
		m.recordError(err)
		return
	}
	log.Printf("[ACTOR %s] spawned child %s goal=%q", m.id, child.id, act.Goal)
	m.recordContext("spawned child " + child.id)
	if act.Wait {
		m.setState(core.StateWaitingOnChild)
	}
}

// applyTool delegates to the tool collaborator and records the outcome.
// Tool failures are recovered locally unless the tool marks itself
// fatal, which forces Errored. In-flight invocations are not aborted by
// kill or shutdown; the loop honors stop requests afterwards.
func (o *Orchestrator) applyTool(m *Monologue, act core.Action) {
	m.countToolUse(act.Tool)

	if o.tools == nil {
		m.recordError(&core.ToolError{Tool: act.Tool, Reason: "no tool collaborator configured"})
		return
	}

	result, err := o.tools.Invoke(context.Background(), act.Tool, act.Args)
	if err != nil {
		var terr *core.ToolError
		if errors.As(err, &terr) && terr.Fatal {
			m.recordError(terr)
			m.setState(core.StateErrored)
			return
		}
		m.recordError(err)
		return
	}

	detail := formatToolResult(result)
	m.recordContext(fmt.Sprintf("tool %s: %s", act.Tool, detail))
	m.memInsert(fmt.Sprintf("tool %s: %s", act.Tool, detail), memory.SourceTool, time.Now())
	if !result.Success {
		m.recordError(&core.ToolError{Tool: act.Tool, Reason: result.Error})
	}
}

func formatToolResult(result *core.ToolResult) string {
	if result == nil {
		return "no result"
	}
	if !result.Success {
		return "failed: " + result.Error
	}
	switch v := result.Data.(type) {
	case string:
		return v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
