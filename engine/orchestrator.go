// Package engine implements the monologue actor tree: the orchestrator
// that owns the actor registry and drives one cooperative loop per live
// actor, the per-actor state, and the action dispatcher.
package engine

import (
	"context"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/djav1985/v-axion-ai/config"
	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/memory"
)

// UserID is the reserved sender/recipient id for the human operator.
const UserID = "user"

// RootRole is the role name given to the actor created by Submit.
const RootRole = "Main"

// Orchestrator owns the actor registry, routes inter-actor messages,
// enforces fan-out and depth bounds, and drives graceful shutdown. It is
// the single serialization point for cross-actor state.
type Orchestrator struct {
	cfg      *config.Config
	provider core.Provider
	tools    core.Invoker
	onUser   func(core.Message)
	events   *feed

	mu        sync.Mutex
	actors    map[string]*Monologue
	scheduled map[string]struct{}
	rootID    string

	// down is the process-wide shutdown signal handed to every loop at
	// creation; wg tracks every scheduled loop so Shutdown can drain.
	down     chan struct{}
	downOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithInvoker sets the tool collaborator. Without one, use_tool actions
// fail with a recorded ToolError.
func WithInvoker(inv core.Invoker) Option {
	return func(o *Orchestrator) {
		o.tools = inv
	}
}

// WithOnUser sets the callback invoked for every message addressed to
// the human operator (replies from the root actor, status lines).
func WithOnUser(fn func(core.Message)) Option {
	return func(o *Orchestrator) {
		o.onUser = fn
	}
}

// New creates an orchestrator. Configuration is immutable for the
// orchestrator's lifetime.
func New(cfg *config.Config, provider core.Provider, opts ...Option) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &core.CapacityError{Reason: err.Error()}
	}
	o := &Orchestrator{
		cfg:       cfg,
		provider:  provider,
		events:    newFeed(500),
		actors:    make(map[string]*Monologue),
		scheduled: make(map[string]struct{}),
		down:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Submit creates the root actor from the initial goal, schedules its
// loop, and returns its id. One orchestrator coordinates one monologue
// tree: a second root is a CapacityError.
func (o *Orchestrator) Submit(goal string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.rootID != "" {
		return "", &core.CapacityError{Reason: "root actor already submitted"}
	}
	m, err := o.newActorLocked("", RootRole, goal)
	if err != nil {
		return "", err
	}
	o.rootID = m.id
	o.scheduleLocked(m)
	log.Printf("[ORCH] submitted root actor %s goal=%q", m.id, goal)
	return m.id, nil
}

// Root returns the root actor id ("" before Submit).
func (o *Orchestrator) Root() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rootID
}

// Route delivers a message to its recipient's inbox without ever
// blocking the sender. A missing or terminal recipient drops the
// message; the drop is an observable event, not an error. Messages to
// UserID leave the tree through the OnUser callback.
func (o *Orchestrator) Route(msg core.Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.RecipientID == UserID {
		o.events.add(msg.SenderID, EventUserOutput, msg.Content)
		if o.onUser != nil {
			o.onUser(msg)
		}
		return
	}

	o.mu.Lock()
	target, ok := o.actors[msg.RecipientID]
	o.mu.Unlock()
	if !ok || target.terminal() {
		log.Printf("[ORCH] dropped message for %s from %s (target gone)", msg.RecipientID, msg.SenderID)
		o.events.add(msg.SenderID, EventDropped, "recipient "+msg.RecipientID+" gone")
		return
	}
	target.inbox.put(msg)
	o.events.add(msg.RecipientID, EventMessage, "from "+msg.SenderID)
}

// Inject enqueues chat-style operator input addressed to the root actor.
func (o *Orchestrator) Inject(content string, kind core.MessageKind) {
	root := o.Root()
	if root == "" {
		return
	}
	o.Route(core.Message{
		SenderID:    UserID,
		RecipientID: root,
		Content:     content,
		Kind:        kind,
		Timestamp:   time.Now(),
	})
}

// Kill requests a cooperative stop of the actor and, transitively, all
// its descendants. Idempotent; unknown ids are a no-op.
func (o *Orchestrator) Kill(actorID string) {
	o.mu.Lock()
	pending := []string{actorID}
	var targets []*Monologue
	for len(pending) > 0 {
		id := pending[0]
		pending = pending[1:]
		m, ok := o.actors[id]
		if !ok {
			continue
		}
		targets = append(targets, m)
		pending = append(pending, m.childIDs()...)
	}
	o.mu.Unlock()

	for _, m := range targets {
		m.requestKill()
		o.events.add(m.id, EventKilled, "")
	}
}

// Shutdown sets the global signal and waits for every scheduled actor
// loop to finish its in-flight cycle and exit, so the embedding service
// can rely on no background activity after return. The context bounds
// the wait; expiry returns its error with loops still draining.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.downOnce.Do(func() { close(o.down) })

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("[ORCH] shutdown complete, no loops scheduled")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns read-only copies of every registered actor, root
// first, then by creation time.
func (o *Orchestrator) Snapshot() []core.ActorSnapshot {
	o.mu.Lock()
	actors := make([]*Monologue, 0, len(o.actors))
	for _, m := range o.actors {
		actors = append(actors, m)
	}
	root := o.rootID
	o.mu.Unlock()

	out := make([]core.ActorSnapshot, 0, len(actors))
	for _, m := range actors {
		out = append(out, m.Snapshot())
	}
	sortSnapshots(out, root)
	return out
}

// ActorSnapshot returns one actor's snapshot.
func (o *Orchestrator) ActorSnapshot(id string) (core.ActorSnapshot, bool) {
	o.mu.Lock()
	m, ok := o.actors[id]
	o.mu.Unlock()
	if !ok {
		return core.ActorSnapshot{}, false
	}
	return m.Snapshot(), true
}

// MemorySnapshot returns the latest n memory entries and their graph
// edges for one actor.
func (o *Orchestrator) MemorySnapshot(id string, n int) (core.MemorySnapshot, bool) {
	o.mu.Lock()
	m, ok := o.actors[id]
	o.mu.Unlock()
	if !ok {
		return core.MemorySnapshot{}, false
	}
	return m.memSnapshot(n), true
}

// Events returns up to n latest feed events, oldest first.
func (o *Orchestrator) Events(n int) []core.Event {
	return o.events.recent(n)
}

// newActorLocked builds and registers an actor. Caller holds o.mu.
func (o *Orchestrator) newActorLocked(parentID, role, goal string) (*Monologue, error) {
	mem, err := memory.New(memory.Config{
		MaxEntries:  o.cfg.MemoryMax,
		DecayWindow: o.cfg.MemoryDecay,
	})
	if err != nil {
		return nil, err
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	m := newMonologue(id, parentID, role, goal, o.cfg.MaxSteps, o.cfg.ContextBuffer, o.cfg.MaxErrors, mem)
	o.actors[id] = m
	o.events.add(id, EventSpawned, "role="+role)
	return m, nil
}

// scheduleLocked starts the actor's loop unless one is already active
// for that id: at most one loop per actor, so a duplicate spawn or
// retry request is a no-op. Caller holds o.mu.
func (o *Orchestrator) scheduleLocked(m *Monologue) {
	if _, active := o.scheduled[m.id]; active {
		return
	}
	o.scheduled[m.id] = struct{}{}
	o.wg.Add(1)
	go o.runLoop(m)
}

// schedule is the exported-path wrapper used by spawn dispatch.
func (o *Orchestrator) schedule(m *Monologue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduleLocked(m)
}

// loopExited releases the actor's scheduling slot and sweeps the
// registry: an actor is removed only once it is terminal and every
// descendant is terminal too.
func (o *Orchestrator) loopExited(m *Monologue) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.scheduled, m.id)
	o.sweepLocked()
}

// sweepLocked removes terminal subtrees bottom-up until a fixpoint.
func (o *Orchestrator) sweepLocked() {
	for {
		removed := false
		for id, m := range o.actors {
			if !m.terminal() {
				continue
			}
			if _, active := o.scheduled[id]; active {
				continue
			}
			clear := true
			for _, child := range m.childIDs() {
				if _, alive := o.actors[child]; alive {
					clear = false
					break
				}
			}
			if clear {
				delete(o.actors, id)
				o.events.add(id, EventRemoved, "")
				removed = true
			}
		}
		if !removed {
			return
		}
	}
}

func (o *Orchestrator) shuttingDown() bool {
	select {
	case <-o.down:
		return true
	default:
		return false
	}
}

func sortSnapshots(snaps []core.ActorSnapshot, rootID string) {
	sort.Slice(snaps, func(i, j int) bool {
		a, b := snaps[i], snaps[j]
		if a.ID == rootID || b.ID == rootID {
			return a.ID == rootID
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.Before(b.Created)
		}
		return a.ID < b.ID
	})
}
