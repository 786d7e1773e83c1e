package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/memory"
)

// Monologue is one actor: goal, inbox, telemetry, and an exclusively
// owned memory store. Only the actor's own loop mutates this state; the
// mutex exists so dashboard snapshots can read a consistent copy without
// pausing the loop.
type Monologue struct {
	id       string
	parentID string
	role     string
	goal     string
	created  time.Time

	inbox *inbox

	// memMu serializes the loop's memory mutations against dashboard
	// snapshot reads; the store itself is lock-free.
	memMu sync.Mutex
	mem   *memory.Store

	// kill is closed once to request a cooperative stop; the loop
	// observes it only at the top of a cycle or at a suspension point.
	kill     chan struct{}
	killOnce sync.Once

	mu         sync.Mutex
	state      core.ActorState
	step       int
	maxSteps   int
	children   []string
	contextBuf []string
	maxContext int
	lastAction string
	lastSender string
	toolUsage  map[string]int
	errs       []string
	maxErrors  int

	// pendingSleep carries a sleep action's duration into the next
	// inter-cycle wait.
	pendingSleep time.Duration
}

func newMonologue(id, parentID, role, goal string, maxSteps, maxContext, maxErrors int, mem *memory.Store) *Monologue {
	return &Monologue{
		id:         id,
		parentID:   parentID,
		role:       role,
		goal:       goal,
		created:    time.Now(),
		inbox:      newInbox(),
		mem:        mem,
		kill:       make(chan struct{}),
		state:      core.StateIdle,
		maxSteps:   maxSteps,
		maxContext: maxContext,
		maxErrors:  maxErrors,
		toolUsage:  make(map[string]int),
	}
}

// ID returns the actor's stable identifier.
func (m *Monologue) ID() string { return m.id }

// State returns the actor's current lifecycle state.
func (m *Monologue) State() core.ActorState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monologue) setState(s core.ActorState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Terminal states are absorbing; everything else is monotone except
	// the WaitingOnChild <-> Running pair.
	if m.state.Terminal() {
		return
	}
	m.state = s
}

func (m *Monologue) terminal() bool {
	return m.State().Terminal()
}

func (m *Monologue) requestKill() {
	m.killOnce.Do(func() { close(m.kill) })
}

func (m *Monologue) killRequested() bool {
	select {
	case <-m.kill:
		return true
	default:
		return false
	}
}

func (m *Monologue) stepCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step
}

func (m *Monologue) incrementStep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step < m.maxSteps {
		m.step++
	}
}

// addChild appends a child id, enforcing the fan-out bound.
func (m *Monologue) addChild(id string, maxChildren int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.children) >= maxChildren {
		return &core.FanOutExceeded{ActorID: m.id, MaxChildren: maxChildren}
	}
	m.children = append(m.children, id)
	return nil
}

func (m *Monologue) childIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.children))
	copy(out, m.children)
	return out
}

func (m *Monologue) isChild(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.children {
		if c == id {
			return true
		}
	}
	return false
}

// recordContext appends one telemetry line to the bounded ring.
func (m *Monologue) recordContext(line string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contextBuf = append(m.contextBuf, line)
	if len(m.contextBuf) > m.maxContext {
		m.contextBuf = m.contextBuf[len(m.contextBuf)-m.maxContext:]
	}
}

// recordError appends to the bounded failure telemetry and mirrors the
// failure into memory so later cycles can recall it.
func (m *Monologue) recordError(err error) {
	m.mu.Lock()
	m.errs = append(m.errs, err.Error())
	if len(m.errs) > m.maxErrors {
		m.errs = m.errs[len(m.errs)-m.maxErrors:]
	}
	m.mu.Unlock()
	m.recordContext("error: " + err.Error())
	m.memInsert(err.Error(), memory.SourceError, time.Now())
}

func (m *Monologue) memInsert(text string, kind memory.SourceKind, ts time.Time) {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	m.mem.Insert(text, kind, ts)
}

func (m *Monologue) memRetrieve(query string, topK int) []memory.Scored {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	return m.mem.Retrieve(query, topK)
}

func (m *Monologue) memSnapshot(n int) core.MemorySnapshot {
	m.memMu.Lock()
	defer m.memMu.Unlock()
	return m.mem.Snapshot(n)
}

func (m *Monologue) setLastAction(a string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAction = a
}

func (m *Monologue) setLastSender(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSender = id
}

func (m *Monologue) replyTarget() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastSender != "" {
		return m.lastSender
	}
	if m.parentID != "" {
		return m.parentID
	}
	return UserID
}

func (m *Monologue) countToolUse(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toolUsage[name]++
}

func (m *Monologue) takePendingSleep() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.pendingSleep
	m.pendingSleep = 0
	return d
}

func (m *Monologue) setPendingSleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingSleep = d
}

// absorb ingests one inbound message: memory, context ring, reply
// bookkeeping. Returns true when the sender is one of the actor's
// children, which is what releases a WaitingOnChild actor.
func (m *Monologue) absorb(msg core.Message) bool {
	kind := memory.SourceInbox
	switch msg.Kind {
	case core.KindInjection:
		kind = memory.SourceInjection
	case core.KindToolResult:
		kind = memory.SourceTool
	}
	m.memInsert(msg.Content, kind, msg.Timestamp)
	m.recordContext(fmt.Sprintf("[from:%s] %s", msg.SenderID, msg.Content))
	if msg.Kind == core.KindChat || msg.Kind == core.KindInjection {
		m.setLastSender(msg.SenderID)
	}
	return m.isChild(msg.SenderID)
}

// Snapshot returns a read-only copy of the actor's observable state.
func (m *Monologue) Snapshot() core.ActorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := core.ActorSnapshot{
		ID:         m.id,
		ParentID:   m.parentID,
		Role:       m.role,
		Goal:       m.goal,
		State:      m.state,
		Step:       m.step,
		MaxSteps:   m.maxSteps,
		Children:   append([]string(nil), m.children...),
		InboxSize:  m.inbox.size(),
		LastAction: m.lastAction,
		ToolUsage:  make(map[string]int, len(m.toolUsage)),
		Errors:     append([]string(nil), m.errs...),
		Context:    append([]string(nil), m.contextBuf...),
		Created:    m.created,
	}
	for k, v := range m.toolUsage {
		snap.ToolUsage[k] = v
	}
	return snap
}
