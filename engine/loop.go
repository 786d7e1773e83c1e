package engine

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/djav1985/v-axion-ai/core"
)

// runLoop is one actor's scheduling loop: the only goroutine that
// mutates the actor's state. Each cycle drains the inbox, asks the
// decision provider for actions, dispatches them, and parks until the
// next cycle or an early wake.
func (o *Orchestrator) runLoop(m *Monologue) {
	defer o.wg.Done()
	defer o.loopExited(m)

	m.setState(core.StateRunning)
	log.Printf("[ACTOR %s] loop started role=%s", m.id, m.role)

	for {
		// Stop requests and the global signal are observed only here
		// and at suspension points, never mid-mutation.
		if o.shuttingDown() || m.killRequested() || m.terminal() {
			o.finishLoop(m)
			return
		}

		fromChild := false
		for _, msg := range m.inbox.drain() {
			if m.absorb(msg) {
				fromChild = true
			}
		}

		if m.State() == core.StateWaitingOnChild {
			if fromChild || o.childrenSettled(m) {
				m.setState(core.StateRunning)
			} else {
				m.inbox.sleep(o.cfg.CycleDelay, o.down, m.kill)
				continue
			}
		}

		if m.stepCount() >= m.maxSteps {
			log.Printf("[ACTOR %s] step limit reached, stopping", m.id)
			m.setState(core.StateStopped)
			o.finishLoop(m)
			return
		}

		o.decideAndDispatch(m)
		m.incrementStep()

		delay := o.cfg.CycleDelay
		if d := m.takePendingSleep(); d > 0 {
			delay = d
		}
		m.inbox.sleep(delay, o.down, m.kill)
	}
}

// decideAndDispatch runs one decision cycle. Provider failures are
// recorded and retried next cycle; they never terminate the actor.
func (o *Orchestrator) decideAndDispatch(m *Monologue) {
	if o.provider == nil {
		return
	}

	snap := m.Snapshot()
	recalled := o.recall(m, snap)

	ctx, cancel := signalContext(o.down, m.kill)
	defer cancel()

	decision, err := o.provider.Decide(ctx, snap, recalled)
	if err != nil {
		var perr *core.ProviderError
		if !errors.As(err, &perr) {
			perr = &core.ProviderError{Provider: o.provider.Name(), Err: err}
		}
		log.Printf("[ACTOR %s] %v (will retry)", m.id, perr)
		m.recordError(perr)
		return
	}

	for _, act := range decision.Actions {
		o.apply(m, act)
		if m.terminal() {
			return
		}
	}
}

// recall queries the actor's memory with its goal plus the most recent
// context lines, giving the provider decay-weighted relevant history.
func (o *Orchestrator) recall(m *Monologue, snap core.ActorSnapshot) []core.MemoryEntrySnapshot {
	query := snap.Goal
	if n := len(snap.Context); n > 0 {
		start := n - 3
		if start < 0 {
			start = 0
		}
		query += " " + strings.Join(snap.Context[start:], " ")
	}
	scored := m.memRetrieve(query, o.cfg.RecallTopK)
	out := make([]core.MemoryEntrySnapshot, 0, len(scored))
	for _, s := range scored {
		out = append(out, core.MemoryEntrySnapshot{
			ID:        s.Entry.ID,
			Text:      s.Entry.Text,
			Kind:      string(s.Entry.Kind),
			Timestamp: s.Entry.Timestamp,
		})
	}
	return out
}

// childrenSettled reports whether every child of m is gone or terminal.
func (o *Orchestrator) childrenSettled(m *Monologue) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, id := range m.childIDs() {
		if child, ok := o.actors[id]; ok && !child.terminal() {
			return false
		}
	}
	return true
}

// finishLoop settles the actor's terminal state and emits the lifecycle
// event. Kill and shutdown resolve to Stopped; Errored stays Errored.
func (o *Orchestrator) finishLoop(m *Monologue) {
	if !m.terminal() {
		m.setState(core.StateStopped)
	}
	if m.State() == core.StateErrored {
		o.events.add(m.id, EventErrored, "")
	} else {
		o.events.add(m.id, EventStopped, "")
	}
	log.Printf("[ACTOR %s] loop exited state=%s step=%d", m.id, m.State(), m.stepCount())
}

// signalContext derives a context cancelled by either signal channel, so
// in-flight provider and tool calls unwind promptly on kill or shutdown.
func signalContext(sig1, sig2 <-chan struct{}) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sig1:
		case <-sig2:
		case <-ctx.Done():
		}
		cancel()
	}()
	return ctx, cancel
}
