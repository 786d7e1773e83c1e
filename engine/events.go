package engine

import (
	"sync"
	"time"

	"github.com/djav1985/v-axion-ai/core"
)

// Event kinds recorded in the orchestrator feed.
const (
	EventSpawned    = "spawned"
	EventStopped    = "stopped"
	EventErrored    = "errored"
	EventAction     = "action"
	EventMessage    = "message"
	EventDropped    = "dropped"
	EventKilled     = "kill_requested"
	EventRemoved    = "removed"
	EventUserOutput = "user_output"
)

// feed is the bounded, ordered event log dashboards read. Delivery
// failures and actor lifecycle changes land here as observable events
// rather than errors.
type feed struct {
	mu     sync.Mutex
	events []core.Event
	max    int
}

func newFeed(max int) *feed {
	if max <= 0 {
		max = 500
	}
	return &feed{max: max}
}

func (f *feed) add(actorID, kind, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, core.Event{
		ActorID:   actorID,
		Kind:      kind,
		Detail:    detail,
		Timestamp: time.Now(),
	})
	if len(f.events) > f.max {
		f.events = f.events[len(f.events)-f.max:]
	}
}

// recent returns up to n latest events, oldest first.
func (f *feed) recent(n int) []core.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	start := len(f.events) - n
	if n <= 0 || start < 0 {
		start = 0
	}
	out := make([]core.Event, len(f.events)-start)
	copy(out, f.events[start:])
	return out
}
