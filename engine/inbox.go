package engine

import (
	"sync"
	"time"

	"github.com/djav1985/v-axion-ai/core"
)

// inbox is an unbounded FIFO message queue with a wake channel. Senders
// never block; the owning loop drains it every cycle and parks on the
// wake channel between cycles so a new arrival cuts the sleep short.
type inbox struct {
	mu   sync.Mutex
	msgs []core.Message
	wake chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

// put enqueues a message and nudges the wake channel without blocking.
func (in *inbox) put(msg core.Message) {
	in.mu.Lock()
	in.msgs = append(in.msgs, msg)
	in.mu.Unlock()
	select {
	case in.wake <- struct{}{}:
	default:
	}
}

// drain removes and returns all queued messages in arrival order.
func (in *inbox) drain() []core.Message {
	in.mu.Lock()
	defer in.mu.Unlock()
	msgs := in.msgs
	in.msgs = nil
	return msgs
}

func (in *inbox) size() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.msgs)
}

// sleep waits up to d, returning early when a message arrives or either
// stop channel closes. This is the cooperative suspension point of the
// actor loop: sleep-with-early-wake, not a fixed poll.
func (in *inbox) sleep(d time.Duration, stop ...<-chan struct{}) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	var stop1, stop2 <-chan struct{}
	if len(stop) > 0 {
		stop1 = stop[0]
	}
	if len(stop) > 1 {
		stop2 = stop[1]
	}
	select {
	case <-timer.C:
	case <-in.wake:
	case <-stop1:
	case <-stop2:
	}
}
