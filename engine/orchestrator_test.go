package engine_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/djav1985/v-axion-ai/config"
	"github.com/djav1985/v-axion-ai/core"
	"github.com/djav1985/v-axion-ai/engine"
)

// scriptProvider replays one action batch per Decide call, then idles.
type scriptProvider struct {
	mu     sync.Mutex
	script [][]core.Action
	calls  int
}

func (p *scriptProvider) Decide(ctx context.Context, snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot) (core.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.script) == 0 {
		return core.Decision{}, nil
	}
	batch := p.script[0]
	p.script = p.script[1:]
	return core.Decision{Actions: batch}, nil
}

func (p *scriptProvider) Name() string { return "script" }

func (p *scriptProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// failProvider always fails, exercising the retry-next-cycle path.
type failProvider struct{}

func (failProvider) Decide(ctx context.Context, snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot) (core.Decision, error) {
	return core.Decision{}, errors.New("backend unreachable")
}

func (failProvider) Name() string { return "fail" }

// funcProvider computes each decision from the actor snapshot, so a
// test can steer parent and children differently.
type funcProvider struct {
	fn func(core.ActorSnapshot) core.Decision
}

func (p *funcProvider) Decide(ctx context.Context, snap core.ActorSnapshot, recalled []core.MemoryEntrySnapshot) (core.Decision, error) {
	return p.fn(snap), nil
}

func (p *funcProvider) Name() string { return "func" }

// stubInvoker returns a fixed result or error per tool name.
type stubInvoker struct {
	results map[string]*core.ToolResult
	errs    map[string]error
}

func (s *stubInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) (*core.ToolResult, error) {
	if err, ok := s.errs[name]; ok {
		return nil, err
	}
	if res, ok := s.results[name]; ok {
		return res, nil
	}
	return nil, &core.ToolError{Tool: name, Reason: "unknown tool"}
}

func (s *stubInvoker) Describe() []core.ToolDescription { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.CycleDelay = 5 * time.Millisecond
	cfg.MaxSteps = 50
	return cfg
}

func shutdownOrFail(t *testing.T, o *engine.Orchestrator) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSubmitSecondRootIsCapacityError(t *testing.T) {
	o, err := engine.New(testConfig(), &scriptProvider{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	if _, err := o.Submit("first goal"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	_, err = o.Submit("second goal")
	var capErr *core.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("second Submit: expected CapacityError, got %v", err)
	}
}

func TestFanOutBound(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChildren = 1
	p := &scriptProvider{script: [][]core.Action{
		{
			{Type: core.ActionSpawn, Goal: "first child"},
			{Type: core.ActionSpawn, Goal: "second child"},
		},
		{{Type: core.ActionStop}},
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("spawn twice")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool { return p.callCount() >= 1 }, "first decide")
	snap, ok := o.ActorSnapshot(rootID)
	if !ok {
		// Already swept; inspect the kill events instead.
		t.Fatal("root removed before inspection")
	}
	if len(snap.Children) != 1 {
		t.Errorf("children = %d, want 1", len(snap.Children))
	}
	found := false
	for _, e := range snap.Errors {
		if e == (&core.FanOutExceeded{ActorID: rootID, MaxChildren: 1}).Error() {
			found = true
		}
	}
	if !found {
		t.Errorf("FanOutExceeded not recorded, errors = %v", snap.Errors)
	}
}

func TestStepLimitForcesStopped(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 3
	p := &scriptProvider{}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("run out of steps")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		_, present := o.ActorSnapshot(id)
		return !present
	}, "root to stop and be removed")

	if got := p.callCount(); got != 3 {
		t.Errorf("provider called %d times, want exactly max_steps=3", got)
	}
}

func TestKillRootIsTransitive(t *testing.T) {
	cfg := testConfig()
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionSpawn, Goal: "child work", Role: "Worker"}},
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("parent goal")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		return ok && len(snap.Children) == 1
	}, "child spawn")

	o.Kill(rootID)
	o.Kill(rootID) // idempotent

	waitFor(t, 3*time.Second, func() bool {
		return len(o.Snapshot()) == 0
	}, "root and child removal from registry")
}

func TestShutdownDrainsAllLoops(t *testing.T) {
	cfg := testConfig()
	cfg.MaxChildren = 8
	spawns := make([]core.Action, 5)
	for i := range spawns {
		spawns[i] = core.Action{Type: core.ActionSpawn, Goal: fmt.Sprintf("worker %d", i)}
	}
	p := &scriptProvider{script: [][]core.Action{spawns}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rootID, err := o.Submit("fan out")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		return ok && len(snap.Children) == 5
	}, "all children spawned")

	shutdownOrFail(t, o)

	// No loop survives shutdown: every remaining snapshot is terminal
	// and no further provider calls happen.
	for _, snap := range o.Snapshot() {
		if !snap.State.Terminal() {
			t.Errorf("actor %s state %s after shutdown", snap.ID, snap.State)
		}
	}
	before := p.callCount()
	time.Sleep(50 * time.Millisecond)
	if after := p.callCount(); after != before {
		t.Errorf("provider called %d times after shutdown returned", after-before)
	}
}

func TestRouteToMissingActorDropsObservably(t *testing.T) {
	o, err := engine.New(testConfig(), &scriptProvider{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	o.Route(core.Message{
		SenderID:    "someone",
		RecipientID: "ghost",
		Content:     "hello?",
		Kind:        core.KindChat,
	})

	dropped := false
	for _, e := range o.Events(50) {
		if e.Kind == engine.EventDropped {
			dropped = true
		}
	}
	if !dropped {
		t.Error("drop not recorded in event feed")
	}
}

func TestProviderErrorIsRecordedAndRetried(t *testing.T) {
	cfg := testConfig()
	cfg.MaxSteps = 200 // keep the actor alive while we observe retries
	o, err := engine.New(cfg, failProvider{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("keep trying")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var last core.ActorSnapshot
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(id)
		if ok {
			last = snap
		}
		return ok && len(snap.Errors) >= 2
	}, "repeated provider errors")

	for _, e := range last.Errors {
		if e == "" {
			t.Error("empty error recorded")
		}
	}
	if last.State.Terminal() {
		t.Errorf("actor terminated on provider error: %s", last.State)
	}
}

func TestFatalToolErrorForcesErrored(t *testing.T) {
	cfg := testConfig()
	inv := &stubInvoker{errs: map[string]error{
		"detonate": &core.ToolError{Tool: "detonate", Reason: "boom", Fatal: true},
	}}
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionUseTool, Tool: "detonate"}},
	}}
	o, err := engine.New(cfg, p, engine.WithInvoker(inv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("use a fatal tool")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		for _, e := range o.Events(200) {
			if e.ActorID == id && e.Kind == engine.EventErrored {
				return true
			}
		}
		return false
	}, "errored event")
}

func TestToolFailureIsRecoveredLocally(t *testing.T) {
	inv := &stubInvoker{results: map[string]*core.ToolResult{
		"flaky": {Success: false, Error: "transient"},
	}}
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionUseTool, Tool: "flaky"}},
	}}
	o, err := engine.New(testConfig(), p, engine.WithInvoker(inv))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("survive a tool failure")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var snap core.ActorSnapshot
	waitFor(t, 3*time.Second, func() bool {
		s, ok := o.ActorSnapshot(id)
		if ok {
			snap = s
		}
		return ok && len(s.Errors) > 0
	}, "tool error telemetry")

	if snap.State.Terminal() {
		t.Errorf("actor terminated on recoverable tool failure: %s", snap.State)
	}
	if snap.ToolUsage["flaky"] != 1 {
		t.Errorf("tool usage = %v, want flaky:1", snap.ToolUsage)
	}
}

func TestInvalidActionIsRecordedNotFatal(t *testing.T) {
	p := &scriptProvider{script: [][]core.Action{
		{{Type: "levitate"}},
		{{Type: core.ActionSpawn}}, // missing goal
	}}
	o, err := engine.New(testConfig(), p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("emit malformed actions")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var snap core.ActorSnapshot
	waitFor(t, 3*time.Second, func() bool {
		s, ok := o.ActorSnapshot(id)
		if ok {
			snap = s
		}
		return ok && len(s.Errors) >= 2
	}, "validation errors")

	if snap.State.Terminal() {
		t.Errorf("actor terminated on validation error: %s", snap.State)
	}
	if len(snap.Children) != 0 {
		t.Errorf("invalid spawn created a child")
	}
}

func TestWaitingOnChildResumesOnChildStop(t *testing.T) {
	cfg := testConfig()
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionSpawn, Goal: "short task", Wait: true}},
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("wait for the child")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		return ok && len(snap.Children) == 1
	}, "child spawn")
	snap, _ := o.ActorSnapshot(rootID)
	childID := snap.Children[0]

	o.Kill(childID)

	// Parent re-enters Running once the child settles, and keeps
	// stepping until its own limit.
	waitFor(t, 3*time.Second, func() bool {
		s, ok := o.ActorSnapshot(rootID)
		if !ok {
			return true // already ran to completion and was swept
		}
		return s.State == core.StateRunning || s.State.Terminal()
	}, "parent resume")
}

func TestUserMessagesLeaveThroughCallback(t *testing.T) {
	var mu sync.Mutex
	var got []core.Message
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionReply, Content: "done"}},
		{{Type: core.ActionStop}},
	}}
	o, err := engine.New(testConfig(), p, engine.WithOnUser(func(msg core.Message) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	if _, err := o.Submit("report back"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	o.Inject("status please", core.KindChat)

	waitFor(t, 3*time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	}, "reply to user")

	mu.Lock()
	defer mu.Unlock()
	if got[0].Content != "done" || got[0].RecipientID != engine.UserID {
		t.Errorf("unexpected user message %+v", got[0])
	}
}

func TestEarlyWakeCutsSleepShort(t *testing.T) {
	cfg := testConfig()
	cfg.CycleDelay = 2 * time.Second // long enough that only a wake explains fast progress
	p := &scriptProvider{}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("sleep until poked")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	waitFor(t, 3*time.Second, func() bool { return p.callCount() >= 1 }, "first cycle")

	start := time.Now()
	o.Route(core.Message{SenderID: engine.UserID, RecipientID: id, Content: "wake up", Kind: core.KindChat})
	waitFor(t, time.Second, func() bool { return p.callCount() >= 2 }, "woken cycle")
	if elapsed := time.Since(start); elapsed > 1500*time.Millisecond {
		t.Errorf("actor took %s to wake, early wake did not fire", elapsed)
	}
}

func TestKillActionNonRootMayOnlyKillItself(t *testing.T) {
	cfg := testConfig()
	p := &funcProvider{fn: func(snap core.ActorSnapshot) core.Decision {
		if snap.Role == engine.RootRole {
			if len(snap.Children) == 0 {
				return core.Decision{Actions: []core.Action{{Type: core.ActionSpawn, Goal: "child work", Role: "Worker"}}}
			}
			return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
		}
		// The child tries to take down its parent.
		return core.Decision{Actions: []core.Action{{Type: core.ActionKill, To: snap.ParentID}}}
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("parent goal")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var childID string
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		if ok && len(snap.Children) == 1 {
			childID = snap.Children[0]
			return true
		}
		return false
	}, "child spawn")

	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(childID)
		if !ok {
			return false
		}
		for _, e := range snap.Errors {
			if strings.Contains(e, "may only kill itself") {
				return true
			}
		}
		return false
	}, "kill denial in child errors")

	snap, ok := o.ActorSnapshot(rootID)
	if !ok || snap.State.Terminal() {
		t.Fatalf("parent affected by denied kill: present=%v state=%v", ok, snap.State)
	}
}

func TestKillActionEmptyTargetStopsSelf(t *testing.T) {
	cfg := testConfig()
	p := &funcProvider{fn: func(snap core.ActorSnapshot) core.Decision {
		if snap.Role == engine.RootRole {
			if len(snap.Children) == 0 {
				return core.Decision{Actions: []core.Action{{Type: core.ActionSpawn, Goal: "short-lived", Role: "Worker"}}}
			}
			return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
		}
		return core.Decision{Actions: []core.Action{{Type: core.ActionKill}}}
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("outlive the child")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var childID string
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		if ok && len(snap.Children) == 1 {
			childID = snap.Children[0]
			return true
		}
		return false
	}, "child spawn")

	waitFor(t, 3*time.Second, func() bool {
		_, present := o.ActorSnapshot(childID)
		return !present
	}, "self-killed child removal")

	if snap, ok := o.ActorSnapshot(rootID); !ok || snap.State.Terminal() {
		t.Fatalf("parent affected by child self-kill: present=%v", ok)
	}
}

func TestKillActionRootTerminatesChildSubtree(t *testing.T) {
	cfg := testConfig()
	var mu sync.Mutex
	spawned := false
	p := &funcProvider{fn: func(snap core.ActorSnapshot) core.Decision {
		if snap.Role == engine.RootRole {
			mu.Lock()
			first := !spawned
			spawned = true
			mu.Unlock()
			if first {
				return core.Decision{Actions: []core.Action{{Type: core.ActionSpawn, Goal: "runaway work", Role: "Worker"}}}
			}
			if len(snap.Children) > 0 {
				return core.Decision{Actions: []core.Action{{Type: core.ActionKill, To: snap.Children[0]}}}
			}
			return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
		}
		return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("rein in the child")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var childID string
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		if ok && len(snap.Children) == 1 {
			childID = snap.Children[0]
			return true
		}
		return false
	}, "child spawn")

	waitFor(t, 3*time.Second, func() bool {
		_, present := o.ActorSnapshot(childID)
		return !present
	}, "killed child removal")

	if snap, ok := o.ActorSnapshot(rootID); !ok || snap.State.Terminal() {
		t.Fatalf("root did not survive killing its child: present=%v", ok)
	}
}

func TestKillActionUnknownTargetIsRecorded(t *testing.T) {
	p := &scriptProvider{script: [][]core.Action{
		{{Type: core.ActionKill, To: "ghost"}},
	}}
	o, err := engine.New(testConfig(), p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	id, err := o.Submit("kill a ghost")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(id)
		if !ok {
			return false
		}
		for _, e := range snap.Errors {
			if strings.Contains(e, "no actor ghost") {
				return true
			}
		}
		return false
	}, "unknown kill target in errors")
}

func TestListActionRecordsRoster(t *testing.T) {
	cfg := testConfig()
	var mu sync.Mutex
	stage := 0
	p := &funcProvider{fn: func(snap core.ActorSnapshot) core.Decision {
		if snap.Role != engine.RootRole {
			return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
		}
		mu.Lock()
		defer mu.Unlock()
		stage++
		switch stage {
		case 1:
			return core.Decision{Actions: []core.Action{{Type: core.ActionSpawn, Goal: "child work", Role: "Worker"}}}
		case 2:
			return core.Decision{Actions: []core.Action{{Type: core.ActionList}}}
		default:
			return core.Decision{Actions: []core.Action{{Type: core.ActionSleep, Seconds: 10}}}
		}
	}}
	o, err := engine.New(cfg, p)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer shutdownOrFail(t, o)

	rootID, err := o.Submit("take stock")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	var childID string
	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		if ok && len(snap.Children) == 1 {
			childID = snap.Children[0]
			return true
		}
		return false
	}, "child spawn")

	waitFor(t, 3*time.Second, func() bool {
		snap, ok := o.ActorSnapshot(rootID)
		if !ok {
			return false
		}
		for _, line := range snap.Context {
			if strings.Contains(line, "actors: ") && strings.Contains(line, childID) {
				return true
			}
		}
		return false
	}, "roster line naming the child")
}
