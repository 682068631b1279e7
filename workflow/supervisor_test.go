package workflow

import (
	"context"
	"sync"
	"testing"
	"time"
)

// testSourceNode emits a fixed burst of events over its own goroutine
// as soon as Setup runs, exercising spec §4.3's SpawnBackground idiom
// without depending on the plugins package (workflow must not import
// it — plugins imports workflow).
type testSourceNode struct {
	BaseNode
	events []Event
}

func (n *testSourceNode) Setup(ctx context.Context, _ map[string]interface{}, nc *NodeContext) error {
	nc.SpawnBackground(ctx, func(bgCtx context.Context) {
		for _, e := range n.events {
			select {
			case <-bgCtx.Done():
				return
			default:
			}
			nc.Emit(e)
		}
	})
	return nil
}

// recordingNode appends every inputs map it receives to a
// mutex-guarded slice so tests can assert invocation count and order.
type recordingNode struct {
	BaseNode
	mu    sync.Mutex
	calls []Ports
}

func (n *recordingNode) Execute(_ context.Context, inputs Ports, _ *NodeContext) (Ports, error) {
	n.mu.Lock()
	n.calls = append(n.calls, inputs)
	n.mu.Unlock()
	return Ports{"seen": true}, nil
}

func (n *recordingNode) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never became true before timeout")
		}
		time.Sleep(time.Millisecond)
	}
}

// TestSupervisorLinearPipeline is spec §8 S1: a no-source graph runs
// to completion in Kahn order, emitting a "completed" status.
func TestSupervisorLinearPipeline(t *testing.T) {
	registry := NewRegistry()
	out := &recordingNode{}
	registry.Register("start", func() NodeInterface {
		return NodeFunc(func(context.Context, Ports, *NodeContext) (Ports, error) {
			return Ports{"text": "hello"}, nil
		})
	})
	registry.Register("console-output", func() NodeInterface { return out })

	sup, err := NewSupervisor(registry)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "start", Type: "start"},
			{ID: "output", Type: "console-output"},
		},
		Connections: []Connection{
			{From: Endpoint{NodeID: "start", Port: "text"}, To: Endpoint{NodeID: "output", Port: "text"}},
		},
	}

	var finalStatus Status
	var mu sync.Mutex
	done := make(chan struct{})
	cb := HostCallbacks{
		Status: func(nodeID, status string, _ map[string]interface{}) {
			if nodeID == "" {
				mu.Lock()
				finalStatus = Status(status)
				mu.Unlock()
				if status == string(StatusCompleted) || status == string(StatusError) {
					close(done)
				}
			}
		},
	}

	if err := sup.Start(context.Background(), "wf-linear", g, WithCallbacks(cb)); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("linear run never completed")
	}

	mu.Lock()
	status := finalStatus
	mu.Unlock()
	if status != StatusCompleted {
		t.Errorf("final status = %q, want completed", status)
	}
	if out.count() != 1 {
		t.Fatalf("console-output invoked %d times, want 1", out.count())
	}
	if got := out.calls[0]["text"]; got != "hello" {
		t.Errorf("console-output received text=%v, want hello", got)
	}

	// I5: once the linear run's own cleanup has fired, the workflow
	// must be gone from the supervisor.
	waitFor(t, time.Second, func() bool { return !sup.Running("wf-linear") })
}

// TestSupervisorEventDrivenFanOut is spec §8 S3: a source node's
// events are queued and drained strictly sequentially, each driving
// its full downstream chain.
func TestSupervisorEventDrivenFanOut(t *testing.T) {
	registry := NewRegistry()
	source := &testSourceNode{events: []Event{
		{Type: "timer.tick", Payload: map[string]interface{}{"n": 1.0}},
		{Type: "timer.tick", Payload: map[string]interface{}{"n": 2.0}},
		{Type: "timer.tick", Payload: map[string]interface{}{"n": 3.0}},
	}}
	downstream := &recordingNode{}
	registry.Register("test-source", func() NodeInterface { return source })
	registry.Register("console-output", func() NodeInterface { return downstream })

	sup, err := NewSupervisor(registry, WithSourceNodeTypes("test-source"))
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "src", Type: "test-source"},
			{ID: "out", Type: "console-output"},
		},
		Connections: []Connection{
			{From: Endpoint{NodeID: "src", Port: "n"}, To: Endpoint{NodeID: "out", Port: "n"}},
		},
	}

	if err := sup.Start(context.Background(), "wf-event", g); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return downstream.count() == 3 })

	status, err := sup.GetStatus("wf-event")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.QueueDropped != 0 {
		t.Errorf("QueueDropped = %d, want 0", status.QueueDropped)
	}

	sup.Stop("wf-event")
	if sup.Running("wf-event") {
		t.Error("workflow still running after Stop (violates I5)")
	}
}

// TestSupervisorFilterORSemantics is spec §8 S4: a node with multiple
// eventFilters runs when ANY one of them matches (OR across entries,
// AND within one entry's own condition).
func TestSupervisorFilterORSemantics(t *testing.T) {
	registry := NewRegistry()
	source := &testSourceNode{events: []Event{
		{Type: "message.received", Payload: map[string]interface{}{"text": "hi"}},
		{Type: "donation", Payload: map[string]interface{}{"amount": 50.0}},
		{Type: "donation", Payload: map[string]interface{}{"amount": 500.0}},
	}}
	downstream := &recordingNode{}
	registry.Register("test-source", func() NodeInterface { return source })
	registry.Register("console-output", func() NodeInterface { return downstream })

	sup, err := NewSupervisor(registry, WithSourceNodeTypes("test-source"))
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "src", Type: "test-source"},
			{ID: "out", Type: "console-output", EventFilters: []EventFilter{
				{Pattern: "message.received"},
				{Pattern: "donation", Condition: "event.amount > 100"},
			}},
		},
		Connections: []Connection{
			{From: Endpoint{NodeID: "src", Port: "message"}, To: Endpoint{NodeID: "out", Port: "in"}},
		},
	}

	if err := sup.Start(context.Background(), "wf-filter", g); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return downstream.count() >= 2 })
	time.Sleep(50 * time.Millisecond) // let any (unwanted) third call land

	if got := downstream.count(); got != 2 {
		t.Errorf("downstream invoked %d times, want exactly 2 (message.received + high donation only)", got)
	}

	sup.Stop("wf-filter")
}

// TestSupervisorQueueOverflow is spec §8 S5: a queue capacity of 2
// with a burst of 5 events stabilizes at dropped_count == 3.
func TestSupervisorQueueOverflow(t *testing.T) {
	registry := NewRegistry()
	events := make([]Event, 5)
	for i := range events {
		events[i] = Event{Type: "timer.tick", Payload: map[string]interface{}{"i": float64(i)}}
	}
	source := &testSourceNode{events: events}
	downstream := &blockingNode{release: make(chan struct{})}
	registry.Register("test-source", func() NodeInterface { return source })
	registry.Register("blocker", func() NodeInterface { return downstream })

	sup, err := NewSupervisor(registry, WithSourceNodeTypes("test-source"), WithQueueCapacity(2))
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "src", Type: "test-source"},
			{ID: "blk", Type: "blocker"},
		},
		Connections: []Connection{
			{From: Endpoint{NodeID: "src", Port: "i"}, To: Endpoint{NodeID: "blk", Port: "i"}},
		},
	}

	if err := sup.Start(context.Background(), "wf-overflow", g); err != nil {
		t.Fatalf("Start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool {
		status, err := sup.GetStatus("wf-overflow")
		return err == nil && status.QueueDropped == 3
	})

	close(downstream.release)
	sup.Stop("wf-overflow")
}

// blockingNode holds up the drainer on its first invocation until
// release is closed, simulating a slow downstream so a burst of
// source events piles up against the bounded queue.
type blockingNode struct {
	BaseNode
	release chan struct{}
	first   sync.Once
}

func (n *blockingNode) Execute(ctx context.Context, _ Ports, _ *NodeContext) (Ports, error) {
	n.first.Do(func() {
		select {
		case <-n.release:
		case <-ctx.Done():
		}
	})
	return Ports{}, nil
}

// TestSupervisorStopCancelsBackgroundTask is spec §8 S6: stopping a
// workflow with a long-running background task returns promptly and
// leaves no trace in the supervisor (I4, I5).
func TestSupervisorStopCancelsBackgroundTask(t *testing.T) {
	registry := NewRegistry()
	cancelled := make(chan struct{})
	registry.Register("sleepy-source", func() NodeInterface {
		return NodeFunc(func(context.Context, Ports, *NodeContext) (Ports, error) { return Ports{}, nil })
	})
	registry.Register("sleepy", func() NodeInterface {
		return &sleepyNode{cancelled: cancelled}
	})

	sup, err := NewSupervisor(registry, WithSourceNodeTypes("sleepy-source"))
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{
			{ID: "src", Type: "sleepy-source"},
			{ID: "sleeper", Type: "sleepy"},
		},
	}

	if err := sup.Start(context.Background(), "wf-sleep", g); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	stopStart := time.Now()
	sup.Stop("wf-sleep")
	if elapsed := time.Since(stopStart); elapsed > time.Second {
		t.Errorf("Stop took %v, want well under 1s given cooperative cancellation", elapsed)
	}

	select {
	case <-cancelled:
	default:
		t.Error("background task was not observed cancelled")
	}

	if sup.Running("wf-sleep") {
		t.Error("workflow still present after Stop (I5 violated)")
	}
}

// sleepyNode spawns a background task that blocks on a 10s timer,
// honoring ctx.Done() immediately — the cancellable-sleep idiom spec
// §8 S6 exercises.
type sleepyNode struct {
	BaseNode
	cancelled chan struct{}
}

func (n *sleepyNode) Setup(ctx context.Context, _ map[string]interface{}, nc *NodeContext) error {
	nc.SpawnBackground(ctx, func(bgCtx context.Context) {
		select {
		case <-time.After(10 * time.Second):
		case <-bgCtx.Done():
			close(n.cancelled)
		}
	})
	return nil
}

// TestSupervisorRestartIsIdempotent covers §4.8 start step 1: starting
// an already-running id stops the old run first instead of erroring.
func TestSupervisorRestartIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	registry.Register("noop", func() NodeInterface {
		return NodeFunc(func(context.Context, Ports, *NodeContext) (Ports, error) { return Ports{}, nil })
	})

	sup, err := NewSupervisor(registry)
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}
	g := Graph{Nodes: []NodeSpec{{ID: "n", Type: "noop"}}}

	if err := sup.Start(context.Background(), "wf-restart", g); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := sup.Start(context.Background(), "wf-restart", g); err != nil {
		t.Fatalf("restart Start: %v", err)
	}

	waitFor(t, time.Second, func() bool { return !sup.Running("wf-restart") })
}

// TestSupervisorStartRejectsMalformedGraph covers spec §7.1:
// GraphError surfaces at Start and the workflow never enters running.
func TestSupervisorStartRejectsMalformedGraph(t *testing.T) {
	sup, err := NewSupervisor(NewRegistry())
	if err != nil {
		t.Fatalf("NewSupervisor: %v", err)
	}

	g := Graph{
		Nodes: []NodeSpec{{ID: "a"}},
		Connections: []Connection{
			{From: Endpoint{NodeID: "a"}, To: Endpoint{NodeID: "missing"}},
		},
	}

	if err := sup.Start(context.Background(), "wf-bad", g); err == nil {
		t.Fatal("Start should reject a graph with a dangling connection")
	}
	if sup.Running("wf-bad") {
		t.Error("a rejected graph must never enter the running set")
	}
}
