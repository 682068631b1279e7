package workflow

import (
	"context"
	"sync"
	"time"
)

// sharedCharacter is the per-workflow character mapping (spec §3's
// Graph.character): last-writer-wins, no locking beyond a plain mutex
// for memory safety, because node invocations within one event are
// sequential (spec §5, §9). If parallel intra-event execution is ever
// added this must become snapshot-plus-delta to preserve P8.
type sharedCharacter struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newSharedCharacter(initial map[string]interface{}) *sharedCharacter {
	data := make(map[string]interface{}, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &sharedCharacter{data: data}
}

func (c *sharedCharacter) update(delta map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, v := range delta {
		c.data[k] = v
	}
}

func (c *sharedCharacter) snapshot() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{}, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

func (c *sharedCharacter) get(key string, fallback interface{}) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v
	}
	return fallback
}

// backgroundTaskRegistry tracks cancel handles for tasks spawned by
// NodeContext.SpawnBackground, satisfying I4/I5: every handle is
// cancelled and awaited before stop returns. Grounded on
// original_source/.../context.py's _background_tasks set plus
// cancel_background_tasks, expressed with goroutines and
// context.CancelFunc instead of asyncio tasks.
type backgroundTaskRegistry struct {
	mu    sync.Mutex
	tasks map[uint64]context.CancelFunc
	done  map[uint64]chan struct{}
	next  uint64
}

func newBackgroundTaskRegistry() *backgroundTaskRegistry {
	return &backgroundTaskRegistry{
		tasks: make(map[uint64]context.CancelFunc),
		done:  make(map[uint64]chan struct{}),
	}
}

// register wraps fn as a goroutine under a child of parent, returning
// once fn has been launched. The registry removes its own bookkeeping
// when fn returns.
func (r *backgroundTaskRegistry) register(parent context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(parent)

	r.mu.Lock()
	id := r.next
	r.next++
	done := make(chan struct{})
	r.tasks[id] = cancel
	r.done[id] = done
	r.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			r.mu.Lock()
			delete(r.tasks, id)
			delete(r.done, id)
			r.mu.Unlock()
		}()
		defer func() { _ = recover() }()
		fn(ctx)
	}()
}

// cancelAndAwait cancels every tracked task and waits for each to
// return, discarding any recovered panics so one misbehaving task
// cannot block shutdown of the rest.
func (r *backgroundTaskRegistry) cancelAndAwait() {
	r.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(r.tasks))
	dones := make([]chan struct{}, 0, len(r.done))
	for id, c := range r.tasks {
		cancels = append(cancels, c)
		dones = append(dones, r.done[id])
	}
	r.mu.Unlock()

	for _, c := range cancels {
		c()
	}
	for _, d := range dones {
		<-d
	}
}

// NodeContext is the per-invocation capability object passed to node
// code (C5). Grounded on
// original_source/packages/sdk/aituber_flow_sdk/context.py's
// NodeContext dataclass.
type NodeContext struct {
	WorkflowID string
	NodeID     string

	bus       *EventBus
	character *sharedCharacter
	bgTasks   *backgroundTaskRegistry
	hostLog   func(nodeID, message, level string)
}

func newNodeContext(workflowID, nodeID string, bus *EventBus, character *sharedCharacter, bg *backgroundTaskRegistry, hostLog func(string, string, string)) *NodeContext {
	return &NodeContext{
		WorkflowID: workflowID,
		NodeID:     nodeID,
		bus:        bus,
		character:  character,
		bgTasks:    bg,
		hostLog:    hostLog,
	}
}

// Emit stamps SourceNodeID and Timestamp on event, then publishes it
// to the workflow's EventBus.
func (nc *NodeContext) Emit(event Event) int {
	event.SourceNodeID = nc.NodeID
	if event.Timestamp.IsZero() {
		event.Timestamp = nowFunc()
	}
	return nc.bus.Emit(event)
}

// Log routes message to the HostCallbacks log channel (§4.9); failures
// in the host callback are swallowed by the supervisor, never by the
// node.
func (nc *NodeContext) Log(message, level string) {
	if nc.hostLog != nil {
		nc.hostLog(nc.NodeID, message, level)
	}
}

// UpdateCharacter merges delta into the shared character mapping,
// last-writer-wins, no cross-node locking beyond memory safety.
func (nc *NodeContext) UpdateCharacter(delta map[string]interface{}) {
	nc.character.update(delta)
}

// CharacterName is a convenience read, defaulting to "AI Assistant"
// when unset (original_source's get_character_name default).
func (nc *NodeContext) CharacterName() string {
	v := nc.character.get("name", "AI Assistant")
	s, _ := v.(string)
	if s == "" {
		return "AI Assistant"
	}
	return s
}

// CharacterPersonality is a convenience read, defaulting to "".
func (nc *NodeContext) CharacterPersonality() string {
	v := nc.character.get("personality", "")
	s, _ := v.(string)
	return s
}

// SpawnBackground registers a long-lived cooperative task with the
// workflow's background-task registry. The engine guarantees fn's
// context is cancelled before Supervisor.Stop returns (I4).
func (nc *NodeContext) SpawnBackground(parent context.Context, fn func(ctx context.Context)) {
	nc.bgTasks.register(parent, fn)
}

// nowFunc is indirected so it is easy to fake in tests.
var nowFunc = time.Now
