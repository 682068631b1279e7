package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/aituberflow/aituberflow-go/workflow/emit"
)

// hostVisiblePrefixes are the event patterns forwarded to
// HostCallbacks.Event by default (spec §4.8 step 2, §6).
var hostVisiblePrefixes = []string{"audio.*", "avatar.*", "subtitle"}

// StartOption configures one Supervisor.Start call.
type StartOption func(*startConfig)

type startConfig struct {
	callbacks   HostCallbacks
	startNodeID string
}

// WithCallbacks registers the HostCallbacks slots for this run (spec
// §4.9). Omitting it runs the workflow silently (all slots nil).
func WithCallbacks(cb HostCallbacks) StartOption {
	return func(c *startConfig) { c.callbacks = cb }
}

// WithStartNodeID reduces the graph to the subgraph reachable from
// nodeID before running it (spec §4.8 step 3).
func WithStartNodeID(nodeID string) StartOption {
	return func(c *startConfig) { c.startNodeID = nodeID }
}

// workflowHandle is the supervisor's per-workflow bundle (spec §4.8
// "State per workflow"): everything I5 requires be pruned on Stop
// lives here, reachable only through Supervisor.workflows.
type workflowHandle struct {
	id string

	mu    sync.Mutex
	state WorkflowState

	bus       *EventBus
	queue     *BoundedEventQueue // nil in linear mode
	character *sharedCharacter
	bgTasks   *backgroundTaskRegistry
	runtimes  map[string]*NodeRuntime

	callbacks HostCallbacks
	metrics   *PrometheusMetrics
	emitter   emit.Emitter

	cancel      context.CancelFunc
	drainerDone chan struct{}
}

// logf routes a supervisor/node log line to both HostCallbacks.Log
// and the observability Emitter, if configured.
func (w *workflowHandle) logf(nodeID, message, level string) {
	w.callbacks.hostLog(nodeID, message, level)
	if w.emitter != nil {
		w.emitter.Emit(emit.Event{
			WorkflowID: w.id,
			NodeID:     nodeID,
			Msg:        message,
			Meta:       map[string]interface{}{"level": level},
			Timestamp:  nowFunc(),
		})
	}
}

func (w *workflowHandle) setState(status Status, lastErr error) {
	w.mu.Lock()
	w.state.Status = status
	w.state.LastError = lastErr
	w.mu.Unlock()
}

// Supervisor is the WorkflowSupervisor (C11): lifecycle start/stop/
// status, callback wiring, and resource cleanup for every running
// workflow in the process. Grounded on
// original_source/apps/server/engine/executor.py's WorkflowExecutor,
// using goroutines + context.CancelFunc handles in place of asyncio
// tasks (teacher graph/engine.go's concurrency idiom).
type Supervisor struct {
	cfg      config
	registry *Registry

	mu        sync.Mutex
	workflows map[string]*workflowHandle
}

// NewSupervisor constructs a Supervisor. A nil registry uses
// DefaultRegistry(), the process-wide plugin cache plugins/ packages
// register themselves into.
func NewSupervisor(registry *Registry, opts ...Option) (*Supervisor, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Supervisor{
		cfg:       cfg,
		registry:  registry,
		workflows: make(map[string]*workflowHandle),
	}, nil
}

// Start begins running graph g under workflow id (spec §4.8). If id
// is already running, Start stops it first (idempotent restart,
// §4.8 step 1). Returns a *GraphError without creating any state if
// validation fails (§7.1).
func (s *Supervisor) Start(ctx context.Context, id string, g Graph, opts ...StartOption) error {
	s.mu.Lock()
	_, running := s.workflows[id]
	s.mu.Unlock()
	if running {
		s.Stop(id)
	}

	if err := Validate(g); err != nil {
		return err
	}

	var scfg startConfig
	for _, opt := range opts {
		opt(&scfg)
	}
	if scfg.startNodeID != "" {
		g = subgraphFrom(g, scfg.startNodeID)
		if err := Validate(g); err != nil {
			return err
		}
	}

	w := &workflowHandle{
		id:        id,
		character: newSharedCharacter(g.Character),
		bgTasks:   newBackgroundTaskRegistry(),
		runtimes:  make(map[string]*NodeRuntime),
		callbacks: scfg.callbacks,
		metrics:   s.cfg.metrics,
		emitter:   s.cfg.emitter,
		state:     WorkflowState{Status: StatusRunning, StartedAt: nowFunc(), Graph: g},
	}

	w.bus = NewEventBus(s.cfg.historyLimit, func(f string, a ...interface{}) {
		w.logf("", fmt.Sprintf(f, a...), "warn")
	})
	_ = w.bus.Start() // fresh bus, cannot already be started

	for _, prefix := range hostVisiblePrefixes {
		w.bus.Subscribe(prefix, func(e Event) { w.callbacks.hostEvent(e) }, nil, "")
	}
	w.bus.Subscribe("*", func(e Event) { w.metrics.incBusEmit(w.id, e.Type) }, nil, "")

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	hasSource := s.instantiateNodes(runCtx, w, g)

	s.mu.Lock()
	s.workflows[id] = w
	s.mu.Unlock()
	s.cfg.metrics.workflowStarted()

	if hasSource {
		w.queue = NewBoundedEventQueue(s.cfg.queueCapacity)
		startEventDriven(runCtx, w)
	} else {
		go func() {
			err := runLinear(runCtx, w)
			s.finishLinear(id, err)
		}()
	}
	return nil
}

// instantiateNodes resolves and Setup()s every node in g (spec §4.4/
// §4.3), sources first so their background tasks begin early (§4.7
// step 2). Returns whether any source node is present.
func (s *Supervisor) instantiateNodes(ctx context.Context, w *workflowHandle, g Graph) bool {
	hasSource := false
	var sources, regulars []*NodeRuntime

	for _, ns := range g.Nodes {
		_, isSource := s.cfg.sourceNodeTypes[ns.Type]
		if isSource {
			hasSource = true
		}

		nc := newNodeContext(w.id, ns.ID, w.bus, w.character, w.bgTasks, w.callbacks.hostLog)
		instance := loadNode(s.registry, ns.ID, ns.Type, func(f string, a ...interface{}) {
			w.logf(ns.ID, fmt.Sprintf(f, a...), "warn")
		})

		rt := &NodeRuntime{
			NodeID:   ns.ID,
			NodeType: ns.Type,
			Config:   ns.Config,
			Filters:  ns.EventFilters,
			IsSource: isSource,
			Instance: instance,
			Context:  nc,
		}
		w.runtimes[ns.ID] = rt
		if isSource {
			sources = append(sources, rt)
		} else {
			regulars = append(regulars, rt)
		}
	}

	for _, rt := range append(sources, regulars...) {
		if err := setupNode(ctx, rt); err != nil {
			setupErr := &NodeSetupError{NodeID: rt.NodeID, Cause: err}
			w.logf(rt.NodeID, setupErr.Error(), "warn")
			rt.setupFailed = true
		}
	}
	return hasSource
}

// setupNode calls rt's Setup, recovering a node panic into an error.
func setupNode(ctx context.Context, rt *NodeRuntime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rt.Instance.Setup(ctx, rt.Config, rt.Context)
}

// finishLinear is the completion path for a one-shot linear run: mark
// completed/error, emit the workflow-level status, then run the same
// teardown Stop would (spec §4.8 state machine: "linear done -->
// completed --cleanup--> (absent)").
func (s *Supervisor) finishLinear(id string, runErr error) {
	s.mu.Lock()
	w, ok := s.workflows[id]
	if ok {
		delete(s.workflows, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	final := StatusCompleted
	if runErr != nil {
		final = StatusError
	}
	w.setState(final, runErr)
	if runErr != nil {
		w.callbacks.hostStatus("", string(StatusError), map[string]interface{}{"error": runErr.Error()})
	} else {
		w.callbacks.hostStatus("", string(StatusCompleted), nil)
	}

	s.teardown(w)
}

// Stop ends workflow id, if running (spec §4.8 "stop"). Safe to call
// at any time, including for an unknown id (no-op). Satisfies I5: by
// the time Stop returns, id is absent from every supervisor map.
func (s *Supervisor) Stop(id string) {
	s.mu.Lock()
	w, ok := s.workflows[id]
	if ok {
		delete(s.workflows, id)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	w.setState(StatusStopped, nil)
	w.callbacks.hostStatus("", string(StatusStopped), nil)
	s.teardown(w)
}

// teardown performs the five-step cleanup Stop and finishLinear share:
// cancel the drainer, cancel+await background tasks, teardown every
// node, stop the bus, and release the metrics gauge (§4.8 "stop"
// steps 1-6; the queue/registry/map entry are already dropped by the
// caller under the supervisor lock, satisfying I5/I3).
func (s *Supervisor) teardown(w *workflowHandle) {
	w.cancel()
	if w.drainerDone != nil {
		<-w.drainerDone
	}

	w.bgTasks.cancelAndAwait()

	teardownCtx := context.Background()
	for _, rt := range w.runtimes {
		if err := teardownNode(teardownCtx, rt); err != nil {
			shutdownErr := &ShutdownError{NodeID: rt.NodeID, Cause: err}
			w.logf(rt.NodeID, shutdownErr.Error(), "warn")
		}
	}

	w.bus.Stop()
	s.cfg.metrics.workflowStopped()
}

// teardownNode calls rt's Teardown, recovering a node panic into an
// error (§7.8: "does not block completion of stop").
func teardownNode(ctx context.Context, rt *NodeRuntime) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rt.Instance.Teardown(ctx)
}

// GetStatus returns id's current status plus queue observability when
// running in event-driven mode (spec §4.8 "get_status"). Returns
// ErrWorkflowNotFound once the workflow has been cleaned up.
func (s *Supervisor) GetStatus(id string) (StatusInfo, error) {
	s.mu.Lock()
	w, ok := s.workflows[id]
	s.mu.Unlock()
	if !ok {
		return StatusInfo{}, ErrWorkflowNotFound
	}

	w.mu.Lock()
	info := StatusInfo{Status: w.state.Status, LastError: w.state.LastError}
	w.mu.Unlock()

	if w.queue != nil {
		info.QueueSize = w.queue.Size()
		info.QueueProcessing = w.queue.IsProcessing()
		info.QueueDropped = w.queue.Dropped()
	}
	return info, nil
}

// Running reports whether id currently has a live workflowHandle; used
// by tests and by the drainer's own liveness check is instead done via
// ctx.Done(), since the handle is only removed after Stop cancels it.
func (s *Supervisor) Running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.workflows[id]
	return ok
}
