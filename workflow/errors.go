package workflow

import (
	"errors"
	"fmt"
)

// Error kinds (spec §7). The engine never propagates node-originating
// failures to siblings or to the host as Go panics/process errors;
// they all become one of these structured values, logged and/or
// surfaced on the status callback. Grounded on the teacher's
// graph/errors.go sentinel-var style and graph/node.go's NodeError
// detail-struct style.

// ErrQueueOverflow is counted, not returned: Put on a full queue logs
// this sentinel at warning and increments the drop counter (§7.7).
var ErrQueueOverflow = errors.New("workflow: event queue overflow, event dropped")

// GraphError reports a malformed graph: a duplicate node id, a
// connection endpoint that names a node not present in the graph, or
// an empty node set. Surfaced at Start; the workflow never enters
// running (§7.1).
type GraphError struct {
	Reason string
}

func (e *GraphError) Error() string { return fmt.Sprintf("workflow: graph error: %s", e.Reason) }

// NodeLoadError reports that the PluginLoader could not resolve or
// instantiate node_type. Not fatal: the caller falls back to a no-op
// node and logs at warning (§7.2).
type NodeLoadError struct {
	NodeID, NodeType string
	Cause            error
}

func (e *NodeLoadError) Error() string {
	return fmt.Sprintf("workflow: node %q: failed to load type %q: %v", e.NodeID, e.NodeType, e.Cause)
}
func (e *NodeLoadError) Unwrap() error { return e.Cause }

// NodeSetupError reports that Setup raised. Logged per-node; the run
// continues (the node may still be invoked and will likely fail
// again) (§7.3).
type NodeSetupError struct {
	NodeID string
	Cause  error
}

func (e *NodeSetupError) Error() string {
	return fmt.Sprintf("workflow: node %q: setup failed: %v", e.NodeID, e.Cause)
}
func (e *NodeSetupError) Unwrap() error { return e.Cause }

// NodeExecuteError reports that Execute raised. Linear mode aborts the
// run on this error; event-driven mode logs it and continues with
// remaining downstream nodes and subsequent events (§7.4).
type NodeExecuteError struct {
	NodeID string
	Cause  error
}

func (e *NodeExecuteError) Error() string {
	return fmt.Sprintf("workflow: node %q: execute failed: %v", e.NodeID, e.Cause)
}
func (e *NodeExecuteError) Unwrap() error { return e.Cause }

// CallbackError reports that a HostCallbacks slot failed. Always
// swallowed and logged (§7.5).
type CallbackError struct {
	Slot  string
	Cause error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("workflow: host callback %q failed: %v", e.Slot, e.Cause)
}
func (e *CallbackError) Unwrap() error { return e.Cause }

// FilterEvaluationError reports that an EventFilter's condition failed
// to parse or evaluate. Fail-closed (treated as no-match), logged at
// debug (§7.6).
type FilterEvaluationError struct {
	Condition string
	Cause     error
}

func (e *FilterEvaluationError) Error() string {
	return fmt.Sprintf("workflow: condition %q failed to evaluate: %v", e.Condition, e.Cause)
}
func (e *FilterEvaluationError) Unwrap() error { return e.Cause }

// ShutdownError reports that Teardown raised during Stop. Logged; does
// not block completion of Stop (§7.8).
type ShutdownError struct {
	NodeID string
	Cause  error
}

func (e *ShutdownError) Error() string {
	return fmt.Sprintf("workflow: node %q: teardown failed: %v", e.NodeID, e.Cause)
}
func (e *ShutdownError) Unwrap() error { return e.Cause }

// ErrWorkflowNotFound is returned by GetStatus for an unknown workflow
// id.
var ErrWorkflowNotFound = errors.New("workflow: unknown workflow id")
