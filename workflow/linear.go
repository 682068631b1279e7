package workflow

import (
	"context"
	"fmt"
	"time"
)

// runLinear executes g one-shot in Kahn order (C9, spec §4.6).
// Precondition: g contains no source nodes (the supervisor chooses
// this runner only when that holds).
//
// Grounded on original_source/apps/server/engine/executor.py's
// _run_linear.
func runLinear(ctx context.Context, w *workflowHandle) error {
	order := executionOrder(w.state.Graph)
	if len(order) == 0 {
		w.logf("", "linear workflow: no executable nodes", "warn")
	} else {
		w.logf("", fmt.Sprintf("linear workflow (%d nodes)", len(order)), "info")
	}

	outputs := make(map[string]Ports, len(order))

	for _, nodeID := range order {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		rt := w.runtimes[nodeID]
		if rt == nil {
			continue
		}

		inputs := gatherInputs(w.state.Graph.Connections, outputs, nodeID)

		w.callbacks.hostStatus(nodeID, string(NodeStatusRunning), nil)
		start := time.Now()
		out, err := invokeExecute(ctx, rt, inputs)
		elapsed := time.Since(start)
		w.metrics.observeNodeLatencyMs(rt.NodeType, statusLabel(err), float64(elapsed.Milliseconds()))

		if err != nil {
			execErr := &NodeExecuteError{NodeID: nodeID, Cause: err}
			w.logf(nodeID, execErr.Error(), "error")
			w.callbacks.hostStatus(nodeID, string(NodeStatusError), map[string]interface{}{"error": err.Error()})
			return execErr
		}

		outputs[nodeID] = out
		w.callbacks.hostStatus(nodeID, string(NodeStatusCompleted), map[string]interface{}{"outputs": out})
	}

	return nil
}

// gatherInputs walks every connection whose To.NodeID is nodeID,
// pulling upstream_outputs[From.Port] onto To.Port — or, when
// From.Port is absent from the upstream output, nesting the whole
// output mapping under To.Port instead — per spec §4.6 step 2. A
// missing upstream entry yields no input for that port.
//
// Grounded on original_source/.../executor.py's _get_node_inputs:
// `inputs[to_port] = upstream_outputs` when from_port isn't a key of
// upstream_outputs, i.e. the whole map is nested under the one
// downstream port, not flattened across every port name.
func gatherInputs(conns []Connection, outputs map[string]Ports, nodeID string) Ports {
	inputs := Ports{}
	for _, c := range conns {
		if c.To.NodeID != nodeID {
			continue
		}
		upstream, ok := outputs[c.From.NodeID]
		if !ok {
			continue
		}
		if v, ok := upstream[c.From.Port]; ok {
			inputs[c.To.Port] = v
		} else {
			inputs[c.To.Port] = upstream
		}
	}
	return inputs
}

// invokeExecute calls rt's Execute, recovering a node panic into an
// error so one bad plugin can't crash the runner goroutine.
func invokeExecute(ctx context.Context, rt *NodeRuntime, inputs Ports) (out Ports, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return rt.Instance.Execute(ctx, inputs, rt.Context)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
