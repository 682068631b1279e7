package workflow

import (
	"context"
	"fmt"
	"time"
)

// drainerWakeup bounds how long the queue-drainer blocks on Get before
// rechecking whether the workflow is still running, so Stop stays
// responsive even with nothing enqueued (spec §4.7 step 1: "Block
// with a periodic wakeup (e.g. 1 s)").
const drainerWakeup = time.Second

// startEventDriven wires the long-lived half of C10: it subscribes the
// internal dispatcher that turns matched bus events into queue
// entries, then spawns the queue-drainer goroutine. Source nodes
// themselves are already instantiated/Setup by the caller (spec §4.7
// step 2: "sources first so their background tasks begin early").
func startEventDriven(ctx context.Context, w *workflowHandle) {
	sourceCount, regularCount := 0, 0
	sourceIDs := make(map[string]struct{})
	for _, rt := range w.runtimes {
		if rt.IsSource {
			sourceCount++
			sourceIDs[rt.NodeID] = struct{}{}
		} else {
			regularCount++
		}
	}
	w.logf("", fmt.Sprintf("event-driven workflow: %d source node(s), %d regular node(s)", sourceCount, regularCount), "info")

	for _, rt := range w.runtimes {
		if rt.IsSource {
			w.callbacks.hostStatus(rt.NodeID, string(NodeStatusListening), nil)
		}
	}

	// Subscribe one internal dispatcher to every event stamped with a
	// source node's id (spec §4.7 step 3: "message.*, timer.*" names
	// the two event families the built-in source nodes actually emit;
	// generalized here to source-node membership so any event a source
	// node publishes — including ones like "donation" used by S4 — is
	// queued, not just those two literal prefixes).
	w.bus.Subscribe("*", func(e Event) {
		if _, isSource := sourceIDs[e.SourceNodeID]; !isSource {
			return
		}
		item := QueuedEvent{Event: e, SourceNodeID: e.SourceNodeID}
		if !w.queue.Put(item) {
			w.metrics.incQueueDropped(w.id)
			w.logf("", fmt.Sprintf("%v: %s from %s", ErrQueueOverflow, e.Type, e.SourceNodeID), "warn")
		}
		w.metrics.setQueueDepth(w.id, w.queue.Size())
	}, nil, "")

	w.drainerDone = make(chan struct{})
	go func() {
		defer close(w.drainerDone)
		drainQueue(ctx, w)
	}()
}

// drainQueue is the queue-drainer loop (spec §4.7): strictly
// sequential, at most one event processed at a time.
func drainQueue(ctx context.Context, w *workflowHandle) {
	for {
		if ctx.Err() != nil {
			return
		}
		wakeCtx, cancel := context.WithTimeout(ctx, drainerWakeup)
		item, ok := w.queue.Get(wakeCtx.Done())
		cancel()
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}

		w.queue.SetProcessing(true)
		processQueuedEvent(ctx, w, item)
		w.queue.SetProcessing(false)
		w.metrics.setQueueDepth(w.id, w.queue.Size())
	}
}

// processQueuedEvent runs one event through its downstream order
// (spec §4.7 steps 3-7). A broken branch is logged and skipped; the
// drainer always proceeds to the next downstream node and, after
// that, the next event (event-driven flows are long-lived).
func processQueuedEvent(ctx context.Context, w *workflowHandle, item QueuedEvent) {
	downstream := downstreamOrderFromSource(w.state.Graph, item.SourceNodeID)
	if len(downstream) == 0 {
		w.logf(item.SourceNodeID, "no downstream nodes connected", "warn")
		return
	}

	inbound := inboundCounts(w.state.Graph.Connections)
	outputs := map[string]Ports{item.SourceNodeID: Ports(item.Event.Payload)}
	skipped := make(map[string]struct{})

	for _, nodeID := range downstream {
		rt := w.runtimes[nodeID]
		if rt == nil || rt.IsSource {
			skipped[nodeID] = struct{}{}
			continue
		}

		if !anyFilterMatches(rt.Filters, item.Event, func(f string, a ...interface{}) { w.logf(nodeID, fmt.Sprintf(f, a...), "debug") }) {
			skipped[nodeID] = struct{}{}
			continue
		}

		inputs := gatherInputsSkipAware(w.state.Graph.Connections, outputs, skipped, nodeID)
		if inbound[nodeID] > 0 && len(inputs) == 0 {
			skipped[nodeID] = struct{}{}
			continue
		}

		w.callbacks.hostStatus(nodeID, string(NodeStatusRunning), nil)
		start := time.Now()
		out, err := invokeExecute(ctx, rt, inputs)
		elapsed := time.Since(start)
		w.metrics.observeNodeLatencyMs(rt.NodeType, statusLabel(err), float64(elapsed.Milliseconds()))

		if err != nil {
			execErr := &NodeExecuteError{NodeID: nodeID, Cause: err}
			w.logf(nodeID, execErr.Error(), "error")
			w.callbacks.hostStatus(nodeID, string(NodeStatusError), map[string]interface{}{"error": err.Error()})
			skipped[nodeID] = struct{}{}
			continue
		}

		outputs[nodeID] = out
		w.callbacks.hostStatus(nodeID, string(NodeStatusCompleted), map[string]interface{}{"outputs": out})
	}
}

// gatherInputsSkipAware is gatherInputs extended with "a node with
// inbound connections but no available inputs because its upstream
// was skipped is itself skipped" (spec §4.7 step 6, P3-c). Same
// nest-under-To.Port fallback as gatherInputs when From.Port is absent
// from the upstream output (original_source's _get_node_inputs).
func gatherInputsSkipAware(conns []Connection, outputs map[string]Ports, skipped map[string]struct{}, nodeID string) Ports {
	inputs := Ports{}
	for _, c := range conns {
		if c.To.NodeID != nodeID {
			continue
		}
		if _, isSkipped := skipped[c.From.NodeID]; isSkipped {
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
