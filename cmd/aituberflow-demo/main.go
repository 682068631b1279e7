// Command aituberflow-demo drives the workflow engine end to end
// against two of spec.md's concrete scenarios: a linear pipeline (S1)
// and an event-driven timer fan-out (S3). Styled after the teacher's
// examples/data-pipeline/main.go demo harness (plain stdout narration,
// no flags), wired to this repo's own NodeInterface/Supervisor instead
// of the teacher's generic reducer/checkpoint API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aituberflow/aituberflow-go/plugins"
	"github.com/aituberflow/aituberflow-go/workflow"
)

func main() {
	fmt.Println("=== AITuberFlow workflow engine demo ===")
	fmt.Println()

	plugins.Register(workflow.DefaultRegistry())

	runLinearPipeline()
	fmt.Println()
	runEventDrivenTimer()
}

// runLinearPipeline is spec.md §8 S1: start -> manual-input -> console-output,
// no source nodes, one-shot DAG execution.
func runLinearPipeline() {
	fmt.Println("--- Linear pipeline (start -> manual-input -> console-output) ---")

	sup, err := workflow.NewSupervisor(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "new supervisor:", err)
		os.Exit(1)
	}

	g := workflow.Graph{
		Nodes: []workflow.NodeSpec{
			{ID: "start", Type: "start"},
			{ID: "input", Type: "manual-input", Config: map[string]interface{}{"inputText": "hello"}},
			{ID: "output", Type: "console-output", Config: map[string]interface{}{"prefix": "[out]"}},
		},
		Connections: []workflow.Connection{
			{From: workflow.Endpoint{NodeID: "start", Port: "trigger"}, To: workflow.Endpoint{NodeID: "input", Port: "trigger"}},
			{From: workflow.Endpoint{NodeID: "input", Port: "text"}, To: workflow.Endpoint{NodeID: "output", Port: "text"}},
		},
	}

	done := make(chan struct{})
	cb := workflow.HostCallbacks{
		Log: func(nodeID, message, level string) {
			fmt.Printf("  [%s] %s: %s\n", level, nodeID, message)
		},
		Status: func(nodeID, status string, _ map[string]interface{}) {
			fmt.Printf("  status: %s -> %s\n", nodeID, status)
			if nodeID == "" && (status == "completed" || status == "error") {
				close(done)
			}
		},
	}

	ctx := context.Background()
	if err := sup.Start(ctx, "demo-linear", g, workflow.WithCallbacks(cb)); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		fmt.Println("  (timed out waiting for completion)")
	}
}

// runEventDrivenTimer is spec.md §8 S3: timer -> text-transform ->
// console-output, a source node driving the queue drainer. Runs for a
// few ticks, then stops and confirms the supervisor map is empty (I5).
func runEventDrivenTimer() {
	fmt.Println("--- Event-driven timer fan-out (timer -> text-transform -> console-output) ---")

	sup, err := workflow.NewSupervisor(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "new supervisor:", err)
		os.Exit(1)
	}

	g := workflow.Graph{
		Nodes: []workflow.NodeSpec{
			{ID: "timer", Type: "timer", Config: map[string]interface{}{"intervalMs": 300, "immediate": true}},
			{ID: "transform", Type: "text-transform", Config: map[string]interface{}{
				"operation": "template",
				"template":  "tick #{{tick}} at {{timestamp}}",
			}},
			{ID: "output", Type: "console-output", Config: map[string]interface{}{"prefix": "[timer]"}},
		},
		Connections: []workflow.Connection{
			{From: workflow.Endpoint{NodeID: "timer", Port: "tick"}, To: workflow.Endpoint{NodeID: "transform", Port: "tick"}},
			{From: workflow.Endpoint{NodeID: "timer", Port: "timestamp"}, To: workflow.Endpoint{NodeID: "transform", Port: "timestamp"}},
			{From: workflow.Endpoint{NodeID: "transform", Port: "result"}, To: workflow.Endpoint{NodeID: "output", Port: "text"}},
		},
	}

	cb := workflow.HostCallbacks{
		Log: func(nodeID, message, level string) {
			fmt.Printf("  [%s] %s: %s\n", level, nodeID, message)
		},
		Status: func(nodeID, status string, _ map[string]interface{}) {
			fmt.Printf("  status: %s -> %s\n", nodeID, status)
		},
	}

	ctx := context.Background()
	if err := sup.Start(ctx, "demo-event-driven", g, workflow.WithCallbacks(cb)); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}

	time.Sleep(1200 * time.Millisecond)

	status, err := sup.GetStatus("demo-event-driven")
	if err == nil {
		fmt.Printf("  before stop: queue size=%d dropped=%d\n", status.QueueSize, status.QueueDropped)
	}

	sup.Stop("demo-event-driven")

	if sup.Running("demo-event-driven") {
		fmt.Println("  BUG: workflow still running after Stop")
	} else {
		fmt.Println("  stopped cleanly, no trace left in the supervisor")
	}
}
