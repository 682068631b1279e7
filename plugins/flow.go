package plugins

import (
	"context"

	"github.com/aituberflow/aituberflow-go/workflow"
)

// startNode marks a workflow's entry point. Grounded on
// original_source/plugins/start/node.py.
type startNode struct {
	workflow.BaseNode
	autoStart bool
}

func newStartNode() workflow.NodeInterface { return &startNode{autoStart: true} }

func (n *startNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.autoStart = boolConfig(cfg, "autoStart", true)
	nc.Log("Start node initialized", "info")
	return nil
}

func (n *startNode) Execute(_ context.Context, _ workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	nc.Log("Workflow started", "info")
	nc.Emit(workflow.Event{
		Type:    "workflow.started",
		Payload: map[string]interface{}{"autoStart": n.autoStart},
	})
	return workflow.Ports{"trigger": true}, nil
}

// endNode marks a workflow's exit point. Grounded on
// original_source/plugins/end/node.py.
type endNode struct {
	workflow.BaseNode
	message string
}

func newEndNode() workflow.NodeInterface { return &endNode{message: "Workflow completed"} }

func (n *endNode) Setup(_ context.Context, cfg map[string]interface{}, nc *workflow.NodeContext) error {
	n.message = stringConfig(cfg, "message", "Workflow completed")
	nc.Log("End node initialized", "info")
	return nil
}

func (n *endNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	final := inputs["input"]
	nc.Log("Workflow ended: "+n.message, "info")
	nc.Emit(workflow.Event{
		Type: "workflow.ended",
		Payload: map[string]interface{}{
			"message":    n.message,
			"finalValue": final,
		},
	})
	return workflow.Ports{}, nil
}

// manualInputNode outputs a configured literal, letting an operator
// seed a workflow by hand. Grounded on
// original_source/plugins/manual-input/node.py.
type manualInputNode struct {
	workflow.BaseNode
	inputText string
}

func newManualInputNode() workflow.NodeInterface { return &manualInputNode{} }

func (n *manualInputNode) Setup(_ context.Context, cfg map[string]interface{}, _ *workflow.NodeContext) error {
	n.inputText = stringConfig(cfg, "inputText", "")
	return nil
}

func (n *manualInputNode) Execute(_ context.Context, _ workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	if n.inputText != "" {
		nc.Log("Input: "+truncate(n.inputText, 50), "info")
	} else {
		nc.Log("No input text configured", "warning")
	}
	return workflow.Ports{"text": n.inputText}, nil
}

// consoleOutputNode writes text to the host log channel. Grounded on
// original_source/plugins/console-output/node.py.
type consoleOutputNode struct {
	workflow.BaseNode
	prefix   string
	logLevel string
}

func newConsoleOutputNode() workflow.NodeInterface {
	return &consoleOutputNode{prefix: "[Output]", logLevel: "info"}
}

func (n *consoleOutputNode) Setup(_ context.Context, cfg map[string]interface{}, _ *workflow.NodeContext) error {
	n.prefix = stringConfig(cfg, "prefix", "[Output]")
	n.logLevel = stringConfig(cfg, "logLevel", "info")
	return nil
}

func (n *consoleOutputNode) Execute(_ context.Context, inputs workflow.Ports, nc *workflow.NodeContext) (workflow.Ports, error) {
	text := stringInput(inputs["text"])
	if text != "" {
		nc.Log(n.prefix+" "+text, n.logLevel)
	} else {
		nc.Log(n.prefix+" (empty)", "debug")
	}
	return workflow.Ports{}, nil
}
