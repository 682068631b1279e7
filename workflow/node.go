package workflow

import "context"

// Ports are string-keyed mappings of opaque values; the engine never
// type-checks port values (spec §3, a deliberate non-goal).
type Ports map[string]interface{}

// NodeInterface is the contract every plugin implements (C13).
// Grounded on original_source/packages/sdk/aituber_flow_sdk/base.py's
// BaseNode (setup / abstract execute / teardown / on_event, all but
// execute optional no-ops).
//
// Any method may be a no-op: NodeFunc and the BaseNode adapter below
// give node authors that for free so only Execute need be implemented.
type NodeInterface interface {
	// Setup runs once, before any Execute, with the node's declared
	// config and its NodeContext.
	Setup(ctx context.Context, config map[string]interface{}, nc *NodeContext) error

	// Execute runs once per invocation. inputs maps input-port name to
	// the value produced upstream; outputs maps output-port name to a
	// produced value.
	Execute(ctx context.Context, inputs Ports, nc *NodeContext) (Ports, error)

	// OnEvent is an optional direct reaction to a bus event. Included
	// in the contract per the product's open question (spec §9): no
	// runner currently calls it.
	OnEvent(ctx context.Context, event Event, nc *NodeContext) (Ports, error)

	// Teardown runs once, when the workflow ends.
	Teardown(ctx context.Context) error
}

// BaseNode gives node authors working no-op Setup/OnEvent/Teardown, in
// the spirit of BaseNode/InputNode/ProcessNode/OutputNode in the
// original SDK: embed it and implement only Execute.
type BaseNode struct{}

func (BaseNode) Setup(context.Context, map[string]interface{}, *NodeContext) error { return nil }
func (BaseNode) OnEvent(context.Context, Event, *NodeContext) (Ports, error)       { return nil, nil }
func (BaseNode) Teardown(context.Context) error                                   { return nil }

// NodeFunc adapts a bare execute function to NodeInterface, mirroring
// the teacher's graph/node.go NodeFunc[S] adapter but over untyped
// Ports instead of a generic reducer state.
type NodeFunc func(ctx context.Context, inputs Ports, nc *NodeContext) (Ports, error)

func (f NodeFunc) Setup(context.Context, map[string]interface{}, *NodeContext) error { return nil }
func (f NodeFunc) Execute(ctx context.Context, inputs Ports, nc *NodeContext) (Ports, error) {
	return f(ctx, inputs, nc)
}
func (f NodeFunc) OnEvent(context.Context, Event, *NodeContext) (Ports, error) { return nil, nil }
func (f NodeFunc) Teardown(context.Context) error                             { return nil }
