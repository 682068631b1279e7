package workflow

// NodeRuntime is a per-workflow, per-node instance (C6): the cached
// loaded node, its declared config, its filters, and its NodeContext.
// At most one exists per (workflow id, node id) at any time (I2), and
// it is owned exclusively by the WorkflowSupervisor that created it.
// Grounded on original_source/.../executor.py's NodeRuntime dataclass.
type NodeRuntime struct {
	NodeID      string
	NodeType    string
	Config      map[string]interface{}
	Filters     []EventFilter
	IsSource    bool
	Instance    NodeInterface
	Context     *NodeContext
	setupFailed bool
}
