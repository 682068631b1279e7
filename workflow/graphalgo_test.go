package workflow

import "testing"

func conn(fromNode, fromPort, toNode, toPort string) Connection {
	return Connection{From: Endpoint{NodeID: fromNode, Port: fromPort}, To: Endpoint{NodeID: toNode, Port: toPort}}
}

// TestExecutionOrderLinearPipeline covers spec §8 S1: a simple
// start -> a -> b chain executes in that exact order.
func TestExecutionOrderLinearPipeline(t *testing.T) {
	g := Graph{
		Nodes: []NodeSpec{
			{ID: "start", Type: "start"},
			{ID: "a", Type: "manual-input"},
			{ID: "b", Type: "console-output"},
		},
		Connections: []Connection{
			conn("start", "out", "a", "in"),
			conn("a", "out", "b", "in"),
		},
	}

	order := executionOrder(g)
	want := []string{"start", "a", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestExecutionOrderStartNodeGating covers spec §8 S2: when a "start"
// node is present, unreachable branches are excluded from the
// execution order even though they remain in the graph.
func TestExecutionOrderStartNodeGating(t *testing.T) {
	g := Graph{
		Nodes: []NodeSpec{
			{ID: "A", Type: "start"},
			{ID: "B", Type: "console-output"},
			{ID: "C", Type: "manual-input"},
			{ID: "D", Type: "console-output"},
		},
		Connections: []Connection{
			conn("A", "out", "B", "in"),
			conn("C", "out", "D", "in"),
		},
	}

	order := executionOrder(g)
	seen := make(map[string]bool, len(order))
	for _, id := range order {
		seen[id] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("order %v should cover {A,B}", order)
	}
	if seen["C"] || seen["D"] {
		t.Errorf("order %v should exclude {C,D} (unreachable from the start node)", order)
	}
}

// TestExecutionOrderNoStartNodeUsesZeroInDegree covers the fallback
// entry-point policy: absent a "start" node, every in-degree-zero node
// is an entry point.
func TestExecutionOrderNoStartNodeUsesZeroInDegree(t *testing.T) {
	g := Graph{
		Nodes: []NodeSpec{
			{ID: "X", Type: "manual-input"},
			{ID: "Y", Type: "manual-input"},
			{ID: "Z", Type: "console-output"},
		},
		Connections: []Connection{
			conn("X", "out", "Z", "a"),
			conn("Y", "out", "Z", "b"),
		},
	}

	order := executionOrder(g)
	if len(order) != 3 {
		t.Fatalf("order = %v, want all 3 nodes reachable", order)
	}
	zIdx, xIdx, yIdx := -1, -1, -1
	for i, id := range order {
		switch id {
		case "Z":
			zIdx = i
		case "X":
			xIdx = i
		case "Y":
			yIdx = i
		}
	}
	if zIdx < xIdx || zIdx < yIdx {
		t.Errorf("order %v: Z must come after both of its upstream nodes", order)
	}
}

func TestDownstreamOrderFromSource(t *testing.T) {
	g := Graph{
		Nodes: []NodeSpec{
			{ID: "timer", Type: "timer"},
			{ID: "transform", Type: "text-transform"},
			{ID: "output", Type: "console-output"},
		},
		Connections: []Connection{
			conn("timer", "tick", "transform", "in"),
			conn("transform", "out", "output", "in"),
		},
	}

	order := downstreamOrderFromSource(g, "timer")
	want := []string{"transform", "output"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSubgraphFromExtractsReachableNodesAndConnections(t *testing.T) {
	g := Graph{
		Nodes: []NodeSpec{
			{ID: "A", Type: "start"},
			{ID: "B", Type: "console-output"},
			{ID: "C", Type: "manual-input"},
			{ID: "D", Type: "console-output"},
		},
		Connections: []Connection{
			conn("A", "out", "B", "in"),
			conn("C", "out", "D", "in"),
		},
	}

	sub := subgraphFrom(g, "A")
	if len(sub.Nodes) != 2 || len(sub.Connections) != 1 {
		t.Errorf("subgraph = %+v, want exactly {A,B} and one connection", sub)
	}
}

func TestValidateRejectsDuplicateAndDanglingReferences(t *testing.T) {
	cases := []struct {
		name string
		g    Graph
	}{
		{"empty graph", Graph{}},
		{"empty id", Graph{Nodes: []NodeSpec{{ID: ""}}}},
		{"duplicate id", Graph{Nodes: []NodeSpec{{ID: "x"}, {ID: "x"}}}},
		{"dangling from", Graph{
			Nodes:       []NodeSpec{{ID: "x"}},
			Connections: []Connection{conn("missing", "p", "x", "p")},
		}},
		{"dangling to", Graph{
			Nodes:       []NodeSpec{{ID: "x"}},
			Connections: []Connection{conn("x", "p", "missing", "p")},
		}},
	}
	for _, c := range cases {
		if err := Validate(c.g); err == nil {
			t.Errorf("%s: Validate should have failed", c.name)
		}
	}
}

func TestValidateAcceptsWellFormedGraph(t *testing.T) {
	g := Graph{
		Nodes:       []NodeSpec{{ID: "a"}, {ID: "b"}},
		Connections: []Connection{conn("a", "out", "b", "in")},
	}
	if err := Validate(g); err != nil {
		t.Errorf("Validate on a well-formed graph: %v", err)
	}
}
