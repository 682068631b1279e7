package workflow

import "sort"

// adjacency builds an adjacency list over every connection in the
// graph, without duplicate edges to the same neighbor (spec §4.5
// "Adjacency"). Order within each slice follows first-seen order.
func adjacency(conns []Connection) map[string][]string {
	adj := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	for _, c := range conns {
		if seen[c.From.NodeID] == nil {
			seen[c.From.NodeID] = make(map[string]struct{})
		}
		if _, ok := seen[c.From.NodeID][c.To.NodeID]; ok {
			continue
		}
		seen[c.From.NodeID][c.To.NodeID] = struct{}{}
		adj[c.From.NodeID] = append(adj[c.From.NodeID], c.To.NodeID)
	}
	return adj
}

// reachable performs a BFS from seeds over adj, visiting each node at
// most once (spec §4.5 "Reachability(seeds)").
func reachable(adj map[string][]string, seeds []string) map[string]struct{} {
	visited := make(map[string]struct{}, len(seeds))
	queue := make([]string, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := visited[s]; !ok {
			visited[s] = struct{}{}
			queue = append(queue, s)
		}
	}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		for _, next := range adj[n] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return visited
}

// entryPoints implements spec §4.5's entry-point policy: if any node's
// type is "start", the entry set is exactly those nodes; otherwise
// every node with in-degree zero over the full graph.
func entryPoints(nodes []NodeSpec, conns []Connection) []string {
	var starts []string
	for _, n := range nodes {
		if n.Type == "start" {
			starts = append(starts, n.ID)
		}
	}
	if len(starts) > 0 {
		return starts
	}

	inDegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		inDegree[n.ID] = 0
	}
	for _, c := range conns {
		if _, ok := inDegree[c.To.NodeID]; ok {
			inDegree[c.To.NodeID]++
		}
	}
	var zero []string
	for _, n := range nodes {
		if inDegree[n.ID] == 0 {
			zero = append(zero, n.ID)
		}
	}
	return zero
}

// kahnOrder computes a topological order of the node ids in scope,
// restricted to connections whose endpoints are both in scope. Ties
// are broken in the insertion order of `scope` (spec §4.5 "Kahn
// ordering"); isolated nodes (no inbound edge within scope) surface
// before anything waiting on them, matching "isolated nodes... are
// emitted before their only-inbound neighbours."
func kahnOrder(scope []string, conns []Connection) []string {
	inScope := make(map[string]struct{}, len(scope))
	order := make(map[string]int, len(scope))
	for i, id := range scope {
		inScope[id] = struct{}{}
		order[id] = i
	}

	inDegree := make(map[string]int, len(scope))
	adj := make(map[string][]string)
	for _, id := range scope {
		inDegree[id] = 0
	}
	for _, c := range conns {
		_, fromOK := inScope[c.From.NodeID]
		_, toOK := inScope[c.To.NodeID]
		if !fromOK || !toOK {
			continue
		}
		adj[c.From.NodeID] = append(adj[c.From.NodeID], c.To.NodeID)
		inDegree[c.To.NodeID]++
	}

	var ready []string
	for _, id := range scope {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool { return order[ready[i]] < order[ready[j]] })

	var result []string
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		result = append(result, n)

		var unlocked []string
		for _, next := range adj[n] {
			inDegree[next]--
			if inDegree[next] == 0 {
				unlocked = append(unlocked, next)
			}
		}
		sort.SliceStable(unlocked, func(i, j int) bool { return order[unlocked[i]] < order[unlocked[j]] })

		merged := append(ready, unlocked...)
		sort.SliceStable(merged, func(i, j int) bool { return order[merged[i]] < order[merged[j]] })
		ready = merged
	}
	return result
}

// executionOrder computes the full linear execution order (spec §4.5
// / §4.6): entry points, the set reachable from them, then a Kahn
// order restricted to that reachable set.
func executionOrder(g Graph) []string {
	adj := adjacency(g.Connections)
	entries := entryPoints(g.Nodes, g.Connections)
	reach := reachable(adj, entries)

	scope := make([]string, 0, len(reach))
	for _, n := range g.Nodes {
		if _, ok := reach[n.ID]; ok {
			scope = append(scope, n.ID)
		}
	}
	return kahnOrder(scope, g.Connections)
}

// downstreamOrderFromSource computes a Kahn order over
// reachable(source) \ {source}, treating edges out of source as
// already satisfied (spec §4.5 "Downstream ordering from a source S").
func downstreamOrderFromSource(g Graph, source string) []string {
	adj := adjacency(g.Connections)
	reach := reachable(adj, []string{source})
	delete(reach, source)

	scope := make([]string, 0, len(reach))
	for _, n := range g.Nodes {
		if _, ok := reach[n.ID]; ok {
			scope = append(scope, n.ID)
		}
	}

	// Drop inbound edges from `source` itself before computing in-degree:
	// those edges are already satisfied, their target's remaining
	// in-degree is only what comes from other downstream nodes.
	filtered := make([]Connection, 0, len(g.Connections))
	for _, c := range g.Connections {
		if c.From.NodeID == source {
			continue
		}
		filtered = append(filtered, c)
	}
	return kahnOrder(scope, filtered)
}

// subgraphFrom extracts the subgraph reachable from id: every reachable
// node plus every connection whose endpoints are both in that set
// (spec §4.5 "Subgraph from X").
func subgraphFrom(g Graph, id string) Graph {
	adj := adjacency(g.Connections)
	reach := reachable(adj, []string{id})

	out := Graph{Character: g.Character}
	for _, n := range g.Nodes {
		if _, ok := reach[n.ID]; ok {
			out.Nodes = append(out.Nodes, n)
		}
	}
	for _, c := range g.Connections {
		_, fromOK := reach[c.From.NodeID]
		_, toOK := reach[c.To.NodeID]
		if fromOK && toOK {
			out.Connections = append(out.Connections, c)
		}
	}
	return out
}

// inboundCounts returns, for every node, how many connections in the
// full graph name it as a `to` endpoint — used by the event-driven
// runner to decide whether a node with no available inputs was
// genuinely input-less or had its upstream skipped (spec §4.7 step 6).
func inboundCounts(conns []Connection) map[string]int {
	counts := make(map[string]int, len(conns))
	for _, c := range conns {
		counts[c.To.NodeID]++
	}
	return counts
}

// Validate checks the structural invariants spec §7.1 requires before
// a workflow may enter running: unique node ids, non-empty node set,
// and every connection endpoint naming a declared node.
func Validate(g Graph) error {
	if len(g.Nodes) == 0 {
		return &GraphError{Reason: "graph has no nodes"}
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return &GraphError{Reason: "node has empty id"}
		}
		if _, dup := seen[n.ID]; dup {
			return &GraphError{Reason: "duplicate node id " + n.ID}
		}
		seen[n.ID] = struct{}{}
	}

	for _, c := range g.Connections {
		if _, ok := seen[c.From.NodeID]; !ok {
			return &GraphError{Reason: "connection references unknown node " + c.From.NodeID}
		}
		if _, ok := seen[c.To.NodeID]; !ok {
			return &GraphError{Reason: "connection references unknown node " + c.To.NodeID}
		}
	}
	return nil
}
