package noisegraph

// Validate checks that every reference resolves, every node's input count
// matches its operation, and no node transitively depends on itself.
//
// The walk starts at the graph output and then covers the remaining nodes in
// insertion order, so cycles among unreachable nodes are reported too. Nodes
// whose operation the registry does not know are not arity-checked; Compile
// and ExtractParameters report them as unknown operations.
func (g *Graph) Validate(reg Lookup) error {
	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)
	state := make(map[NodeID]int, len(g.nodes))
	var stack []NodeID

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		state[id] = visiting
		stack = append(stack, id)
		n := g.nodes[id]

		if reg != nil {
			if op, ok := reg.Operation(n.Op); ok && op.Arity() != len(n.Inputs) {
				return &StructuralError{Kind: ArityMismatch, Node: id, Index: -1, Want: op.Arity(), Got: len(n.Inputs)}
			}
		}

		for i, in := range n.Inputs {
			if !in.IsReference() {
				continue
			}
			next := in.Ref()
			if _, ok := g.nodes[next]; !ok {
				return &StructuralError{Kind: DanglingReference, Node: id, Index: i, Ref: next}
			}
			switch state[next] {
			case visiting:
				return &StructuralError{Kind: CycleDetected, Node: id, Index: i, Path: cyclePath(stack, next)}
			case unvisited:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = visited
		return nil
	}

	if g.output.IsReference() {
		ref := g.output.Ref()
		if _, ok := g.nodes[ref]; !ok {
			return &StructuralError{Kind: DanglingReference, Index: -1, Ref: ref}
		}
		if err := visit(ref); err != nil {
			return err
		}
	}
	for _, id := range g.order {
		if state[id] == unvisited {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// cyclePath returns the portion of the DFS stack that closes on target,
// with target repeated at the end.
func cyclePath(stack []NodeID, target NodeID) []NodeID {
	for i, id := range stack {
		if id == target {
			path := make([]NodeID, 0, len(stack)-i+1)
			path = append(path, stack[i:]...)
			return append(path, target)
		}
	}
	return []NodeID{target, target}
}
