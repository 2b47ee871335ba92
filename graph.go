package noisegraph

import (
	"encoding/json"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// NodeID identifies a node within a graph. IDs are never reused.
type NodeID string

// Node is one operation instance in the graph.
// Custom is the operation-specific payload (parameter name, default, slider bounds...).
type Node struct {
	ID     NodeID          `json:"id"`
	Op     string          `json:"op"`
	Inputs []Input         `json:"-"`
	Custom json.RawMessage `json:"custom,omitempty"`
}

// Graph is a set of nodes keyed by id plus the designated output.
// Edges are ids held in inputs, never pointers, so the graph owns every node.
//
// A Graph is not safe for concurrent use. Mutating it while Compile or
// ExtractParameters runs is undefined; use Clone to hand out a private copy.
type Graph struct {
	nodes  map[NodeID]*Node
	order  []NodeID
	output Input
}

// New creates an empty graph whose output is the constant 0.5.
func New() *Graph {
	return &Graph{
		nodes:  make(map[NodeID]*Node),
		output: Constant(DefaultOutput),
	}
}

// DefaultOutput is the constant an unconnected graph output falls back to.
const DefaultOutput = 0.5

// AddNode appends a node with a freshly generated id and returns the id.
// Inputs are copied.
func (g *Graph) AddNode(op string, inputs []Input, custom json.RawMessage) NodeID {
	id := NodeID(uuid.NewString())
	g.nodes[id] = &Node{
		ID:     id,
		Op:     op,
		Inputs: slices.Clone(inputs),
		Custom: custom,
	}
	g.order = append(g.order, id)
	return id
}

// Insert adds a node that already carries an id, as produced by a loader.
func (g *Graph) Insert(n *Node) error {
	if n.ID == "" {
		return errors.New("noisegraph: insert node without id")
	}
	if _, ok := g.nodes[n.ID]; ok {
		return errors.Wrapf(ErrDuplicateNode, "insert %q", n.ID)
	}
	cp := *n
	cp.Inputs = slices.Clone(n.Inputs)
	g.nodes[n.ID] = &cp
	g.order = append(g.order, n.ID)
	return nil
}

// RemoveNode deletes a node. Inputs still referencing it become dangling
// until they are rewired; Validate reports them.
func (g *Graph) RemoveNode(id NodeID) {
	if _, ok := g.nodes[id]; !ok {
		return
	}
	delete(g.nodes, id)
	g.order = slices.DeleteFunc(g.order, func(o NodeID) bool { return o == id })
}

// Node returns the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.order) }

// Output returns the designated final result of the graph.
func (g *Graph) Output() Input { return g.output }

// SetOutput replaces the graph output. It does not validate.
func (g *Graph) SetOutput(in Input) { g.output = in }

// RewireInput replaces one input slot. It does not validate: batch edits may
// be transiently invalid, and the caller must Validate before compiling.
func (g *Graph) RewireInput(id NodeID, index int, in Input) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "rewire %q", id)
	}
	if index < 0 || index >= len(n.Inputs) {
		return errors.Wrapf(ErrInputOutOfRange, "rewire %q input %d of %d", id, index, len(n.Inputs))
	}
	n.Inputs[index] = in
	return nil
}

// SetCustom replaces a node's operation payload.
func (g *Graph) SetCustom(id NodeID, custom json.RawMessage) error {
	n, ok := g.nodes[id]
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "set payload of %q", id)
	}
	n.Custom = custom
	return nil
}

// Clone returns a deep copy that shares nothing with g.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		nodes:  make(map[NodeID]*Node, len(g.nodes)),
		order:  slices.Clone(g.order),
		output: g.output,
	}
	for id, n := range g.nodes {
		cp := *n
		cp.Inputs = slices.Clone(n.Inputs)
		cp.Custom = slices.Clone(n.Custom)
		c.nodes[id] = &cp
	}
	return c
}

// DependsOn reports whether node from transitively reads node target.
// A node depends on itself. Missing nodes are ignored.
func (g *Graph) DependsOn(from, target NodeID) bool {
	seen := make(map[NodeID]bool)
	var walk func(id NodeID) bool
	walk = func(id NodeID) bool {
		if id == target {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		n, ok := g.nodes[id]
		if !ok {
			return false
		}
		for _, in := range n.Inputs {
			if in.IsReference() && walk(in.Ref()) {
				return true
			}
		}
		return false
	}
	return walk(from)
}
