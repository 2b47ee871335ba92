package noisegraph

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ReconnectState is the phase of an interactive rewiring gesture.
type ReconnectState int

const (
	// Idle: nothing picked.
	Idle ReconnectState = iota
	// AwaitingInputTarget: a node input slot was picked, waiting for the source node.
	AwaitingInputTarget
	// AwaitingOutputTarget: the graph output was picked, waiting for the source node.
	AwaitingOutputTarget
	// AwaitingSlot: a source node was picked first, waiting for the slot to feed.
	AwaitingSlot
)

func (s ReconnectState) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingInputTarget:
		return "awaiting-input-target"
	case AwaitingOutputTarget:
		return "awaiting-output-target"
	case AwaitingSlot:
		return "awaiting-slot"
	default:
		return fmt.Sprintf("ReconnectState(%d)", int(s))
	}
}

// Reconnect tracks a pending edge end while the user picks the other end.
// It lives outside the Graph and only touches it through RewireInput and
// SetOutput. Every completed or refused connection returns it to Idle.
type Reconnect struct {
	state ReconnectState
	node  NodeID
	index int
}

// State returns the current phase.
func (r *Reconnect) State() ReconnectState { return r.state }

// Pending returns the picked node and input index. For AwaitingSlot the node
// is the source and index is -1.
func (r *Reconnect) Pending() (NodeID, int) { return r.node, r.index }

// Cancel drops any pending pick.
func (r *Reconnect) Cancel() { *r = Reconnect{} }

// PickInput selects input slot index of node id. If a source is pending the
// connection is made.
func (r *Reconnect) PickInput(g *Graph, id NodeID, index int) error {
	n, ok := g.Node(id)
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "pick input of %q", id)
	}
	if index < 0 || index >= len(n.Inputs) {
		return errors.Wrapf(ErrInputOutOfRange, "pick input %d of %q", index, id)
	}
	if r.state == AwaitingSlot {
		source := r.node
		r.Cancel()
		return connect(g, source, id, index)
	}
	*r = Reconnect{state: AwaitingInputTarget, node: id, index: index}
	return nil
}

// PickGraphOutput selects the graph output. If a source is pending the
// output is connected to it.
func (r *Reconnect) PickGraphOutput(g *Graph) error {
	if r.state == AwaitingSlot {
		source := r.node
		r.Cancel()
		if _, ok := g.Node(source); !ok {
			return errors.Wrapf(ErrNodeNotFound, "connect output to %q", source)
		}
		g.SetOutput(Reference(source))
		return nil
	}
	*r = Reconnect{state: AwaitingOutputTarget, index: -1}
	return nil
}

// PickSource selects the result of node id. If a slot is pending it is
// connected to id.
func (r *Reconnect) PickSource(g *Graph, id NodeID) error {
	if _, ok := g.Node(id); !ok {
		return errors.Wrapf(ErrNodeNotFound, "pick source %q", id)
	}
	switch r.state {
	case AwaitingInputTarget:
		target, index := r.node, r.index
		r.Cancel()
		return connect(g, id, target, index)
	case AwaitingOutputTarget:
		r.Cancel()
		g.SetOutput(Reference(id))
		return nil
	default:
		*r = Reconnect{state: AwaitingSlot, node: id, index: -1}
		return nil
	}
}

// connect feeds source into input index of target unless that would make
// target read itself.
func connect(g *Graph, source, target NodeID, index int) error {
	if g.DependsOn(source, target) {
		return errors.Wrapf(ErrSelfLoop, "%q input %d <- %q", target, index, source)
	}
	return g.RewireInput(target, index, Reference(source))
}

// DisconnectInput resets an input to its operation's default constant.
func DisconnectInput(g *Graph, reg Lookup, id NodeID, index int) error {
	n, ok := g.Node(id)
	if !ok {
		return errors.Wrapf(ErrNodeNotFound, "disconnect %q", id)
	}
	op, ok := reg.Operation(n.Op)
	if !ok {
		return &UnknownOperationError{Node: id, Op: n.Op}
	}
	if index < 0 || index >= len(op.Params) {
		return errors.Wrapf(ErrInputOutOfRange, "disconnect %q input %d", id, index)
	}
	return g.RewireInput(id, index, Constant(op.Params[index].Default))
}

// DisconnectOutput resets the graph output to DefaultOutput.
func DisconnectOutput(g *Graph) { g.SetOutput(Constant(DefaultOutput)) }
