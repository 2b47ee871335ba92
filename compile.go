package noisegraph

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// Artifact is a compiled graph.
type Artifact struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	// Version is the hex SHA-256 of Source; equal versions mean equal programs.
	Version string `json:"version"`
}

// Compiler turns validated graphs into source text.
type Compiler struct {
	reg    Lookup
	target Target
	log    zerolog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithTarget selects the output language. The default is ShaderLab{}.
func WithTarget(t Target) Option {
	return func(c *Compiler) { c.target = t }
}

// WithLogger attaches a logger for debug tracing.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Compiler) { c.log = l }
}

// NewCompiler creates a Compiler resolving operations through reg.
func NewCompiler(reg Lookup, opts ...Option) *Compiler {
	c := &Compiler{
		reg:    reg,
		target: ShaderLab{},
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the lookup the compiler resolves operations with.
func (c *Compiler) Registry() Lookup { return c.reg }

// Compile validates g and emits one binding per node reachable from the
// output, each after every binding it references. Nodes that the output does
// not reach are left out. The same graph and registry always produce the same
// text.
//
// Errors wrap ErrInvalidGraph, ErrUnknownOperation or ErrEmitFailure. No
// partial artifact is ever returned.
func (c *Compiler) Compile(g *Graph, name string) (*Artifact, error) {
	if err := g.Validate(c.reg); err != nil {
		return nil, &invalidGraph{err: err}
	}
	params, err := extract(g, c.reg, func(id NodeID, p Parameter) {
		c.log.Debug().Str("name", name).Str("node", string(id)).Str("param", p.Name).
			Str("kind", string(p.Kind)).Msg("parameter name already declared, ignoring")
	})
	if err != nil {
		return nil, err
	}

	kinds := make(map[string]Kind, len(params))
	for _, p := range params {
		kinds[p.Name] = p.Kind
	}

	order := g.topoOrder()
	c.log.Debug().Str("name", name).Int("nodes", g.Len()).Int("reachable", len(order)).Msg("compiling graph")

	prog := &Program{Name: name, Params: params}
	names := make(map[NodeID]string, len(order))
	for i, id := range order {
		n := g.nodes[id]
		op, ok := c.reg.Operation(n.Op)
		if !ok {
			return nil, &UnknownOperationError{Node: id, Op: n.Op}
		}
		if err := checkDeclared(op, n, kinds); err != nil {
			return nil, err
		}
		args := make([]string, len(n.Inputs))
		for j, in := range n.Inputs {
			arg, err := c.resolve(in, names)
			if err != nil {
				return nil, &EmitError{Node: id, Op: n.Op, Err: errors.Wrapf(err, "input %d (%s)", j, op.Params[j].Name)}
			}
			args[j] = arg
		}
		expr, err := op.Emit(args, n.Custom)
		if err != nil {
			return nil, &EmitError{Node: id, Op: n.Op, Err: err}
		}
		binding := c.target.BindingName(i)
		names[id] = binding
		prog.Bindings = append(prog.Bindings, Binding{Name: binding, Node: id, Op: n.Op, Expr: expr})
	}

	prog.Result, err = c.resolve(g.output, names)
	if err != nil {
		return nil, &EmitError{Op: "output", Err: err}
	}

	src, err := c.target.Render(prog)
	if err != nil {
		return nil, &EmitError{Op: "render", Err: err}
	}
	sum := sha256.Sum256([]byte(src))
	c.log.Debug().Str("name", name).Int("bindings", len(prog.Bindings)).Int("params", len(params)).Msg("compiled graph")
	return &Artifact{Name: name, Source: src, Version: hex.EncodeToString(sum[:])}, nil
}

// checkDeclared refuses a reachable node whose parameter name was claimed
// first by a declaration of another kind: the emitted uniform would have the
// wrong type.
func checkDeclared(op *Operation, n *Node, kinds map[string]Kind) error {
	if op.Declare == nil {
		return nil
	}
	declared, err := op.Declare(n.Custom)
	if err != nil {
		return &EmitError{Node: n.ID, Op: n.Op, Err: errors.Wrap(err, "declare parameters")}
	}
	for _, p := range declared {
		if k := kinds[p.Name]; k != p.Kind {
			err := errors.Wrapf(ErrKindMismatch, "parameter %q is a %s here but was declared as a %s first", p.Name, p.Kind, k)
			return &EmitError{Node: n.ID, Op: n.Op, Err: errors.WithHint(err, "give the parameter a name no other node uses")}
		}
	}
	return nil
}

func (c *Compiler) resolve(in Input, names map[NodeID]string) (string, error) {
	if in.IsReference() {
		name, ok := names[in.Ref()]
		if !ok {
			return "", errors.Newf("reference to %q has not been emitted", in.Ref())
		}
		return name, nil
	}
	if !finite(in.Value()) {
		return "", errors.Newf("constant %v is not a finite number", in.Value())
	}
	return c.target.Literal(in.Value()), nil
}

// topoOrder returns the nodes reachable from the output in post-order, so
// every node follows the nodes it reads. Inputs are walked in parameter
// order, which makes the result deterministic. The graph must be acyclic.
func (g *Graph) topoOrder() []NodeID {
	var order []NodeID
	seen := make(map[NodeID]bool)
	var walk func(id NodeID)
	walk = func(id NodeID) {
		if seen[id] {
			return
		}
		seen[id] = true
		for _, in := range g.nodes[id].Inputs {
			if in.IsReference() {
				walk(in.Ref())
			}
		}
		order = append(order, id)
	}
	if g.output.IsReference() {
		walk(g.output.Ref())
	}
	return order
}

// ArtifactName derives the program name from the path it will be saved to:
// "shaders/MyNoise.shader" becomes "Hidden/MyNoise".
func ArtifactName(path string) string {
	base := filepath.Base(path)
	return "Hidden/" + strings.TrimSuffix(base, filepath.Ext(base))
}
