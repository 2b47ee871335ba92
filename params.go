package noisegraph

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Kind is the type of a user-facing parameter.
type Kind string

const (
	Scalar  Kind = "scalar"
	Texture Kind = "texture"
)

// Value holds a parameter value. Only the field matching the parameter's
// kind is meaningful; Texture is an opaque texture reference.
type Value struct {
	Scalar  float64 `json:"scalar,omitempty" yaml:"scalar,omitempty"`
	Texture string  `json:"texture,omitempty" yaml:"texture,omitempty"`
}

// ScalarValue wraps a float.
func ScalarValue(v float64) Value { return Value{Scalar: v} }

// TextureValue wraps a texture reference.
func TextureValue(ref string) Value { return Value{Texture: ref} }

// Parameter is a named control surface declared by a node's payload.
// Parameters are identified by name, not by the node declaring them.
type Parameter struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	Default Value  `json:"default"`
	Slider  *Range `json:"slider,omitempty"`
}

// ExtractParameters collects the parameters declared by every node payload,
// in node insertion order. When two nodes declare the same name the first
// declaration wins and later ones are ignored, even if their kind, default or
// slider range differ.
//
// The graph must validate; an invalid graph is refused with ErrInvalidGraph.
func ExtractParameters(g *Graph, reg Lookup) ([]Parameter, error) {
	if err := g.Validate(reg); err != nil {
		return nil, &invalidGraph{err: err}
	}
	return extract(g, reg, nil)
}

// extract walks an already validated graph. shadowed, if set, is called for
// every declaration dropped because an earlier node claimed its name.
func extract(g *Graph, reg Lookup, shadowed func(NodeID, Parameter)) ([]Parameter, error) {
	var params []Parameter
	seen := make(map[string]bool)
	for _, id := range g.order {
		n := g.nodes[id]
		op, ok := reg.Operation(n.Op)
		if !ok {
			return nil, &UnknownOperationError{Node: id, Op: n.Op}
		}
		if op.Declare == nil {
			continue
		}
		declared, err := op.Declare(n.Custom)
		if err != nil {
			return nil, &EmitError{Node: id, Op: n.Op, Err: errors.Wrap(err, "declare parameters")}
		}
		for _, p := range declared {
			if seen[p.Name] {
				if shadowed != nil {
					shadowed(id, p)
				}
				continue
			}
			seen[p.Name] = true
			params = append(params, p)
		}
	}
	return params, nil
}

// decodeCustom unmarshals a node payload, treating an empty payload as {}.
func decodeCustom(custom json.RawMessage, v any) error {
	if len(custom) == 0 {
		return nil
	}
	return json.Unmarshal(custom, v)
}
