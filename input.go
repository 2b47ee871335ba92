package noisegraph

import "strconv"

// Input is a node argument slot or the graph output: either a literal
// constant or a reference to another node's scalar result.
type Input struct {
	ref   NodeID
	value float64
	isRef bool
}

// Constant returns a literal scalar input.
func Constant(v float64) Input { return Input{value: v} }

// Reference returns an input that reads the result of node id.
func Reference(id NodeID) Input { return Input{ref: id, isRef: true} }

// IsReference reports whether the input points at another node.
func (in Input) IsReference() bool { return in.isRef }

// Value returns the constant. It is zero for references.
func (in Input) Value() float64 { return in.value }

// Ref returns the referenced node id. It is empty for constants.
func (in Input) Ref() NodeID { return in.ref }

func (in Input) String() string {
	if in.isRef {
		return "ref(" + string(in.ref) + ")"
	}
	return strconv.FormatFloat(in.value, 'g', -1, 64)
}
