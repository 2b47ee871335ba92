package noisegraph

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// Structural errors reported by Graph.Validate.
	ErrCycleDetected     = errors.New("noisegraph: cycle detected, graph is not acyclic")
	ErrDanglingReference = errors.New("noisegraph: reference to a node that does not exist")
	ErrArityMismatch     = errors.New("noisegraph: input count does not match operation arity")

	// ErrInvalidGraph is returned by Compile and ExtractParameters when validation fails.
	ErrInvalidGraph     = errors.New("noisegraph: graph is invalid")
	ErrUnknownOperation = errors.New("noisegraph: unknown operation")
	ErrEmitFailure      = errors.New("noisegraph: operation rejected its arguments")
	ErrLoad             = errors.New("noisegraph: cannot load graph")

	ErrNodeNotFound     = errors.New("noisegraph: node not found")
	ErrInputOutOfRange  = errors.New("noisegraph: input index out of range")
	ErrDuplicateNode    = errors.New("noisegraph: duplicate node id")
	ErrSelfLoop         = errors.New("noisegraph: connection would make a node depend on itself")
	ErrUnknownParameter = errors.New("noisegraph: unknown parameter")
	ErrKindMismatch     = errors.New("noisegraph: parameter kind mismatch")
	ErrInvalidValue     = errors.New("noisegraph: invalid parameter value")

	ErrGraphNotFound    = errors.New("noisegraph: graph not found")
	ErrSnapshotNotFound = errors.New("noisegraph: snapshot not found")
)

// StructuralKind classifies a StructuralError.
type StructuralKind int

const (
	CycleDetected StructuralKind = iota + 1
	DanglingReference
	ArityMismatch
)

func (k StructuralKind) String() string {
	switch k {
	case CycleDetected:
		return "cycle"
	case DanglingReference:
		return "dangling reference"
	case ArityMismatch:
		return "arity mismatch"
	default:
		return "unknown"
	}
}

// StructuralError describes the first invariant violation found by Validate.
type StructuralError struct {
	Kind StructuralKind
	// Node is the node holding the bad input. Empty when the graph output is at fault.
	Node NodeID
	// Path lists the cycle, starting and ending at the same node.
	Path []NodeID
	// Index is the offending input slot, -1 for the graph output.
	Index int
	// Ref is the missing id for DanglingReference.
	Ref NodeID
	// Want and Got are the declared and actual arity for ArityMismatch.
	Want, Got int
}

func (e *StructuralError) Error() string {
	switch e.Kind {
	case CycleDetected:
		ids := make([]string, len(e.Path))
		for i, id := range e.Path {
			ids[i] = string(id)
		}
		return fmt.Sprintf("noisegraph: cycle detected: %s", strings.Join(ids, " -> "))
	case DanglingReference:
		if e.Index < 0 {
			return fmt.Sprintf("noisegraph: graph output references missing node %q", e.Ref)
		}
		return fmt.Sprintf("noisegraph: node %q input %d references missing node %q", e.Node, e.Index, e.Ref)
	case ArityMismatch:
		return fmt.Sprintf("noisegraph: node %q has %d inputs, operation declares %d", e.Node, e.Got, e.Want)
	default:
		return "noisegraph: structural error"
	}
}

func (e *StructuralError) Unwrap() error {
	switch e.Kind {
	case CycleDetected:
		return ErrCycleDetected
	case DanglingReference:
		return ErrDanglingReference
	case ArityMismatch:
		return ErrArityMismatch
	}
	return nil
}

// UnknownOperationError reports a node whose operation is absent from the registry.
type UnknownOperationError struct {
	Node NodeID
	Op   string
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("noisegraph: node %q uses unknown operation %q", e.Node, e.Op)
}

func (e *UnknownOperationError) Unwrap() error { return ErrUnknownOperation }

// EmitError reports an operation template that rejected its substituted arguments.
type EmitError struct {
	Node NodeID
	Op   string
	Err  error
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("noisegraph: emitting node %q (%s): %v", e.Node, e.Op, e.Err)
}

func (e *EmitError) Is(target error) bool { return target == ErrEmitFailure }

func (e *EmitError) Unwrap() error { return e.Err }

// LoadError reports a persisted graph that is malformed or structurally invalid.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("noisegraph: load: %v", e.Err)
	}
	return fmt.Sprintf("noisegraph: load %s: %v", e.Source, e.Err)
}

func (e *LoadError) Is(target error) bool { return target == ErrLoad }

func (e *LoadError) Unwrap() error { return e.Err }

// invalidGraph marks a validation failure as the reason compile or extract refused to run.
type invalidGraph struct {
	err error
}

func (e *invalidGraph) Error() string { return e.err.Error() }

func (e *invalidGraph) Is(target error) bool { return target == ErrInvalidGraph }

func (e *invalidGraph) Unwrap() error { return e.err }
