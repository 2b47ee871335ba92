package noisegraph

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Param describes one positional argument of an operation.
type Param struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Slider  *Range  `json:"slider,omitempty"`
}

// Range bounds a slider.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// EmitFunc renders a node's expression from its resolved argument
// expressions, substituted positionally, and the node's custom payload.
type EmitFunc func(args []string, custom json.RawMessage) (string, error)

// DeclareFunc reports the user-facing parameters a node's payload declares.
type DeclareFunc func(custom json.RawMessage) ([]Parameter, error)

// Operation is a named, fixed-arity function descriptor.
type Operation struct {
	Name   string
	Params []Param
	Emit   EmitFunc
	// Declare is nil for operations without user-facing parameters.
	Declare DeclareFunc
}

// Arity returns the number of inputs a node of this operation takes.
func (op *Operation) Arity() int { return len(op.Params) }

// Lookup resolves operation names.
type Lookup interface {
	Operation(name string) (*Operation, bool)
}

// Registry is a closed mapping from operation name to descriptor.
// It is filled once at startup and only read afterwards.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds an operation. Registering a name twice is an error.
func (r *Registry) Register(op *Operation) error {
	if op == nil || op.Name == "" {
		return errors.New("noisegraph: operation without a name")
	}
	if op.Emit == nil {
		return errors.Newf("noisegraph: operation %q has no emitter", op.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[op.Name]; ok {
		return errors.Newf("noisegraph: operation %q already registered", op.Name)
	}
	r.ops[op.Name] = op
	return nil
}

// MustRegister is Register that panics, for static tables.
func (r *Registry) MustRegister(ops ...*Operation) *Registry {
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			panic(err)
		}
	}
	return r
}

// Operation retrieves a descriptor by name.
func (r *Registry) Operation(name string) (*Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// List returns sorted names of all registered operations.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defaults returns the parameter defaults of an operation, used to seed
// the inputs of a freshly placed node.
func (op *Operation) Defaults() []Input {
	in := make([]Input, len(op.Params))
	for i, p := range op.Params {
		in[i] = Constant(p.Default)
	}
	return in
}
