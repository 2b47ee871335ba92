package noisegraph

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
)

// Document is the persisted form of a graph.
type Document struct {
	Nodes  []NodeDoc `json:"nodes" yaml:"nodes"`
	Output InputDoc  `json:"output" yaml:"output"`
}

// NodeDoc is the persisted form of a node.
type NodeDoc struct {
	ID     string          `json:"id" yaml:"id"`
	Op     string          `json:"op" yaml:"op"`
	Inputs []InputDoc      `json:"inputs" yaml:"inputs"`
	Custom json.RawMessage `json:"custom,omitempty" yaml:"-"`
}

// InputDoc is the persisted form of an Input: exactly one of Const and Ref is set.
type InputDoc struct {
	Const *float64 `json:"const,omitempty" yaml:"const,omitempty"`
	Ref   string   `json:"ref,omitempty" yaml:"ref,omitempty"`
}

func encodeInput(in Input) InputDoc {
	if in.IsReference() {
		return InputDoc{Ref: string(in.Ref())}
	}
	v := in.Value()
	return InputDoc{Const: &v}
}

func (d InputDoc) input() (Input, error) {
	switch {
	case d.Const != nil && d.Ref != "":
		return Input{}, errors.New("input has both const and ref")
	case d.Const != nil:
		return Constant(*d.Const), nil
	case d.Ref != "":
		return Reference(NodeID(d.Ref)), nil
	default:
		return Input{}, errors.New("input has neither const nor ref")
	}
}

// Encode converts a graph to its persisted form, nodes in insertion order.
func Encode(g *Graph) *Document {
	doc := &Document{Output: encodeInput(g.output), Nodes: make([]NodeDoc, 0, len(g.order))}
	for _, n := range g.Nodes() {
		nd := NodeDoc{ID: string(n.ID), Op: n.Op, Custom: n.Custom, Inputs: make([]InputDoc, len(n.Inputs))}
		for i, in := range n.Inputs {
			nd.Inputs[i] = encodeInput(in)
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	return doc
}

// Decode rebuilds a graph and validates it. A malformed or invalid document
// is reported as a *LoadError; the graph is never repaired.
func Decode(doc *Document, reg Lookup) (*Graph, error) {
	g, err := build(doc)
	if err != nil {
		return nil, &LoadError{Err: err}
	}
	if err := g.Validate(reg); err != nil {
		return nil, &LoadError{Err: errors.WithHint(err, "fix or remove the offending connection and save the graph again")}
	}
	return g, nil
}

func build(doc *Document) (*Graph, error) {
	if doc == nil {
		return nil, errors.New("empty document")
	}
	g := New()
	for i, nd := range doc.Nodes {
		if nd.ID == "" {
			return nil, errors.Newf("node %d has no id", i)
		}
		if nd.Op == "" {
			return nil, errors.Newf("node %q has no operation", nd.ID)
		}
		n := &Node{ID: NodeID(nd.ID), Op: nd.Op, Custom: nd.Custom, Inputs: make([]Input, len(nd.Inputs))}
		for j, d := range nd.Inputs {
			in, err := d.input()
			if err != nil {
				return nil, errors.Wrapf(err, "node %q input %d", nd.ID, j)
			}
			n.Inputs[j] = in
		}
		if err := g.Insert(n); err != nil {
			return nil, err
		}
	}
	out, err := doc.Output.input()
	if err != nil {
		return nil, errors.Wrap(err, "graph output")
	}
	g.SetOutput(out)
	return g, nil
}

// yamlNode carries the payload as a YAML mapping instead of raw JSON.
type yamlNode struct {
	ID     string         `yaml:"id"`
	Op     string         `yaml:"op"`
	Inputs []InputDoc     `yaml:"inputs"`
	Custom map[string]any `yaml:"custom,omitempty"`
}

type yamlDocument struct {
	Nodes  []yamlNode `yaml:"nodes"`
	Output InputDoc   `yaml:"output"`
}

// MarshalYAML renders node payloads as nested mappings.
func (d Document) MarshalYAML() (any, error) {
	out := yamlDocument{Output: d.Output, Nodes: make([]yamlNode, len(d.Nodes))}
	for i, n := range d.Nodes {
		yn := yamlNode{ID: n.ID, Op: n.Op, Inputs: n.Inputs}
		if len(n.Custom) > 0 {
			if err := json.Unmarshal(n.Custom, &yn.Custom); err != nil {
				return nil, errors.Wrapf(err, "node %q payload", n.ID)
			}
		}
		out.Nodes[i] = yn
	}
	return out, nil
}

// UnmarshalYAML reads node payloads from nested mappings.
func (d *Document) UnmarshalYAML(value *yaml.Node) error {
	var in yamlDocument
	if err := value.Decode(&in); err != nil {
		return err
	}
	d.Output = in.Output
	d.Nodes = make([]NodeDoc, len(in.Nodes))
	for i, yn := range in.Nodes {
		nd := NodeDoc{ID: yn.ID, Op: yn.Op, Inputs: yn.Inputs}
		if yn.Custom != nil {
			raw, err := json.Marshal(yn.Custom)
			if err != nil {
				return errors.Wrapf(err, "node %q payload", yn.ID)
			}
			nd.Custom = raw
		}
		d.Nodes[i] = nd
	}
	return nil
}

// ParseJSON decodes and validates a JSON graph document.
func ParseJSON(data []byte, reg Lookup) (*Graph, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Err: errors.Wrap(err, "parse json")}
	}
	return Decode(&doc, reg)
}

// ParseYAML decodes and validates a YAML graph document.
func ParseYAML(data []byte, reg Lookup) (*Graph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &LoadError{Err: errors.Wrap(err, "parse yaml")}
	}
	return Decode(&doc, reg)
}

// LoadFile reads a graph document, choosing the format by extension
// (.yaml/.yml, otherwise JSON).
func LoadFile(path string, reg Lookup) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	var g *Graph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		g, err = ParseYAML(data, reg)
	default:
		g, err = ParseJSON(data, reg)
	}
	var le *LoadError
	if errors.As(err, &le) {
		le.Source = path
	}
	return g, err
}

// EncodeJSON encodes g as an indented JSON document.
func EncodeJSON(g *Graph) ([]byte, error) {
	return json.MarshalIndent(Encode(g), "", "  ")
}

// EncodeYAML encodes g as a YAML document.
func EncodeYAML(g *Graph) ([]byte, error) {
	return yaml.Marshal(Encode(g))
}
