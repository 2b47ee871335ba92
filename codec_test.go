package noisegraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainYAML = `nodes:
  - id: uv
    op: UV_X
    inputs: []
  - id: gain
    op: FloatParam
    inputs: []
    custom:
      name: Gain
      default: 0.5
  - id: mul
    op: Multiply
    inputs:
      - ref: uv
      - ref: gain
  - id: out
    op: Add
    inputs:
      - ref: mul
      - const: -0.25
output:
  ref: out
`

func TestEncodeDecodeJSON(t *testing.T) {
	reg := DefaultRegistry()
	g := chain(t)

	data, err := EncodeJSON(g)
	require.NoError(t, err)
	back, err := ParseJSON(data, reg)
	require.NoError(t, err)

	assert.Equal(t, g.Len(), back.Len())
	assert.Equal(t, g.Output(), back.Output())
	for _, n := range g.Nodes() {
		m, ok := back.Node(n.ID)
		require.True(t, ok)
		assert.Equal(t, n.Op, m.Op)
		assert.Equal(t, n.Inputs, m.Inputs)
		if len(n.Custom) > 0 {
			assert.JSONEq(t, string(n.Custom), string(m.Custom))
		} else {
			assert.Empty(t, m.Custom)
		}
	}

	c := NewCompiler(reg)
	a1, err := c.Compile(g, "Hidden/X")
	require.NoError(t, err)
	a2, err := c.Compile(back, "Hidden/X")
	require.NoError(t, err)
	assert.Equal(t, a1.Version, a2.Version)
}

func TestParseYAML(t *testing.T) {
	reg := DefaultRegistry()
	g, err := ParseYAML([]byte(chainYAML), reg)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	n, ok := g.Node("out")
	require.True(t, ok)
	assert.Equal(t, Constant(-0.25), n.Inputs[1])

	params, err := ExtractParameters(g, reg)
	require.NoError(t, err)
	require.Len(t, params, 1)
	assert.Equal(t, ScalarValue(0.5), params[0].Default)

	// YAML and JSON encodings describe the same graph.
	data, err := EncodeYAML(g)
	require.NoError(t, err)
	again, err := ParseYAML(data, reg)
	require.NoError(t, err)
	jsonData, err := EncodeJSON(again)
	require.NoError(t, err)
	fromJSON, err := ParseJSON(jsonData, reg)
	require.NoError(t, err)

	c := NewCompiler(reg)
	a1, err := c.Compile(g, "Hidden/Y")
	require.NoError(t, err)
	a2, err := c.Compile(fromJSON, "Hidden/Y")
	require.NoError(t, err)
	assert.Equal(t, a1.Source, a2.Source)
}

func TestDecodeRejectsInvalidGraphs(t *testing.T) {
	reg := DefaultRegistry()
	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{
			name:   "cycle",
			doc:    `{"nodes":[{"id":"a","op":"Sin","inputs":[{"ref":"b"}]},{"id":"b","op":"Cos","inputs":[{"ref":"a"}]}],"output":{"ref":"a"}}`,
			target: ErrCycleDetected,
		},
		{
			name:   "dangling output",
			doc:    `{"nodes":[],"output":{"ref":"x"}}`,
			target: ErrDanglingReference,
		},
		{
			name:   "arity",
			doc:    `{"nodes":[{"id":"a","op":"Add","inputs":[{"const":1}]}],"output":{"const":0.5}}`,
			target: ErrArityMismatch,
		},
		{
			name:   "duplicate id",
			doc:    `{"nodes":[{"id":"a","op":"UV_X","inputs":[]},{"id":"a","op":"UV_Y","inputs":[]}],"output":{"const":0.5}}`,
			target: ErrDuplicateNode,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.doc), reg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLoad)
			assert.ErrorIs(t, err, tt.target)
			var le *LoadError
			assert.ErrorAs(t, err, &le)
		})
	}
}

func TestDecodeRejectsMalformedDocuments(t *testing.T) {
	reg := DefaultRegistry()
	docs := map[string]string{
		"syntax":         `{"nodes":`,
		"both":           `{"nodes":[],"output":{"const":1,"ref":"a"}}`,
		"neither":        `{"nodes":[],"output":{}}`,
		"missing id":     `{"nodes":[{"op":"UV_X","inputs":[]}],"output":{"const":1}}`,
		"missing op":     `{"nodes":[{"id":"a","inputs":[]}],"output":{"const":1}}`,
		"bad node input": `{"nodes":[{"id":"a","op":"Sin","inputs":[{}]}],"output":{"const":1}}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJSON([]byte(doc), reg)
			assert.ErrorIs(t, err, ErrLoad)
		})
	}

	_, err := ParseYAML([]byte("nodes: [\n"), reg)
	assert.ErrorIs(t, err, ErrLoad)
	_, err = Decode(nil, reg)
	assert.ErrorIs(t, err, ErrLoad)
}

func TestLoadFile(t *testing.T) {
	reg := DefaultRegistry()
	dir := t.TempDir()

	path := filepath.Join(dir, "chain.yml")
	require.NoError(t, os.WriteFile(path, []byte(chainYAML), 0o644))
	g, err := LoadFile(path, reg)
	require.NoError(t, err)
	assert.Equal(t, 4, g.Len())

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"nodes":[],"output":{"ref":"x"}}`), 0o644))
	_, err = LoadFile(bad, reg)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, bad, le.Source)
	assert.Contains(t, err.Error(), bad)

	_, err = LoadFile(filepath.Join(dir, "missing.json"), reg)
	assert.ErrorIs(t, err, ErrLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
