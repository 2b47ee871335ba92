package noisegraph

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainGolden = `Shader "Hidden/Chain"
{
	Properties
	{
		Gain ("Gain", Range(0.0, 2.0)) = 0.5
		Mask ("Mask", 2D) = "black" {}
	}
	SubShader
	{
		Cull Off ZWrite Off ZTest Always
		Pass
		{
			CGPROGRAM
			#pragma vertex vert_img
			#pragma fragment frag
			#include "UnityCG.cginc"
			#include "GPUNoise.cginc"

			float Gain;
			sampler2D Mask;

			float4 frag(v2f_img IN) : SV_Target
			{
				float _node0 = IN.uv.x;
				float _node1 = sin(_node0);
				float _node2 = Gain;
				float _node3 = (_node1 * _node2);
				float _node4 = (_node3 - (-2.0));
				float result = _node4;
				return float4(result, result, result, 1.0);
			}
			ENDCG
		}
	}
}
`

// chain builds uv -> sin -> (* Gain) -> (- -2) with an unused texture mask.
func chain(t *testing.T) *Graph {
	t.Helper()
	g := New()
	node(t, g, "uv", "UV_X")
	node(t, g, "sin", "Sin", Reference("uv"))
	floatParamNode(t, g, "gain", FloatParamConfig{Name: "Gain", Default: 0.5, Slider: &Range{Min: 0, Max: 2}})
	node(t, g, "mul", "Multiply", Reference("sin"), Reference("gain"))
	node(t, g, "sub", "Subtract", Reference("mul"), Constant(-2))
	custom, err := json.Marshal(Tex2DParamConfig{Name: "Mask", Default: "black"})
	require.NoError(t, err)
	require.NoError(t, g.Insert(&Node{ID: "mask", Op: "Tex2DParam", Inputs: []Input{Constant(0), Constant(0)}, Custom: custom}))
	g.SetOutput(Reference("sub"))
	return g
}

func TestCompileGolden(t *testing.T) {
	a, err := NewCompiler(DefaultRegistry()).Compile(chain(t), "Hidden/Chain")
	require.NoError(t, err)
	assert.Equal(t, chainGolden, a.Source)
	assert.Equal(t, "Hidden/Chain", a.Name)
	assert.Len(t, a.Version, 64)
}

func TestCompileTopologicalOrder(t *testing.T) {
	g := New()
	// Inserted in reverse so insertion order cannot explain the result.
	node(t, g, "C", "Cos", Reference("B"))
	node(t, g, "B", "Sin", Reference("A"))
	node(t, g, "A", "UV_Y")
	g.SetOutput(Reference("C"))

	a, err := NewCompiler(DefaultRegistry()).Compile(g, "Hidden/T")
	require.NoError(t, err)
	ia := strings.Index(a.Source, "= IN.uv.y;")
	ib := strings.Index(a.Source, "= sin(")
	ic := strings.Index(a.Source, "= cos(")
	require.True(t, ia >= 0 && ib >= 0 && ic >= 0, a.Source)
	assert.Less(t, ia, ib)
	assert.Less(t, ib, ic)
}

func TestCompileDiamondEmitsSharedNodeOnce(t *testing.T) {
	g := New()
	node(t, g, "z", "Perlin2D", Constant(1), Constant(2))
	node(t, g, "x", "Sin", Reference("z"))
	node(t, g, "y", "Cos", Reference("z"))
	node(t, g, "top", "Add", Reference("x"), Reference("y"))
	g.SetOutput(Reference("top"))

	a, err := NewCompiler(DefaultRegistry()).Compile(g, "Hidden/D")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(a.Source, "GPUNoise_Perlin2D("))
	assert.Contains(t, a.Source, "float _node3 = (_node1 + _node2);")
}

func TestCompileDeterministic(t *testing.T) {
	c := NewCompiler(DefaultRegistry())
	g := chain(t)
	a, err := c.Compile(g, "Hidden/Chain")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		b, err := c.Compile(g.Clone(), "Hidden/Chain")
		require.NoError(t, err)
		assert.Equal(t, a.Source, b.Source)
		assert.Equal(t, a.Version, b.Version)
	}
}

func TestCompileExcludesDeadNodes(t *testing.T) {
	g := New()
	node(t, g, "live", "UV_X")
	node(t, g, "dead", "Floor", Constant(7))
	g.SetOutput(Reference("live"))

	a, err := NewCompiler(DefaultRegistry()).Compile(g, "Hidden/Dead")
	require.NoError(t, err)
	assert.NotContains(t, a.Source, "floor(")
	assert.Contains(t, a.Source, "float result = _node0;")
}

func TestCompileConstantOutput(t *testing.T) {
	a, err := NewCompiler(DefaultRegistry()).Compile(New(), "Hidden/Empty")
	require.NoError(t, err)
	assert.Contains(t, a.Source, "float result = 0.5;")
	assert.NotContains(t, a.Source, "_node")
}

func TestCompileErrors(t *testing.T) {
	reg := DefaultRegistry()

	t.Run("invalid graph", func(t *testing.T) {
		g := New()
		node(t, g, "a", "Sin", Reference("a"))
		g.SetOutput(Reference("a"))
		_, err := NewCompiler(reg).Compile(g, "x")
		assert.ErrorIs(t, err, ErrInvalidGraph)
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("unknown operation", func(t *testing.T) {
		g := New()
		node(t, g, "a", "Teleport")
		g.SetOutput(Reference("a"))
		_, err := NewCompiler(reg).Compile(g, "x")
		var uerr *UnknownOperationError
		require.ErrorAs(t, err, &uerr)
		assert.Equal(t, "Teleport", uerr.Op)
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})

	t.Run("emit failure", func(t *testing.T) {
		g := New()
		node(t, g, "a", "Divide", Constant(1), Constant(0))
		g.SetOutput(Reference("a"))
		_, err := NewCompiler(reg).Compile(g, "x")
		var eerr *EmitError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, NodeID("a"), eerr.Node)
		assert.ErrorIs(t, err, ErrEmitFailure)
	})

	t.Run("bad parameter payload", func(t *testing.T) {
		g := New()
		floatParamNode(t, g, "p", FloatParamConfig{Name: "result"})
		g.SetOutput(Reference("p"))
		_, err := NewCompiler(reg).Compile(g, "x")
		assert.ErrorIs(t, err, ErrEmitFailure)
	})
}

type upperTarget struct{ ShaderLab }

func (upperTarget) BindingName(i int) string { return "N" + strings.Repeat("I", i+1) }

func TestCompileWithTarget(t *testing.T) {
	g := New()
	node(t, g, "a", "UV_X")
	node(t, g, "b", "Abs", Reference("a"))
	g.SetOutput(Reference("b"))

	a, err := NewCompiler(DefaultRegistry(), WithTarget(upperTarget{})).Compile(g, "Hidden/U")
	require.NoError(t, err)
	assert.Contains(t, a.Source, "float NII = abs(NI);")
}

func TestArtifactName(t *testing.T) {
	assert.Equal(t, "Hidden/Clouds", ArtifactName("Assets/Shaders/Clouds.shader"))
	assert.Equal(t, "Hidden/noise", ArtifactName("noise"))
}

func TestCompileLogsShadowedParameter(t *testing.T) {
	g := New()
	first := floatParamNode(t, g, "a", FloatParamConfig{Name: "Gain", Default: 1})
	floatParamNode(t, g, "b", FloatParamConfig{Name: "Gain", Default: 2})
	g.SetOutput(Reference(first))

	var buf bytes.Buffer
	c := NewCompiler(DefaultRegistry(), WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel)))
	a, err := c.Compile(g, "Hidden/Dup")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(a.Source, "Gain (\"Gain\""))
	assert.Contains(t, buf.String(), `"node":"b"`)
	assert.Contains(t, buf.String(), "parameter name already declared")
}

func TestCompileRefusesParameterUsedAsAnotherKind(t *testing.T) {
	g := New()
	x := floatParamNode(t, g, "x", FloatParamConfig{Name: "X", Default: 1})
	tex, err := json.Marshal(Tex2DParamConfig{Name: "X"})
	require.NoError(t, err)
	require.NoError(t, g.Insert(&Node{ID: "t", Op: "Tex2DParam", Inputs: []Input{Constant(0), Constant(0)}, Custom: tex}))
	sum := node(t, g, "sum", "Add", Reference(x), Reference("t"))
	g.SetOutput(Reference(sum))

	a, err := NewCompiler(DefaultRegistry()).Compile(g, "Hidden/Clash")
	assert.Nil(t, a)
	require.ErrorIs(t, err, ErrEmitFailure)
	assert.ErrorIs(t, err, ErrKindMismatch)
	var emit *EmitError
	require.ErrorAs(t, err, &emit)
	assert.Equal(t, NodeID("t"), emit.Node)

	// An unreachable clash does not reach the shader.
	g.SetOutput(Reference(x))
	a, err = NewCompiler(DefaultRegistry()).Compile(g, "Hidden/Clash")
	require.NoError(t, err)
	assert.NotContains(t, a.Source, "tex2D(X")
}
