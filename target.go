package noisegraph

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Program is the target-independent result of ordering and emitting a graph.
type Program struct {
	Name     string
	Params   []Parameter
	Bindings []Binding
	// Result is the expression for the graph output: a binding name or a literal.
	Result string
}

// Binding is one emitted node, in dependency order.
type Binding struct {
	Name string
	Node NodeID
	Op   string
	Expr string
}

// Target renders a Program as source text in a concrete shading language.
// Render must be deterministic.
type Target interface {
	BindingName(index int) string
	Literal(v float64) string
	Render(p *Program) (string, error)
}

// ShaderLab renders a full-screen fragment shader in Unity's ShaderLab/Cg
// dialect. Noise helpers come from an include the host project provides.
type ShaderLab struct {
	// Include is the noise helper library. Defaults to "GPUNoise.cginc".
	Include string
}

func (ShaderLab) BindingName(index int) string { return "_node" + strconv.Itoa(index) }

func (ShaderLab) Literal(v float64) string {
	if v < 0 {
		return "(" + formatFloat(v) + ")"
	}
	return formatFloat(v)
}

func (t ShaderLab) Render(p *Program) (string, error) {
	include := t.Include
	if include == "" {
		include = "GPUNoise.cginc"
	}

	w := &writer{}
	w.line("Shader %q", p.Name)
	w.open()
	w.line("Properties")
	w.open()
	for _, param := range p.Params {
		switch param.Kind {
		case Scalar:
			if param.Slider != nil {
				w.line("%s (%q, Range(%s, %s)) = %s", param.Name, param.Name,
					formatFloat(param.Slider.Min), formatFloat(param.Slider.Max), formatFloat(param.Default.Scalar))
			} else {
				w.line("%s (%q, Float) = %s", param.Name, param.Name, formatFloat(param.Default.Scalar))
			}
		case Texture:
			w.line("%s (%q, 2D) = %q {}", param.Name, param.Name, builtinTexture(param.Default.Texture))
		default:
			return "", errors.Newf("noisegraph: parameter %q has unknown kind %q", param.Name, param.Kind)
		}
	}
	w.close()
	w.line("SubShader")
	w.open()
	w.line("Cull Off ZWrite Off ZTest Always")
	w.line("Pass")
	w.open()
	w.line("CGPROGRAM")
	w.line("#pragma vertex vert_img")
	w.line("#pragma fragment frag")
	w.line("#include \"UnityCG.cginc\"")
	w.line("#include %q", include)
	if len(p.Params) > 0 {
		w.blank()
		for _, param := range p.Params {
			if param.Kind == Texture {
				w.line("sampler2D %s;", param.Name)
			} else {
				w.line("float %s;", param.Name)
			}
		}
	}
	w.blank()
	w.line("float4 frag(v2f_img IN) : SV_Target")
	w.open()
	for _, b := range p.Bindings {
		w.line("float %s = %s;", b.Name, b.Expr)
	}
	w.line("float result = %s;", p.Result)
	w.line("return float4(result, result, result, 1.0);")
	w.close()
	w.line("ENDCG")
	w.close()
	w.close()
	w.close()
	return w.String(), nil
}

// builtinTexture maps a texture reference to a ShaderLab default texture name.
func builtinTexture(ref string) string {
	switch ref {
	case "white", "black", "gray", "grey", "bump", "red":
		return ref
	}
	return "white"
}

// formatFloat prints a float so it always parses as a floating-point literal.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// writer accumulates indented source lines.
type writer struct {
	out    strings.Builder
	indent int
}

func (w *writer) line(format string, args ...any) {
	for i := 0; i < w.indent; i++ {
		w.out.WriteByte('\t')
	}
	fmt.Fprintf(&w.out, format, args...)
	w.out.WriteByte('\n')
}

func (w *writer) blank() { w.out.WriteByte('\n') }

func (w *writer) open() {
	w.line("{")
	w.indent++
}

func (w *writer) close() {
	w.indent--
	w.line("}")
}

func (w *writer) String() string { return w.out.String() }
