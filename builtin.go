package noisegraph

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// DefaultRegistry returns the built-in operation set targeting ShaderLab.
func DefaultRegistry() *Registry {
	return NewRegistry().MustRegister(
		binary("Add", "A", "B", "(%s + %s)"),
		binary("Subtract", "A", "B", "(%s - %s)"),
		binary("Multiply", "A", "B", "(%s * %s)"),
		divide(),
		binary("Min", "A", "B", "min(%s, %s)"),
		binary("Max", "A", "B", "max(%s, %s)"),
		binary("Pow", "Base", "Exponent", "pow(%s, %s)"),
		binary("Step", "Edge", "X", "step(%s, %s)"),
		unary("Sin", "sin"),
		unary("Cos", "cos"),
		unary("Abs", "abs"),
		unary("Floor", "floor"),
		unary("Frac", "frac"),
		sqrt(),
		call("Lerp", "lerp", Param{Name: "A"}, Param{Name: "B", Default: 1}, Param{Name: "T", Default: 0.5, Slider: &Range{Min: 0, Max: 1}}),
		call("Clamp", "clamp", Param{Name: "X"}, Param{Name: "Min"}, Param{Name: "Max", Default: 1}),
		call("SmoothStep", "smoothstep", Param{Name: "Min"}, Param{Name: "Max", Default: 1}, Param{Name: "X", Default: 0.5}),
		coordinate("UV_X", "IN.uv.x"),
		coordinate("UV_Y", "IN.uv.y"),
		noise("Perlin2D", "GPUNoise_Perlin2D"),
		noise("Worley2D", "GPUNoise_Worley2D"),
		noise("White2D", "GPUNoise_White2D"),
		floatParam(),
		tex2DParam(),
	)
}

func binary(name, a, b, format string) *Operation {
	return &Operation{
		Name:   name,
		Params: []Param{{Name: a}, {Name: b}},
		Emit: func(args []string, _ json.RawMessage) (string, error) {
			return fmt.Sprintf(format, args[0], args[1]), nil
		},
	}
}

func unary(name, fn string) *Operation {
	return call(name, fn, Param{Name: "X"})
}

func call(name, fn string, params ...Param) *Operation {
	return &Operation{
		Name:   name,
		Params: params,
		Emit: func(args []string, _ json.RawMessage) (string, error) {
			return fn + "(" + strings.Join(args, ", ") + ")", nil
		},
	}
}

func divide() *Operation {
	op := binary("Divide", "A", "B", "(%s / %s)")
	op.Params[1].Default = 1
	emit := op.Emit
	op.Emit = func(args []string, custom json.RawMessage) (string, error) {
		if isZeroLiteral(args[1]) {
			return "", errors.New("division by constant zero")
		}
		return emit(args, custom)
	}
	return op
}

func sqrt() *Operation {
	op := unary("Sqrt", "sqrt")
	emit := op.Emit
	op.Emit = func(args []string, custom json.RawMessage) (string, error) {
		if v, ok := literalValue(args[0]); ok && v < 0 {
			return "", errors.Newf("square root of negative constant %s", args[0])
		}
		return emit(args, custom)
	}
	return op
}

func coordinate(name, expr string) *Operation {
	return &Operation{
		Name: name,
		Emit: func([]string, json.RawMessage) (string, error) { return expr, nil },
	}
}

func noise(name, fn string) *Operation {
	return &Operation{
		Name:   name,
		Params: []Param{{Name: "X"}, {Name: "Y"}},
		Emit: func(args []string, _ json.RawMessage) (string, error) {
			return fmt.Sprintf("%s(float2(%s, %s))", fn, args[0], args[1]), nil
		},
	}
}

// FloatParamConfig is the payload of a FloatParam node.
//
// Default is the parameter's absolute starting value, even when Slider is
// set. It is not a 0..1 position along the slider, so a graph written with
// that convention must have its defaults converted with
// Slider.Min + Default*(Slider.Max-Slider.Min) on import.
type FloatParamConfig struct {
	Name    string  `json:"name"`
	Default float64 `json:"default"`
	Slider  *Range  `json:"slider,omitempty"`
}

// Tex2DParamConfig is the payload of a Tex2DParam node.
type Tex2DParamConfig struct {
	Name    string `json:"name"`
	Default string `json:"default,omitempty"`
}

func floatParam() *Operation {
	decode := func(custom json.RawMessage) (FloatParamConfig, error) {
		var cfg FloatParamConfig
		if err := decodeCustom(custom, &cfg); err != nil {
			return cfg, errors.Wrap(err, "decode FloatParam payload")
		}
		if !isIdentifier(cfg.Name) {
			return cfg, errors.Newf("parameter name %q is not an identifier", cfg.Name)
		}
		if cfg.Slider != nil && cfg.Slider.Min > cfg.Slider.Max {
			return cfg, errors.Newf("slider range [%v, %v] is empty", cfg.Slider.Min, cfg.Slider.Max)
		}
		return cfg, nil
	}
	return &Operation{
		Name: "FloatParam",
		Emit: func(_ []string, custom json.RawMessage) (string, error) {
			cfg, err := decode(custom)
			if err != nil {
				return "", err
			}
			return cfg.Name, nil
		},
		Declare: func(custom json.RawMessage) ([]Parameter, error) {
			cfg, err := decode(custom)
			if err != nil {
				return nil, err
			}
			return []Parameter{{Name: cfg.Name, Kind: Scalar, Default: ScalarValue(cfg.Default), Slider: cfg.Slider}}, nil
		},
	}
}

func tex2DParam() *Operation {
	decode := func(custom json.RawMessage) (Tex2DParamConfig, error) {
		var cfg Tex2DParamConfig
		if err := decodeCustom(custom, &cfg); err != nil {
			return cfg, errors.Wrap(err, "decode Tex2DParam payload")
		}
		if !isIdentifier(cfg.Name) {
			return cfg, errors.Newf("parameter name %q is not an identifier", cfg.Name)
		}
		if cfg.Default == "" {
			cfg.Default = "white"
		}
		return cfg, nil
	}
	return &Operation{
		Name:   "Tex2DParam",
		Params: []Param{{Name: "U"}, {Name: "V"}},
		Emit: func(args []string, custom json.RawMessage) (string, error) {
			cfg, err := decode(custom)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("tex2D(%s, float2(%s, %s)).r", cfg.Name, args[0], args[1]), nil
		},
		Declare: func(custom json.RawMessage) ([]Parameter, error) {
			cfg, err := decode(custom)
			if err != nil {
				return nil, err
			}
			return []Parameter{{Name: cfg.Name, Kind: Texture, Default: TextureValue(cfg.Default)}}, nil
		},
	}
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// isIdentifier reports whether s can name a uniform without colliding with
// names the ShaderLab target emits itself.
func isIdentifier(s string) bool {
	if !identifier.MatchString(s) || strings.HasPrefix(s, "_node") {
		return false
	}
	switch s {
	case "IN", "result", "frag":
		return false
	}
	return true
}

// literalValue parses an emitted constant, which may be parenthesised.
func literalValue(expr string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimPrefix(expr, "("), ")"), 64)
	return v, err == nil
}

func isZeroLiteral(expr string) bool {
	v, ok := literalValue(expr)
	return ok && v == 0
}
