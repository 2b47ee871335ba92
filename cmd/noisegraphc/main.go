// Command noisegraphc compiles noise graph documents into shader source.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/meikuraledutech/noisegraph"
	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "noisegraphc:", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		os.Exit(1)
	}
}

type app struct {
	verbose bool
	reg     *noisegraph.Registry
}

func (a *app) logger(cmd *cobra.Command) zerolog.Logger {
	if !a.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(zerolog.DebugLevel).With().Timestamp().Logger()
}

func newRootCmd() *cobra.Command {
	a := &app{reg: noisegraph.DefaultRegistry()}
	root := &cobra.Command{
		Use:           "noisegraphc",
		Short:         "Compile noise graph documents into shader programs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log compiler progress to stderr")
	root.AddCommand(
		a.compileCmd(),
		a.validateCmd(),
		a.paramsCmd(),
		a.opsCmd(),
		a.convertCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) compileCmd() *cobra.Command {
	var out, name string
	cmd := &cobra.Command{
		Use:   "compile <graph.json|graph.yaml>",
		Short: "Compile a graph to a shader",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := noisegraph.LoadFile(args[0], a.reg)
			if err != nil {
				return err
			}
			if name == "" {
				target := out
				if target == "" {
					target = args[0]
				}
				name = noisegraph.ArtifactName(target)
			}
			c := noisegraph.NewCompiler(a.reg, noisegraph.WithLogger(a.logger(cmd)))
			artifact, err := c.Compile(g, name)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = io.WriteString(cmd.OutOrStdout(), artifact.Source)
				return err
			}
			if err := os.WriteFile(out, []byte(artifact.Source), 0o644); err != nil {
				return errors.Wrapf(err, "write %s", out)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out, artifact.Version[:12])
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the shader to this file instead of stdout")
	cmd.Flags().StringVar(&name, "name", "", "shader name (default Hidden/<output basename>)")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph>...",
		Short: "Check graphs for cycles, dangling references and arity errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var failed int
			for _, path := range args {
				g, err := noisegraph.LoadFile(path, a.reg)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %v\n", pterm.Red("FAIL"), path, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s   %s (%d nodes)\n", pterm.Green("ok"), path, g.Len())
			}
			if failed > 0 {
				return errors.Newf("%d of %d graphs invalid", failed, len(args))
			}
			return nil
		},
	}
}

func (a *app) paramsCmd() *cobra.Command {
	var snapshotPath, shaderPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "params <graph>",
		Short: "List a graph's parameters, optionally merging them into a snapshot file",
		Long: `Without --snapshot the declared parameters are printed.

With --snapshot the graph is compiled and merged into the snapshot file:
values already set for a parameter of the same name and kind are kept, and
the file is rewritten. A failed compile leaves the file untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := noisegraph.LoadFile(args[0], a.reg)
			if err != nil {
				return err
			}
			if snapshotPath == "" {
				params, err := noisegraph.ExtractParameters(g, a.reg)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), params)
				}
				return printParams(cmd.OutOrStdout(), params)
			}

			prev, err := readSnapshot(snapshotPath)
			if err != nil {
				return err
			}
			if shaderPath == "" {
				shaderPath = args[0]
			}
			c := noisegraph.NewCompiler(a.reg, noisegraph.WithLogger(a.logger(cmd)))
			artifact, err := c.Compile(g, noisegraph.ArtifactName(shaderPath))
			if err != nil {
				return err
			}
			params, err := noisegraph.ExtractParameters(g, a.reg)
			if err != nil {
				return err
			}
			next := noisegraph.Merge(prev, params).WithArtifact(args[0], artifact).WithPreview(prev.Preview)
			data, err := json.MarshalIndent(next, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(snapshotPath, data, 0o644); err != nil {
				return errors.Wrapf(err, "write %s", snapshotPath)
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), next.Params)
			}
			return printEntries(cmd.OutOrStdout(), next.Params)
		},
	}
	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "snapshot file to merge into (created if missing)")
	cmd.Flags().StringVar(&shaderPath, "shader", "", "path the shader will be saved to, used for its name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) opsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the built-in operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "OPERATION\tINPUTS")
			for _, name := range a.reg.List() {
				op, _ := a.reg.Operation(name)
				inputs := make([]string, len(op.Params))
				for i, p := range op.Params {
					inputs[i] = fmt.Sprintf("%s=%s", p.Name, noisegraph.ShaderLab{}.Literal(p.Default))
				}
				fmt.Fprintf(w, "%s\t%s\n", name, strings.Join(inputs, " "))
			}
			return w.Flush()
		},
	}
}

func (a *app) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a graph between JSON and YAML, validating it on the way",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := noisegraph.LoadFile(args[0], a.reg)
			if err != nil {
				return err
			}
			var data []byte
			switch strings.ToLower(filepath.Ext(args[1])) {
			case ".yaml", ".yml":
				data, err = noisegraph.EncodeYAML(g)
			default:
				data, err = noisegraph.EncodeJSON(g)
			}
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
}

func readSnapshot(path string) (noisegraph.Snapshot, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return noisegraph.NewSnapshot(), nil
	}
	if err != nil {
		return noisegraph.Snapshot{}, err
	}
	// Fields missing from the file keep their defaults.
	s := noisegraph.NewSnapshot()
	if err := json.Unmarshal(data, &s); err != nil {
		return noisegraph.Snapshot{}, errors.Wrapf(err, "parse snapshot %s", path)
	}
	return s, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printParams(w io.Writer, params []noisegraph.Parameter) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tDEFAULT\tRANGE")
	for _, p := range params {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Kind, formatValue(p.Kind, p.Default), formatRange(p.Slider))
	}
	return tw.Flush()
}

func printEntries(w io.Writer, entries []noisegraph.ParamEntry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tVALUE\tDEFAULT\tRANGE")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Kind, formatValue(e.Kind, e.Value), formatValue(e.Kind, e.Default), formatRange(e.Slider))
	}
	return tw.Flush()
}

func formatValue(k noisegraph.Kind, v noisegraph.Value) string {
	if k == noisegraph.Texture {
		return v.Texture
	}
	return fmt.Sprint(v.Scalar)
}

func formatRange(r *noisegraph.Range) string {
	if r == nil {
		return "-"
	}
	return fmt.Sprintf("%v..%v", r.Min, r.Max)
}
