package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/meikuraledutech/noisegraph"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const debouncePeriod = 200 * time.Millisecond

func (a *app) watchCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "watch <graph> -o <shader>",
		Short: "Recompile a graph every time it is saved",
		Long: `Watch compiles the graph once, then again after every write to it.
A graph that fails to load or compile is reported and the last good shader
is left in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				return errors.New("watch needs --output")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return errors.Wrap(err, "create watcher")
			}
			defer w.Close()
			// Editors often replace the file, so watch the directory.
			if err := w.Add(filepath.Dir(args[0])); err != nil {
				return errors.Wrapf(err, "watch %s", args[0])
			}

			log := a.logger(cmd)
			c := noisegraph.NewCompiler(a.reg, noisegraph.WithLogger(log))
			rebuild := func() error {
				return a.compileTo(cmd, c, args[0], out)
			}
			if err := rebuild(); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
			}
			return watchLoop(ctx, w.Events, w.Errors, args[0], debouncePeriod, rebuild, cmd.ErrOrStderr(), log)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "shader file to keep up to date")
	return cmd
}

func (a *app) compileTo(cmd *cobra.Command, c *noisegraph.Compiler, in, out string) error {
	g, err := noisegraph.LoadFile(in, a.reg)
	if err != nil {
		return err
	}
	artifact, err := c.Compile(g, noisegraph.ArtifactName(out))
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte(artifact.Source), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", out, artifact.Version[:12])
	return nil
}

// watchLoop calls rebuild once per burst of writes to path. Rebuild errors
// are written to errOut and watching continues. It returns when ctx is done
// or the event channel closes.
func watchLoop(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error, path string, debounce time.Duration, rebuild func() error, errOut io.Writer, log zerolog.Logger) error {
	want := filepath.Clean(path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != want {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("graph changed")
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case <-fire:
			fire = nil
			if err := rebuild(); err != nil {
				fmt.Fprintf(errOut, "rebuild failed, keeping last shader: %v\n", err)
				log.Debug().Err(err).Msg("rebuild failed")
			}
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			fmt.Fprintf(errOut, "watcher: %v\n", err)
		}
	}
}
