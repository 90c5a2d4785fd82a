package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dgallion1/docmerge/internal/config"
	"github.com/dgallion1/docmerge/internal/merge"
	"github.com/spf13/cobra"
)

var errUsage = errors.New("usage")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func exactArgs(n int, hint string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageErrorf("expected %d argument(s), got %d\n\nUsage: %s", n, len(args), hint)
		}
		return nil
	}
}

func maxArgs(n int, hint string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return usageErrorf("expected at most %d argument(s), got %d\n\nUsage: %s", n, len(args), hint)
		}
		return nil
	}
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	cfg := config.Load()
	var log *slog.Logger

	cmd := &cobra.Command{
		Use:   "docmerge <source> <destination>",
		Short: "Merge every docs directory of a source tree into one destination tree",
		Long: strings.TrimSpace(`
Finds every directory named "docs" under <source> and copies its contents to
<destination>/<path to the docs directory>, dropping the "docs" segment:

  src/A/docs/A.md        -> out/A/A.md
  src/A/B/docs/b.md      -> out/A/B/b.md

Directories are visited in lexicographic order; when two docs directories
write the same destination file, the later one wins.
`),
		Args:          exactArgs(2, "docmerge <source> <destination>"),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Validate(); err != nil {
				return usageErrorf("%v", err)
			}
			log = newLogger(cfg, stderr)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			m := merge.New(merge.Options{Walk: cfg.WalkOptions(), Clean: cfg.Clean}, log)
			rep, err := m.Run(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Merged %d docs directories (%d files, %d bytes) into %s\n",
				len(rep.Matches), rep.Files, rep.Bytes, rep.Destination)
			if rep.Overwrites > 0 {
				fmt.Fprintf(stdout, "%d files were overwritten by later docs directories\n", rep.Overwrites)
			}
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	pf := cmd.PersistentFlags()
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (json, text)")
	pf.StringVar(&cfg.MatchName, "name", cfg.MatchName, "Directory name to merge")
	pf.BoolVar(&cfg.IgnoreCase, "ignore-case", cfg.IgnoreCase, "Match the directory name case-insensitively")
	pf.StringSliceVar(&cfg.Skip, "skip", cfg.Skip, "Do not search directories whose name contains any of these (comma-separated)")
	pf.BoolVar(&cfg.SkipDefaults, "skip-defaults", cfg.SkipDefaults, "Also skip hidden, underscore-prefixed and common dependency/build directories")
	pf.BoolVar(&cfg.Clean, "clean", cfg.Clean, "Remove the destination before copying")

	cmd.AddCommand(
		newServeCommand(&cfg, &log),
		newCatalogCommand(&cfg, &log, stdout),
	)
	return cmd
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
