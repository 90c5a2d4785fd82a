package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dgallion1/docmerge/internal/api"
	"github.com/dgallion1/docmerge/internal/config"
	"github.com/dgallion1/docmerge/internal/merge"
	"github.com/spf13/cobra"
)

func newServeCommand(cfg *config.Config, log **slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [dir]",
		Short: "Serve a merged docs tree over HTTP",
		Long: `Serves <dir> with rendered Markdown, a JSON catalog and document outlines.
With --source (or DOCMERGE_SOURCE) set, the tree is merged from that source
on startup and can be rebuilt with POST /api/merge. <dir> defaults to
DOCMERGE_DEST.`,
		Args:          maxArgs(1, "docmerge serve [dir]"),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.ValidateServe(); err != nil {
				return usageErrorf("%v", err)
			}
			dir := cfg.Destination
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				return usageErrorf("no directory to serve: pass one or set DOCMERGE_DEST")
			}
			return runServe(cmd.Context(), *cfg, dir, *log)
		},
	}
	cmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "Port to listen on")
	cmd.Flags().StringVar(&cfg.Source, "source", cfg.Source, "Source tree to merge from")
	return cmd
}

func runServe(parent context.Context, cfg config.Config, dir string, log *slog.Logger) error {
	ctx, stop := signalContext(parent)
	defer stop()

	merger := merge.New(merge.Options{Walk: cfg.WalkOptions(), Clean: cfg.Clean}, log).
		WithStats(merge.NewStats(cfg.StatsWindow))
	if cfg.Source != "" {
		if _, err := merger.Run(ctx, cfg.Source, dir); err != nil {
			return err
		}
	}

	srv := api.NewServer(dir, merger, log, cfg)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		<-ctx.Done()
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("starting docmerge preview", "port", cfg.Port, "root", dir, "source", cfg.Source)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server error", "error", err)
		return err
	}
	return nil
}
