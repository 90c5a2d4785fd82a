package main

import (
	"encoding/json"
	"io"
	"log/slog"

	"github.com/dgallion1/docmerge/internal/catalog"
	"github.com/dgallion1/docmerge/internal/config"
	"github.com/dgallion1/docmerge/internal/parser"
	"github.com/spf13/cobra"
)

func newCatalogCommand(cfg *config.Config, log **slog.Logger, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:           "catalog <dir>",
		Short:         "Print a JSON catalog of a merged docs tree",
		Args:          exactArgs(1, "docmerge catalog <dir>"),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			cat, err := catalog.Build(ctx, args[0], catalog.Options{
				Parser:        parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
				MaxParseBytes: cfg.MaxParseBytes,
			}, *log)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cat)
		},
	}
}
