package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/aws-ratecode-checker/internal/logging"
	"github.com/rshade/aws-ratecode-checker/internal/lookup"
	"github.com/rshade/aws-ratecode-checker/internal/mirror"
	"github.com/rshade/aws-ratecode-checker/internal/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Pick a service and region, then check rate codes interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// The terminal belongs to the UI; logs go to a file or nowhere.
			a.logger = zerolog.Nop()
			if logFile != "" {
				f, err := a.fs.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
				if err != nil {
					return fmt.Errorf("failed to open log file: %w", err)
				}
				defer f.Close()
				if a.logger, err = logging.New(f, a.cfg.Log.Level, logging.FormatJSON); err != nil {
					return err
				}
			}

			f, err := a.fetcher()
			if err != nil {
				return err
			}
			ctrl := lookup.New(f, a.logger, lookup.WithMetrics(a.metrics))
			return tui.New(ctrl, a.logger).Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "append logs to this file")
	return cmd
}

func newMirrorCmd(a *app) *cobra.Command {
	var (
		dir         string
		services    []string
		regions     []string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Copy pricing documents into a local directory for offline lookups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.client()
			if err != nil {
				return err
			}
			m := mirror.New(client, a.fs, dir, a.logger, mirror.WithConcurrency(concurrency))
			report, err := m.Run(cmd.Context(), services, regions)
			if err != nil {
				return err
			}
			base, err := m.BaseURL()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.out, "mirrored %d documents (%d bytes) for %v\nuse --base-url %s\n",
				report.Documents, report.Bytes, report.Services, base)
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&dir, "dir", "./pricing-mirror", "output directory")
	f.StringSliceVar(&services, "service", nil, "service keys to mirror (repeatable or comma-separated)")
	f.StringSliceVar(&regions, "region", nil, "regions to mirror (default: all)")
	f.IntVar(&concurrency, "concurrency", mirror.DefaultConcurrency, "parallel document downloads")
	_ = cmd.MarkFlagRequired("service")
	return cmd
}
