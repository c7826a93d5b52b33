package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/rshade/aws-ratecode-checker/internal/catalog"
	"github.com/rshade/aws-ratecode-checker/internal/config"
	"github.com/rshade/aws-ratecode-checker/internal/logging"
	"github.com/rshade/aws-ratecode-checker/internal/metrics"
	"github.com/rshade/aws-ratecode-checker/internal/pricing"
)

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	fs      afero.Fs
	out     io.Writer
	errOut  io.Writer
	cfg     config.Config
	logger  zerolog.Logger
	metrics *metrics.Recorder
}

// rootFlags are the persistent flags. They override the config file and
// the environment when set.
type rootFlags struct {
	configFile      string
	baseURL         string
	regionNamesFile string
	source          string
	output          string
	logLevel        string
	logFormat       string
	timeout         time.Duration
}

func newRootCmd(fs afero.Fs, stdout, stderr io.Writer) *cobra.Command {
	a := &app{fs: fs, out: stdout, errOut: stderr}
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "ratecode",
		Short:         "Check AWS Price List rate codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd, flags)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.configFile, "config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	pf.StringVar(&flags.baseURL, "base-url", "", "price list host, or file:// path of a mirror")
	pf.StringVar(&flags.regionNamesFile, "region-names-file", "", "JSON table of region names")
	pf.StringVar(&flags.source, "source", "", "where lookups read prices: public or api")
	pf.StringVarP(&flags.output, "output", "o", "", "output format: text, json or yaml")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: json or console")
	pf.DurationVar(&flags.timeout, "timeout", 0, "per-download timeout")

	cmd.AddCommand(
		newServicesCmd(a),
		newRegionsCmd(a),
		newLookupCmd(a),
		newTUICmd(a),
		newServeCmd(a),
		newMirrorCmd(a),
		newVersionCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and builds the
// logger.
func (a *app) setup(cmd *cobra.Command, flags rootFlags) error {
	bootstrap, err := logging.New(a.errOut, "warn", logging.FormatConsole)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.fs, flags.configFile, bootstrap)
	if err != nil {
		return err
	}

	changed := cmd.Flags().Changed
	if changed("base-url") {
		cfg.BaseURL = flags.baseURL
	}
	if changed("region-names-file") {
		cfg.RegionNamesFile = flags.regionNamesFile
	}
	if changed("source") {
		cfg.Source = flags.source
	}
	if changed("output") {
		cfg.Output = flags.output
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
	if changed("log-format") {
		cfg.Log.Format = flags.logFormat
	}
	if changed("timeout") {
		cfg.Timeout = flags.timeout
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(a.errOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	a.metrics = metrics.New()
	return nil
}

// client builds the price list client for the configured host.
func (a *app) client() (*pricing.Client, error) {
	opts := []pricing.Option{
		pricing.WithBaseURL(a.cfg.BaseURL),
		pricing.WithTimeout(a.cfg.Timeout),
		pricing.WithObserver(a.metrics),
	}
	names, err := a.cfg.RegionNames(a.fs)
	if err != nil {
		return nil, err
	}
	if names != nil {
		opts = append(opts, pricing.WithRegionNames(names))
	}
	return pricing.NewClient(a.logger, opts...)
}

// fetcher is client behind the in-process cache.
func (a *app) fetcher() (*pricing.CachedFetcher, error) {
	c, err := a.client()
	if err != nil {
		return nil, err
	}
	return pricing.NewCachedFetcher(c, a.cfg.Cache.TTL, a.cfg.Cache.MaxDocuments, a.logger), nil
}

// catalog builds the lookup backend, reading single SKUs through the
// Query API when the source is "api".
func (a *app) catalog(ctx context.Context) (*catalog.Catalog, error) {
	f, err := a.fetcher()
	if err != nil {
		return nil, err
	}
	opts := []catalog.Option{catalog.WithMetrics(a.metrics)}
	if a.cfg.Source == config.SourceAPI {
		q, err := pricing.LoadQueryClient(ctx, a.cfg.QueryRegion, a.logger, a.metrics)
		if err != nil {
			return nil, err
		}
		opts = append(opts, catalog.WithSKUSource(q))
	}
	return catalog.New(f, a.logger, opts...), nil
}
