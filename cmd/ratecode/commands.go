package main

import (
	"fmt"
	"io"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rshade/aws-ratecode-checker/internal/picker"
	"github.com/rshade/aws-ratecode-checker/internal/render"
	"github.com/rshade/aws-ratecode-checker/internal/rpc"
)

func newServicesCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "List services that publish pricing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := cat.Services(cmd.Context(), query)
			if err != nil {
				return err
			}
			return writeOptions(a.out, a.cfg.Output, "services", opts)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive substring filter")
	return cmd
}

func newRegionsCmd(a *app) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "regions SERVICE",
		Short: "List the regions of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			opts, err := cat.Regions(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			return writeOptions(a.out, a.cfg.Output, "regions", opts)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "filter on region code or name")
	return cmd
}

func newLookupCmd(a *app) *cobra.Command {
	var (
		service  string
		region   string
		quantity string
		remote   string
	)
	cmd := &cobra.Command{
		Use:   "lookup RATE_CODE",
		Short: "Resolve a rate code (SKU.OfferTermCode.RateCode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := render.ParseFormat(a.cfg.Output)
			if err != nil {
				return err
			}
			var qty *decimal.Decimal
			if quantity != "" {
				d, err := decimal.NewFromString(quantity)
				if err != nil {
					return fmt.Errorf("invalid quantity %q: %w", quantity, err)
				}
				qty = &d
			}

			if remote != "" {
				client, conn, err := rpc.Dial(remote)
				if err != nil {
					return err
				}
				defer conn.Close()
				view, err := client.Lookup(cmd.Context(), rpc.LookupRequest{
					Service:  service,
					Region:   region,
					RateCode: args[0],
					Quantity: quantity,
				})
				if err != nil {
					return err
				}
				return render.Write(a.out, format, view)
			}

			cat, err := a.catalog(cmd.Context())
			if err != nil {
				return err
			}
			res, err := cat.Lookup(cmd.Context(), service, region, args[0])
			if err != nil {
				return err
			}
			view, err := render.NewView(service, region, res, qty)
			if err != nil {
				return err
			}
			return render.Write(a.out, format, view)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&service, "service", "s", "", "service key, e.g. AmazonEC2")
	f.StringVarP(&region, "region", "r", "", "region code, e.g. us-east-1")
	f.StringVar(&quantity, "quantity", "", "multiply unit prices by this amount")
	f.StringVar(&remote, "remote", "", "resolve through a ratecode gRPC server at host:port")
	_ = cmd.MarkFlagRequired("service")
	_ = cmd.MarkFlagRequired("region")
	return cmd
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintf(a.out, "ratecode %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			return err
		},
	}
}

// writeOptions prints picker options. Text output is one "value<TAB>label"
// line per option.
func writeOptions(w io.Writer, format, key string, opts []picker.Option) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	if opts == nil {
		opts = []picker.Option{}
	}
	switch f {
	case render.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string][]picker.Option{key: opts})
	case render.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string][]picker.Option{key: opts}); err != nil {
			return err
		}
		return enc.Close()
	default:
		for _, o := range opts {
			if _, err := fmt.Fprintf(w, "%s\t%s\n", o.Value, o.Label); err != nil {
				return err
			}
		}
		return nil
	}
}
