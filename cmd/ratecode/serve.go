package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rshade/aws-ratecode-checker/internal/rpc"
	"github.com/rshade/aws-ratecode-checker/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, the gRPC service and /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("http-addr") {
				a.cfg.Server.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc-addr") {
				a.cfg.Server.GRPCAddr = grpcAddr
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (empty config value disables HTTP)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (empty config value disables gRPC)")
	return cmd
}

// serve runs until ctx is canceled, then drains both servers within the
// configured shutdown timeout.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg.Server
	if cfg.HTTPAddr == "" && cfg.GRPCAddr == "" {
		return errors.New("nothing to serve: both http_addr and grpc_addr are empty")
	}
	cat, err := a.catalog(ctx)
	if err != nil {
		return err
	}

	// Bind gRPC first so a bad address fails before anything is serving.
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		if grpcLis, err = net.Listen("tcp", cfg.GRPCAddr); err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.HTTPAddr != "" {
		e := server.New(cat, server.Options{
			CORS:    cfg.CORS,
			Metrics: a.metrics.Handler(),
			Version: version,
		}, a.logger)
		e.Server.Addr = cfg.HTTPAddr
		g.Go(func() error {
			a.logger.Info().Str("addr", cfg.HTTPAddr).Msg("starting HTTP server")
			if err := e.StartServer(e.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
			defer cancel()
			if err := e.Shutdown(shutdownCtx); err != nil {
				a.logger.Error().Err(err).Msg("HTTP shutdown failed")
			}
			return nil
		})
	}

	if grpcLis != nil {
		lis := grpcLis
		s, health := rpc.NewGRPCServer(cat, a.logger)
		g.Go(func() error {
			a.logger.Info().Str("addr", lis.Addr().String()).Msg("starting gRPC server")
			return s.Serve(lis)
		})
		g.Go(func() error {
			<-gctx.Done()
			health.Shutdown()
			stopped := make(chan struct{})
			go func() {
				s.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(cfg.ShutdownTimeout):
				a.logger.Warn().Msg("gRPC graceful stop timed out, forcing")
				s.Stop()
			}
			return nil
		})
	}

	<-gctx.Done()
	a.logger.Info().Msg("received shutdown signal")
	return g.Wait()
}
