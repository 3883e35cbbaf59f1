package main

import (
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/synqronlabs/zkmail/server"
)

func newServeCmd(load loader) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload API",
		Long:  "Serve an HTTP API that proves uploaded .eml files. POST /verify-dkim with a multipart email_file field.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var reg prometheus.Registerer
			if cfg.Server.Metrics {
				reg = prometheus.DefaultRegisterer
			}
			a, err := newApp(ctx, cfg, reg)
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())

			srv := server.New(a.manager, server.Config{
				Addr:      cfg.Server.Addr,
				MaxUpload: cfg.Server.MaxUpload,
				Metrics:   a.metrics,
				Logger:    a.logger.Named("http"),
			})
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}
