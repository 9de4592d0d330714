package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/skillgate/pkg/server"
)

func newServeCmd(configPath *string) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if listen != "" {
				a.cfg.Listen = listen
			}
			srv := server.New(a.cfg, a.svc, a.reg, a.logger.Named("http"))

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a.logger.Info("starting skillgate",
				zap.String("version", version),
				zap.String("config", *configPath),
				zap.String("cache", a.cfg.Cache.Path))
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "override the listen address")
	return cmd
}
