package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pario-ai/skillgate/pkg/mcp"
)

func newMCPCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve skillgate as an MCP tool server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath, true)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := mcp.New(a.svc, a.logger.Named("mcp"), version)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
