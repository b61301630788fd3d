package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Nephrolytics-ai/call-auditor/pkg/httpserver"
	"github.com/spf13/cobra"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload page and audit API",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeContainer(container)
			if addr := strings.TrimSpace(listen); addr != "" {
				container.Config.Server.ListenAddr = addr
			}

			server, err := httpserver.New(container)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Listen(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Listen address, overrides server.listen_addr")
	return cmd
}
