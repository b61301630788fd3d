package main

import (
	"github.com/Nephrolytics-ai/call-auditor/pkg/mcp"
	"github.com/spf13/cobra"
)

func newMCPCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the audit workflow as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeContainer(container)
			tools, err := mcp.NewToolServer(container)
			if err != nil {
				return err
			}
			return tools.ServeStdio()
		},
	}
}
