package main

import (
	"fmt"
	"time"

	"github.com/Nephrolytics-ai/call-auditor/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigSchemaCommand())

	return configCmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			key := "not set"
			if cfg.Provider.APIKey != "" {
				key = "set"
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration valid")
			fmt.Fprintln(out, renderTable(
				[]string{"Setting", "Value"},
				[][]string{
					{"Provider", cfg.Provider.Name},
					{"API key", key},
					{"Listen address", cfg.Server.ListenAddr},
					{"Request timeout", requestTimeout(cfg.Server.RequestTimeout)},
					{"Cache model selection", yesNo(cfg.Provider.CacheModelSelection)},
					{"Report directory", cfg.Report.OutputDir},
					{"Log level", cfg.Logging.Level},
				},
				[]columnAlignment{alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newConfigSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "schema",
		Short:       "Print the JSON Schema for callaudit.yaml",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := config.Schema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(schema))
			return nil
		},
	}
}

func requestTimeout(timeout time.Duration) string {
	if timeout <= 0 {
		return "none"
	}
	return timeout.String()
}
