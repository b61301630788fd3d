package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/spf13/cobra"
)

func newModelsCommand(ctx *commandContext) *cobra.Command {
	var apiKey string
	var all bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the provider's models and the one the auditor selects",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			key := strings.TrimSpace(apiKey)
			if key == "" {
				key = container.Config.Provider.APIKey
			}

			listing, err := container.Selector.List(cmd.Context(), key)
			if err != nil {
				return errors.New(model.Diagnostic(err))
			}

			rows := make([][]string, 0, len(listing.Models))
			for _, m := range listing.Models {
				if !all && !m.SupportsGeneration {
					continue
				}
				selected := ""
				if m.Name == listing.Selected {
					selected = "*"
				}
				rows = append(rows, []string{m.Name, m.DisplayName, yesNo(m.SupportsGeneration), selected})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Model", "Display Name", "Generates", "Selected"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignCenter, alignCenter},
			))
			fmt.Fprintf(out, "Provider: %s\n", container.Provider.Name())
			fmt.Fprintf(out, "Priorities: %s\n", strings.Join(container.Selector.Priorities(), ", "))
			fmt.Fprintf(out, "Selected: %s\n", listing.Selected)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key, overrides provider.api_key")
	cmd.Flags().BoolVar(&all, "all", false, "Include models that cannot generate content")
	return cmd
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
