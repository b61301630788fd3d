package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/call-auditor/pkg/logging"
	"github.com/Nephrolytics-ai/call-auditor/pkg/model"
	"github.com/spf13/cobra"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var outputDir string
	var apiKey string
	var printReport bool

	cmd := &cobra.Command{
		Use:   "audit <file>",
		Short: "Extract the transcript of a call and write its audit report",
		Long: "Runs both steps on one file: a .txt transcript is read as is, a .wav, .mp3 or .m4a " +
			"recording is transcribed by the provider. The report is written as Audit_<file name>.md.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := ctx.container(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeContainer(container)

			path := args[0]
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			artifact, err := model.NewArtifact(filepath.Base(path), content)
			if err != nil {
				return err
			}

			session := container.NewSession()
			if key := strings.TrimSpace(apiKey); key != "" {
				session.SetCredential(key)
			}
			runCtx := logging.WithSessionID(cmd.Context(), session.ID())
			session.Observe(runCtx, artifact)

			out := cmd.OutOrStdout()
			result, err := session.ExtractTranscript(runCtx)
			if err != nil {
				return errors.New(model.Diagnostic(err))
			}
			fmt.Fprintln(out, result.Message)

			result, err = session.RunAnalysis(runCtx)
			if err != nil {
				return errors.New(model.Diagnostic(err))
			}
			fmt.Fprintf(out, "%s via %s\n", result.Message, result.Model)

			name, report, _ := session.Report()
			dir := strings.TrimSpace(outputDir)
			if dir == "" {
				dir = container.Config.Report.OutputDir
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}
			reportPath := filepath.Join(dir, name)
			if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			fmt.Fprintf(out, "Report written to %s\n", reportPath)

			if printReport {
				fmt.Fprintln(out)
				fmt.Fprintln(out, report)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory for the report, overrides report.output_dir")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Provider API key, overrides provider.api_key")
	cmd.Flags().BoolVar(&printReport, "print", false, "Also print the report to stdout")
	return cmd
}
