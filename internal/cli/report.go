package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/okuzmin/a11ylens/internal/audit"
	"github.com/okuzmin/a11ylens/internal/reporter"
)

func newReportCmd() *cobra.Command {
	var (
		format      string
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "report <file>",
		Short: "Re-render a saved JSON audit response",
		Long:  "Reads a JSON response produced by 'audit --format json' and renders it in another format without re-auditing.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, "text", "json", "sarif"); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read report: %w", err)
			}
			var resp audit.Response
			if err := json.Unmarshal(data, &resp); err != nil {
				return fmt.Errorf("parse report: %w", err)
			}

			if interactive {
				return runTUI(&resp)
			}
			return reporter.Write(cmd.OutOrStdout(), &resp, reporter.Format(format))
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, or sarif")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "explore the report in an interactive terminal UI")

	return cmd
}
