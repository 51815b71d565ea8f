package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okuzmin/a11ylens/internal/analyzer"
	"github.com/okuzmin/a11ylens/internal/reporter"
	"github.com/okuzmin/a11ylens/internal/tui"
)

func newAuditCmd() *cobra.Command {
	var (
		format      string
		output      string
		timeout     time.Duration
		minScore    int
		exitCode    bool
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Audit a URL for accessibility issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format, "text", "json", "sarif"); err != nil {
				return err
			}

			cfg, err := loadConfig(".")
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			auditor, err := newAuditor(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp, err := auditor.Run(ctx, args[0])
			if err != nil {
				return err
			}

			if interactive {
				return runTUI(resp)
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}
			if err := reporter.Write(out, resp, reporter.Format(format)); err != nil {
				return err
			}

			if !resp.Success {
				return fmt.Errorf("audit failed: %s", resp.Error)
			}
			if minScore > 0 && resp.Score < minScore {
				return fmt.Errorf("score %d is below required minimum %d", resp.Score, minScore)
			}
			if exitCode {
				if code := analyzer.ExitCode(analyzer.MaxPriority(resp.Issues)); code != 0 {
					cmd.SilenceErrors = true
					cmd.SilenceUsage = true
					return &ExitError{Code: code}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text, json, or sarif")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write report to a file instead of stdout")
	cmd.Flags().DurationVar(&timeout, "timeout", 60*time.Second, "overall audit timeout")
	cmd.Flags().IntVar(&minScore, "min-score", 0, "fail if the score is below this value (CI gate)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "map the worst issue priority to the exit code (critical=2, warning=1)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "explore results in an interactive terminal UI")

	return cmd
}

// runTUI is swappable so audit command tests stay headless.
var runTUI = tui.Run
