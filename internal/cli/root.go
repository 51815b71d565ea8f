package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	engineBinary   string
	engineEndpoint string
)

func newRootCmd(version string) *cobra.Command {
	root := &cobra.Command{
		Use:   "a11ylens",
		Short: "Web page accessibility auditor",
		Long:  "Runs an automated accessibility audit against a URL and produces a deduplicated, prioritized, scored report.",
	}

	root.PersistentFlags().StringVar(&engineBinary, "engine", "", "path to the pa11y executable (default from config)")
	root.PersistentFlags().StringVar(&engineEndpoint, "endpoint", "", "remote engine service URL (overrides --engine)")

	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newAuditCmd())
	root.AddCommand(newWatchCmd())
	root.AddCommand(newServeCmd())
	root.AddCommand(newReportCmd())

	return root
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "a11ylens "+version)
		},
	}
}

// ExitError carries a specific process exit code out of a command.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}
