package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reqflow",
		Short: "Declarative HTTP and GraphQL API checks",
		Long: `reqflow runs API checks described in YAML suite files. Each check sends
a request and asserts on the status, headers, cookies, body paths and timing
of the response. Every exchange is logged and can be turned into an HTML or
JSON report, or stored in SQLite for later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newReportCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(v, bt string) int {
	version = v
	buildTime = bt

	root := newRootCmd()
	err := root.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return ExitCode(err)
}
