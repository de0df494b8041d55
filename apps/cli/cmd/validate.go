package cmd

import (
	"errors"
	"fmt"

	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|directory>...",
		Short: "Validate suite files without sending requests",
		Long: `Parse suite files and compile their matchers without executing them.

Examples:
  reqflow validate api.yaml
  reqflow validate ./checks/`,
		Args: cobra.MinimumNArgs(1),
		RunE: validateCommand,
	}
}

func validateCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, errors.New("no suite files found"))
	}

	invalid := 0
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			invalid++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s (%d checks)\n", file, len(suite.Checks))
	}

	if invalid > 0 {
		return withCode(ExitParseError, fmt.Errorf("%d of %d files are invalid", invalid, len(files)))
	}
	return nil
}
