package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <file|directory>...",
		Short: "List the checks in suite files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  listCommand,
	}
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, errors.New("no suite files found"))
	}

	out := cmd.OutOrStdout()
	var errs error
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			errs = errors.Join(errs, err)
			continue
		}

		fmt.Fprintf(out, "\n%s (%s):\n", suite.Name, file)
		for _, c := range suite.Checks {
			target := c.Path
			if c.GraphQL != nil {
				target += " [graphql]"
			}
			fmt.Fprintf(out, "  - %s  %s %s\n", c.Name, c.Method, target)
			if len(c.Tags) > 0 {
				fmt.Fprintf(out, "    tags: %s\n", strings.Join(c.Tags, ", "))
			}
			if len(c.Depends) > 0 {
				fmt.Fprintf(out, "    depends: %s\n", strings.Join(c.Depends, ", "))
			}
			if c.Skip != "" {
				fmt.Fprintf(out, "    skip: %s\n", c.Skip)
			}
		}
	}
	if errs != nil {
		return withCode(ExitParseError, errs)
	}
	return nil
}
