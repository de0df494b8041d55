package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/reqflow/packages/core/config"
	"github.com/abdul-hamid-achik/reqflow/packages/db"
	"github.com/abdul-hamid-achik/reqflow/packages/output"
)

type reportOptions struct {
	configPath string
	dbPath     string
	runID      string
	format     string
	outFile    string
	title      string
	list       bool
}

func newReportCmd() *cobra.Command {
	o := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a stored request log",
		Long: `Render a request log stored with "reqflow run --db" as HTML or JSON.

Examples:
  reqflow report --db runs.db --list
  reqflow report --db runs.db -o report.html
  reqflow report --db runs.db --run 6f1c... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "Path to config file")
	f.StringVar(&o.dbPath, "db", "", "SQLite database holding request logs (env: REQFLOW_DB)")
	f.StringVar(&o.runID, "run", "", "Run to render (default: the latest)")
	f.StringVar(&o.format, "format", "", "Report format: html, json (default: from file extension, else html)")
	f.StringVarP(&o.outFile, "output-file", "o", "", "Write the report to file instead of stdout")
	f.StringVar(&o.title, "title", output.DefaultReportTitle, "Title of the HTML report")
	f.BoolVar(&o.list, "list", false, "List stored runs instead of rendering one")
	return cmd
}

func (o *reportOptions) run(cmd *cobra.Command) error {
	dbPath := o.dbPath
	if dbPath == "" {
		cfg, err := config.LoadConfig(o.configPath)
		if err != nil {
			return withCode(ExitConfigError, err)
		}
		dbPath = cfg.Database
	}
	if dbPath == "" {
		return withCode(ExitUsageError, errors.New("no database: pass --db or set database in the config"))
	}

	ctx := cmd.Context()
	store, err := db.Open(ctx, dbPath)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if o.list {
		runs, err := store.Runs(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Fprintln(out, "No stored runs")
			return nil
		}
		for _, r := range runs {
			fmt.Fprintf(out, "%s  %s  %d requests, %d failed  (%s)\n",
				r.ID, r.Name, r.Entries, r.Failed, humanize.Time(r.StartedAt))
		}
		return nil
	}

	entries, err := store.LoadEntries(ctx, o.runID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return withCode(ExitUsageError, err)
		}
		return err
	}

	if o.outFile != "" {
		if err := output.SaveReport(o.outFile, o.format, entries, output.WithTitle(o.title)); err != nil {
			return withCode(ExitUsageError, err)
		}
		fmt.Fprintf(out, "Report written to %s (%d requests)\n", o.outFile, len(entries))
		return nil
	}

	switch strings.ToLower(o.format) {
	case "", "html":
		return output.WriteHTMLReport(out, entries, output.WithTitle(o.title))
	case "json":
		return output.WriteJSONReport(out, entries)
	}
	return withCode(ExitUsageError, fmt.Errorf("%w %q for report (known: html, json)", output.ErrUnknownFormat, o.format))
}
