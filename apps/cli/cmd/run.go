package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/reqflow/packages/core/config"
	"github.com/abdul-hamid-achik/reqflow/packages/core/parser"
	"github.com/abdul-hamid-achik/reqflow/packages/core/runner"
	"github.com/abdul-hamid-achik/reqflow/packages/db"
	"github.com/abdul-hamid-achik/reqflow/packages/output"
	"github.com/abdul-hamid-achik/reqflow/packages/recorder"
)

// WatchDebounceDelay is the debounce delay for file watch events
const WatchDebounceDelay = 300 * time.Millisecond

type runOptions struct {
	configPath  string
	env         string
	envFile     string
	vars        []string
	name        string
	tags        []string
	parallel    bool
	concurrency int
	rate        float64
	bail        bool
	timeout     time.Duration
	proxy       string
	insecure    bool
	output      string
	outputFile  string
	report      string
	reportFile  string
	reportTitle string
	dbPath      string
	watch       bool
	verbose     int
	noColor     bool
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <file|directory>...",
		Short: "Run the checks of suite files",
		Long: `Run the checks defined in YAML suite files. Directories are searched
recursively for .yaml and .yml files.

Examples:
  reqflow run api.yaml
  reqflow run api.yaml --env staging --var token=abc
  reqflow run ./checks/ --tags smoke --parallel --concurrency 10
  reqflow run api.yaml --report-file report.html --db runs.db
  reqflow run ./checks/ --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args)
		},
	}
	o.bindFlags(cmd)
	return cmd
}

func (o *runOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.configPath, "config", "", "Path to config file (default: .reqflow.yaml in the working directory)")
	f.StringVarP(&o.env, "env", "e", "", "Suite environment to use (env: REQFLOW_ENV)")
	f.StringVar(&o.envFile, "env-file", "", "Path to .env file for variable interpolation (env: REQFLOW_ENV_FILE)")
	f.StringArrayVar(&o.vars, "var", nil, "Set a variable (key=value), may be repeated")
	f.StringVarP(&o.name, "name", "n", "", "Run only checks matching name pattern (* wildcards)")
	f.StringSliceVarP(&o.tags, "tags", "t", nil, "Run only checks with any of these tags")

	f.BoolVarP(&o.parallel, "parallel", "p", false, "Run checks concurrently when none capture or depend (env: REQFLOW_PARALLEL)")
	f.IntVar(&o.concurrency, "concurrency", config.DefaultConcurrency, "Concurrent checks in parallel mode (env: REQFLOW_CONCURRENCY)")
	f.Float64Var(&o.rate, "rate", 0, "Checks started per second in parallel mode, 0 for no limit (env: REQFLOW_RATE)")
	f.BoolVar(&o.bail, "bail", false, "Stop on first failure (env: REQFLOW_BAIL)")
	f.DurationVar(&o.timeout, "timeout", config.DefaultTimeoutMs*time.Millisecond, "Request timeout (env: REQFLOW_TIMEOUT, milliseconds)")
	f.StringVar(&o.proxy, "proxy", "", "Proxy URL for HTTP requests (env: REQFLOW_PROXY)")
	f.BoolVarP(&o.insecure, "insecure", "k", false, "Disable TLS certificate validation")

	f.StringVarP(&o.output, "output", "o", "console", "Result format: "+strings.Join(output.Formats(), ", ")+" (env: REQFLOW_OUTPUT)")
	f.StringVar(&o.outputFile, "output-file", "", "Write results to file instead of stdout")
	f.StringVar(&o.report, "report", "", "Request log report format: html, json (env: REQFLOW_REPORT)")
	f.StringVar(&o.reportFile, "report-file", "", "Request log report path (env: REQFLOW_REPORT_FILE)")
	f.StringVar(&o.reportTitle, "report-title", output.DefaultReportTitle, "Title of the HTML report")
	f.StringVar(&o.dbPath, "db", "", "Store the request log in this SQLite database (env: REQFLOW_DB)")

	f.BoolVarP(&o.watch, "watch", "w", false, "Watch files for changes and re-run")
	f.CountVarP(&o.verbose, "verbose", "v", "Verbose output (-v for details, -vv for debug logs)")
	f.BoolVar(&o.noColor, "no-color", false, "Disable colored output (env: REQFLOW_NO_COLOR)")
}

// settings are the effective run settings after config, environment and
// flags are layered.
type settings struct {
	runner      *runner.Config
	output      string
	outputFile  string
	report      string
	reportFile  string
	reportTitle string
	dbPath      string
	verbose     int
	noColor     bool
}

func (o *runOptions) settings(cmd *cobra.Command, cfg *config.Config) (*settings, error) {
	changed := cmd.Flags().Changed

	rc := &runner.Config{
		Environment:     cfg.DefaultEnvironment,
		EnvFile:         cfg.EnvFile,
		Headers:         cfg.Headers,
		Timeout:         time.Duration(cfg.Timeout) * time.Millisecond,
		FollowRedirects: cfg.GetFollowRedirects(),
		MaxRedirects:    cfg.MaxRedirects,
		ValidateSSL:     cfg.GetValidateSSL(),
		Proxy:           cfg.Proxy,
		CookieJar:       cfg.GetCookieJar(),
		Bail:            cfg.GetBail(),
		NameFilter:      o.name,
		TagsFilter:      o.tags,
		Parallel:        cfg.GetParallel(),
		Concurrency:     cfg.Concurrency,
		Rate:            cfg.Rate,
	}
	if changed("env") {
		rc.Environment = o.env
	}
	if changed("env-file") {
		rc.EnvFile = o.envFile
	}
	if changed("timeout") {
		rc.Timeout = o.timeout
	}
	if changed("proxy") {
		rc.Proxy = o.proxy
	}
	if o.insecure {
		rc.ValidateSSL = false
	}
	if changed("bail") {
		rc.Bail = o.bail
	}
	if changed("parallel") {
		rc.Parallel = o.parallel
	}
	if changed("concurrency") {
		rc.Concurrency = o.concurrency
	}
	if changed("rate") {
		rc.Rate = o.rate
	}
	if rc.Concurrency < 0 || rc.Rate < 0 {
		return nil, errors.New("concurrency and rate must not be negative")
	}

	vars, err := parseVars(o.vars)
	if err != nil {
		return nil, err
	}
	rc.Variables = vars

	s := &settings{
		runner:      rc,
		output:      cfg.Output,
		outputFile:  o.outputFile,
		report:      cfg.Report,
		reportFile:  cfg.ReportFile,
		reportTitle: o.reportTitle,
		dbPath:      cfg.Database,
		verbose:     o.verbose,
		noColor:     cfg.GetNoColor(),
	}
	if changed("output") {
		s.output = o.output
	}
	if changed("report") {
		s.report = o.report
	}
	if changed("report-file") {
		s.reportFile = o.reportFile
	}
	if changed("db") {
		s.dbPath = o.dbPath
	}
	if changed("no-color") {
		s.noColor = o.noColor
	}
	if s.verbose == 0 && cfg.GetVerbose() {
		s.verbose = 1
	}
	if s.report != "" && s.reportFile == "" {
		s.reportFile = "reqflow-report." + strings.ToLower(s.report)
	}
	return s, nil
}

func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
		}
		vars[key] = value
	}
	return vars, nil
}

func newLogger(w io.Writer, verbose int, noColor bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{DisableColors: noColor, DisableTimestamp: true})
	switch {
	case verbose >= 2:
		log.SetLevel(logrus.DebugLevel)
	case verbose == 1:
		log.SetLevel(logrus.InfoLevel)
	default:
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

func (o *runOptions) run(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return withCode(ExitConfigError, err)
	}
	s, err := o.settings(cmd, cfg)
	if err != nil {
		return withCode(ExitConfigError, err)
	}

	files, err := collectFiles(args)
	if err != nil {
		return withCode(ExitUsageError, err)
	}
	if len(files) == 0 {
		return withCode(ExitUsageError, errors.New("no suite files found"))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := newLogger(cmd.ErrOrStderr(), s.verbose, s.noColor)
	err = s.runOnce(ctx, cmd, log, files)
	if !o.watch {
		return err
	}
	if err != nil {
		log.Warn(err)
	}
	return s.watch(ctx, cmd, log, args, files)
}

// runOnce runs every file and writes results, the report and the stored log.
func (s *settings) runOnce(ctx context.Context, cmd *cobra.Command, log *logrus.Logger, files []string) error {
	w := cmd.OutOrStdout()
	if s.outputFile != "" {
		f, err := os.Create(s.outputFile)
		if err != nil {
			return withCode(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		w = f
	}

	formatter, err := output.New(s.output, output.Options{Writer: w, Verbose: s.verbose > 0, NoColor: s.noColor})
	if err != nil {
		return withCode(ExitUsageError, err)
	}

	rec := recorder.New()
	r := runner.NewRunner(s.runner, runner.WithLogger(log), runner.WithRecorder(rec))

	formatter.FormatHeader(version)
	start := time.Now()

	var (
		fileErr error
		failed  int
		offline int
	)
	for _, file := range files {
		result, err := r.RunFile(ctx, file)
		if err != nil {
			formatter.FormatError(fmt.Errorf("%s: %w", file, err))
			fileErr = errors.Join(fileErr, fmt.Errorf("%s: %w", file, err))
			continue
		}
		formatter.FormatResult(result)

		failed += result.Failed
		for _, res := range result.Results {
			if res.Error != nil {
				offline++
			}
		}
		if s.runner.Bail && result.Failed > 0 {
			break
		}
	}

	if err := formatter.Flush(time.Since(start)); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}

	entries := rec.Entries()
	if s.reportFile != "" {
		if err := output.SaveReport(s.reportFile, s.report, entries, output.WithTitle(s.reportTitle)); err != nil {
			return withCode(ExitConfigError, err)
		}
		log.WithField("path", s.reportFile).Info("report written")
	}
	if s.dbPath != "" {
		if err := storeRun(ctx, s.dbPath, runName(files), entries, log); err != nil {
			return withCode(ExitConfigError, err)
		}
	}

	switch {
	case fileErr != nil:
		var pe *parser.ParseError
		if errors.As(fileErr, &pe) {
			return withCode(ExitParseError, fileErr)
		}
		return withCode(ExitConfigError, fileErr)
	case failed > 0 && offline == failed:
		return withCode(ExitNetworkError, fmt.Errorf("%d checks got no response", failed))
	case failed > 0:
		return withCode(ExitTestFailure, fmt.Errorf("%d checks failed", failed))
	}
	return nil
}

func runName(files []string) string {
	if len(files) == 1 {
		return files[0]
	}
	return fmt.Sprintf("%s and %d more", files[0], len(files)-1)
}

func storeRun(ctx context.Context, path, name string, entries []recorder.Entry, log logrus.FieldLogger) error {
	store, err := db.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()

	id, err := store.SaveRun(ctx, name, entries)
	if err != nil {
		return fmt.Errorf("storing request log: %w", err)
	}
	log.WithFields(logrus.Fields{"db": path, "run": id, "entries": len(entries)}).Info("request log stored")
	return nil
}

// watch re-runs all files whenever a suite or env file changes, until ctx ends.
func (s *settings) watch(ctx context.Context, cmd *cobra.Command, log *logrus.Logger, args, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	addDir := func(dir string) {
		if dirs[dir] {
			return
		}
		dirs[dir] = true
		if err := watcher.Add(dir); err != nil {
			log.WithError(err).Warnf("cannot watch %s", dir)
		}
	}
	for _, file := range files {
		addDir(filepath.Dir(file))
	}
	for _, arg := range args {
		if info, err := os.Stat(arg); err == nil && info.IsDir() {
			_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err == nil && d.IsDir() {
					addDir(path)
				}
				return nil
			})
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")

	debounce := time.NewTimer(WatchDebounceDelay)
	debounce.Stop()
	var changed string

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isSuiteFile(event.Name) && !isEnvFile(event.Name) {
				continue
			}
			changed = event.Name
			debounce.Reset(WatchDebounceDelay)
		case <-debounce.C:
			fmt.Fprintf(out, "\nFile changed: %s\nRe-running...\n", changed)
			current, err := collectFiles(args)
			if err != nil {
				log.WithError(err).Warn("collecting files")
				current = files
			}
			if err := s.runOnce(ctx, cmd, log, current); err != nil {
				log.Warn(err)
			}
			fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

// collectFiles expands directories into the suite files they contain.
// Files named explicitly are taken as given.
func collectFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && isSuiteFile(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func isSuiteFile(path string) bool {
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return !slices.Contains(config.ConfigFilenames, filepath.Base(path))
	}
	return false
}

func isEnvFile(path string) bool {
	base := filepath.Base(path)
	return base == ".env" || strings.HasPrefix(base, ".env.") || filepath.Ext(base) == ".env"
}
