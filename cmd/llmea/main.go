package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ogulcanaydogan/llm-error-analysis/internal/analysis"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/config"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/pipeline"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/report"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/server"
	"github.com/ogulcanaydogan/llm-error-analysis/internal/store"
	"github.com/ogulcanaydogan/llm-error-analysis/pkg/types"
)

const (
	exitError         = 1
	exitUsage         = 2
	exitAspectFailure = 3
	exitInvariant     = 4
	exitSchema        = 5
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

var logger = newLogger(os.Stderr, slog.LevelWarn)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitError)
	}
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRootCommand() *cobra.Command {
	var logLevel string
	root := &cobra.Command{
		Use:           "llmea",
		Short:         "Fine-grained error analysis for text classification and NLI predictions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return cliError{code: exitUsage, err: fmt.Errorf("invalid --log-level %q", logLevel)}
			}
			logger = newLogger(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", config.EnvOr(config.EnvLogLevel, "warn"), "log level (debug|info|warn|error)")
	root.AddCommand(newAnalyzeCommand())
	root.AddCommand(newReportCommand())
	root.AddCommand(newHistoryCommand())
	root.AddCommand(newServeCommand())
	root.AddCommand(newInitCommand())
	return root
}

func newAnalyzeCommand() *cobra.Command {
	var (
		req       pipeline.Request
		task      string
		outPath   string
		outDir    string
		format    string
		historyDB string
	)
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a predictions file and write the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.InputPath == "" {
				return cliError{code: exitUsage, err: fmt.Errorf("--in is required")}
			}
			if format != "json" && format != "md" {
				return cliError{code: exitUsage, err: fmt.Errorf("unsupported --format %s (want json|md)", format)}
			}
			req.Task = types.Task(task)

			svc := &pipeline.Service{Logger: logger}
			if historyDB != "" {
				history, err := store.OpenHistory(historyDB)
				if err != nil {
					return err
				}
				defer history.Close()
				svc.History = history
			}

			resp, runErr := svc.Analyze(cmd.Context(), req)
			if resp.Report.RunID != "" {
				if outDir != "" {
					path, err := store.SaveLocal(resp.Report, outDir)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				} else if err := emitReport(cmd.OutOrStdout(), resp.Report, outPath, format); err != nil {
					return err
				}
			}
			for _, v := range resp.Violations {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			if runErr != nil {
				return cliError{code: exitCodeFor(runErr), err: runErr}
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&task, "task", "", "task type (tc|nli); defaults to the config's task")
	f.StringVar(&req.InputPath, "in", "", "tab-separated predictions file")
	f.StringVar(&req.ConfigPath, "config", "", "aspect configuration YAML (built-in defaults when empty)")
	f.StringVar(&outPath, "out", "", "report output path (stdout when empty)")
	f.StringVar(&outDir, "out-dir", "", "write report_<run id>.json into this directory instead of --out")
	f.StringVar(&format, "format", "json", "report format (json|md)")
	f.StringVar(&req.Dataset, "dataset", "", "dataset name")
	f.StringVar(&req.Model, "model", "model_name", "model name")
	f.StringVar(&req.Language, "language", report.DefaultLanguage, "dataset language")
	f.BoolVar(&req.CI, "ci", false, "compute bootstrap confidence intervals")
	f.BoolVar(&req.Cases, "case", false, "list error cases")
	f.BoolVar(&req.ECE, "ece", false, "compute expected calibration error")
	f.IntVar(&req.Bins, "bins", 0, "calibration bins (default 10)")
	f.IntVar(&req.Repeats, "repeats", 0, "bootstrap resamples (default 100)")
	f.Uint64Var(&req.Seed, "seed", 0, "bootstrap random seed")
	f.IntVar(&req.Parallelism, "parallelism", 0, "aspects analyzed concurrently (default 4)")
	f.BoolVar(&req.Strict, "strict", false, "fail when any aspect fails")
	f.BoolVar(&req.Validate, "validate", false, "validate the report against the report schema")
	f.StringVar(&req.SchemaPath, "schema", "", "schema file used with --validate (built-in schema when empty)")
	f.StringVar(&historyDB, "history-db", os.Getenv(config.EnvHistoryDB), "SQLite database recording runs")
	return cmd
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return exitUsage
	case errors.Is(err, pipeline.ErrAspectsFailed):
		return exitAspectFailure
	case errors.Is(err, analysis.ErrMissingBucketAlignment):
		return exitInvariant
	case errors.Is(err, pipeline.ErrSchemaViolation):
		return exitSchema
	default:
		return exitError
	}
}

func emitReport(stdout io.Writer, r types.Report, outPath, format string) error {
	if outPath != "" {
		var err error
		if format == "md" {
			err = report.WriteMarkdown(outPath, r)
		} else {
			err = report.WriteJSON(outPath, r)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, outPath)
		return nil
	}
	if format == "md" {
		_, err := io.WriteString(stdout, report.BuildMarkdown(r))
		return err
	}
	raw, err := report.MarshalJSON(r)
	if err != nil {
		return err
	}
	_, err = stdout.Write(raw)
	return err
}

func newReportCommand() *cobra.Command {
	var inPath, outPath string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render a JSON analysis report as markdown",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if inPath == "" || outPath == "" {
				return cliError{code: exitUsage, err: fmt.Errorf("--in and --out are required")}
			}
			r, err := report.ReadJSON(inPath)
			if err != nil {
				return err
			}
			if err := report.WriteMarkdown(outPath, r); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&inPath, "in", "", "analysis report json input")
	cmd.Flags().StringVar(&outPath, "out", "", "markdown output")
	return cmd
}

func newHistoryCommand() *cobra.Command {
	var historyDB string
	historyCmd := &cobra.Command{Use: "history", Short: "Inspect recorded analysis runs"}
	historyCmd.PersistentFlags().StringVar(&historyDB, "history-db", os.Getenv(config.EnvHistoryDB), "SQLite database recording runs")

	open := func() (*store.History, error) {
		if historyDB == "" {
			return nil, cliError{code: exitUsage, err: fmt.Errorf("--history-db is required")}
		}
		return store.OpenHistory(historyDB)
	}

	var limit int
	var asJSON bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			history, err := open()
			if err != nil {
				return err
			}
			defer history.Close()
			runs, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Task, r.Dataset, r.Model, r.Examples, r.Performance)
			}
			return nil
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	listCmd.Flags().BoolVar(&asJSON, "json", false, "print runs as JSON")

	var format string
	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "md" {
				return cliError{code: exitUsage, err: fmt.Errorf("unsupported --format %s (want json|md)", format)}
			}
			history, err := open()
			if err != nil {
				return err
			}
			defer history.Close()
			r, err := history.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emitReport(cmd.OutOrStdout(), r, "", format)
		},
	}
	showCmd.Flags().StringVar(&format, "format", "json", "output format (json|md)")

	historyCmd.AddCommand(listCmd, showCmd)
	return historyCmd
}

func newServeCommand() *cobra.Command {
	cfg := server.DefaultConfig()
	var historyDB string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the analysis HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var history *store.History
			if historyDB != "" {
				h, err := store.OpenHistory(historyDB)
				if err != nil {
					return err
				}
				defer h.Close()
				history = h
			}
			svc := &pipeline.Service{History: history, Logger: logger}
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           server.New(cfg, svc, history, logger),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe() }()
			logger.Info("api listening", "addr", cfg.Addr, "history", historyDB != "")

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&cfg.Addr, "addr", config.EnvOr(config.EnvAddr, cfg.Addr), "listen address")
	cmd.Flags().StringVar(&historyDB, "history-db", os.Getenv(config.EnvHistoryDB), "SQLite database recording runs")
	cmd.Flags().StringSliceVar(&cfg.AllowOrigins, "allow-origin", cfg.AllowOrigins, "CORS allowed origins")
	cmd.Flags().IntVar(&cfg.CacheTTLSeconds, "cache-ttl-seconds", cfg.CacheTTLSeconds, "finished report cache TTL in seconds")
	cmd.Flags().Int64Var(&cfg.MaxBodyBytes, "max-body-bytes", cfg.MaxBodyBytes, "maximum predictions upload size")
	return cmd
}

func newInitCommand() *cobra.Command {
	var task, outPath string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default aspect configuration for a task",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := types.ParseTask(task)
			if err != nil {
				return cliError{code: exitUsage, err: err}
			}
			if fileExists(outPath) && !force {
				return cliError{code: exitUsage, err: fmt.Errorf("%s already exists (use --force to overwrite)", outPath)}
			}
			raw, err := config.Marshal(config.Default(t))
			if err != nil {
				return err
			}
			if err := os.WriteFile(outPath, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", string(types.TaskClassification), "task type (tc|nli)")
	cmd.Flags().StringVar(&outPath, "out", "llmea.yaml", "configuration output path")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
