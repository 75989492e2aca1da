package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowanhm/stitch/internal/config"
	"github.com/rowanhm/stitch/internal/oracle"
	"github.com/rowanhm/stitch/internal/stitch"
	"github.com/rowanhm/stitch/internal/store"
	"github.com/rowanhm/stitch/internal/timeline"
	"github.com/rowanhm/stitch/internal/window"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	WindowStart string
}

// RunReport is the run command's output payload.
type RunReport struct {
	StitchedEvents  int `json:"stitched_events"`
	ClosureEvents   int `json:"closure_events"`
	MetadataUpdates int `json:"metadata_updates"`
	NewActivities   int `json:"new_activities"`
	Violations      int `json:"violations"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <rows.json>...",
		Short: "Reconcile one or more aggregation windows",
		Long: `Run full reconciliation cycles over files of raw sensor rows.

Each rows file is a JSON array of {"ts": <unix-millis>, "source": "...",
"payload": "..."} objects covering one aggregation window. The generation
oracle proposes a candidate timeline per window, the engine stitches it
into the durable history, and the resulting deltas are committed
atomically.

With several files the windows are consecutive, starting at
--window-start, and are drained strictly in order through the catch-up
queue: a failed window aborts the run before later windows can commit
against a stale boundary.

Requires ` + config.APIKeyEnv + ` in the environment.

Example:
  stitch run rows.json --db ./stitch.db --window-start 2026-08-31T10:00:00Z
  stitch run w1.json w2.json w3.json --window-start 2026-08-31T10:00:00Z`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWindows(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config database_path)")
	cmd.Flags().StringVar(&opts.WindowStart, "window-start", "", "window start (RFC 3339, required)")
	_ = cmd.MarkFlagRequired("window-start")

	return cmd
}

// CatchUpReport is the run command's output payload when draining a
// multi-window backlog.
type CatchUpReport struct {
	Windows int `json:"windows"`
}

func runWindows(opts *RunOptions, rowsPaths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "load config", err)
	}
	dbPath := cfg.DatabasePath
	if opts.Database != "" {
		dbPath = opts.Database
	}

	apiKey := config.APIKey()
	if apiKey == "" {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s is not set", config.APIKeyEnv), nil)
	}

	start, err := time.Parse(time.RFC3339, opts.WindowStart)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --window-start", err)
	}

	backlog := make([][]window.RawRow, 0, len(rowsPaths))
	for _, path := range rowsPaths {
		rows, err := loadRows(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "load rows", err)
		}
		backlog = append(backlog, rows)
	}
	jobs, err := backlogJobs(backlog, start, cfg.WindowDuration.Std())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid window", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gemini, err := oracle.NewGemini(ctx, apiKey, cfg.Oracle.Model)
	if err != nil {
		return WrapExitError(ExitCommandError, "create oracle client", err)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	engine := stitch.New(gemini, stitch.Params{
		MaxActivityPause:       cfg.MaxActivityPause.Std(),
		UninterruptedThreshold: cfg.UninterruptedThreshold.Std(),
		LevenshteinThreshold:   cfg.LevenshteinThreshold,
	}, logger)

	orch := window.NewOrchestrator(st, engine, gemini, cfg.MaxActivityPause.Std(), logger)

	if len(jobs) > 1 {
		return runCatchUp(ctx, orch, jobs, formatter)
	}

	res, err := orch.ProcessWindow(ctx, jobs[0].Rows, jobs[0].Window)
	if err != nil {
		return WrapExitError(ExitFailure, "window failed", err)
	}

	report := RunReport{
		StitchedEvents:  len(res.Output.StitchedEvents),
		ClosureEvents:   len(res.Output.ClosureEvents),
		MetadataUpdates: len(res.Output.MetadataUpdates),
		NewActivities:   len(res.Output.NewActivities),
		Violations:      len(res.Violations),
	}

	var b strings.Builder
	fmt.Fprintf(&b, "window reconciled: %d stitched, %d closed, %d metadata updates, %d new activities",
		report.StitchedEvents, report.ClosureEvents, report.MetadataUpdates, report.NewActivities)
	if report.Violations > 0 {
		fmt.Fprintf(&b, " (%d violations logged)", report.Violations)
	}
	return formatter.Emit(b.String(), report)
}

// runCatchUp drains a multi-window backlog through the FIFO runner.
// The runner commits windows strictly in order; a failed window aborts
// the run with the backlog intact.
func runCatchUp(ctx context.Context, orch *window.Orchestrator, jobs []window.Job, formatter *OutputFormatter) error {
	runner := window.NewRunner(orch)
	for _, j := range jobs {
		runner.Submit(j)
	}
	runner.Close()

	if err := runner.Run(ctx); err != nil {
		return WrapExitError(ExitFailure,
			fmt.Sprintf("catch-up aborted with %d windows pending", runner.Backlog()), err)
	}

	return formatter.Emit(
		fmt.Sprintf("catch-up complete: %d windows reconciled", len(jobs)),
		CatchUpReport{Windows: len(jobs)})
}

// backlogJobs lays the row batches out over consecutive windows of the
// configured duration, starting at start.
func backlogJobs(backlog [][]window.RawRow, start time.Time, duration time.Duration) ([]window.Job, error) {
	jobs := make([]window.Job, 0, len(backlog))
	for i, rows := range backlog {
		span, err := timeline.NewTimeSpan(
			start.Add(time.Duration(i)*duration),
			start.Add(time.Duration(i+1)*duration))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, window.Job{Rows: rows, Window: span})
	}
	return jobs, nil
}

// loadRows reads the raw sensor rows file.
func loadRows(path string) ([]window.RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rows []window.RawRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parse rows: %w", err)
	}
	return rows, nil
}
