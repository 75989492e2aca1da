package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowanhm/stitch/internal/timeline"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	WindowStart string
	Duration    time.Duration
}

// ValidationReport is the validate command's output payload.
type ValidationReport struct {
	Valid      bool                 `json:"valid"`
	Activities int                  `json:"activities"`
	Events     int                  `json:"events"`
	Violations []timeline.Violation `json:"violations,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <timeline.json>",
		Short: "Structurally check a candidate timeline",
		Long: `Decode a generation-oracle timeline and report structural violations.

The file must pass the wire schema (hard failure if not). Structural
findings beyond the schema - dangling activity references, bad event
alternation, out-of-window offsets - are reported but are warnings by
design: the reconciliation pipeline proceeds best-effort on the same
input.

Example:
  stitch validate window.json --window-start 2026-08-31T10:00:00Z --duration 15m`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.WindowStart, "window-start", "", "window start (RFC 3339, required)")
	cmd.Flags().DurationVar(&opts.Duration, "duration", 15*time.Minute, "window duration")
	_ = cmd.MarkFlagRequired("window-start")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	start, err := time.Parse(time.RFC3339, opts.WindowStart)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --window-start", err)
	}
	window, err := timeline.NewTimeSpan(start, start.Add(opts.Duration))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid window", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "read timeline file", err)
	}

	tl, err := timeline.DecodeCandidate(data)
	if err != nil {
		_ = formatter.EmitError(err.Error())
		return WrapExitError(ExitFailure, "timeline rejected by schema", err)
	}
	formatter.VerboseLog("decoded %d activities, %d events", len(tl.Activities), len(tl.Events))

	violations := timeline.Validate(tl, window)
	report := ValidationReport{
		Valid:      len(violations) == 0,
		Activities: len(tl.Activities),
		Events:     len(tl.Events),
		Violations: violations,
	}

	var b strings.Builder
	if report.Valid {
		fmt.Fprintf(&b, "ok: %d activities, %d events, no violations", report.Activities, report.Events)
	} else {
		fmt.Fprintf(&b, "%d violation(s):\n", len(violations))
		for _, v := range violations {
			fmt.Fprintf(&b, "  %s\n", v)
		}
		b.WriteString("violations are non-fatal: reconciliation would proceed best-effort")
	}
	if err := formatter.Emit(b.String(), report); err != nil {
		return err
	}

	if !report.Valid {
		return &ExitError{Code: ExitFailure, Message: "timeline has structural violations"}
	}
	return nil
}
