package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/engine"
)

// EvalOptions holds flags for the eval command.
type EvalOptions struct {
	*RootOptions
	SessionFlags
}

// EvalResult is the data payload of a successful eval.
type EvalResult struct {
	Statement string `json:"statement"`
	Value     any    `json:"value"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <statement>...",
		Short: "Evaluate a statement in the global workspace",
		Long: `Evaluate a statement in the engine's global namespace and print the value
of its last expression. Multiple arguments are joined with spaces.

Assignments persist in the workspace unless --ephemeral is set.

Examples:
  enginebridge eval "x = 3"
  enginebridge eval "x + 1"
  enginebridge eval --ephemeral "minmax([3 1 2])"`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, strings.Join(args, " "), cmd)
		},
	}

	opts.SessionFlags.register(cmd)

	return cmd
}

func runEval(opts *EvalOptions, stmt string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var value any
	err := withEnv(cmd.Context(), opts.RootOptions, opts.SessionFlags, formatter, func(ctx context.Context, e *env) error {
		formatter.VerboseLog("Evaluating %q", stmt)

		var err error
		value, err = e.bridge.Eval(ctx, stmt)
		if err != nil {
			if engine.IsSyntax(err) {
				return formatter.fail(ExitCommandError, ErrCodeInvalidInput, "syntax error", err)
			}
			return callFailure(formatter, fmt.Sprintf("%q", stmt), err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(EvalResult{Statement: stmt, Value: jsonValue(value)})
	}
	fmt.Fprintln(formatter.Writer, formatValue(value))
	return nil
}
