package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/session"
)

// SessionFlags are shared by commands that run engine calls.
type SessionFlags struct {
	Ephemeral bool // skip the workspace database entirely
}

func (f *SessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.Ephemeral, "ephemeral", false, "do not restore, journal or save the workspace")
}

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	SessionFlags
	Outputs  int      // results to collect
	Nargout  int      // explicit output count override, -1 for none
	Keywords []string // name=value keyword arguments
}

// CallResult is the data payload of a successful call.
type CallResult struct {
	Function string `json:"function"`
	Outputs  []any  `json:"outputs"`
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <function> [args...]",
		Short: "Call an engine function",
		Long: `Call a function, builtin or class constructor by name.

Arguments are read as YAML: 3 is a number, [1, 2, 3] a row vector,
{a: 1} a struct and anything else a string. The number of outputs requested
from the engine is resolved from the callee's declared output count unless
--nargout overrides it.

The workspace is restored before the call, every engine call is journaled
and the namespace is saved afterwards. Use --ephemeral to skip all three.

Examples:
  enginebridge call minmax "[3, 1, 2]"
  enginebridge call stats "[1, 2, 6]" --outputs 3
  enginebridge call struct --kw a=1 --kw b=two
  enginebridge call Counter --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Outputs, "outputs", "n", 1, "number of results to collect (0 discards them)")
	cmd.Flags().IntVar(&opts.Nargout, "nargout", -1, "explicit output count to request")
	cmd.Flags().StringArrayVar(&opts.Keywords, "kw", nil, "keyword argument as name=value (repeatable)")
	opts.SessionFlags.register(cmd)

	return cmd
}

func runCall(opts *CallOptions, name string, rawArgs []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Outputs < 0 {
		return formatter.fail(ExitCommandError, ErrCodeInvalidInput,
			fmt.Sprintf("--outputs must not be negative, got %d", opts.Outputs), nil)
	}
	args, err := parseArgs(rawArgs, opts.Keywords, opts.Nargout)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeArguments, "invalid arguments", err)
	}

	var outputs []any
	err = withEnv(cmd.Context(), opts.RootOptions, opts.SessionFlags, formatter, func(ctx context.Context, e *env) error {
		formatter.VerboseLog("Calling %s with %d argument(s)", name, len(args))

		var err error
		outputs, err = invoke(ctx, e.bridge.Function(name), opts.Outputs, args)
		if err != nil {
			return callFailure(formatter, name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		data := CallResult{Function: name, Outputs: make([]any, len(outputs))}
		for i, v := range outputs {
			data.Outputs[i] = jsonValue(v)
		}
		return formatter.Success(data)
	}
	writeOutputs(formatter, outputs)
	return nil
}

// invoke runs c collecting n results.
func invoke(ctx context.Context, c *bridge.Callable, n int, args []any) ([]any, error) {
	switch n {
	case 0:
		return []any{}, c.Exec(ctx, args...)
	case 1:
		v, err := c.Call(ctx, args...)
		if err != nil {
			return nil, err
		}
		return []any{v}, nil
	default:
		return c.CallN(ctx, n, args...)
	}
}

// callFailure maps bridge and engine errors to exit codes.
func callFailure(formatter *OutputFormatter, name string, err error) error {
	switch {
	case bridge.IsArgumentEncoding(err):
		return formatter.fail(ExitCommandError, ErrCodeArguments, fmt.Sprintf("cannot pass arguments to %s", name), err)
	case bridge.IsArityMismatch(err):
		return formatter.fail(ExitCommandError, ErrCodeInvalidInput, fmt.Sprintf("%s cannot return that many outputs", name), err)
	case session.IsForeignCall(err):
		return formatter.fail(ExitFailure, ErrCodeEngine, fmt.Sprintf("%s failed in the engine", name), err)
	default:
		return formatter.fail(ExitFailure, ErrCodeGeneric, fmt.Sprintf("%s failed", name), err)
	}
}

// writeOutputs prints one result per line, numbering them when there are
// several.
func writeOutputs(formatter *OutputFormatter, outputs []any) {
	if len(outputs) == 1 {
		fmt.Fprintln(formatter.Writer, formatValue(outputs[0]))
		return
	}
	for i, v := range outputs {
		fmt.Fprintf(formatter.Writer, "[%d] %s\n", i+1, formatValue(v))
	}
}

// withEnv builds an env, runs fn and saves the workspace when fn succeeds.
// Results are printed by the caller once withEnv returns, so a failed save
// never follows a success response.
func withEnv(ctx context.Context, opts *RootOptions, flags SessionFlags, formatter *OutputFormatter, fn func(context.Context, *env) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	mode := envPersistent
	if flags.Ephemeral {
		mode = envEphemeral
	}

	e, err := newEnv(ctx, opts.config(), mode, formatter.GetErrWriter())
	if err != nil {
		return formatter.fail(GetExitCode(err), ErrCodeGeneric, "failed to start session", err)
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = formatter.fail(ExitCommandError, ErrCodeStore, "failed to close session", cerr)
		}
	}()
	if e.Restored > 0 {
		formatter.VerboseLog("Restored %d variable(s) from workspace %s", e.Restored, e.workspace)
	}

	if err := fn(ctx, e); err != nil {
		return err
	}

	if mode == envPersistent {
		res, err := e.Save(ctx)
		if err != nil {
			return formatter.fail(ExitCommandError, ErrCodeStore, "failed to save workspace", err)
		}
		formatter.VerboseLog("Saved workspace %s (revision %d, %d saved, %d skipped)",
			e.workspace, res.Revision, len(res.Saved), len(res.Skipped))
	}
	return nil
}
