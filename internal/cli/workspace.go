package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/store"
	"github.com/roach88/enginebridge/internal/wire"
)

// VariableView is one stored variable as shown by workspace show.
type VariableView struct {
	Name  string `json:"name"`
	Class string `json:"class"`
	Value any    `json:"value"`
}

// WorkspaceView is the data payload of workspace show.
type WorkspaceView struct {
	Name      string         `json:"name"`
	Variables []VariableView `json:"variables"`
}

// NewWorkspaceCommand creates the workspace command group.
func NewWorkspaceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect and manage saved workspaces",
		Long: `Saved workspaces hold the global variables of past sessions. Variables
holding object handles, bound method references or host callbacks are not
saved. The journal records every engine call made in a workspace.`,
	}

	cmd.AddCommand(newWorkspaceListCommand(rootOpts))
	cmd.AddCommand(newWorkspaceShowCommand(rootOpts))
	cmd.AddCommand(newWorkspaceDeleteCommand(rootOpts))
	cmd.AddCommand(newWorkspaceJournalCommand(rootOpts))

	return cmd
}

func newWorkspaceListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List saved workspaces",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			infos := []store.WorkspaceInfo{}
			err := withStore(cmd.Context(), opts, formatter, func(ctx context.Context, st *store.Store) error {
				var err error
				infos, err = st.ListWorkspaces(ctx)
				return err
			})
			if err != nil && !errors.Is(err, errNoDatabase) {
				if IsReported(err) {
					return err
				}
				return formatter.fail(ExitCommandError, ErrCodeStore, "failed to list workspaces", err)
			}

			if formatter.Format == "json" {
				return formatter.Success(infos)
			}
			if len(infos) == 0 {
				fmt.Fprintln(formatter.Writer, "No workspaces.")
				return nil
			}
			tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tREVISION\tVARIABLES")
			for _, info := range infos {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", info.Name, info.Revision, info.Variables)
			}
			return tw.Flush()
		},
	}
}

func newWorkspaceShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show [name]",
		Short:         "Show the variables of a saved workspace",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			name := workspaceArg(opts, args)

			var vars map[string]wire.Value
			err := withStore(cmd.Context(), opts, formatter, func(ctx context.Context, st *store.Store) error {
				var err error
				vars, err = st.LoadWorkspace(ctx, name)
				return err
			})
			if err != nil {
				return workspaceFailure(formatter, name, err)
			}

			view, err := viewWorkspace(cmd.Context(), opts, formatter, name, vars)
			if err != nil {
				return err
			}

			if formatter.Format == "json" {
				for i := range view.Variables {
					view.Variables[i].Value = jsonValue(view.Variables[i].Value)
				}
				return formatter.Success(view)
			}
			if len(view.Variables) == 0 {
				fmt.Fprintf(formatter.Writer, "Workspace %s is empty.\n", name)
				return nil
			}
			for _, v := range view.Variables {
				fmt.Fprintf(formatter.Writer, "%s (%s) = %s\n", v.Name, v.Class, formatValue(v.Value))
			}
			return nil
		},
	}
}

// viewWorkspace decodes stored variables through an ephemeral bridge.
// Stored values never hold handles, so decoding makes no engine calls.
func viewWorkspace(ctx context.Context, opts *RootOptions, formatter *OutputFormatter, name string, vars map[string]wire.Value) (WorkspaceView, error) {
	view := WorkspaceView{Name: name, Variables: make([]VariableView, 0, len(vars))}
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)

	err := withEnv(ctx, opts, SessionFlags{Ephemeral: true}, formatter, func(ctx context.Context, e *env) error {
		for _, n := range names {
			v, err := e.bridge.Decode(ctx, vars[n])
			if err != nil {
				return formatter.fail(ExitFailure, ErrCodeStore, fmt.Sprintf("cannot decode variable %s", n), err)
			}
			view.Variables = append(view.Variables, VariableView{
				Name:  n,
				Class: string(wire.ClassOf(vars[n])),
				Value: v,
			})
		}
		return nil
	})
	return view, err
}

func newWorkspaceDeleteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <name>",
		Short:         "Delete a saved workspace (its journal is kept)",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			name := args[0]

			err := withStore(cmd.Context(), opts, formatter, func(ctx context.Context, st *store.Store) error {
				// Surface unknown names instead of silently succeeding
				if _, err := st.LoadWorkspace(ctx, name); err != nil {
					return err
				}
				return st.DeleteWorkspace(ctx, name)
			})
			if err != nil {
				return workspaceFailure(formatter, name, err)
			}

			if formatter.Format == "json" {
				return formatter.Success(map[string]string{"deleted": name})
			}
			fmt.Fprintf(formatter.Writer, "Deleted workspace %s\n", name)
			return nil
		},
	}
}

func newWorkspaceJournalCommand(opts *RootOptions) *cobra.Command {
	var tail int

	cmd := &cobra.Command{
		Use:           "journal [name]",
		Short:         "Print the engine calls recorded for a workspace",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts, cmd)
			name := workspaceArg(opts, args)

			entries := []store.JournalEntry{}
			err := withStore(cmd.Context(), opts, formatter, func(ctx context.Context, st *store.Store) error {
				var err error
				entries, err = st.ReadJournal(ctx, name)
				return err
			})
			if err != nil && !errors.Is(err, errNoDatabase) {
				return workspaceFailure(formatter, name, err)
			}
			if tail > 0 && len(entries) > tail {
				entries = entries[len(entries)-tail:]
			}

			if formatter.Format == "json" {
				return formatter.Success(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(formatter.Writer, "No journal entries for %s.\n", name)
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(formatter.Writer, "[%d] %s %q nargout=%d", e.Seq, e.Op, e.Name, e.Nargout)
				if e.Depth > 0 {
					fmt.Fprintf(formatter.Writer, " depth=%d", e.Depth)
				}
				if e.Error != "" {
					fmt.Fprintf(formatter.Writer, " error=%q", e.Error)
				}
				fmt.Fprintln(formatter.Writer)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&tail, "tail", 0, "show only the last N entries")

	return cmd
}

// errNoDatabase is returned by withStore when the database file does not
// exist yet. Read-only commands treat it as an empty store.
var errNoDatabase = errors.New("workspace database does not exist")

// withStore opens the configured database for fn. Unlike a session it never
// creates the file.
func withStore(ctx context.Context, opts *RootOptions, formatter *OutputFormatter, fn func(context.Context, *store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := opts.config()
	path := cfg.DBPath()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		formatter.VerboseLog("No database at %s", path)
		return errNoDatabase
	}

	logger, err := cfg.Logger(formatter.GetErrWriter())
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeInvalidInput, "invalid log settings", err)
	}
	st, err := store.Open(path, store.WithLogger(logger))
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeStore, "failed to open workspace database", err)
	}
	defer st.Close()

	return fn(ctx, st)
}

// workspaceFailure reports store errors, mapping unknown workspaces to
// ErrCodeNotFound.
func workspaceFailure(formatter *OutputFormatter, name string, err error) error {
	if IsReported(err) {
		return err
	}
	if errors.Is(err, store.ErrWorkspaceNotFound) || errors.Is(err, errNoDatabase) {
		return formatter.fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("workspace not found: %s", name), err)
	}
	return formatter.fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("workspace %s", name), err)
}

func workspaceArg(opts *RootOptions, args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return opts.config().Workspace.Name
}
