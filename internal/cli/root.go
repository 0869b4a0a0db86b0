package cli

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	DB         string
	Workspace  string

	// Config is loaded before any subcommand runs, with flag overrides
	// applied.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the enginebridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "enginebridge",
		Short: "enginebridge - call into a numeric engine from Go",
		Long: `Drive an engine session through the bridge: call functions, evaluate
statements, persist workspaces and run conformance scenarios.

Settings come from enginebridge.toml (searched upward from the working
directory); flags override the file.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.loadConfig()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default: search for "+config.FileName+")")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "workspace database (overrides [workspace].db)")
	cmd.PersistentFlags().StringVarP(&opts.Workspace, "workspace", "w", "", "workspace name (overrides [workspace].name)")

	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewWorkspaceCommand(opts))

	return cmd
}

// loadConfig reads the config file and applies flag overrides.
func (o *RootOptions) loadConfig() error {
	var (
		cfg *config.Config
		err error
	)
	if o.ConfigPath != "" {
		cfg, err = config.Load(o.ConfigPath)
	} else {
		cfg, err = config.FindAndLoad(".")
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if o.DB != "" {
		// Flag paths are relative to the working directory, not the config
		db, err := filepath.Abs(o.DB)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --db path", err)
		}
		cfg.Workspace.DB = db
	}
	if o.Workspace != "" {
		cfg.Workspace.Name = o.Workspace
	}
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	o.Config = cfg
	return nil
}

// config returns the loaded config, or the defaults when a subcommand runs
// without the root's pre-run (as in tests).
func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		o.Config = config.Default()
	}
	return o.Config
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
