package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/catalog"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Classes   []string          `json:"classes,omitempty"`
	Functions []string          `json:"functions,omitempty"`
	Errors    []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one catalog problem with its source position.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [catalog-dir]",
		Short: "Validate a catalog of class and function declarations",
		Long: `Load the CUE catalog in a directory, unify it with the catalog schema and
compile every class and function declaration.

Without an argument the directory named by [engine].catalog_dir is checked,
or the built-in catalog when none is configured.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	var (
		cat *catalog.Catalog
		err error
	)
	if dir == "" {
		cfg := opts.config()
		formatter.VerboseLog("Validating configured catalog %q", cfg.Engine.CatalogDir)
		cat, err = cfg.Catalog()
	} else {
		if _, statErr := os.Stat(dir); statErr != nil {
			return formatter.fail(ExitCommandError, ErrCodeNotFound,
				fmt.Sprintf("catalog directory not found: %s", dir), statErr)
		}
		formatter.VerboseLog("Validating catalog in %s", dir)
		cat, err = catalog.LoadDir(dir)
	}
	if err != nil {
		return outputValidationError(formatter, err)
	}

	result := ValidationResult{
		Valid:     true,
		Classes:   make([]string, len(cat.Classes)),
		Functions: make([]string, len(cat.Functions)),
	}
	for i, c := range cat.Classes {
		result.Classes[i] = c.Name
	}
	for i, f := range cat.Functions {
		result.Functions[i] = f.Name
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "\u2713 Catalog valid: %d class(es), %d function(s)\n",
		len(result.Classes), len(result.Functions))
	if formatter.Verbose {
		for _, name := range result.Classes {
			fmt.Fprintf(formatter.Writer, "  class    %s\n", name)
		}
		for _, name := range result.Functions {
			fmt.Fprintf(formatter.Writer, "  function %s\n", name)
		}
	}
	return nil
}

// outputValidationError reports a catalog that failed to load or compile.
func outputValidationError(formatter *OutputFormatter, err error) error {
	verr := ValidationError{Field: "catalog", Message: err.Error()}
	var cerr *catalog.CompileError
	if errors.As(err, &cerr) {
		verr.Field = cerr.Field
		verr.Message = cerr.Message
		if cerr.Pos.IsValid() {
			verr.File = cerr.Pos.Filename()
			verr.Line = cerr.Pos.Line()
			verr.Column = cerr.Pos.Column()
		}
	}

	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeCatalog, "catalog validation failed", ValidationResult{
			Valid:  false,
			Errors: []ValidationError{verr},
		})
	} else {
		w := formatter.Writer
		fmt.Fprintln(w, "\u2717 Catalog validation failed")
		if verr.Line > 0 {
			fmt.Fprintf(w, "  %s:%d:%d: [%s] %s\n", verr.File, verr.Line, verr.Column, verr.Field, verr.Message)
		} else {
			fmt.Fprintf(w, "  [%s] %s\n", verr.Field, verr.Message)
		}
	}
	exitErr := WrapExitError(ExitFailure, "catalog validation failed", err)
	exitErr.Reported = true
	return exitErr
}
