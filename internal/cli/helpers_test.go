package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/roach88/enginebridge/internal/config"
)

// testRootOptions returns options whose workspace database lives in a
// temporary directory.
func testRootOptions(t *testing.T) *RootOptions {
	t.Helper()
	cfg := config.Default()
	cfg.Workspace.DB = filepath.Join(t.TempDir(), "workspace.db")
	return &RootOptions{Format: "text", Config: cfg}
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}
