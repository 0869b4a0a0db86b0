package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shapesCatalog = `package shapes

class: Circle: {
	properties: r: 1
	methods: radius: body: {op: "get", field: "r"}
}

function: area: builtin: "noop"
`

func writeCatalog(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shapes.cue"), []byte(src), 0o644))
	return dir
}

func TestValidateCommand_Valid(t *testing.T) {
	dir := writeCatalog(t, shapesCatalog)

	out, err := execute(t, NewValidateCommand(testRootOptions(t)), dir)
	require.NoError(t, err)
	assert.Equal(t, "\u2713 Catalog valid: 1 class(es), 1 function(s)\n", out)
}

func TestValidateCommand_Verbose(t *testing.T) {
	opts := testRootOptions(t)
	opts.Verbose = true

	out, err := execute(t, NewValidateCommand(opts), writeCatalog(t, shapesCatalog))
	require.NoError(t, err)
	assert.Contains(t, out, "  class    Circle\n")
	assert.Contains(t, out, "  function area\n")
}

func TestValidateCommand_DefaultCatalog(t *testing.T) {
	opts := testRootOptions(t)
	opts.Format = "json"

	out, err := execute(t, NewValidateCommand(opts))
	require.NoError(t, err)

	var resp struct {
		Data ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Data.Valid)
	assert.Contains(t, resp.Data.Classes, "Counter")
	assert.Contains(t, resp.Data.Functions, "minmax")
}

func TestValidateCommand_Invalid(t *testing.T) {
	dir := writeCatalog(t, `package shapes

class: Circle: {
	kind: "struct"
}
`)
	opts := testRootOptions(t)
	opts.Format = "json"

	out, err := execute(t, NewValidateCommand(opts), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCatalog, resp.Error.Code)
}

func TestValidateCommand_MissingDir(t *testing.T) {
	out, err := execute(t, NewValidateCommand(testRootOptions(t)), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "catalog directory not found")
}
