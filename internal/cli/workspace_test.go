package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enginebridge/internal/store"
)

func TestWorkspaceList_NoDatabase(t *testing.T) {
	opts := testRootOptions(t)

	out, err := execute(t, NewWorkspaceCommand(opts), "list")
	require.NoError(t, err)
	assert.Equal(t, "No workspaces.\n", out)
	assert.NoFileExists(t, opts.Config.DBPath(), "read-only commands never create the database")
}

func TestWorkspaceLifecycle(t *testing.T) {
	opts := testRootOptions(t)

	_, err := execute(t, NewEvalCommand(opts), "a = 1; s.name = 'lab'; k = Counter();")
	require.NoError(t, err)

	out, err := execute(t, NewWorkspaceCommand(opts), "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Regexp(t, `default\s+1\s+2`, out, "the Counter handle is not saved")

	out, err = execute(t, NewWorkspaceCommand(opts), "show")
	require.NoError(t, err)
	assert.Equal(t, "a (double) = 1\ns (struct) = name: lab\n", out)

	out, err = execute(t, NewWorkspaceCommand(opts), "delete", "default")
	require.NoError(t, err)
	assert.Equal(t, "Deleted workspace default\n", out)

	out, err = execute(t, NewWorkspaceCommand(opts), "list")
	require.NoError(t, err)
	assert.Equal(t, "No workspaces.\n", out)

	// The journal outlives the workspace.
	out, err = execute(t, NewWorkspaceCommand(opts), "journal", "default")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] eval")
}

func TestWorkspaceShow_JSON(t *testing.T) {
	opts := testRootOptions(t)
	_, err := execute(t, NewEvalCommand(opts), "v = [1 2 3];")
	require.NoError(t, err)

	opts.Format = "json"
	out, err := execute(t, NewWorkspaceCommand(opts), "show", "default")
	require.NoError(t, err)

	var resp struct {
		Data WorkspaceView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "default", resp.Data.Name)
	require.Len(t, resp.Data.Variables, 1)
	assert.Equal(t, "v", resp.Data.Variables[0].Name)
	assert.Equal(t, "double", resp.Data.Variables[0].Class)
	assert.Equal(t, []any{1.0, 2.0, 3.0}, resp.Data.Variables[0].Value)
}

func TestWorkspace_NotFound(t *testing.T) {
	opts := testRootOptions(t)
	_, err := execute(t, NewEvalCommand(opts), "a = 1;")
	require.NoError(t, err)

	for _, args := range [][]string{{"show", "missing"}, {"delete", "missing"}} {
		out, err := execute(t, NewWorkspaceCommand(opts), args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E005]: workspace not found: missing")
	}
}

func TestWorkspace_SelectedByFlag(t *testing.T) {
	opts := testRootOptions(t)
	opts.Config.Workspace.Name = "lab"

	_, err := execute(t, NewEvalCommand(opts), "b = 'x';")
	require.NoError(t, err)

	opts.Format = "json"
	out, err := execute(t, NewWorkspaceCommand(opts), "list")
	require.NoError(t, err)

	var resp struct {
		Data []store.WorkspaceInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, []store.WorkspaceInfo{{Name: "lab", Revision: 1, Variables: 1}}, resp.Data)
}

func TestWorkspaceJournal_Tail(t *testing.T) {
	opts := testRootOptions(t)
	for _, stmt := range []string{"a = 1;", "a + 1", "a + 2"} {
		_, err := execute(t, NewEvalCommand(opts), stmt)
		require.NoError(t, err)
	}

	out, err := execute(t, NewWorkspaceCommand(opts), "journal", "--tail", "1")
	require.NoError(t, err)
	assert.Equal(t, "[3] eval \"a + 2\" nargout=0\n", out)

	out, err = execute(t, NewWorkspaceCommand(opts), "journal", "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, "No journal entries for elsewhere.\n", out)
}
