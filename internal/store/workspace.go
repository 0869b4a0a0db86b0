package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/enginebridge/internal/wire"
)

// SaveResult reports what SaveWorkspace wrote.
type SaveResult struct {
	Revision int64
	Saved    []string
	// Skipped names variables holding session-bound values.
	Skipped []string
}

// WorkspaceInfo summarizes a stored workspace.
type WorkspaceInfo struct {
	Name      string `json:"name"`
	Revision  int64  `json:"revision"`
	Variables int    `json:"variables"`
}

// SaveWorkspace replaces the stored contents of the named workspace with
// globals. Variables whose values hold handles, bound method references or
// host callbacks are skipped and logged. Each save bumps the workspace
// revision, starting at 1.
func (s *Store) SaveWorkspace(ctx context.Context, name string, globals map[string]wire.Value) (SaveResult, error) {
	if name == "" {
		return SaveResult{}, fmt.Errorf("save workspace: empty name")
	}

	names := make([]string, 0, len(globals))
	for k := range globals {
		names = append(names, k)
	}
	sort.Strings(names)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save workspace: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var res SaveResult
	err = tx.QueryRowContext(ctx, `
		INSERT INTO workspaces (name, revision) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET revision = revision + 1
		RETURNING revision
	`, name).Scan(&res.Revision)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save workspace: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM variables WHERE workspace = ?`, name); err != nil {
		return SaveResult{}, fmt.Errorf("save workspace: clear variables: %w", err)
	}

	for _, varName := range names {
		v := globals[varName]
		if wire.ContainsHandle(v) {
			s.logger.Warn("skipping session-bound variable", "workspace", name, "name", varName)
			res.Skipped = append(res.Skipped, varName)
			continue
		}
		blob, digest, class, err := marshalValue(v)
		if err != nil {
			return SaveResult{}, fmt.Errorf("save workspace: variable %q: %w", varName, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO variables (workspace, name, class, digest, value)
			VALUES (?, ?, ?, ?, ?)
		`, name, varName, class, digest, blob)
		if err != nil {
			return SaveResult{}, fmt.Errorf("save workspace: variable %q: %w", varName, err)
		}
		res.Saved = append(res.Saved, varName)
	}

	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("save workspace: commit: %w", err)
	}
	return res, nil
}

// LoadWorkspace returns the variables stored under name.
// Returns ErrWorkspaceNotFound if the workspace was never saved.
func (s *Store) LoadWorkspace(ctx context.Context, name string) (map[string]wire.Value, error) {
	var revision int64
	err := s.db.QueryRowContext(ctx, `SELECT revision FROM workspaces WHERE name = ?`, name).Scan(&revision)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load workspace %q: %w", name, ErrWorkspaceNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load workspace %q: %w", name, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, digest, value
		FROM variables
		WHERE workspace = ?
		ORDER BY name COLLATE BINARY ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query variables: %w", err)
	}
	defer rows.Close()

	out := make(map[string]wire.Value)
	for rows.Next() {
		var (
			varName, digest string
			blob            []byte
		)
		if err := rows.Scan(&varName, &digest, &blob); err != nil {
			return nil, fmt.Errorf("scan variable: %w", err)
		}
		v, err := unmarshalValue(blob, digest)
		if err != nil {
			return nil, fmt.Errorf("load workspace %q: variable %q: %w", name, varName, err)
		}
		out[varName] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variables: %w", err)
	}
	return out, nil
}

// ListWorkspaces returns every stored workspace ordered by name.
// Returns an empty slice (not nil) when there are none.
func (s *Store) ListWorkspaces(ctx context.Context) ([]WorkspaceInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT w.name, w.revision, COUNT(v.name)
		FROM workspaces w
		LEFT JOIN variables v ON v.workspace = w.name
		GROUP BY w.name, w.revision
		ORDER BY w.name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query workspaces: %w", err)
	}
	defer rows.Close()

	infos := []WorkspaceInfo{}
	for rows.Next() {
		var info WorkspaceInfo
		if err := rows.Scan(&info.Name, &info.Revision, &info.Variables); err != nil {
			return nil, fmt.Errorf("scan workspace: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate workspaces: %w", err)
	}
	return infos, nil
}

// DeleteWorkspace removes a workspace and its variables. The journal is
// kept. Deleting an unknown workspace is not an error.
func (s *Store) DeleteWorkspace(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM workspaces WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete workspace %q: %w", name, err)
	}
	return nil
}
