package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/wire"
)

// JournalEntry is one recorded session call.
type JournalEntry struct {
	// ID is wire.JournalID over the workspace, Seq and the call.
	ID        string `json:"id"`
	Workspace string `json:"workspace"`
	Seq       int64  `json:"seq"`
	// CallSeq is the sequence number the session assigned.
	CallSeq int64  `json:"call_seq"`
	Op      string `json:"op"`
	Name    string `json:"name"`
	Nargout int    `json:"nargout"`
	Depth   int    `json:"depth"`
	// Error is the call's error text, empty on success.
	Error string `json:"error,omitempty"`
}

// AppendJournal records a session call at the end of the workspace's
// journal and returns the stored entry.
func (s *Store) AppendJournal(ctx context.Context, workspace string, call session.Call) (JournalEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("append journal: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var seq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM journal WHERE workspace = ?
	`, workspace).Scan(&seq)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("append journal: next seq: %w", err)
	}

	id, err := wire.JournalID(workspace, seq, call.Op, call.Name, call.Nargout)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("append journal: %w", err)
	}

	entry := JournalEntry{
		ID:        id,
		Workspace: workspace,
		Seq:       seq,
		CallSeq:   call.Seq,
		Op:        call.Op,
		Name:      call.Name,
		Nargout:   call.Nargout,
		Depth:     call.Depth,
	}
	if call.Err != nil {
		entry.Error = call.Err.Error()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO journal
		(id, workspace, seq, call_seq, op, name, nargout, depth, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.ID,
		entry.Workspace,
		entry.Seq,
		entry.CallSeq,
		entry.Op,
		entry.Name,
		entry.Nargout,
		entry.Depth,
		entry.Error,
	)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("append journal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return JournalEntry{}, fmt.Errorf("append journal: commit: %w", err)
	}
	return entry, nil
}

// ReadJournal returns the workspace's journal in append order.
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadJournal(ctx context.Context, workspace string) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace, seq, call_seq, op, name, nargout, depth, error
		FROM journal
		WHERE workspace = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, workspace)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		err := rows.Scan(&e.ID, &e.Workspace, &e.Seq, &e.CallSeq, &e.Op, &e.Name, &e.Nargout, &e.Depth, &e.Error)
		if err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// Recorder returns a session.Observer that appends every call to the
// workspace's journal. Write failures are logged.
func (s *Store) Recorder(ctx context.Context, workspace string) session.Observer {
	return func(c session.Call) {
		if _, err := s.AppendJournal(ctx, workspace, c); err != nil {
			s.logger.Error("journal write failed",
				slog.String("workspace", workspace),
				slog.Int64("seq", c.Seq),
				slog.String("error", err.Error()))
		}
	}
}
