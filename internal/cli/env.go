package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/enginebridge/internal/bridge"
	"github.com/roach88/enginebridge/internal/callback"
	"github.com/roach88/enginebridge/internal/config"
	"github.com/roach88/enginebridge/internal/engine"
	"github.com/roach88/enginebridge/internal/session"
	"github.com/roach88/enginebridge/internal/store"
)

// envMode selects what an env does with the workspace database.
type envMode int

const (
	// envEphemeral starts from an empty namespace and touches no database.
	envEphemeral envMode = iota
	// envPersistent restores the workspace, journals every call and saves
	// the namespace back on Close.
	envPersistent
)

// env is one engine session assembled from the loaded config.
type env struct {
	cfg       *config.Config
	logger    *slog.Logger
	engine    *engine.Engine
	session   *session.Session
	bridge    *bridge.Bridge
	store     *store.Store
	workspace string

	// Restored is the number of variables loaded from the workspace.
	Restored int
}

// newEnv builds the logger, engine, session and bridge described by cfg.
// Diagnostics go to logw.
func newEnv(ctx context.Context, cfg *config.Config, mode envMode, logw io.Writer) (*env, error) {
	logger, err := cfg.Logger(logw)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log settings", err)
	}
	engineOpts, err := cfg.EngineOptions(logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load catalog", err)
	}

	e := &env{
		cfg:       cfg,
		logger:    logger,
		engine:    engine.New(engineOpts...),
		workspace: cfg.Workspace.Name,
	}

	sessionOpts := []session.Option{session.WithLogger(logger)}
	if mode == envPersistent {
		if err := e.openStore(ctx); err != nil {
			e.engine.Close()
			return nil, err
		}
		sessionOpts = append(sessionOpts, session.WithObserver(e.store.Recorder(ctx, e.workspace)))
	}
	e.session = session.New(e.engine, sessionOpts...)

	registry := callback.NewRegistry(callback.WithLogger(logger))
	e.bridge = bridge.New(e.session,
		bridge.WithRegistry(registry),
		bridge.WithOptions(cfg.BridgeOptions()),
		bridge.WithLogger(logger),
	)
	return e, nil
}

// openStore opens the database and restores the workspace into the engine.
// Restoring writes straight to the engine so it is not journaled.
func (e *env) openStore(ctx context.Context) error {
	path := e.cfg.DBPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create database directory", err)
	}
	st, err := store.Open(path, store.WithLogger(e.logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open workspace database", err)
	}
	e.store = st

	vars, err := st.LoadWorkspace(ctx, e.workspace)
	if errors.Is(err, store.ErrWorkspaceNotFound) {
		e.logger.Debug("starting new workspace", "workspace", e.workspace)
		return nil
	}
	if err != nil {
		st.Close()
		return WrapExitError(ExitCommandError, "failed to restore workspace", err)
	}
	for name, v := range vars {
		if err := e.engine.WriteGlobal(ctx, name, v); err != nil {
			st.Close()
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to restore variable %s", name), err)
		}
	}
	e.Restored = len(vars)
	e.logger.Debug("restored workspace", "workspace", e.workspace, "variables", len(vars))
	return nil
}

// Save writes the engine's global namespace back to the workspace.
func (e *env) Save(ctx context.Context) (store.SaveResult, error) {
	if e.store == nil {
		return store.SaveResult{}, nil
	}
	return e.store.SaveWorkspace(ctx, e.workspace, e.engine.Globals())
}

// Close ends the session and closes the database.
func (e *env) Close() error {
	err := e.session.Close()
	if e.store != nil {
		err = errors.Join(err, e.store.Close())
	}
	return err
}
