// Package settings implements the SystemGlobalSettings singleton: an
// admission gate and a keep-alive default, held in memory for lock-free
// reads and mirrored to the session database for durability across
// restarts.
package settings

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
)

// Settings is the broker-wide admission gate and default keep-alive
// duration, safe for concurrent access.
type Settings struct {
	db *sql.DB

	sessionCreation atomic.Bool
	keepAlive       atomic.Int64 // seconds
}

// Open loads (or initializes) the singleton settings row from db.
func Open(ctx context.Context, db *sql.DB, defaultKeepAlive time.Duration) (*Settings, error) {
	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		return nil, rrberrors.NewInternalError("creating settings table", err)
	}

	s := &Settings{db: db}

	var creation bool
	var keepAliveSeconds int64
	err := db.QueryRowContext(ctx, "SELECT session_creation, session_keep_alive_timeout FROM system_global_settings WHERE id = 1").
		Scan(&creation, &keepAliveSeconds)
	switch {
	case err == sql.ErrNoRows:
		creation = true
		keepAliveSeconds = int64(defaultKeepAlive.Seconds())
		if _, err := db.ExecContext(ctx,
			"INSERT INTO system_global_settings (id, session_creation, session_keep_alive_timeout) VALUES (1, ?, ?)",
			creation, keepAliveSeconds,
		); err != nil {
			return nil, rrberrors.NewInternalError("initializing settings row", err)
		}
	case err != nil:
		return nil, rrberrors.NewInternalError("loading settings row", err)
	}

	s.sessionCreation.Store(creation)
	s.keepAlive.Store(keepAliveSeconds)
	return s, nil
}

// SessionCreationAllowed reports whether new session creation is currently
// admitted.
func (s *Settings) SessionCreationAllowed() bool {
	return s.sessionCreation.Load()
}

// SetSessionCreation toggles the admission gate and persists the change.
func (s *Settings) SetSessionCreation(ctx context.Context, allowed bool) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE system_global_settings SET session_creation = ? WHERE id = 1", allowed,
	); err != nil {
		return rrberrors.NewInternalError("persisting session_creation", err)
	}
	s.sessionCreation.Store(allowed)
	return nil
}

// KeepAliveTimeout returns the current default keep-alive duration.
func (s *Settings) KeepAliveTimeout() time.Duration {
	return time.Duration(s.keepAlive.Load()) * time.Second
}

// SetKeepAliveTimeout updates the default keep-alive duration and
// persists the change.
func (s *Settings) SetKeepAliveTimeout(ctx context.Context, d time.Duration) error {
	seconds := int64(d.Seconds())
	if _, err := s.db.ExecContext(ctx,
		"UPDATE system_global_settings SET session_keep_alive_timeout = ? WHERE id = 1", seconds,
	); err != nil {
		return rrberrors.NewInternalError("persisting session_keep_alive_timeout", err)
	}
	s.keepAlive.Store(seconds)
	return nil
}

const createTableStmt = `CREATE TABLE IF NOT EXISTS system_global_settings (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	session_creation BOOLEAN NOT NULL DEFAULT 1,
	session_keep_alive_timeout INTEGER NOT NULL DEFAULT 600
)`
