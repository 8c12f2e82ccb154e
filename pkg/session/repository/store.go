// Package repository persists Session rows to a relational store and
// serializes concurrent updates to the same session id.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // database/sql driver registration

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/session"
	"github.com/stacklok/rrbroker/pkg/session/repository/migrations"
)

// Store is the Session Repository contract of the design spec: get,
// create, update, delete, list, each executed transactionally.
type Store interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Create(ctx context.Context, s *session.Session) error
	Update(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*session.Session, error)
	Close() error
}

type sqlStore struct {
	db *sql.DB
	// locks serializes writes to the same session id beyond what the
	// database transaction alone guarantees, per the design spec's
	// per-session lock recommendation.
	locks keyedMutex
}

// Open opens (and migrates) a sqlite-backed Store at the given DSN.
func Open(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(db, "."); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &sqlStore{db: db}, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

func (s *sqlStore) Get(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM sessions WHERE id = ?", id)
	sess, _, err := scanSession(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rrberrors.NewNotFoundError(fmt.Sprintf("session %q not found", id), nil)
		}
		return nil, rrberrors.NewInternalError("querying session", err)
	}
	return sess, nil
}

func (s *sqlStore) Create(ctx context.Context, sess *session.Session) error {
	unlock := s.locks.Lock(sess.ID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rrberrors.NewInternalError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	if err := tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sess.ID).Scan(&exists); err == nil {
		return rrberrors.NewConflictError(fmt.Sprintf("session %q already exists", sess.ID), nil)
	} else if err != sql.ErrNoRows {
		return rrberrors.NewInternalError("checking for duplicate session", err)
	}

	if _, err := tx.ExecContext(ctx, insertStmt,
		sess.ID, sess.Owner, sess.ConfigID, sess.CreatedAt, sess.ValidUntil, string(sess.Status),
		sess.JobID, sess.ProcessPID, sess.HTTPHost, sess.HTTPPort, sess.ClusterNode,
		sess.Parameters, sess.Command,
	); err != nil {
		return rrberrors.NewInternalError("inserting session", err)
	}

	if err := tx.Commit(); err != nil {
		return rrberrors.NewInternalError("committing transaction", err)
	}
	return nil
}

func (s *sqlStore) Update(ctx context.Context, sess *session.Session) error {
	unlock := s.locks.Lock(sess.ID)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rrberrors.NewInternalError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, updateStmt,
		sess.Owner, sess.ConfigID, sess.CreatedAt, sess.ValidUntil, string(sess.Status),
		sess.JobID, sess.ProcessPID, sess.HTTPHost, sess.HTTPPort, sess.ClusterNode,
		sess.Parameters, sess.Command, sess.ID,
	)
	if err != nil {
		return rrberrors.NewInternalError("updating session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rrberrors.NewInternalError("reading rows affected", err)
	}
	if n == 0 {
		return rrberrors.NewNotFoundError(fmt.Sprintf("session %q not found", sess.ID), nil)
	}

	if err := tx.Commit(); err != nil {
		return rrberrors.NewInternalError("committing transaction", err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", id)
	if err != nil {
		return rrberrors.NewInternalError("deleting session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rrberrors.NewInternalError("reading rows affected", err)
	}
	if n == 0 {
		return rrberrors.NewNotFoundError(fmt.Sprintf("session %q not found", id), nil)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM sessions ORDER BY created_at")
	if err != nil {
		return nil, rrberrors.NewInternalError("listing sessions", err)
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, _, err := scanSession(rows)
		if err != nil {
			return nil, rrberrors.NewInternalError("scanning session row", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT id, owner, config_id, created_at, valid_until, status,
	job_id, process_pid, http_host, http_port, cluster_node, parameters, command`

const insertStmt = `INSERT INTO sessions
	(id, owner, config_id, created_at, valid_until, status, job_id, process_pid,
	 http_host, http_port, cluster_node, parameters, command)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateStmt = `UPDATE sessions SET
	owner = ?, config_id = ?, created_at = ?, valid_until = ?, status = ?,
	job_id = ?, process_pid = ?, http_host = ?, http_port = ?, cluster_node = ?,
	parameters = ?, command = ?, version = version + 1
	WHERE id = ?`

// rowScanner abstracts *sql.Row and *sql.Rows for scanSession.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*session.Session, time.Time, error) {
	var s session.Session
	var status string
	var createdAt, validUntil time.Time
	err := row.Scan(&s.ID, &s.Owner, &s.ConfigID, &createdAt, &validUntil, &status,
		&s.JobID, &s.ProcessPID, &s.HTTPHost, &s.HTTPPort, &s.ClusterNode,
		&s.Parameters, &s.Command)
	if err != nil {
		return nil, time.Time{}, err
	}
	s.CreatedAt = createdAt
	s.ValidUntil = validUntil
	s.Status = session.Status(status)
	return &s, validUntil, nil
}

// keyedMutex hands out a lock per key, serializing concurrent writers to
// the same session id without holding a single global lock across all
// sessions.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the per-key mutex for key, creating it on first use, and
// returns a function that releases it.
func (k *keyedMutex) Lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}
