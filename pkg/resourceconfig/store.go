package resourceconfig

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // database/sql driver registration

	rrberrors "github.com/stacklok/rrbroker/pkg/errors"
	"github.com/stacklok/rrbroker/pkg/resourceconfig/migrations"
)

// Store is the durable CRUD contract over ResourceConfig rows.
type Store interface {
	Get(ctx context.Context, id string) (*ResourceConfig, error)
	Create(ctx context.Context, rc *ResourceConfig) error
	Update(ctx context.Context, rc *ResourceConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*ResourceConfig, error)
	Close() error
}

type sqlStore struct {
	db *sql.DB
}

// Open opens (and migrates) a sqlite-backed Store at the given DSN.
func Open(dsn string) (Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

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

func (s *sqlStore) Get(ctx context.Context, id string) (*ResourceConfig, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" FROM resource_configs WHERE id = ?", id)
	rc, err := scanResourceConfig(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, rrberrors.NewNotFoundError(fmt.Sprintf("resource config %q not found", id), nil)
		}
		return nil, rrberrors.NewInternalError("querying resource config", err)
	}
	return rc, nil
}

func (s *sqlStore) Create(ctx context.Context, rc *ResourceConfig) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rrberrors.NewInternalError("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM resource_configs WHERE id = ?", rc.ID).Scan(&exists)
	if err == nil {
		return rrberrors.NewConflictError(fmt.Sprintf("resource config %q already exists", rc.ID), nil)
	} else if err != sql.ErrNoRows {
		return rrberrors.NewInternalError("checking for duplicate resource config", err)
	}

	if _, err := tx.ExecContext(ctx, insertStmt,
		rc.ID, rc.CommandLine, rc.EnvironmentVariables, rc.Modules,
		rc.ProcessRESTParametersFormat, rc.SchedulerRESTParametersFormat,
		rc.Project, rc.Queue, rc.Exclusive, rc.NbNodes, rc.NbCPUs, rc.NbGPUs,
		rc.Memory, rc.GracefulExit, rc.WaitUntilRunning,
	); err != nil {
		return rrberrors.NewInternalError("inserting resource config", err)
	}
	if err := tx.Commit(); err != nil {
		return rrberrors.NewInternalError("committing transaction", err)
	}
	return nil
}

func (s *sqlStore) Update(ctx context.Context, rc *ResourceConfig) error {
	res, err := s.db.ExecContext(ctx, updateStmt,
		rc.CommandLine, rc.EnvironmentVariables, rc.Modules,
		rc.ProcessRESTParametersFormat, rc.SchedulerRESTParametersFormat,
		rc.Project, rc.Queue, rc.Exclusive, rc.NbNodes, rc.NbCPUs, rc.NbGPUs,
		rc.Memory, rc.GracefulExit, rc.WaitUntilRunning, rc.ID,
	)
	if err != nil {
		return rrberrors.NewInternalError("updating resource config", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rrberrors.NewInternalError("reading rows affected", err)
	}
	if n == 0 {
		return rrberrors.NewNotFoundError(fmt.Sprintf("resource config %q not found", rc.ID), nil)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM resource_configs WHERE id = ?", id)
	if err != nil {
		return rrberrors.NewInternalError("deleting resource config", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return rrberrors.NewInternalError("reading rows affected", err)
	}
	if n == 0 {
		return rrberrors.NewNotFoundError(fmt.Sprintf("resource config %q not found", id), nil)
	}
	return nil
}

func (s *sqlStore) List(ctx context.Context) ([]*ResourceConfig, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+" FROM resource_configs ORDER BY id")
	if err != nil {
		return nil, rrberrors.NewInternalError("listing resource configs", err)
	}
	defer rows.Close()

	var out []*ResourceConfig
	for rows.Next() {
		rc, err := scanResourceConfig(rows)
		if err != nil {
			return nil, rrberrors.NewInternalError("scanning resource config row", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT id, command_line, environment_variables, modules,
	process_rest_parameters_format, scheduler_rest_parameters_format,
	project, queue, exclusive, nb_nodes, nb_cpus, nb_gpus, memory,
	graceful_exit, wait_until_running`

const insertStmt = `INSERT INTO resource_configs
	(id, command_line, environment_variables, modules,
	 process_rest_parameters_format, scheduler_rest_parameters_format,
	 project, queue, exclusive, nb_nodes, nb_cpus, nb_gpus, memory,
	 graceful_exit, wait_until_running)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateStmt = `UPDATE resource_configs SET
	command_line = ?, environment_variables = ?, modules = ?,
	process_rest_parameters_format = ?, scheduler_rest_parameters_format = ?,
	project = ?, queue = ?, exclusive = ?, nb_nodes = ?, nb_cpus = ?,
	nb_gpus = ?, memory = ?, graceful_exit = ?, wait_until_running = ?
	WHERE id = ?`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanResourceConfig(row rowScanner) (*ResourceConfig, error) {
	var rc ResourceConfig
	err := row.Scan(&rc.ID, &rc.CommandLine, &rc.EnvironmentVariables, &rc.Modules,
		&rc.ProcessRESTParametersFormat, &rc.SchedulerRESTParametersFormat,
		&rc.Project, &rc.Queue, &rc.Exclusive, &rc.NbNodes, &rc.NbCPUs, &rc.NbGPUs,
		&rc.Memory, &rc.GracefulExit, &rc.WaitUntilRunning)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}
