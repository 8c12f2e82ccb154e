package app

import (
	"database/sql"

	_ "modernc.org/sqlite" // database/sql driver registration
)

// settingsDB opens an independent connection to the same sqlite DSN the
// session repository and resource-config registry use, for the settings
// package's own schema. Each package that touches sqlite keeps its own
// *sql.DB, mirroring the pattern in pkg/session/repository.Open and
// pkg/resourceconfig.Open.
func settingsDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
