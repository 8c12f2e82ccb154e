// Package migrations embeds the SQL migrations applied to the resource
// config store at startup via pressly/goose.
package migrations

import "embed"

// FS holds the embedded *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
