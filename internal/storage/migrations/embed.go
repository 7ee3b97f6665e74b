// Package migrations embeds the SQL migration files for the SQLite
// storage backend.
package migrations

import "embed"

// FS holds all SQLite schema migrations, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
