// Package migrations embeds the SQL migration files for the PostgreSQL
// storage backend.
package migrations

import "embed"

// FS holds all PostgreSQL schema migrations, applied in filename order.
//
//go:embed *.sql
var FS embed.FS
