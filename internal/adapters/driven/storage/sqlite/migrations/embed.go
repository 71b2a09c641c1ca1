// Package migrations holds the numbered schema migrations of the SQLite store.
package migrations

import "embed"

// FS contains the migration files, applied in file-name order.
//
//go:embed *.sql
var FS embed.FS
