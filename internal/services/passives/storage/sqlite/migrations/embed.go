package migrations

import "embed"

// FS contains embedded SQLite migrations for passive tree storage.
//
//go:embed *.sql
var FS embed.FS
