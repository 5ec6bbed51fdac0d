package migrations

import "embed"

// FS holds the SQL migrations applied on start when MIGRATE_ON_START is set.
//
//go:embed *.sql
var FS embed.FS
