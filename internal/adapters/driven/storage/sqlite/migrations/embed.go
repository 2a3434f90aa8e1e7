// Package migrations holds the numbered SQL files that create the vector
// tables. The store applies every *.up.sql file above the recorded version.
package migrations

import "embed"

// FS holds the migration files.
//
//go:embed *.sql
var FS embed.FS
