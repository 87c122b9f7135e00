// Package migrations embeds SQL migration files into the binary.
//
// This allows Gray Logic Hub to run migrations without needing the SQL files
// present on the filesystem - they're compiled into the executable.
package migrations

import "embed"

// FS holds every *.up.sql file in this directory, at the root of the filesystem.
//
//go:embed *.sql
var FS embed.FS
