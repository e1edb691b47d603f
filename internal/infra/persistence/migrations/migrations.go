// Package migrations embeds the per-dialect schema migrations applied with goose.
package migrations

import "embed"

// Migrations holds one directory per goose dialect: postgres, mysql and sqlite.
//
//go:embed postgres/*.sql mysql/*.sql sqlite/*.sql
var Migrations embed.FS
