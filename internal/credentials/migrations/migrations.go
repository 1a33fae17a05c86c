package migrations

import "embed"

// Migrations holds the connection registry schema migrations.
//
//go:embed *.sql
var Migrations embed.FS
