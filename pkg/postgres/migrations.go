package postgres

import "embed"

// Migrations holds the embedded schema migrations, applied via pg.Migrate
// with dir "migrations".
//
//go:embed migrations/*.sql
var Migrations embed.FS
