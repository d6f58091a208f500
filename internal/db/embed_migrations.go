package db

import "embed"

// MigrationFS embeds SQL migration files from internal/db/migrations.
// Used by the migrate runner in cmd/migrate to apply migrations.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
