// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate creates or upgrades the metadata tables.
// Safe to call multiple times - goose records applied versions.
func Migrate(ctx context.Context, conn *Conn) error {
	dialect := "postgres"
	if conn.Dialect == SQLite {
		dialect = "sqlite3"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.UpContext(ctx, conn.DB, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// MetadataTables lists the fixed tables owned by the migrations, children first
var MetadataTables = []string{
	"role_permission",
	"su_role",
	"permission",
	"submission_data",
	"form_submission",
	"skip_logic_condition",
	"skip_logic",
	"field_validation",
	"question",
	"subunit_table_mapping",
	"subunit",
	"project",
}
