// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/danielhkuo/quickly-survey/db"
)

// Permission names checked by the API
const (
	PermManageSubunit = "manage subunit"
	PermCreateSurvey  = "create survey"
	PermReadSurvey    = "read survey"
	PermUpdateSurvey  = "update survey"
)

//go:embed permissions.json
var permissionsJSON []byte

// RoleConfig is one role of the permission catalog
type RoleConfig struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Superiority int      `json:"superiority"`
	Permissions []string `json:"permissions"`
}

// PermissionConfig is the seed document for the permission tables
type PermissionConfig struct {
	Roles []RoleConfig `json:"roles"`
}

// LoadPermissionConfig decodes the embedded permission catalog
func LoadPermissionConfig() (PermissionConfig, error) {
	var cfg PermissionConfig
	if err := json.Unmarshal(permissionsJSON, &cfg); err != nil {
		return PermissionConfig{}, fmt.Errorf("failed to decode permission config: %w", err)
	}
	return cfg, nil
}

// SeedPermissions writes the catalog into permission, su_role and role_permission.
// Rows that already exist are left untouched, so seeding twice is a no-op.
func SeedPermissions(ctx context.Context, conn *db.Conn, cfg PermissionConfig) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertPerm := conn.Rebind(`INSERT INTO permission (name) VALUES ($1) ON CONFLICT DO NOTHING`)
	insertRole := conn.Rebind(`
		INSERT INTO su_role (name, description, superiority) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`)
	insertLink := conn.Rebind(`
		INSERT INTO role_permission (role_name, permission_name) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`)

	links := 0
	for _, role := range cfg.Roles {
		if _, err := tx.ExecContext(ctx, insertRole, role.Name, role.Description, role.Superiority); err != nil {
			return fmt.Errorf("failed to insert role %s: %w", role.Name, err)
		}
		for _, perm := range role.Permissions {
			if _, err := tx.ExecContext(ctx, insertPerm, perm); err != nil {
				return fmt.Errorf("failed to insert permission %s: %w", perm, err)
			}
			if _, err := tx.ExecContext(ctx, insertLink, role.Name, perm); err != nil {
				return fmt.Errorf("failed to link %s to %s: %w", perm, role.Name, err)
			}
			links++
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit permissions: %w", err)
	}

	slog.Info("permissions seeded", "roles", len(cfg.Roles), "grants", links)
	return nil
}

// Authorizer answers permission checks from the seeded tables
type Authorizer struct {
	conn *db.Conn
}

func NewAuthorizer(conn *db.Conn) *Authorizer {
	return &Authorizer{conn: conn}
}

// Allowed reports whether role holds permission. It reads the tables on every call.
func (a *Authorizer) Allowed(ctx context.Context, role, permission string) (bool, error) {
	if role == "" {
		return false, nil
	}

	var exists bool
	err := a.conn.QueryRowContext(ctx, a.conn.Rebind(`
		SELECT EXISTS(
			SELECT 1 FROM role_permission WHERE role_name = $1 AND permission_name = $2
		)
	`), role, permission).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return exists, nil
}
