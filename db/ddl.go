// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"fmt"
	"strings"
)

// ColumnKind is the logical storage kind of a column in a generated table
type ColumnKind int

const (
	KindSerial ColumnKind = iota
	KindRef
	KindShortText
	KindLongText
	KindStructured
	KindDate
	KindTimestamp
)

func (k ColumnKind) String() string {
	switch k {
	case KindSerial:
		return "serial"
	case KindRef:
		return "ref"
	case KindShortText:
		return "short_text"
	case KindLongText:
		return "long_text"
	case KindStructured:
		return "structured"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	}
	return "unknown"
}

// ShortTextLength is the width of KindShortText columns
const ShortTextLength = 255

// ColumnDef is one column of a generated table
type ColumnDef struct {
	Name    string
	Kind    ColumnKind
	NotNull bool
}

// TableDef is a logical table definition, translated into DDL per dialect
type TableDef struct {
	Name    string
	Columns []ColumnDef
}

// ColumnNames returns the column names in declaration order
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// QuoteIdent quotes a table or column name. Both dialects accept double quotes.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (c *Conn) columnType(kind ColumnKind) string {
	switch kind {
	case KindSerial:
		if c.Dialect == Postgres {
			return "BIGSERIAL PRIMARY KEY"
		}
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	case KindRef, KindLongText:
		return "TEXT"
	case KindShortText:
		return fmt.Sprintf("VARCHAR(%d)", ShortTextLength)
	case KindStructured:
		if c.Dialect == Postgres {
			return "JSONB"
		}
		return "TEXT"
	case KindDate:
		return "DATE"
	case KindTimestamp:
		return "TIMESTAMP"
	}
	return "TEXT"
}

// CreateTableSQL renders the CREATE TABLE statement for a definition
func (c *Conn) CreateTableSQL(def TableDef) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE ")
	b.WriteString(QuoteIdent(def.Name))
	b.WriteString(" (\n")
	for i, col := range def.Columns {
		b.WriteString("    ")
		b.WriteString(QuoteIdent(col.Name))
		b.WriteByte(' ')
		b.WriteString(c.columnType(col.Kind))
		if col.NotNull && col.Kind != KindSerial {
			b.WriteString(" NOT NULL")
		}
		if col.Kind == KindTimestamp && col.NotNull {
			b.WriteString(" DEFAULT CURRENT_TIMESTAMP")
		}
		if i < len(def.Columns)-1 {
			b.WriteByte(',')
		}
		b.WriteByte('\n')
	}
	b.WriteString(")")
	return b.String()
}

// DropTableSQL renders the DROP TABLE statement used by compensating rollback
func (c *Conn) DropTableSQL(name string) string {
	stmt := "DROP TABLE IF EXISTS " + QuoteIdent(name)
	if c.Dialect == Postgres {
		stmt += " CASCADE"
	}
	return stmt
}

// CreateTable executes the DDL for def. It is not part of any transaction.
func (c *Conn) CreateTable(ctx context.Context, def TableDef) error {
	if len(def.Columns) == 0 {
		return fmt.Errorf("table %s has no columns", def.Name)
	}
	if _, err := c.ExecContext(ctx, c.CreateTableSQL(def)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", def.Name, err)
	}
	return nil
}

// DropTable removes a generated table if present
func (c *Conn) DropTable(ctx context.Context, name string) error {
	if _, err := c.ExecContext(ctx, c.DropTableSQL(name)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", name, err)
	}
	return nil
}

// TableExists reports whether a table with this exact name is present
func (c *Conn) TableExists(ctx context.Context, name string) (bool, error) {
	var query string
	switch c.Dialect {
	case Postgres:
		query = `
			SELECT EXISTS(
				SELECT 1 FROM information_schema.tables
				WHERE table_schema = current_schema() AND table_name = $1
			)`
	default:
		query = `
			SELECT EXISTS(
				SELECT 1 FROM sqlite_master
				WHERE type = 'table' AND name = $1 COLLATE NOCASE
			)`
	}

	var exists bool
	if err := c.QueryRowContext(ctx, c.Rebind(query), name).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", name, err)
	}
	return exists, nil
}
