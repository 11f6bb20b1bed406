// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a Conn
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// ParseDialect maps a configured database type onto a Dialect
func ParseDialect(dbType string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql", "pg":
		return Postgres, nil
	case "sqlite", "sqlite3", "":
		return SQLite, nil
	}
	return "", fmt.Errorf("unsupported database type %q", dbType)
}

// Conn is a database handle that knows its dialect.
// Queries are written with $n placeholders and passed through Rebind.
type Conn struct {
	*sql.DB
	Dialect Dialect
}

// Open connects to the configured database and verifies the connection
func Open(ctx context.Context, dbType, url string) (*Conn, error) {
	dialect, err := ParseDialect(dbType)
	if err != nil {
		return nil, err
	}

	var sqlDB *sql.DB
	switch dialect {
	case Postgres:
		sqlDB, err = sql.Open("postgres", url)
	case SQLite:
		sqlDB, err = sql.Open("sqlite", sqliteDSN(url))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	return &Conn{DB: sqlDB, Dialect: dialect}, nil
}

// sqliteDSN turns on foreign keys and a busy timeout for every pooled connection
func sqliteDSN(url string) string {
	pragmas := "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if strings.Contains(url, "?") {
		return url + "&" + pragmas
	}
	return url + "?" + pragmas
}

// Rebind rewrites $n placeholders into the form the dialect expects.
// For sqlite every $n becomes an anonymous ?, so callers must reference
// each parameter exactly once and in ascending order.
func (c *Conn) Rebind(query string) string {
	if c.Dialect != SQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query))
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && isDigit(query[i+1]) {
			b.WriteByte('?')
			for i+1 < len(query) && isDigit(query[i+1]) {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// MaxIdentifierLength is the longest table or column name the engine keeps intact.
// Postgres silently truncates beyond 63 bytes, which would merge distinct section tables.
func (c *Conn) MaxIdentifierLength() int {
	if c.Dialect == Postgres {
		return 63
	}
	return 0
}
