// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db opens database connections, runs metadata migrations, and
generates DDL for compiled section tables.

# Connections

Open returns a Conn that remembers its dialect:

	conn, err := db.Open(ctx, "sqlite", "survey.db")
	if err != nil {
		log.Fatal(err)
	}

Postgres uses lib/pq, sqlite uses modernc.org/sqlite. Queries are written
with $n placeholders and passed through Conn.Rebind before execution.

# Migrations

Migrate applies the embedded goose migrations under migrations/:

	if err := db.Migrate(ctx, conn); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times - goose tracks applied versions.

# Metadata Tables

  - project, subunit: collaborator records
  - subunit_table_mapping: compiled sections and their physical tables
  - question, field_validation, skip_logic, skip_logic_condition: question catalog
  - form_submission, submission_data: submissions and their audit rows
  - permission, su_role, role_permission: permission catalog

# Relationships

	project 1──* subunit
	subunit 1──* subunit_table_mapping (self-referencing parent_id)
	subunit 1──* question (self-referencing section_id)
	question 1──* field_validation
	question 1──* skip_logic 1──* skip_logic_condition
	subunit 1──* form_submission 1──* submission_data

# Generated Tables

Section tables are described by a TableDef and rendered per dialect:

	def := db.TableDef{Name: "PRJ_HH_A", Columns: []db.ColumnDef{
		{Name: "id", Kind: db.KindSerial},
		{Name: "submission_id", Kind: db.KindRef, NotNull: true},
	}}
	err := conn.CreateTable(ctx, def)

DDL is never transactional here. Callers that create several tables are
responsible for dropping them again on failure.
*/
package db
