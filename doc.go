// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the Quickly Survey API server.

Quickly Survey turns a JSON questionnaire schema into relational storage:
one table per section, a question catalog with validation and skip logic,
and a submission router that writes each answer into the table of its
section.

# Commands

	quickly-survey serve [config flags]            (default)
	quickly-survey migrate [config flags]
	quickly-survey build-forms [config flags]
	quickly-survey seed-permissions [config flags]
	quickly-survey add-project --name N --acronym A [-- config flags]

Config flags are handled by cliparse:

	quickly-survey serve -p 3318 -t sqlite -d survey.db

# Configuration

Required settings:

  - DATABASE_URL (-d): Postgres connection string or sqlite file path
  - JWT_SECRET (-jwt-secret): HS256 signing secret, serve only

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite (default) or postgres
  - IP_HASH_SALT (-ip-salt): Salt for hashed client IPs in submission metadata
  - CLEANUP_FAILED_MAPPINGS (-cleanup-failed-mappings): Soft-delete mapping rows of failed compiles

A .env file (-env) seeds variables that are not already set.

# Architecture

  - schema: Structure validation, table naming, field type families
  - compiler: Section tables, table mappings, compensating rollback
  - catalog: Question, validation and skip logic rows
  - rules: Skip logic evaluation and answer validation
  - submission: Answer routing into section tables, review
  - registry: Projects and subunits
  - handlers, router, middleware: HTTP surface
  - auth: Bearer tokens and role permissions
  - db: Connections, dialect-aware DDL, migrations
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
