// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package compiler creates the physical storage for a subunit's schema.

# Registration

	c := compiler.New(conn, registry.NewStore(conn), compiler.Options{})
	res, err := c.Register(ctx, compiler.Target{
		SubunitID:      subunit.ID,
		ProjectAcronym: "PRJ",
		SubunitAcronym: "HH",
	}, doc)

Every section gets its own table. Root sections are named
{project}_{subunit}_{acronym} and nested ones {parent_table}_{acronym}:

	A       → PRJ_HH_A
	B       → PRJ_HH_B
	B > C   → PRJ_HH_B_C

Each table has an id, a submission_id back reference, deleted_at, and one
column per leaf field. A subunit_table_mapping row links the section to its
table, its parent mapping, and the acronym path from the root. After the
sections, the subunit's submission ledger is created and the viewHome and
filterHome labels are written to the subunit.

# States

	Idle → Validating → Creating → Linking → Committed
	                       └──────────┴──→ RollingBack → Failed

DDL is not transactional, so a failure drops the tables this call created,
newest first. Mapping rows stay behind unless Options.CleanupFailedMappings
is set; the next Register for the subunit supersedes the ones whose tables
are gone. Errors are *TableExistsError when a name is taken and
*CompileError otherwise.

Calls for the same subunit run one at a time.
*/
package compiler
