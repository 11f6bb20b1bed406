// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package catalog flattens a subunit's schema into questions, validation
rules, and skip logic rules, and loads them back for rendering and checks.

# Building

	stats, err := catalog.NewBuilder(conn).Build(ctx, subunitID)

Build deletes the subunit's catalog and writes a new one inside a single
transaction. Each section becomes a SECTION question whose question_id is
its acronym; each leaf becomes a question linked to its section. Rules come
from the leaf's properties and fieldValidations keys:

	valueRequired → required
	minChar, maxChar → min_length, max_length
	minValue, maxValue → min_value, max_value
	pattern → pattern
	multiSelect → multi_select

Running Build twice leaves the same catalog. BuildAll rebuilds every active
subunit and reports failures together.

# Loading

	cat, err := catalog.Load(ctx, conn, subunitID)
	q, ok := cat.Question("q_age")
	path := cat.SectionPath(q) // [B C]

Questions are kept in one slice with an index by row id; Parent and
SectionPath follow section_id through that index.
*/
package catalog
