// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package registry keeps project and subunit records.

Projects and subunits supply the acronyms compiled table names are built
from. A subunit also holds its raw schema (qnr_schema) and the viewHome and
filterHome label maps the compiler collects.

	store := registry.NewStore(conn)
	su, err := store.CreateSubunit(ctx, registry.NewSubunit{
		ProjectID: projectID,
		Name:      "Household",
		Acronym:   "HH",
		Schema:    raw,
	})

New subunits are inactive until SetActive(ctx, id, true) after a
successful compile. Lookups of missing rows return ErrNotFound.
*/
package registry
