// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides identity, permission, and ID generation utilities.

# Actors

Callers authenticate with an HS256 bearer token whose "sub" claim is the
actor id and whose "role" claim names a seeded role:

	token, err := auth.SignActor(auth.Actor{ID: "u1", Role: "Surveyor"}, secret, time.Hour)
	actor, err := auth.ParseActor(r.Header.Get("Authorization"), secret)

Parse failures wrap ErrInvalidToken. The parsed actor travels in the request
context via WithActor and ActorFrom.

# Permissions

The role → permission catalog lives in permissions.json, embedded at build
time and written to the database by SeedPermissions:

	cfg, err := auth.LoadPermissionConfig()
	err = auth.SeedPermissions(ctx, conn, cfg)

Seeding is idempotent. Authorizer.Allowed reads role_permission on every
decision, so edits to the tables take effect without a restart.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters

# IP Hashing

Submission metadata stores a salted hash instead of the client address:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
