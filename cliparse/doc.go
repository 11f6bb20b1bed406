// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

# Config Fields

  - Port: Server listen port (default: 3318)
  - DatabaseURL: Connection string or sqlite file path (required)
  - DatabaseType: sqlite (default) or postgres
  - JWTSecret: HS256 secret for bearer tokens (required to serve)
  - IPHashSalt: Salt for hashed client addresses in submission metadata
  - CleanupFailedMappings: Soft-delete mapping rows of a failed compilation
  - EnvFile: Path of the .env file (default: .env)

# CLI Flags

	-p                        Server port
	-d                        Database URL
	-t                        Database type
	-jwt-secret               JWT signing secret
	-ip-salt                  Client IP hash salt
	-cleanup-failed-mappings  Soft-delete mappings of failed compilations
	-env                      Path of the .env file

# Environment Variables

Flags fall back to environment variables:

	PORT                    → -p
	DATABASE_URL            → -d
	DATABASE_TYPE           → -t
	JWT_SECRET              → -jwt-secret
	IP_HASH_SALT            → -ip-salt
	CLEANUP_FAILED_MAPPINGS → -cleanup-failed-mappings

Before the fallback, the .env file is loaded with godotenv. It never
overrides variables that are already set, and a missing file is ignored.
CLI flags take precedence over both.

# Validation

ParseFlags returns an error if DATABASE_URL is missing or a numeric or
boolean variable cannot be parsed. Commands that serve HTTP additionally call:

	if err := cfg.RequireSecrets(); err != nil {
		log.Fatal(err)
	}
*/
package cliparse
