// Package config provides centralized configuration management for the film
// warehouse ETL. It loads settings from built-in defaults, an optional YAML
// file and FILMDW_* environment variables, and validates the result.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Command-line flags, applied by cmd/etl (highest priority)
//	2. Environment variables
//	3. YAML configuration file
//	4. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables follow the pattern FILMDW_<SECTION>_<FIELD>, with
// multi-word field names split by underscores. Unprefixed variables are never
// read:
//
//	FILMDW_SOURCE_PATH=data/Films.xlsx
//	FILMDW_DATABASE_DRIVER=postgres
//	FILMDW_DATABASE_HOST=localhost
//	FILMDW_DATABASE_PASSWORD=secret
//	FILMDW_DATABASE_SSL_MODE=require
//	FILMDW_LOGGING_LEVEL=debug
//	FILMDW_TELEMETRY_STATUS_ADDR=:9090
//
// # Example File
//
//	source:
//	  path: data/Films.xlsx
//	  sheet: Films
//	database:
//	  driver: postgres
//	  host: localhost
//	  port: 5432
//	  name: MovieDW
//	export:
//	  dir: snapshots
package config
