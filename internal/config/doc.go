// Package config handles configuration loading for passnote.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${PASSNOTE_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  token_ttl: "4h"
//	webauthn:
//	  timeout: "60s"
//	  challenge_ttl: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//
// Database:
//
//	database:
//	  path: "/var/lib/passnote/passnote.db"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${PASSNOTE_JWT_SECRET}"  # Required
//	  token_ttl: "4h"
//
// Relying party:
//
//	webauthn:
//	  rp_name: "passnote"
//	  rp_id: "example.com"                  # Required
//	  rp_origin: "https://example.com"      # Required
//	  timeout: "60s"
//	  challenge_ttl: "5m"
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() fails fast when jwt_secret, database.path, rp_id, or rp_origin
// is missing, so a misconfigured server never starts accepting ceremonies.
package config
