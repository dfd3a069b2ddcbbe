// Package store provides persistent storage for passnote using SQLite.
//
// # Data Models
//
//   - User: A registered identity, created on first successful passkey
//     registration. Emails are unique and IDs are immutable.
//   - Credential: One registered passkey for a user. Credentials are
//     write-once; only the signature counter is updated after logins.
//   - Note: Free-text notes owned by a user.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Common errors:
//
//   - ErrNotFound: Requested entity does not exist
//   - ErrEmailExists: A user with that email already exists
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests; it implements the full Store
// interface in memory. Use NewSQLiteStore with a t.TempDir() path for
// integration tests with real SQLite.
package store
