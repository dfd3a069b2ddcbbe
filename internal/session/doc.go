// Package session issues and validates the bearer session tokens minted
// after a successful passkey ceremony.
//
// Tokens are HS256-signed JWTs carrying the user's identity snapshot with
// a fixed expiry horizon. They are stateless: the server keeps no session
// table, and revocation before expiry is not supported.
package session
